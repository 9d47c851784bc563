// internal/app/store/proposals/proposalstore.go
package proposalstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	organizationstore "github.com/dalemusser/cosign/internal/app/store/organizations"
	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/app/system/quorum"
	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound             = errors.New("proposal not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAlreadyConfirmed     = errors.New("proposal is already confirmed")
	ErrNotAMember           = errors.New("identity is not a member of the organization")
	ErrDuplicateApproval    = errors.New("identity has already approved this proposal")
	ErrConflict             = errors.New("proposal is being modified concurrently; retry")
)

// errVersionLost marks a compare-and-swap miss; it is retried, never returned.
var errVersionLost = errors.New("proposal version changed")

// DefaultMaxRetries bounds the compare-and-swap loop in RecordApproval.
const DefaultMaxRetries = 10

// OrgLookup is the slice of the membership store the proposal store needs.
type OrgLookup interface {
	GetByName(ctx context.Context, name string) (models.Organization, error)
}

type Store struct {
	c          *mongo.Collection
	orgs       OrgLookup
	maxRetries uint64
}

func New(db *mongo.Database, orgs OrgLookup) *Store {
	return &Store{
		c:          db.Collection("proposals"),
		orgs:       orgs,
		maxRetries: DefaultMaxRetries,
	}
}

// SetMaxRetries overrides how many version conflicts RecordApproval absorbs
// before giving up with ErrConflict.
func (s *Store) SetMaxRetries(n int) {
	if n > 0 {
		s.maxRetries = uint64(n)
	}
}

// Create inserts a new proposal for p.Organization with the initiator as its
// first approval. The organization's current threshold is captured on the
// proposal; a threshold of one confirms it immediately.
//
// If p.ID is empty a UUID is assigned.
func (s *Store) Create(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	initiator, err := address.Normalize(p.Initiator)
	if err != nil {
		return models.Proposal{}, fmt.Errorf("initiator: %w", err)
	}

	org, err := s.orgs.GetByName(ctx, p.Organization)
	if errors.Is(err, organizationstore.ErrNotFound) {
		return models.Proposal{}, ErrOrganizationNotFound
	}
	if err != nil {
		return models.Proposal{}, err
	}
	initiatorCI := address.Fold(initiator)
	if !org.HasMember(initiatorCI) {
		return models.Proposal{}, ErrNotAMember
	}

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Initiator = initiator
	p.Approvals = []string{initiator}
	p.ApprovalsCI = []string{initiatorCI}
	p.Threshold = org.Threshold
	p.Status = quorum.Evaluate(p.Threshold, p.ApprovalsCI)
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	p.ConfirmedAt = nil
	if p.IsConfirmed() {
		p.ConfirmedAt = &now
	}

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Proposal{}, err
	}
	return p, nil
}

// Get loads a proposal by id.
func (s *Store) Get(ctx context.Context, id string) (models.Proposal, error) {
	var p models.Proposal
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return models.Proposal{}, ErrNotFound
	}
	if err != nil {
		return models.Proposal{}, err
	}
	return p, nil
}

// ListByOrganization returns the organization's proposals, oldest first.
// Each call reads a fresh snapshot, so callers can re-list at any time.
func (s *Store) ListByOrganization(ctx context.Context, org string) ([]models.Proposal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"organization": org}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Proposal{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OldestPending returns the earliest proposal of org still awaiting approvals.
func (s *Store) OldestPending(ctx context.Context, org string) (models.Proposal, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	var p models.Proposal
	err := s.c.FindOne(ctx, bson.M{"organization": org, "status": models.ProposalPending}, opts).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return models.Proposal{}, ErrNotFound
	}
	if err != nil {
		return models.Proposal{}, err
	}
	return p, nil
}

// RecordApproval adds identity to the proposal's approvals and recomputes
// its status in the same conditional write.
//
// The write only applies if the stored version and pending status are still
// what was read, so at most one caller can move a proposal to confirmed.
// confirmedNow is true only for that caller. On ErrAlreadyConfirmed,
// ErrDuplicateApproval and ErrNotAMember the current proposal is returned
// alongside the error.
func (s *Store) RecordApproval(ctx context.Context, id, identity string) (p models.Proposal, confirmedNow bool, err error) {
	norm, err := address.Normalize(identity)
	if err != nil {
		return models.Proposal{}, false, fmt.Errorf("approver: %w", err)
	}
	ci := address.Fold(norm)

	op := func() error {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		p = cur
		if cur.IsConfirmed() {
			return backoff.Permanent(ErrAlreadyConfirmed)
		}

		org, err := s.orgs.GetByName(ctx, cur.Organization)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("load organization %q: %w", cur.Organization, err))
		}
		if !org.HasMember(ci) {
			return backoff.Permanent(ErrNotAMember)
		}
		if cur.HasApproval(ci) {
			return backoff.Permanent(ErrDuplicateApproval)
		}

		next, set := withApproval(cur, norm, ci)
		res, err := s.c.UpdateOne(ctx,
			bson.M{"_id": id, "version": cur.Version, "status": models.ProposalPending},
			bson.M{"$set": set})
		if err != nil {
			return backoff.Permanent(err)
		}
		if res.MatchedCount == 0 {
			return errVersionLost
		}

		p = next
		confirmedNow = quorum.Transitioned(cur.Status, next.Status)
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(casBackOff(), s.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, errVersionLost) {
			err = ErrConflict
		}
		return p, false, err
	}
	return p, confirmedNow, nil
}

func withApproval(cur models.Proposal, norm, ci string) (models.Proposal, bson.M) {
	now := time.Now().UTC()

	next := cur
	next.Approvals = append(append([]string(nil), cur.Approvals...), norm)
	next.ApprovalsCI = append(append([]string(nil), cur.ApprovalsCI...), ci)
	next.Status = quorum.Evaluate(cur.Threshold, next.ApprovalsCI)
	next.Version = cur.Version + 1
	next.UpdatedAt = now

	set := bson.M{
		"approvals":    next.Approvals,
		"approvals_ci": next.ApprovalsCI,
		"status":       next.Status,
		"version":      next.Version,
		"updated_at":   now,
	}
	if next.IsConfirmed() {
		next.ConfirmedAt = &now
		set["confirmed_at"] = now
	}
	return next, set
}

func casBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}
