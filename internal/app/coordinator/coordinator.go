// Package coordinator implements the approval workflow on top of the
// membership and proposal stores: it validates requests, records state,
// and publishes the resulting notifications in commit order.
package coordinator

import (
	"context"
	"errors"

	organizationstore "github.com/dalemusser/cosign/internal/app/store/organizations"
	proposalstore "github.com/dalemusser/cosign/internal/app/store/proposals"
	"github.com/dalemusser/cosign/internal/app/system/auditlog"
	"github.com/dalemusser/cosign/internal/app/system/keylock"
	"github.com/dalemusser/cosign/internal/app/system/metrics"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrganizationStore is the membership persistence the coordinator needs.
type OrganizationStore interface {
	Create(ctx context.Context, name string, members []string, threshold int) (models.Organization, error)
	GetByName(ctx context.Context, name string) (models.Organization, error)
	ListForMember(ctx context.Context, addr string) ([]models.Organization, error)
	AddMember(ctx context.Context, name, addr string) (models.Organization, error)
}

// ProposalStore is the proposal persistence the coordinator needs.
type ProposalStore interface {
	Create(ctx context.Context, p models.Proposal) (models.Proposal, error)
	Get(ctx context.Context, id string) (models.Proposal, error)
	ListByOrganization(ctx context.Context, org string) ([]models.Proposal, error)
	OldestPending(ctx context.Context, org string) (models.Proposal, error)
	RecordApproval(ctx context.Context, id, identity string) (models.Proposal, bool, error)
}

// ApprovalResult describes the outcome of an approval submission. On benign
// failures (duplicate approval, already confirmed) Proposal still holds the
// current snapshot.
type ApprovalResult struct {
	Proposal models.Proposal
	// Confirmed is true only for the call whose approval reached the threshold.
	Confirmed bool
}

type Coordinator struct {
	orgs      OrganizationStore
	proposals ProposalStore
	pub       notify.Publisher
	audit     *auditlog.Logger
	metrics   *metrics.Metrics
	locks     *keylock.Locker
	log       *zap.Logger
}

// New wires a Coordinator. audit and m may be nil.
func New(orgs OrganizationStore, proposals ProposalStore, pub notify.Publisher, audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		orgs:      orgs,
		proposals: proposals,
		pub:       pub,
		audit:     audit,
		metrics:   m,
		locks:     keylock.New(),
		log:       logger,
	}
}

// CreateOrganization registers a new organization. No notification is sent.
func (c *Coordinator) CreateOrganization(ctx context.Context, name string, members []string, threshold int) (models.Organization, error) {
	org, err := c.orgs.Create(ctx, name, members, threshold)
	if err != nil {
		c.audit.OrgCreateFailed(ctx, name, Kind(err))
		return models.Organization{}, err
	}
	c.metrics.OrganizationCreated()
	c.audit.OrgCreated(ctx, org)
	c.log.Info("organization created",
		zap.String("organization", org.Name),
		zap.Int("members", len(org.Members)),
		zap.Int("threshold", org.Threshold))
	return org, nil
}

// GetOrganization returns the organization with exactly this name.
func (c *Coordinator) GetOrganization(ctx context.Context, name string) (models.Organization, error) {
	return c.orgs.GetByName(ctx, name)
}

// OrganizationsFor lists the organizations addr belongs to.
func (c *Coordinator) OrganizationsFor(ctx context.Context, addr string) ([]models.Organization, error) {
	return c.orgs.ListForMember(ctx, addr)
}

// InviteMember appends addr to org and notifies the organization's
// subscribers. The threshold is unchanged.
func (c *Coordinator) InviteMember(ctx context.Context, org, addr string) (models.Organization, error) {
	updated, err := c.orgs.AddMember(ctx, org, addr)
	if err != nil {
		c.audit.MemberInviteFailed(ctx, org, addr, Kind(err))
		return models.Organization{}, err
	}
	added := updated.Members[len(updated.Members)-1].Address

	c.metrics.MemberInvited()
	c.audit.MemberInvited(ctx, org, added)
	c.publish(ctx, notify.MemberInvited(org, added))
	return updated, nil
}

// InitiateProposal creates a proposal with the initiator as first approver
// and announces it. A threshold of one confirms it immediately, in which
// case proposal_confirmed follows proposal_created.
func (c *Coordinator) InitiateProposal(ctx context.Context, org, initiator string, payload models.TransferPayload) (models.Proposal, error) {
	id := uuid.NewString()
	unlock := c.locks.Lock(id)
	defer unlock()

	p, err := c.proposals.Create(ctx, models.Proposal{
		ID:           id,
		Organization: org,
		Initiator:    initiator,
		Payload:      payload,
	})
	if err != nil {
		if errors.Is(err, organizationstore.ErrNotFound) {
			err = proposalstore.ErrOrganizationNotFound
		}
		c.audit.ProposalRejected(ctx, org, initiator, Kind(err))
		return models.Proposal{}, err
	}

	c.metrics.ProposalInitiated()
	c.audit.ProposalInitiated(ctx, p)
	c.publish(ctx, notify.ProposalCreated(p))

	if p.IsConfirmed() {
		c.metrics.ProposalConfirmed()
		c.audit.ProposalConfirmed(ctx, p, p.Initiator)
		c.publish(ctx, notify.ProposalConfirmed(p))
	}

	c.log.Info("proposal initiated",
		zap.String("organization", p.Organization),
		zap.String("proposal_id", p.ID),
		zap.String("initiator", p.Initiator),
		zap.Int("threshold", p.Threshold),
		zap.String("status", string(p.Status)))
	return p, nil
}

// SubmitApproval records identity's approval of proposal id. Events are
// published while the proposal's lock is held, so subscribers see
// proposal_approved before the matching proposal_confirmed.
func (c *Coordinator) SubmitApproval(ctx context.Context, id, identity string) (ApprovalResult, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	p, confirmedNow, err := c.proposals.RecordApproval(ctx, id, identity)
	if err != nil {
		kind := Kind(err)
		c.metrics.ApprovalRejected(kind)
		c.audit.ApprovalRejected(ctx, p.Organization, id, identity, kind)
		if !Benign(err) {
			c.log.Debug("approval rejected",
				zap.String("proposal_id", id),
				zap.String("identity", identity),
				zap.String("reason", kind))
		}
		return ApprovalResult{Proposal: p}, err
	}

	approver := p.Approvals[len(p.Approvals)-1]
	c.metrics.ApprovalRecorded()
	c.audit.ApprovalRecorded(ctx, p, approver)
	c.publish(ctx, notify.ProposalApproved(p, approver))

	if confirmedNow {
		c.metrics.ProposalConfirmed()
		c.audit.ProposalConfirmed(ctx, p, approver)
		c.publish(ctx, notify.ProposalConfirmed(p))
		c.log.Info("proposal confirmed",
			zap.String("organization", p.Organization),
			zap.String("proposal_id", p.ID),
			zap.Int("approvals", len(p.Approvals)),
			zap.Int("threshold", p.Threshold))
	}
	return ApprovalResult{Proposal: p, Confirmed: confirmedNow}, nil
}

// ApproveOldestPending approves the earliest pending proposal of org. It
// serves clients that confirm by organization rather than by proposal id.
func (c *Coordinator) ApproveOldestPending(ctx context.Context, org, identity string) (ApprovalResult, error) {
	if _, err := c.orgs.GetByName(ctx, org); err != nil {
		if errors.Is(err, organizationstore.ErrNotFound) {
			err = proposalstore.ErrOrganizationNotFound
		}
		c.metrics.ApprovalRejected(Kind(err))
		c.audit.ApprovalRejected(ctx, org, "", identity, Kind(err))
		return ApprovalResult{}, err
	}
	p, err := c.proposals.OldestPending(ctx, org)
	if err != nil {
		c.metrics.ApprovalRejected(Kind(err))
		c.audit.ApprovalRejected(ctx, org, "", identity, Kind(err))
		return ApprovalResult{}, err
	}
	return c.SubmitApproval(ctx, p.ID, identity)
}

// Confirm is the entry point of the confirm request: with a proposal id it
// approves that proposal, which must belong to org when org is given;
// without one it approves the oldest pending proposal of org.
func (c *Coordinator) Confirm(ctx context.Context, org, proposalID, identity string) (ApprovalResult, error) {
	if proposalID == "" {
		return c.ApproveOldestPending(ctx, org, identity)
	}
	if org != "" {
		p, err := c.proposals.Get(ctx, proposalID)
		if err == nil && p.Organization != org {
			err = proposalstore.ErrNotFound
		}
		if err != nil {
			c.metrics.ApprovalRejected(Kind(err))
			c.audit.ApprovalRejected(ctx, org, proposalID, identity, Kind(err))
			return ApprovalResult{}, err
		}
	}
	return c.SubmitApproval(ctx, proposalID, identity)
}

// GetProposal returns one proposal by id.
func (c *Coordinator) GetProposal(ctx context.Context, id string) (models.Proposal, error) {
	return c.proposals.Get(ctx, id)
}

// ListProposals returns org's proposals in creation order. Clients call it
// after (re)connecting the push channel to resynchronize.
func (c *Coordinator) ListProposals(ctx context.Context, org string) ([]models.Proposal, error) {
	if _, err := c.orgs.GetByName(ctx, org); err != nil {
		if errors.Is(err, organizationstore.ErrNotFound) {
			return nil, proposalstore.ErrOrganizationNotFound
		}
		return nil, err
	}
	return c.proposals.ListByOrganization(ctx, org)
}

func (c *Coordinator) publish(ctx context.Context, ev notify.Event) {
	if c.pub == nil {
		return
	}
	// The state change is committed; a caller hanging up must not stop
	// the announcement.
	if err := c.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		c.log.Warn("event publish failed",
			zap.String("event_type", string(ev.Type)),
			zap.String("organization", ev.Organization),
			zap.Error(err))
	}
}
