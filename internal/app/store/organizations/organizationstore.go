// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound         = errors.New("organization not found")
	ErrAlreadyExists    = errors.New("an organization with this name already exists")
	ErrInvalidThreshold = errors.New("threshold must be between 1 and the number of members")
	ErrInvalidName      = errors.New("organization name is required")
	ErrAlreadyMember    = errors.New("address is already a member of this organization")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

// Create validates and inserts a new organization.
//
// Member addresses are normalized and de-duplicated case-insensitively
// (first spelling wins) before the threshold is checked, so nothing is
// written unless 1 <= threshold <= len(members).
func (s *Store) Create(ctx context.Context, name string, members []string, threshold int) (models.Organization, error) {
	if strings.TrimSpace(name) == "" {
		return models.Organization{}, ErrInvalidName
	}

	now := time.Now().UTC()
	deduped, err := buildMembers(members, now)
	if err != nil {
		return models.Organization{}, err
	}
	if threshold < 1 || threshold > len(deduped) {
		return models.Organization{}, ErrInvalidThreshold
	}

	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Members:   deduped,
		Threshold: threshold,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, org); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrAlreadyExists
		}
		return models.Organization{}, err
	}
	return org, nil
}

func buildMembers(addrs []string, now time.Time) ([]models.Member, error) {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]models.Member, 0, len(addrs))
	for _, a := range addrs {
		norm, err := address.Normalize(a)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", a, err)
		}
		ci := address.Fold(norm)
		if _, dup := seen[ci]; dup {
			continue
		}
		seen[ci] = struct{}{}
		out = append(out, models.Member{Address: norm, AddressCI: ci, AddedAt: now})
	}
	return out, nil
}

// GetByName loads an organization by its exact name.
func (s *Store) GetByName(ctx context.Context, name string) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"name": name}).Decode(&org)
	if err == mongo.ErrNoDocuments {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// ListForMember returns every organization the address belongs to, by name.
func (s *Store) ListForMember(ctx context.Context, addr string) ([]models.Organization, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"members.address_ci": address.Fold(addr)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	orgs := []models.Organization{}
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// AddMember appends addr to the organization's member list.
// The threshold is left untouched; membership only ever grows.
func (s *Store) AddMember(ctx context.Context, name, addr string) (models.Organization, error) {
	norm, err := address.Normalize(addr)
	if err != nil {
		return models.Organization{}, err
	}
	ci := address.Fold(norm)
	now := time.Now().UTC()

	member := models.Member{Address: norm, AddressCI: ci, AddedAt: now}
	filter := bson.M{"name": name, "members.address_ci": bson.M{"$ne": ci}}
	update := bson.M{
		"$push": bson.M{"members": member},
		"$set":  bson.M{"updated_at": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var org models.Organization
	err = s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&org)
	if err == nil {
		return org, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.Organization{}, err
	}

	// Either the organization is missing or the address is already present.
	if _, getErr := s.GetByName(ctx, name); getErr != nil {
		return models.Organization{}, getErr
	}
	return models.Organization{}, ErrAlreadyMember
}
