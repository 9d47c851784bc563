package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// Addr returns a deterministic, valid, checksummed address for index n.
// Use it instead of hand-typed hex so tests stay readable.
func Addr(n int) string {
	return address.Checksum(fmt.Sprintf("0x%040x", n+0xA11CE))
}

// Addrs returns Addr(0)…Addr(n-1).
func Addrs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = Addr(i)
	}
	return out
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CountProposals returns how many proposals an organization owns.
func (f *Fixtures) CountProposals(ctx context.Context, org string) int64 {
	f.t.Helper()
	n, err := f.db.Collection("proposals").CountDocuments(ctx, map[string]any{"organization": org})
	if err != nil {
		f.t.Fatalf("count proposals: %v", err)
	}
	return n
}

// LoadProposal reads a proposal document directly, bypassing the store.
func (f *Fixtures) LoadProposal(ctx context.Context, id string) models.Proposal {
	f.t.Helper()
	var p models.Proposal
	if err := f.db.Collection("proposals").FindOne(ctx, map[string]any{"_id": id}).Decode(&p); err != nil {
		f.t.Fatalf("load proposal %s: %v", id, err)
	}
	return p
}
