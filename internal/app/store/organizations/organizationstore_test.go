package organizationstore_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	organizationstore "github.com/dalemusser/cosign/internal/app/store/organizations"
	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	members := testutil.Addrs(3)
	created, err := store.Create(ctx, "Treasury", members, 2)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Threshold != 2 {
		t.Errorf("Threshold: got %d, want 2", created.Threshold)
	}
	if len(created.Members) != 3 {
		t.Fatalf("Members: got %d, want 3", len(created.Members))
	}
	for i, m := range created.Members {
		if m.Address != members[i] {
			t.Errorf("member %d: got %q, want %q (insertion order)", i, m.Address, members[i])
		}
		if m.AddressCI != strings.ToLower(members[i]) {
			t.Errorf("member %d: AddressCI not folded: %q", i, m.AddressCI)
		}
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_Create_InvalidThreshold(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name      string
		members   []string
		threshold int
	}{
		{"zero", testutil.Addrs(2), 0},
		{"negative", testutil.Addrs(2), -1},
		{"above members", testutil.Addrs(2), 3},
		{"no members", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create(ctx, "Bad "+tt.name, tt.members, tt.threshold)
			if !errors.Is(err, organizationstore.ErrInvalidThreshold) {
				t.Errorf("expected ErrInvalidThreshold, got %v", err)
			}
		})
	}

	// Nothing may be persisted by a failed create.
	n, err := db.Collection("organizations").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 organizations after failed creates, got %d", n)
	}
}

func TestStore_Create_DuplicateMembersCollapse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := testutil.Addr(1)
	// Same holder in two casings counts once, so threshold 2 is out of range.
	_, err := store.Create(ctx, "Dupes", []string{a, strings.ToLower(a)}, 2)
	if !errors.Is(err, organizationstore.ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}

	org, err := store.Create(ctx, "Dupes", []string{a, strings.ToLower(a)}, 1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(org.Members) != 1 {
		t.Errorf("expected 1 member, got %d", len(org.Members))
	}
}

func TestStore_Create_InvalidAddress(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, "Bad Address", []string{"not-an-address"}, 1)
	if !errors.Is(err, address.ErrInvalid) {
		t.Errorf("expected address.ErrInvalid, got %v", err)
	}
}

func TestStore_Create_EmptyName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, "   ", testutil.Addrs(1), 1)
	if !errors.Is(err, organizationstore.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestStore_Create_DuplicateName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, "Duplicate Test", testutil.Addrs(1), 1); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := store.Create(ctx, "Duplicate Test", testutil.Addrs(2), 1)
	if err != organizationstore.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// Names are case-sensitive.
	if _, err := store.Create(ctx, "duplicate test", testutil.Addrs(1), 1); err != nil {
		t.Errorf("expected differently-cased name to be accepted, got %v", err)
	}
}

func TestStore_GetByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, "Lookup", testutil.Addrs(2), 2)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := store.GetByName(ctx, "Lookup")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID: got %s, want %s", found.ID.Hex(), created.ID.Hex())
	}

	if _, err := store.GetByName(ctx, "lookup"); err != organizationstore.ErrNotFound {
		t.Errorf("expected ErrNotFound for different case, got %v", err)
	}
	if _, err := store.GetByName(ctx, "Missing"); err != organizationstore.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListForMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	shared := testutil.Addr(7)
	mustCreate(t, ctx, store, "Beta", []string{shared, testutil.Addr(8)}, 1)
	mustCreate(t, ctx, store, "Alpha", []string{testutil.Addr(9), shared}, 2)
	mustCreate(t, ctx, store, "Gamma", []string{testutil.Addr(10)}, 1)

	orgs, err := store.ListForMember(ctx, strings.ToUpper(shared[2:]))
	if err != nil {
		t.Fatalf("ListForMember failed: %v", err)
	}
	if len(orgs) != 0 {
		t.Errorf("expected no match without 0x prefix, got %d", len(orgs))
	}

	orgs, err = store.ListForMember(ctx, strings.ToLower(shared))
	if err != nil {
		t.Fatalf("ListForMember failed: %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("expected 2 organizations, got %d", len(orgs))
	}
	if orgs[0].Name != "Alpha" || orgs[1].Name != "Beta" {
		t.Errorf("expected [Alpha Beta], got [%s %s]", orgs[0].Name, orgs[1].Name)
	}
}

func TestStore_AddMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mustCreate(t, ctx, store, "Growing", testutil.Addrs(2), 2)

	newcomer := testutil.Addr(5)
	org, err := store.AddMember(ctx, "Growing", strings.ToLower(newcomer))
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if len(org.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(org.Members))
	}
	if org.Members[2].Address != newcomer {
		t.Errorf("expected appended member %q, got %q", newcomer, org.Members[2].Address)
	}
	if org.Threshold != 2 {
		t.Errorf("threshold changed to %d", org.Threshold)
	}

	if _, err := store.AddMember(ctx, "Growing", newcomer); err != organizationstore.ErrAlreadyMember {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
	if _, err := store.AddMember(ctx, "Nowhere", newcomer); err != organizationstore.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func mustCreate(t *testing.T, ctx context.Context, store *organizationstore.Store, name string, members []string, threshold int) {
	t.Helper()
	if _, err := store.Create(ctx, name, members, threshold); err != nil {
		t.Fatalf("Create %q failed: %v", name, err)
	}
}
