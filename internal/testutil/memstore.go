package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	organizationstore "github.com/dalemusser/cosign/internal/app/store/organizations"
	proposalstore "github.com/dalemusser/cosign/internal/app/store/proposals"
	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/cosign/internal/app/system/quorum"
	"github.com/dalemusser/cosign/internal/domain/models"
)

// MemOrgs is an in-memory stand-in for the organization store with the
// same validation and error values.
type MemOrgs struct {
	mu   sync.Mutex
	orgs map[string]models.Organization
}

// NewMemOrgs returns an empty MemOrgs.
func NewMemOrgs() *MemOrgs { return &MemOrgs{orgs: map[string]models.Organization{}} }

func (m *MemOrgs) Create(_ context.Context, name string, members []string, threshold int) (models.Organization, error) {
	if strings.TrimSpace(name) == "" {
		return models.Organization{}, organizationstore.ErrInvalidName
	}
	var list []models.Member
	seen := map[string]bool{}
	for _, a := range members {
		norm, err := address.Normalize(a)
		if err != nil {
			return models.Organization{}, err
		}
		ci := address.Fold(norm)
		if seen[ci] {
			continue
		}
		seen[ci] = true
		list = append(list, models.Member{Address: norm, AddressCI: ci})
	}
	if threshold < 1 || threshold > len(list) {
		return models.Organization{}, organizationstore.ErrInvalidThreshold
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[name]; ok {
		return models.Organization{}, organizationstore.ErrAlreadyExists
	}
	org := models.Organization{Name: name, Members: list, Threshold: threshold, CreatedAt: time.Now()}
	m.orgs[name] = org
	return org, nil
}

func (m *MemOrgs) GetByName(_ context.Context, name string) (models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[name]
	if !ok {
		return models.Organization{}, organizationstore.ErrNotFound
	}
	return org, nil
}

func (m *MemOrgs) ListForMember(_ context.Context, addr string) ([]models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Organization{}
	for _, org := range m.orgs {
		if org.HasMember(address.Fold(addr)) {
			out = append(out, org)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemOrgs) AddMember(_ context.Context, name, addr string) (models.Organization, error) {
	norm, err := address.Normalize(addr)
	if err != nil {
		return models.Organization{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[name]
	if !ok {
		return models.Organization{}, organizationstore.ErrNotFound
	}
	if org.HasMember(address.Fold(norm)) {
		return models.Organization{}, organizationstore.ErrAlreadyMember
	}
	org.Members = append(append([]models.Member(nil), org.Members...), models.Member{Address: norm, AddressCI: address.Fold(norm)})
	m.orgs[name] = org
	return org, nil
}

// MemProposals is an in-memory stand-in for the proposal store. Approvals
// are serialized by a single mutex instead of a version check.
type MemProposals struct {
	mu    sync.Mutex
	orgs  *MemOrgs
	byID  map[string]models.Proposal
	order []string
}

func NewMemProposals(orgs *MemOrgs) *MemProposals {
	return &MemProposals{orgs: orgs, byID: map[string]models.Proposal{}}
}

func (m *MemProposals) Create(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	initiator, err := address.Normalize(p.Initiator)
	if err != nil {
		return models.Proposal{}, err
	}
	org, err := m.orgs.GetByName(ctx, p.Organization)
	if err != nil {
		return models.Proposal{}, proposalstore.ErrOrganizationNotFound
	}
	if !org.HasMember(address.Fold(initiator)) {
		return models.Proposal{}, proposalstore.ErrNotAMember
	}
	p.Initiator = initiator
	p.Approvals = []string{initiator}
	p.ApprovalsCI = []string{address.Fold(initiator)}
	p.Threshold = org.Threshold
	p.Status = quorum.Evaluate(p.Threshold, p.ApprovalsCI)
	p.Version = 1
	p.CreatedAt = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = p
	m.order = append(m.order, p.ID)
	return p, nil
}

func (m *MemProposals) Get(_ context.Context, id string) (models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return models.Proposal{}, proposalstore.ErrNotFound
	}
	return p, nil
}

func (m *MemProposals) ListByOrganization(_ context.Context, org string) ([]models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Proposal{}
	for _, id := range m.order {
		if p := m.byID[id]; p.Organization == org {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemProposals) OldestPending(_ context.Context, org string) (models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if p := m.byID[id]; p.Organization == org && !p.IsConfirmed() {
			return p, nil
		}
	}
	return models.Proposal{}, proposalstore.ErrNotFound
}

func (m *MemProposals) RecordApproval(ctx context.Context, id, identity string) (models.Proposal, bool, error) {
	norm, err := address.Normalize(identity)
	if err != nil {
		return models.Proposal{}, false, err
	}
	ci := address.Fold(norm)

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return models.Proposal{}, false, proposalstore.ErrNotFound
	}
	if p.IsConfirmed() {
		return p, false, proposalstore.ErrAlreadyConfirmed
	}
	org, _ := m.orgs.GetByName(ctx, p.Organization)
	if !org.HasMember(ci) {
		return p, false, proposalstore.ErrNotAMember
	}
	if p.HasApproval(ci) {
		return p, false, proposalstore.ErrDuplicateApproval
	}
	before := p.Status
	p.Approvals = append(append([]string(nil), p.Approvals...), norm)
	p.ApprovalsCI = append(append([]string(nil), p.ApprovalsCI...), ci)
	p.Status = quorum.Evaluate(p.Threshold, p.ApprovalsCI)
	p.Version++
	m.byID[id] = p
	return p, quorum.Transitioned(before, p.Status), nil
}

// Recorder is a notify.Publisher that keeps every event in publish order.
type Recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *Recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// Types returns the published event types in order.
func (r *Recorder) Types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// Count returns how many events of type t were published.
func (r *Recorder) Count(t notify.EventType) int {
	n := 0
	for _, got := range r.Types() {
		if got == t {
			n++
		}
	}
	return n
}
