// internal/app/system/notify/events.go
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dalemusser/cosign/internal/app/system/quorum"
	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/google/uuid"
)

// EventType names a push notification.
type EventType string

const (
	TypeProposalCreated   EventType = "proposal_created"
	TypeProposalApproved  EventType = "proposal_approved"
	TypeProposalConfirmed EventType = "proposal_confirmed"
	TypeMemberInvited     EventType = "member_invited"
)

// Event is the JSON envelope written to subscribers. Only the fields of the
// given Type are populated.
type Event struct {
	Type         EventType `json:"type"`
	ID           string    `json:"event_id"`
	Organization string    `json:"organization"`
	Time         time.Time `json:"time"`

	// Version is the proposal version written by the change this event
	// reports. Events of one proposal are ordered by (Version, stage).
	Version int64 `json:"version,omitempty"`

	// every proposal event
	ProposalID string `json:"proposal_id,omitempty"`

	// proposal_created
	Proposal *models.Proposal `json:"proposal,omitempty"`

	// proposal_approved, proposal_confirmed
	Approver      string `json:"approver,omitempty"`
	ApprovalCount int    `json:"approval_count,omitempty"`
	Threshold     int    `json:"threshold,omitempty"`

	// proposal_created, proposal_approved
	Progress *quorum.Progress `json:"progress,omitempty"`

	// member_invited
	OrganizationName string `json:"organization_name,omitempty"`
	Identity         string `json:"identity,omitempty"`
}

func newEvent(t EventType, org string) Event {
	return Event{
		Type:         t,
		ID:           uuid.NewString(),
		Organization: org,
		Time:         time.Now().UTC(),
	}
}

// ProposalCreated carries a full snapshot of the new proposal.
func ProposalCreated(p models.Proposal) Event {
	ev := newEvent(TypeProposalCreated, p.Organization)
	ev.Proposal = &p
	ev.ProposalID = p.ID
	ev.Version = p.Version
	ev.Progress = progressOf(p)
	return ev
}

// ProposalApproved reports one approval and the resulting count.
func ProposalApproved(p models.Proposal, approver string) Event {
	ev := newEvent(TypeProposalApproved, p.Organization)
	ev.ProposalID = p.ID
	ev.Approver = approver
	ev.ApprovalCount = len(p.Approvals)
	ev.Threshold = p.Threshold
	ev.Version = p.Version
	ev.Progress = progressOf(p)
	return ev
}

func ProposalConfirmed(p models.Proposal) Event {
	ev := newEvent(TypeProposalConfirmed, p.Organization)
	ev.ProposalID = p.ID
	ev.Version = p.Version
	return ev
}

func MemberInvited(org, identity string) Event {
	ev := newEvent(TypeMemberInvited, org)
	ev.OrganizationName = org
	ev.Identity = identity
	return ev
}

// Encode renders ev as the wire JSON used by the push channel and the bus.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses a wire event and rejects envelopes without a type or
// organization, which could never be routed.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" || ev.Organization == "" {
		return Event{}, fmt.Errorf("decode event: missing type or organization")
	}
	return ev, nil
}

func progressOf(p models.Proposal) *quorum.Progress {
	pr := quorum.ProgressOf(p.Threshold, p.Approvals)
	return &pr
}
