// internal/domain/models/proposal.go
package models

import "time"

// ProposalStatus is the lifecycle state of a proposal.
// The only legal transition is pending → confirmed.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalConfirmed ProposalStatus = "confirmed"
)

// TransferPayload describes the requested transfer. The coordinator stores
// and returns it verbatim; none of the fields are interpreted.
type TransferPayload struct {
	From    string `bson:"from" json:"from"`
	To      string `bson:"to" json:"to"`
	Amount  string `bson:"amount" json:"amount"`
	Token   string `bson:"token" json:"token"`
	Network string `bson:"network" json:"network"`
}

// Proposal is a transfer request awaiting threshold approval.
//
// Threshold is captured from the organization when the proposal is created
// and never changes afterwards. Version is bumped on every write and used
// as the compare-and-swap guard for approvals.
type Proposal struct {
	ID           string          `bson:"_id" json:"id"`
	Organization string          `bson:"organization" json:"organization"`
	Initiator    string          `bson:"initiator" json:"initiator"`
	Payload      TransferPayload `bson:"payload" json:"payload"`
	Approvals    []string        `bson:"approvals" json:"approvals"`
	ApprovalsCI  []string        `bson:"approvals_ci" json:"-"`
	Threshold    int             `bson:"threshold" json:"threshold"`
	Status       ProposalStatus  `bson:"status" json:"status"`
	Version      int64           `bson:"version" json:"version"`
	CreatedAt    time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at" json:"updated_at"`
	ConfirmedAt  *time.Time      `bson:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`
}

// HasApproval reports whether the folded identity already approved.
func (p Proposal) HasApproval(identityCI string) bool {
	for _, a := range p.ApprovalsCI {
		if a == identityCI {
			return true
		}
	}
	return false
}

// IsConfirmed reports whether the proposal reached its threshold.
func (p Proposal) IsConfirmed() bool {
	return p.Status == ProposalConfirmed
}
