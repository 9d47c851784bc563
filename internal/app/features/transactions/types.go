// internal/app/features/transactions/types.go
package transactions

import "github.com/dalemusser/cosign/internal/domain/models"

// initiateRequest is the body of POST /transaction/initiate.
type initiateRequest struct {
	OrganizationName string                 `json:"organization_name"`
	Initiator        string                 `json:"initiator"`
	Payload          models.TransferPayload `json:"payload"`
}

// confirmRequest is the body of POST /transaction/confirm. Without a
// proposal id the oldest pending proposal of the organization is approved.
type confirmRequest struct {
	OrganizationName string `json:"organization_name"`
	Address          string `json:"address"`
	ProposalID       string `json:"proposal_id,omitempty"`
}
