// internal/app/features/auditlog/types.go
package auditlog

import "github.com/dalemusser/cosign/internal/app/store/audit"

// listResponse is the body of GET /audit/{organization}.
type listResponse struct {
	Organization string        `json:"organization"`
	Events       []audit.Event `json:"events"`
	Total        int64         `json:"total"`
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
	HasNext      bool          `json:"has_next"`
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	membershipEvents := []string{
		audit.EventOrgCreated,
		audit.EventOrgCreateFailed,
		audit.EventMemberInvited,
		audit.EventMemberInviteFail,
	}

	proposalEvents := []string{
		audit.EventProposalInitiated,
		audit.EventProposalRejected,
		audit.EventApprovalRecorded,
		audit.EventApprovalRejected,
		audit.EventProposalConfirmed,
	}

	switch category {
	case audit.CategoryMembership:
		return membershipEvents
	case audit.CategoryProposal:
		return proposalEvents
	case "":
		all := make([]string, 0, len(membershipEvents)+len(proposalEvents))
		all = append(all, membershipEvents...)
		all = append(all, proposalEvents...)
		return all
	default:
		return nil
	}
}

func validEventType(category, eventType string) bool {
	for _, t := range eventTypesForCategory(category) {
		if t == eventType {
			return true
		}
	}
	return false
}
