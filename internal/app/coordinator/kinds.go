package coordinator

import (
	"errors"

	organizationstore "github.com/dalemusser/cosign/internal/app/store/organizations"
	proposalstore "github.com/dalemusser/cosign/internal/app/store/proposals"
	"github.com/dalemusser/cosign/internal/app/system/address"
)

// Machine-readable failure kinds shared by the HTTP binding, metrics labels
// and audit records.
const (
	KindAlreadyExists        = "already_exists"
	KindInvalidThreshold     = "invalid_threshold"
	KindInvalidName          = "invalid_name"
	KindInvalidAddress       = "invalid_address"
	KindNotFound             = "not_found"
	KindOrganizationNotFound = "organization_not_found"
	KindNotAMember           = "not_a_member"
	KindAlreadyConfirmed     = "already_confirmed"
	KindDuplicateApproval    = "duplicate_approval"
	KindAlreadyMember        = "already_member"
	KindConflict             = "conflict"
	KindInternal             = "internal"
)

// Kind classifies err. Unknown errors are KindInternal.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, organizationstore.ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, organizationstore.ErrInvalidThreshold):
		return KindInvalidThreshold
	case errors.Is(err, organizationstore.ErrInvalidName):
		return KindInvalidName
	case errors.Is(err, address.ErrInvalid):
		return KindInvalidAddress
	case errors.Is(err, proposalstore.ErrOrganizationNotFound):
		return KindOrganizationNotFound
	case errors.Is(err, organizationstore.ErrNotFound), errors.Is(err, proposalstore.ErrNotFound):
		return KindNotFound
	case errors.Is(err, proposalstore.ErrNotAMember):
		return KindNotAMember
	case errors.Is(err, proposalstore.ErrAlreadyConfirmed):
		return KindAlreadyConfirmed
	case errors.Is(err, proposalstore.ErrDuplicateApproval):
		return KindDuplicateApproval
	case errors.Is(err, organizationstore.ErrAlreadyMember):
		return KindAlreadyMember
	case errors.Is(err, proposalstore.ErrConflict):
		return KindConflict
	}
	return KindInternal
}

// Benign reports failures a client may safely treat as "already done".
func Benign(err error) bool {
	switch Kind(err) {
	case KindDuplicateApproval, KindAlreadyConfirmed:
		return true
	}
	return false
}
