// Package quorum decides proposal status from exact approval counts.
//
// Every place that needs to know whether a proposal is confirmed asks this
// package. There is no percentage math anywhere: a proposal is confirmed
// exactly when the number of distinct approvals reaches the threshold.
package quorum

import "github.com/dalemusser/cosign/internal/domain/models"

// Evaluate returns the status implied by threshold and the distinct
// approval set. A non-positive threshold is treated as 1.
func Evaluate(threshold int, approvals []string) models.ProposalStatus {
	if threshold < 1 {
		threshold = 1
	}
	if len(approvals) >= threshold {
		return models.ProposalConfirmed
	}
	return models.ProposalPending
}

// Transitioned reports whether moving from before to after confirms the proposal.
func Transitioned(before, after models.ProposalStatus) bool {
	return before == models.ProposalPending && after == models.ProposalConfirmed
}

// Progress is the display form of a proposal's approval state.
type Progress struct {
	Approved  int `json:"approved"`
	Required  int `json:"required"`
	Remaining int `json:"remaining"`
}

// ProgressOf summarizes approvals against threshold.
func ProgressOf(threshold int, approvals []string) Progress {
	if threshold < 1 {
		threshold = 1
	}
	remaining := threshold - len(approvals)
	if remaining < 0 {
		remaining = 0
	}
	return Progress{
		Approved:  len(approvals),
		Required:  threshold,
		Remaining: remaining,
	}
}
