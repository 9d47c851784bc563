package quorum

import (
	"testing"

	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		approvals []string
		want      models.ProposalStatus
	}{
		{"one of one", 1, []string{"a"}, models.ProposalConfirmed},
		{"one of two", 2, []string{"a"}, models.ProposalPending},
		{"two of three", 3, []string{"a", "b"}, models.ProposalPending},
		{"three of three", 3, []string{"a", "b", "c"}, models.ProposalConfirmed},
		{"over threshold", 2, []string{"a", "b", "c"}, models.ProposalConfirmed},
		{"none", 1, nil, models.ProposalPending},
		{"zero threshold clamps to one", 0, nil, models.ProposalPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.threshold, tt.approvals))
		})
	}
}

// Percentage flooring used to confirm 2 of 3 at "66%" in some dashboards.
// Exact counts never do.
func TestEvaluate_NoPercentageRounding(t *testing.T) {
	for n := 1; n <= 50; n++ {
		approvals := make([]string, n-1)
		assert.Equal(t, models.ProposalPending, Evaluate(n, approvals), "threshold %d", n)
		approvals = append(approvals, "last")
		assert.Equal(t, models.ProposalConfirmed, Evaluate(n, approvals), "threshold %d", n)
	}
}

func TestTransitioned(t *testing.T) {
	assert.True(t, Transitioned(models.ProposalPending, models.ProposalConfirmed))
	assert.False(t, Transitioned(models.ProposalPending, models.ProposalPending))
	assert.False(t, Transitioned(models.ProposalConfirmed, models.ProposalConfirmed))
	assert.False(t, Transitioned(models.ProposalConfirmed, models.ProposalPending))
}

func TestProgressOf(t *testing.T) {
	assert.Equal(t, Progress{Approved: 1, Required: 3, Remaining: 2}, ProgressOf(3, []string{"a"}))
	assert.Equal(t, Progress{Approved: 4, Required: 3, Remaining: 0}, ProgressOf(3, []string{"a", "b", "c", "d"}))
}
