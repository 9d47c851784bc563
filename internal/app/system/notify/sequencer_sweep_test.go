package notify

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_ForgetsIdleProposals(t *testing.T) {
	hub := NewHub(4, nil, nil)
	defer hub.Close()
	seq := NewSequencer(hub, time.Minute, nil)
	defer seq.Close()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq.now = func() time.Time { return clock }

	p := models.Proposal{ID: "p1", Organization: "Vault", Threshold: 2, Version: 1}
	require.NoError(t, seq.Publish(context.Background(), ProposalCreated(p)))
	assert.Equal(t, 1, seq.tracked())

	clock = clock.Add(proposalIdle + 2*time.Minute)
	q := models.Proposal{ID: "p2", Organization: "Vault", Threshold: 2, Version: 1}
	require.NoError(t, seq.Publish(context.Background(), ProposalCreated(q)))
	assert.Equal(t, 1, seq.tracked(), "p1 state is swept, p2 is new")
}

func TestSequencer_UnversionedEventsLeaveNoState(t *testing.T) {
	hub := NewHub(4, nil, nil)
	defer hub.Close()
	seq := NewSequencer(hub, time.Minute, nil)
	defer seq.Close()

	require.NoError(t, seq.Publish(context.Background(), MemberInvited("Vault", "0xD")))
	assert.Equal(t, 0, seq.tracked())
}
