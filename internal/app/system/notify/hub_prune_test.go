package notify

import (
	"context"
	"testing"

	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orgEntries(h *Hub) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orgs)
}

func TestHub_DroppingLastSubscriberForgetsOrganization(t *testing.T) {
	hub := NewHub(1, nil, nil)
	defer hub.Close()
	ctx := context.Background()

	sub, err := hub.Subscribe("Vault", "0xA")
	require.NoError(t, err)
	require.Equal(t, 1, orgEntries(hub))

	p := models.Proposal{ID: "p1", Organization: "Vault", Threshold: 2, Version: 1}
	require.NoError(t, hub.Publish(ctx, ProposalCreated(p)))
	require.NoError(t, hub.Publish(ctx, ProposalCreated(p)))

	assert.ErrorIs(t, sub.Err(), ErrSubscriberDropped)
	assert.Equal(t, 0, hub.SubscriberCount("Vault"))
	assert.Equal(t, 0, orgEntries(hub))

	// a fresh subscriber gets a fresh entry
	again, err := hub.Subscribe("Vault", "0xA")
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, ProposalCreated(p)))
	ev := <-again.Events()
	assert.Equal(t, "p1", ev.ProposalID)
}

func TestHub_DropKeepsOrganizationWithOtherSubscribers(t *testing.T) {
	hub := NewHub(1, nil, nil)
	defer hub.Close()
	ctx := context.Background()

	slow, err := hub.Subscribe("Vault", "0xA")
	require.NoError(t, err)
	p := models.Proposal{ID: "p1", Organization: "Vault", Threshold: 2, Version: 1}
	require.NoError(t, hub.Publish(ctx, ProposalCreated(p)))

	fast, err := hub.Subscribe("Vault", "0xB")
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, ProposalCreated(p)))

	assert.ErrorIs(t, slow.Err(), ErrSubscriberDropped)
	assert.Len(t, fast.Events(), 1)
	assert.Equal(t, 1, orgEntries(hub))
}
