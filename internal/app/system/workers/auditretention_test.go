package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakePurger) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func (f *fakePurger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestAuditRetention_PurgesOnStartAndTick(t *testing.T) {
	p := &fakePurger{}
	w := NewAuditRetention(p, zap.NewNop(), 20*time.Millisecond, 24*time.Hour)
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	w.Start()
	require.Eventually(t, func() bool { return p.calls() >= 2 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, fixed.Add(-24*time.Hour), p.cutoffs[0])
}

func TestAuditRetention_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := &fakePurger{err: errors.New("boom")}
	w := NewAuditRetention(p, zap.New(core), time.Hour, time.Hour)

	w.purge()

	assert.Equal(t, 1, logs.FilterMessage("failed to purge audit records").Len())
	assert.Zero(t, logs.FilterMessage("purged audit records").Len())
}
