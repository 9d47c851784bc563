// Package timeouts provides the context deadlines handlers put around store
// and hub work.
//
// Classes:
//   - Ping: health checks against MongoDB and NATS
//   - Read: single lookups and list queries
//   - Write: single inserts and updates (create organization, initiate, invite)
//   - Approval: an approval submission, which may retry a conditional write
//     several times under contention
//
// Defaults apply until Configure or ConfigureFromEnv is called at startup.
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing     = 2 * time.Second
	DefaultRead     = 5 * time.Second
	DefaultWrite    = 10 * time.Second
	DefaultApproval = 15 * time.Second
)

// EnvPrefix is prepended to the class name when reading the environment,
// e.g. COSIGN_TIMEOUT_APPROVAL=20s.
const EnvPrefix = "COSIGN_TIMEOUT_"

var (
	mu       sync.RWMutex
	ping     = DefaultPing
	read     = DefaultRead
	write    = DefaultWrite
	approval = DefaultApproval
)

func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

func Read() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return read
}

func Write() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return write
}

// Approval covers RecordApproval's retry loop plus event publication.
func Approval() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return approval
}

// Config holds timeout configuration values.
// Zero values are ignored (current values are kept).
type Config struct {
	Ping     time.Duration
	Read     time.Duration
	Write    time.Duration
	Approval time.Duration
}

// Configure sets custom timeout values. Call it during startup, before
// handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set(&ping, cfg.Ping)
	set(&read, cfg.Read)
	set(&write, cfg.Write)
	set(&approval, cfg.Approval)
}

func set(dst *time.Duration, d time.Duration) {
	if d > 0 {
		*dst = d
	}
}

// Reset restores all timeouts to their default values.
// Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	read = DefaultRead
	write = DefaultWrite
	approval = DefaultApproval
}

// ConfigureFromEnv reads COSIGN_TIMEOUT_PING, _READ, _WRITE and _APPROVAL.
// Unset, unparsable or non-positive values are ignored. It returns the number
// of values applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()

	targets := []struct {
		name string
		dst  *time.Duration
	}{
		{"PING", &ping},
		{"READ", &read},
		{"WRITE", &write},
		{"APPROVAL", &approval},
	}

	configured := 0
	for _, t := range targets {
		v := os.Getenv(EnvPrefix + t.name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*t.dst = d
			configured++
		}
	}
	return configured
}

// Current returns the current timeout configuration, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:     ping,
		Read:     read,
		Write:    write,
		Approval: approval,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context ended because the deadline passed.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Approval(), h.Log, "submit approval")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
