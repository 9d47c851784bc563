// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"
	"strings"

	"github.com/dalemusser/cosign/internal/app/store/audit"
	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/domain/models"
	"go.uber.org/zap"
)

// Destination values accepted by Config fields.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Membership controls organization creation and invitation events.
	Membership string
	// Proposal controls initiation, approval and confirmation events.
	Proposal string
}

// Uniform applies one destination to every category.
func Uniform(setting string) Config {
	return Config{Membership: setting, Proposal: setting}
}

// Valid reports whether setting is a known destination.
func Valid(setting string) bool {
	switch strings.ToLower(setting) {
	case All, DB, Log, Off:
		return true
	}
	return false
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.String("organization", event.Organization),
		zap.Bool("success", event.Success),
	}

	if event.ProposalID != "" {
		fields = append(fields, zap.String("proposal_id", event.ProposalID))
	}
	if event.Actor != "" {
		fields = append(fields, zap.String("actor", event.Actor))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryMembership:
		setting = l.config.Membership
	case audit.CategoryProposal:
		setting = l.config.Proposal
	default:
		setting = All
	}
	setting = strings.ToLower(setting)
	if setting == "" {
		setting = All
	}

	if setting == Off {
		return
	}

	// Actors are stored in checksum form.
	if norm, err := address.Normalize(event.Actor); err == nil {
		event.Actor = norm
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}

	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Membership Events ---

// OrgCreated logs creation of an organization.
func (l *Logger) OrgCreated(ctx context.Context, org models.Organization) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryMembership,
		EventType:    audit.EventOrgCreated,
		Organization: org.Name,
		Success:      true,
		Details: map[string]string{
			"members":   intToString(len(org.Members)),
			"threshold": intToString(org.Threshold),
		},
	})
}

// OrgCreateFailed logs a refused organization creation.
func (l *Logger) OrgCreateFailed(ctx context.Context, name, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryMembership,
		EventType:     audit.EventOrgCreateFailed,
		Organization:  name,
		Success:       false,
		FailureReason: reason,
	})
}

// MemberInvited logs a member appended to an organization.
func (l *Logger) MemberInvited(ctx context.Context, org, address string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryMembership,
		EventType:    audit.EventMemberInvited,
		Organization: org,
		Actor:        address,
		Success:      true,
	})
}

// MemberInviteFailed logs a refused invitation.
func (l *Logger) MemberInviteFailed(ctx context.Context, org, address, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryMembership,
		EventType:     audit.EventMemberInviteFail,
		Organization:  org,
		Actor:         address,
		Success:       false,
		FailureReason: reason,
	})
}

// --- Proposal Events ---

// ProposalInitiated logs a new proposal and its captured threshold.
func (l *Logger) ProposalInitiated(ctx context.Context, p models.Proposal) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryProposal,
		EventType:    audit.EventProposalInitiated,
		Organization: p.Organization,
		ProposalID:   p.ID,
		Actor:        p.Initiator,
		Success:      true,
		Details: map[string]string{
			"threshold": intToString(p.Threshold),
			"amount":    p.Payload.Amount,
			"token":     p.Payload.Token,
			"network":   p.Payload.Network,
		},
	})
}

// ProposalRejected logs a refused initiation.
func (l *Logger) ProposalRejected(ctx context.Context, org, initiator, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryProposal,
		EventType:     audit.EventProposalRejected,
		Organization:  org,
		Actor:         initiator,
		Success:       false,
		FailureReason: reason,
	})
}

// ApprovalRecorded logs an accepted approval with the resulting count.
func (l *Logger) ApprovalRecorded(ctx context.Context, p models.Proposal, approver string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryProposal,
		EventType:    audit.EventApprovalRecorded,
		Organization: p.Organization,
		ProposalID:   p.ID,
		Actor:        approver,
		Success:      true,
		Details: map[string]string{
			"approvals": intToString(len(p.Approvals)),
			"threshold": intToString(p.Threshold),
		},
	})
}

// ApprovalRejected logs a refused approval. proposalID may be empty when
// the proposal could not be resolved.
func (l *Logger) ApprovalRejected(ctx context.Context, org, proposalID, approver, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryProposal,
		EventType:     audit.EventApprovalRejected,
		Organization:  org,
		ProposalID:    proposalID,
		Actor:         approver,
		Success:       false,
		FailureReason: reason,
	})
}

// ProposalConfirmed logs the pending to confirmed transition. actor is the
// approver whose write reached the threshold.
func (l *Logger) ProposalConfirmed(ctx context.Context, p models.Proposal, actor string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryProposal,
		EventType:    audit.EventProposalConfirmed,
		Organization: p.Organization,
		ProposalID:   p.ID,
		Actor:        actor,
		Success:      true,
		Details: map[string]string{
			"approvals": intToString(len(p.Approvals)),
		},
	})
}

func intToString(i int) string {
	return strconv.Itoa(i)
}
