package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditService appends and queries audit records.
type AuditService struct {
	store  AuditStore
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditService(store AuditStore, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{store: store, logger: logger, now: time.Now}
}

// Record appends one audit record. An empty actor is recorded as SystemActor.
func (s *AuditService) Record(ctx context.Context, action, entityType, entityID, actor, details string) error {
	if strings.TrimSpace(actor) == "" {
		actor = SystemActor
	}
	log := &AuditLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Timestamp:  s.now().UTC(),
		Details:    details,
	}
	if err := s.store.AppendAudit(ctx, log); err != nil {
		return fmt.Errorf("failed to record %s audit: %w", action, err)
	}
	return nil
}

// List returns the records matching every populated field of filter, newest first.
func (s *AuditService) List(ctx context.Context, filter AuditFilter) ([]*AuditLog, error) {
	return s.store.ListAuditLogs(ctx, filter)
}

// recordCommitted writes the audit record for a change that is already durable. The write is
// detached from the caller's cancellation. A failure is logged and counted, never returned;
// the result reports whether the record is missing.
func (s *AuditService) recordCommitted(ctx context.Context, action, entityType, entityID, actor, details string) (degraded bool) {
	if err := s.Record(context.WithoutCancel(ctx), action, entityType, entityID, actor, details); err != nil {
		auditFailuresTotal.WithLabelValues(action).Inc()
		s.logger.WarnContext(ctx, "audit write failed after commit",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"actor", actor,
			"error", err,
		)
		return true
	}
	return false
}
