package service

import (
	"context"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"go.uber.org/zap"
)

// auditor logs side effects and writes them to the audit trail. Failing to
// record is logged and otherwise ignored.
type auditor struct {
	store  domain.AuditStore
	logger *zap.Logger
}

func (a *auditor) record(ctx context.Context, effects ...domain.SideEffect) {
	for _, e := range effects {
		event := &domain.AuditEvent{
			Operation: e.Operation,
			SubjectID: e.SubjectID,
			Outcome:   domain.OutcomeOK,
		}
		if e.Err != nil {
			event.Outcome = domain.OutcomeFailed
			event.Detail = e.Err.Error()
			a.logger.Warn("side effect failed",
				zap.String("operation", e.Operation),
				zap.String("subject_id", e.SubjectID),
				zap.Error(e.Err))
		}

		if a.store == nil {
			continue
		}
		if err := a.store.Record(ctx, event); err != nil {
			a.logger.Error("failed to record audit event",
				zap.String("operation", e.Operation),
				zap.String("subject_id", e.SubjectID),
				zap.Error(err))
		}
	}
}
