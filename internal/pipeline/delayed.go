package pipeline

import (
	"context"
	"fmt"
	"time"

	"filing-processor/internal/domain"
	"filing-processor/internal/notify"
)

// DelayedSubmissionHandler is the per-service-level strategy for finding
// submissions stuck past their SLA threshold and raising escalations.
type DelayedSubmissionHandler interface {
	ServiceLevel() domain.ServiceLevel
	FindDelayed(ctx context.Context, now time.Time) ([]domain.Submission, error)
	BuildAndSendEmails(ctx context.Context, subs []domain.Submission, now time.Time) error
}

// EscalationNotifier sends SLA-breach escalations.
type EscalationNotifier interface {
	SendSupportEscalation(rows []notify.SupportEscalationRow, thresholdMinutes int) error
	SendBusinessEscalation(to string, rows []notify.BusinessEscalationRow, thresholdMinutes int) error
	SendSameDayEscalation(rows []notify.SameDayEscalationRow, thresholdMinutes int) error
}

// NewHandlerRegistry builds the service-level lookup once at startup from
// the fixed handler list. A duplicate service level is a configuration
// error.
func NewHandlerRegistry(handlers ...DelayedSubmissionHandler) (map[domain.ServiceLevel]DelayedSubmissionHandler, error) {
	registry := make(map[domain.ServiceLevel]DelayedSubmissionHandler, len(handlers))
	for _, h := range handlers {
		level := h.ServiceLevel()
		if _, exists := registry[level]; exists {
			return nil, fmt.Errorf("duplicate delayed-submission handler for service level %s", level)
		}
		registry[level] = h
	}
	return registry, nil
}
