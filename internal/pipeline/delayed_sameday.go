package pipeline

import (
	"context"
	"fmt"
	"time"

	"filing-processor/internal/domain"
	"filing-processor/internal/notify"
)

const sameDayTimeLayout = "02/01/2006 15:04:05"

// SameDayDelayedHandler escalates same-day submissions, which carry a much
// shorter SLA window and also count READY_TO_SUBMIT as stuck. There is no
// business escalation for same-day; support owns the whole tier.
type SameDayDelayedHandler struct {
	store        SubmissionStore
	notifier     EscalationNotifier
	supportDelay time.Duration
}

func NewSameDayDelayedHandler(store SubmissionStore, notifier EscalationNotifier, supportDelay time.Duration) *SameDayDelayedHandler {
	return &SameDayDelayedHandler{store: store, notifier: notifier, supportDelay: supportDelay}
}

func (h *SameDayDelayedHandler) ServiceLevel() domain.ServiceLevel {
	return domain.ServiceLevelSameDay
}

func (h *SameDayDelayedHandler) FindDelayed(ctx context.Context, now time.Time) ([]domain.Submission, error) {
	statuses := []domain.SubmissionStatus{domain.StatusProcessing, domain.StatusReadyToSubmit}
	return h.store.FindDelayedSameDay(ctx, statuses, now.Add(-h.supportDelay))
}

func (h *SameDayDelayedHandler) BuildAndSendEmails(ctx context.Context, subs []domain.Submission, now time.Time) error {
	if len(subs) == 0 {
		return nil
	}

	rows := make([]notify.SameDayEscalationRow, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, notify.SameDayEscalationRow{
			SubmissionID:          sub.ID,
			ConfirmationReference: sub.ConfirmationReference,
			SubmittedAt:           sub.EffectiveSubmittedAt().UTC().Format(sameDayTimeLayout),
			CustomerEmail:         sub.Presenter.Email,
			CompanyNumber:         sub.Company.Number,
		})
	}
	if err := h.notifier.SendSameDayEscalation(rows, int(h.supportDelay.Minutes())); err != nil {
		return fmt.Errorf("same day escalation: %w", err)
	}
	return nil
}
