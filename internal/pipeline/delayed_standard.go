package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"filing-processor/internal/domain"
	"filing-processor/internal/notify"
)

const (
	supportTimeLayout  = "02/01/2006 15:04 MST"
	businessTimeLayout = "02 January 2006"
)

// StandardDelayedHandler escalates standard-service submissions stuck in
// PROCESSING: every delayed submission goes to support, and those past the
// longer business threshold additionally go to the team owning the form
// category.
type StandardDelayedHandler struct {
	store          SubmissionStore
	catalog        FormCatalog
	notifier       EscalationNotifier
	supportDelay   time.Duration
	businessDelay  time.Duration
	categoryEmails map[string]string
	defaultEmail   string
}

func NewStandardDelayedHandler(
	store SubmissionStore,
	catalog FormCatalog,
	notifier EscalationNotifier,
	supportDelay, businessDelay time.Duration,
	categoryEmails map[string]string,
	defaultEmail string,
) *StandardDelayedHandler {
	return &StandardDelayedHandler{
		store:          store,
		catalog:        catalog,
		notifier:       notifier,
		supportDelay:   supportDelay,
		businessDelay:  businessDelay,
		categoryEmails: categoryEmails,
		defaultEmail:   defaultEmail,
	}
}

func (h *StandardDelayedHandler) ServiceLevel() domain.ServiceLevel {
	return domain.ServiceLevelStandard
}

// FindDelayed returns PROCESSING submissions whose last activity is strictly
// older than the support threshold; a submission exactly at the threshold
// does not qualify.
func (h *StandardDelayedHandler) FindDelayed(ctx context.Context, now time.Time) ([]domain.Submission, error) {
	return h.store.FindDelayed(ctx, domain.StatusProcessing, now.Add(-h.supportDelay))
}

func (h *StandardDelayedHandler) BuildAndSendEmails(ctx context.Context, subs []domain.Submission, now time.Time) error {
	if len(subs) == 0 {
		return nil
	}

	supportRows := make([]notify.SupportEscalationRow, 0, len(subs))
	for _, sub := range subs {
		supportRows = append(supportRows, notify.SupportEscalationRow{
			SubmissionID:          sub.ID,
			ConfirmationReference: sub.ConfirmationReference,
			CustomerEmail:         sub.Presenter.Email,
			CompanyNumber:         sub.Company.Number,
			SubmittedAt:           sub.EffectiveSubmittedAt().UTC().Format(supportTimeLayout),
		})
	}
	if err := h.notifier.SendSupportEscalation(supportRows, int(h.supportDelay.Minutes())); err != nil {
		return fmt.Errorf("support escalation: %w", err)
	}

	businessCutoff := now.Add(-h.businessDelay)
	grouped := make(map[string][]notify.BusinessEscalationRow)
	var addresses []string
	for _, sub := range subs {
		if !sub.LastModifiedAt.Before(businessCutoff) {
			continue
		}
		to := h.businessAddress(ctx, sub)
		if _, seen := grouped[to]; !seen {
			addresses = append(addresses, to)
		}
		grouped[to] = append(grouped[to], notify.BusinessEscalationRow{
			ConfirmationReference: sub.ConfirmationReference,
			CompanyNumber:         sub.Company.Number,
			FormType:              sub.FormDetails.FormType,
			CustomerEmail:         sub.Presenter.Email,
			SubmittedAt:           sub.EffectiveSubmittedAt().UTC().Format(businessTimeLayout),
		})
	}
	for _, to := range addresses {
		if err := h.notifier.SendBusinessEscalation(to, grouped[to], int(h.businessDelay.Minutes())); err != nil {
			return fmt.Errorf("business escalation to %s: %w", to, err)
		}
	}
	return nil
}

// businessAddress maps the submission's form category to the owning team's
// address, falling back to the default on any miss.
func (h *StandardDelayedHandler) businessAddress(ctx context.Context, sub domain.Submission) string {
	tmpl, err := h.catalog.FindByID(ctx, sub.FormDetails.FormType)
	if err != nil {
		log.Printf("resolve form category submission=%s form=%s: %v", sub.ID, sub.FormDetails.FormType, err)
		return h.defaultEmail
	}
	if addr, ok := h.categoryEmails[tmpl.Category]; ok {
		return addr
	}
	return h.defaultEmail
}
