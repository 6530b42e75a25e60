package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"filing-processor/internal/avscan"
	"filing-processor/internal/domain"
)

// SubmissionStore is the slice of the submission store the pipeline uses.
type SubmissionStore interface {
	FindByStatus(ctx context.Context, status domain.SubmissionStatus, limit int) ([]domain.Submission, error)
	FindDelayed(ctx context.Context, status domain.SubmissionStatus, before time.Time) ([]domain.Submission, error)
	FindDelayedSameDay(ctx context.Context, statuses []domain.SubmissionStatus, before time.Time) ([]domain.Submission, error)
	Get(ctx context.Context, id string) (domain.Submission, error)
	Update(ctx context.Context, sub domain.Submission) error
	UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus) error
	UpdateBarcode(ctx context.Context, id string, barcode string) error
	UpdateQueued(ctx context.Context, sub domain.Submission) error
}

// ScanClient reports the anti-virus verdict for an uploaded file.
type ScanClient interface {
	Details(ctx context.Context, fileID string) (avscan.FileDetails, error)
}

// FormCatalog resolves form-type metadata; an unknown form type is reported
// as domain.ErrNotFound.
type FormCatalog interface {
	FindByID(ctx context.Context, formType string) (domain.FormTemplate, error)
}

// DecisionEngine reconciles per-file scan results into one aggregate
// decision per submission.
type DecisionEngine struct {
	store   SubmissionStore
	scans   ScanClient
	catalog FormCatalog
	now     func() time.Time
}

func NewDecisionEngine(store SubmissionStore, scans ScanClient, catalog FormCatalog) *DecisionEngine {
	return &DecisionEngine{store: store, scans: scans, catalog: catalog, now: time.Now}
}

// Evaluate resolves one decision per submission and groups them by outcome.
// Submissions within a group retain input order.
func (e *DecisionEngine) Evaluate(ctx context.Context, subs []domain.Submission) map[domain.DecisionResult][]domain.Decision {
	groups := make(map[domain.DecisionResult][]domain.Decision)
	for i := range subs {
		decision := e.evaluateOne(ctx, &subs[i])
		groups[decision.Result] = append(groups[decision.Result], decision)
	}
	return groups
}

func (e *DecisionEngine) evaluateOne(ctx context.Context, sub *domain.Submission) domain.Decision {
	evaluated := 0
	changed := false
	var infected []string

	for i := range sub.FormDetails.Attachments {
		att := &sub.FormDetails.Attachments[i]
		if att.ConversionStatus != domain.ConversionWaiting {
			// Resolved in an earlier pass.
			evaluated++
			continue
		}

		details, err := e.scans.Details(ctx, att.FileID)
		if err != nil {
			// The attachment stays WAITING and is withheld from the
			// evaluated count, pushing the submission to NO_DECISION until
			// the scan client recovers. There is no retry or alerting here;
			// a file the client never reports on leaves its submission
			// pending indefinitely.
			log.Printf("scan status lookup failed submission=%s file=%s: %v", sub.ID, att.FileID, err)
			continue
		}

		switch details.FileStatus {
		case avscan.ScanStatusInfected:
			stamp := e.now().UTC()
			att.ConversionStatus = domain.ConversionFailedAV
			att.LastModifiedAt = &stamp
			infected = append(infected, att.Name)
			changed = true
			evaluated++
		case avscan.ScanStatusClean:
			stamp := e.now().UTC()
			att.ConversionStatus = domain.ConversionCleanAV
			att.LastModifiedAt = &stamp
			changed = true
			evaluated++
		default:
			// Scan still pending; the submission stays undecided this pass.
		}
	}

	if changed {
		if err := e.store.Update(ctx, *sub); err != nil {
			log.Printf("persist scan results failed submission=%s: %v", sub.ID, err)
		}
	}

	return domain.Decision{
		Submission:    sub,
		Result:        e.resolve(ctx, sub, evaluated, infected),
		InfectedFiles: infected,
	}
}

// resolve picks the outcome with fixed precedence: pending scans first, then
// infections, then catalog lookup.
func (e *DecisionEngine) resolve(ctx context.Context, sub *domain.Submission, evaluated int, infected []string) domain.DecisionResult {
	if evaluated < len(sub.FormDetails.Attachments) {
		return domain.NoDecision
	}
	if len(infected) > 0 {
		return domain.NotClean
	}

	tmpl, err := e.catalog.FindByID(ctx, sub.FormDetails.FormType)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.FormTypeDoesNotExist
	}
	if err != nil {
		// Catalog unavailable; leave the submission undecided for the next
		// pass rather than misreporting the form type as unknown.
		log.Printf("form catalog lookup failed submission=%s form=%s: %v", sub.ID, sub.FormDetails.FormType, err)
		return domain.NoDecision
	}
	if tmpl.FesEnabled {
		return domain.FesEnabled
	}
	return domain.NotFesEnabled
}
