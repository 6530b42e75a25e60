package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"filing-processor/internal/domain"
)

// BarcodeService allocates examination barcodes.
type BarcodeService interface {
	Request(ctx context.Context, received time.Time) (string, error)
}

// ContentStore retrieves converted attachment bytes.
type ContentStore interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Loader writes accepted submissions into the examination database.
type Loader interface {
	InsertSubmission(ctx context.Context, rec domain.FesLoaderRecord) error
}

// ExaminationSubmitter assembles one READY_TO_SUBMIT submission into a
// loader record: barcode, catalog metadata, converted attachment bytes.
type ExaminationSubmitter struct {
	store    SubmissionStore
	barcodes BarcodeService
	catalog  FormCatalog
	contents ContentStore
	loader   Loader
}

func NewExaminationSubmitter(store SubmissionStore, barcodes BarcodeService, catalog FormCatalog, contents ContentStore, loader Loader) *ExaminationSubmitter {
	return &ExaminationSubmitter{store: store, barcodes: barcodes, catalog: catalog, contents: contents, loader: loader}
}

// Submit sends one submission to FES. On failure the submission is left in
// READY_TO_SUBMIT for the next scheduled run.
func (s *ExaminationSubmitter) Submit(ctx context.Context, sub *domain.Submission) error {
	submittedAt := sub.EffectiveSubmittedAt()

	if sub.FormDetails.Barcode == "" {
		bc, err := s.barcodes.Request(ctx, submittedAt)
		if err != nil {
			return err
		}
		sub.FormDetails.Barcode = bc
		// Persist immediately so a later failure does not burn a second
		// barcode for the same submission.
		if err := s.store.UpdateBarcode(ctx, sub.ID, bc); err != nil {
			return fmt.Errorf("persist barcode for %s: %w", sub.ID, err)
		}
	}

	tmpl, err := s.catalog.FindByID(ctx, sub.FormDetails.FormType)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("form type %q absent from catalog: %w", sub.FormDetails.FormType, domain.ErrIncorrectState)
	}
	if err != nil {
		return err
	}
	docType := tmpl.FesDocType
	if docType == "" {
		docType = sub.FormDetails.FormType
	}

	attachments := make([]domain.FesAttachment, 0, len(sub.FormDetails.Attachments))
	for _, att := range sub.FormDetails.Attachments {
		if att.ConvertedFileID == "" {
			return fmt.Errorf("attachment %s has no converted file: %w", att.FileID, domain.ErrIncorrectState)
		}
		content, err := s.contents.Download(ctx, att.ConvertedFileID)
		if err != nil {
			return err
		}
		attachments = append(attachments, domain.FesAttachment{Content: content, PageCount: att.PageCount})
	}

	record := domain.FesLoaderRecord{
		Barcode:       sub.FormDetails.Barcode,
		CompanyName:   sub.Company.Name,
		CompanyNumber: sub.Company.Number,
		FormType:      docType,
		SameDay:       tmpl.SameDay,
		Attachments:   attachments,
		SubmittedAt:   submittedAt,
	}
	if err := s.loader.InsertSubmission(ctx, record); err != nil {
		return err
	}

	return s.store.UpdateStatus(ctx, sub.ID, domain.StatusSentToFes)
}

// EventService wires the engines into the operations the outside world
// invokes. Each invocation runs to completion before the next is accepted.
type EventService struct {
	store      SubmissionStore
	decisions  *DecisionEngine
	executions *ExecutionEngine
	submitter  *ExaminationSubmitter
	notifier   Notifier
	handlers   map[domain.ServiceLevel]DelayedSubmissionHandler
	fetchLimit int
	now        func() time.Time
}

func NewEventService(
	store SubmissionStore,
	decisions *DecisionEngine,
	executions *ExecutionEngine,
	submitter *ExaminationSubmitter,
	notifier Notifier,
	handlers map[domain.ServiceLevel]DelayedSubmissionHandler,
	fetchLimit int,
) *EventService {
	return &EventService{
		store:      store,
		decisions:  decisions,
		executions: executions,
		submitter:  submitter,
		notifier:   notifier,
		handlers:   handlers,
		fetchLimit: fetchLimit,
		now:        time.Now,
	}
}

// ProcessFiles evaluates a batch of submitted submissions and executes the
// resulting decisions.
func (s *EventService) ProcessFiles(ctx context.Context) error {
	subs, err := s.store.FindByStatus(ctx, domain.StatusSubmitted, s.fetchLimit)
	if err != nil {
		return fmt.Errorf("fetch submitted submissions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	groups := s.decisions.Evaluate(ctx, subs)
	s.executions.Execute(ctx, groups)
	return nil
}

// UpdateConversionFileStatus applies a converter callback for one attachment
// and moves the submission on once every attachment has a terminal
// conversion state. Validation failures propagate; they are caller contract
// violations.
func (s *EventService) UpdateConversionFileStatus(ctx context.Context, submissionID, fileID string, result domain.ConversionResult) error {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.Status != domain.StatusProcessing {
		return fmt.Errorf("submission %s is %s, expected %s: %w",
			submissionID, sub.Status, domain.StatusProcessing, domain.ErrIncorrectState)
	}

	att := sub.Attachment(fileID)
	if att == nil {
		return fmt.Errorf("file %s in submission %s: %w", fileID, submissionID, domain.ErrNotFound)
	}
	if att.ConversionStatus != domain.ConversionQueued {
		return fmt.Errorf("file %s in submission %s is %s, expected %s: %w",
			fileID, submissionID, att.ConversionStatus, domain.ConversionQueued, domain.ErrIncorrectState)
	}

	stamp := s.now().UTC()
	att.ConversionStatus = result.Status
	att.ConvertedFileID = result.ConvertedFileID
	att.PageCount = result.PageCount
	att.LastModifiedAt = &stamp

	if allConversionsFinished(sub) {
		if failed := failedConversions(sub); len(failed) == 0 {
			sub.Status = domain.StatusReadyToSubmit
		} else {
			sub.Status = domain.StatusRejectedByDocumentConverter
			// A notification failure must not block the status update.
			if err := s.notifier.SendConversionFailure(sub, failed); err != nil {
				log.Printf("conversion failure notification for %s: %v", submissionID, err)
			}
		}
	}

	return s.store.Update(ctx, sub)
}

// SubmitToFes sends every READY_TO_SUBMIT submission to the examination
// system. Items are isolated: one failure is logged and the loop continues.
func (s *EventService) SubmitToFes(ctx context.Context) error {
	subs, err := s.store.FindByStatus(ctx, domain.StatusReadyToSubmit, 0)
	if err != nil {
		return fmt.Errorf("fetch ready submissions: %w", err)
	}

	for i := range subs {
		if err := s.submitter.Submit(ctx, &subs[i]); err != nil {
			log.Printf("fes submission failed submission=%s: %v", subs[i].ID, err)
		}
	}
	return nil
}

// HandleDelayedSubmissions runs the escalation strategy for the given
// service level against a single captured instant.
func (s *EventService) HandleDelayedSubmissions(ctx context.Context, level domain.ServiceLevel) error {
	handler, ok := s.handlers[level]
	if !ok {
		return fmt.Errorf("no delayed-submission handler for service level %s", level)
	}

	now := s.now().UTC()
	subs, err := handler.FindDelayed(ctx, now)
	if err != nil {
		return fmt.Errorf("find delayed %s submissions: %w", level, err)
	}
	return handler.BuildAndSendEmails(ctx, subs, now)
}

func allConversionsFinished(sub domain.Submission) bool {
	for _, att := range sub.FormDetails.Attachments {
		if att.ConversionStatus != domain.ConversionConverted && att.ConversionStatus != domain.ConversionFailed {
			return false
		}
	}
	return true
}

func failedConversions(sub domain.Submission) []string {
	var failed []string
	for _, att := range sub.FormDetails.Attachments {
		if att.ConversionStatus == domain.ConversionFailed {
			failed = append(failed, att.Name)
		}
	}
	return failed
}
