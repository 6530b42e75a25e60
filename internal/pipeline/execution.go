package pipeline

import (
	"context"
	"fmt"
	"log"

	"filing-processor/internal/domain"
	"filing-processor/internal/notify"
)

// Dispatcher sends accepted decisions to the conversion work queue.
type Dispatcher interface {
	QueueMessages(ctx context.Context, decisions []domain.Decision) error
}

// Notifier is the outbound notification sink for internal notices.
type Notifier interface {
	SendAVFailure(sub domain.Submission, infectedFiles []string) error
	SendConversionFailure(sub domain.Submission, failedFiles []string) error
	SendProcessedByEmail(sub domain.Submission, files []notify.EmailAttachment) error
}

// LinkGenerator issues time-limited download links for stored files.
type LinkGenerator interface {
	PresignedLink(ctx context.Context, fileID string) (string, error)
}

// ExecutionEngine fans grouped decisions out to their side effects. Groups
// are dispatched independently; one group's failure never blocks another.
type ExecutionEngine struct {
	store    SubmissionStore
	queue    Dispatcher
	notifier Notifier
	links    LinkGenerator
}

func NewExecutionEngine(store SubmissionStore, queue Dispatcher, notifier Notifier, links LinkGenerator) *ExecutionEngine {
	return &ExecutionEngine{store: store, queue: queue, notifier: notifier, links: links}
}

func (e *ExecutionEngine) Execute(ctx context.Context, groups map[domain.DecisionResult][]domain.Decision) {
	for _, decision := range groups[domain.NoDecision] {
		log.Printf("submission %s undecided, will retry next run", decision.Submission.ID)
	}
	for _, decision := range groups[domain.FormTypeDoesNotExist] {
		log.Printf("ERROR submission %s has unrecognised form type %q, catalog fix required",
			decision.Submission.ID, decision.Submission.FormDetails.FormType)
	}

	if err := e.rejectInfected(ctx, groups[domain.NotClean]); err != nil {
		log.Printf("reject infected submissions: %v", err)
	}
	if err := e.queueForConversion(ctx, groups[domain.FesEnabled]); err != nil {
		log.Printf("queue submissions for conversion: %v", err)
	}
	if err := e.processByEmail(ctx, groups[domain.NotFesEnabled]); err != nil {
		log.Printf("process submissions by email: %v", err)
	}
}

func (e *ExecutionEngine) rejectInfected(ctx context.Context, decisions []domain.Decision) error {
	for _, decision := range decisions {
		sub := decision.Submission
		if err := e.notifier.SendAVFailure(*sub, decision.InfectedFiles); err != nil {
			return fmt.Errorf("av failure notification for %s: %w", sub.ID, err)
		}
		if err := e.store.UpdateStatus(ctx, sub.ID, domain.StatusRejectedByVirusScan); err != nil {
			return fmt.Errorf("mark %s rejected by virus scan: %w", sub.ID, err)
		}
	}
	return nil
}

// queueForConversion submits the whole group in one dispatch call and only
// then moves each submission into PROCESSING with its attachments marked as
// queued for conversion.
func (e *ExecutionEngine) queueForConversion(ctx context.Context, decisions []domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	if err := e.queue.QueueMessages(ctx, decisions); err != nil {
		return err
	}
	for _, decision := range decisions {
		sub := decision.Submission
		for i := range sub.FormDetails.Attachments {
			sub.FormDetails.Attachments[i].ConversionStatus = domain.ConversionQueued
		}
		if err := e.store.UpdateQueued(ctx, *sub); err != nil {
			return fmt.Errorf("mark %s queued: %w", sub.ID, err)
		}
	}
	return nil
}

func (e *ExecutionEngine) processByEmail(ctx context.Context, decisions []domain.Decision) error {
	for _, decision := range decisions {
		sub := decision.Submission
		files := make([]notify.EmailAttachment, 0, len(sub.FormDetails.Attachments))
		for _, att := range sub.FormDetails.Attachments {
			link, err := e.links.PresignedLink(ctx, att.FileID)
			if err != nil {
				return fmt.Errorf("download link for %s file %s: %w", sub.ID, att.FileID, err)
			}
			files = append(files, notify.EmailAttachment{Name: att.Name, PageCount: att.PageCount, DownloadLink: link})
		}
		if err := e.notifier.SendProcessedByEmail(*sub, files); err != nil {
			return fmt.Errorf("processed-by-email notification for %s: %w", sub.ID, err)
		}
		if err := e.store.UpdateStatus(ctx, sub.ID, domain.StatusProcessedByEmail); err != nil {
			return fmt.Errorf("mark %s processed by email: %w", sub.ID, err)
		}
	}
	return nil
}
