package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"filing-processor/internal/avscan"
	"filing-processor/internal/domain"
	"filing-processor/internal/notify"
)

type fakeStore struct {
	mu       sync.Mutex
	subs     map[string]domain.Submission
	byStatus map[domain.SubmissionStatus][]domain.Submission

	updates       []domain.Submission
	statusUpdates map[string]domain.SubmissionStatus
	barcodes      map[string]string
	queued        []domain.Submission

	findErr   error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:          make(map[string]domain.Submission),
		byStatus:      make(map[domain.SubmissionStatus][]domain.Submission),
		statusUpdates: make(map[string]domain.SubmissionStatus),
		barcodes:      make(map[string]string),
	}
}

func (f *fakeStore) FindByStatus(_ context.Context, status domain.SubmissionStatus, limit int) ([]domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	subs := f.byStatus[status]
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

// FindDelayed mirrors the store's strict last_modified_at < before filter so
// boundary tests exercise the same exclusivity.
func (f *fakeStore) FindDelayed(_ context.Context, status domain.SubmissionStatus, before time.Time) ([]domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []domain.Submission
	for _, sub := range f.byStatus[status] {
		if sub.LastModifiedAt.Before(before) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeStore) FindDelayedSameDay(_ context.Context, statuses []domain.SubmissionStatus, before time.Time) ([]domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []domain.Submission
	for _, status := range statuses {
		for _, sub := range f.byStatus[status] {
			if sub.LastModifiedAt.Before(before) {
				out = append(out, sub)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return domain.Submission{}, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	return sub, nil
}

func (f *fakeStore) Update(_ context.Context, sub domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, sub)
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, status domain.SubmissionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates[id] = status
	if sub, ok := f.subs[id]; ok {
		sub.Status = status
		f.subs[id] = sub
	}
	return nil
}

func (f *fakeStore) UpdateBarcode(_ context.Context, id string, barcode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.barcodes[id] = barcode
	return nil
}

// UpdateQueued mirrors the real store: the submission lands in PROCESSING
// with its attachments as given, and later finds see the new status.
func (f *fakeStore) UpdateQueued(_ context.Context, sub domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, sub)
	sub.Status = domain.StatusProcessing
	f.statusUpdates[sub.ID] = sub.Status
	if old, ok := f.subs[sub.ID]; ok {
		f.unindex(old)
	}
	f.subs[sub.ID] = sub
	f.byStatus[sub.Status] = append(f.byStatus[sub.Status], sub)
	return nil
}

func (f *fakeStore) unindex(sub domain.Submission) {
	list := f.byStatus[sub.Status]
	for i := range list {
		if list[i].ID == sub.ID {
			f.byStatus[sub.Status] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

type fakeScanClient struct {
	mu       sync.Mutex
	statuses map[string]avscan.ScanStatus
	errs     map[string]error
	calls    []string
}

func newFakeScanClient() *fakeScanClient {
	return &fakeScanClient{
		statuses: make(map[string]avscan.ScanStatus),
		errs:     make(map[string]error),
	}
}

func (f *fakeScanClient) Details(_ context.Context, fileID string) (avscan.FileDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fileID)
	if err := f.errs[fileID]; err != nil {
		return avscan.FileDetails{}, err
	}
	return avscan.FileDetails{FileStatus: f.statuses[fileID]}, nil
}

type fakeCatalog struct {
	templates map[string]domain.FormTemplate
	err       error
}

func (f *fakeCatalog) FindByID(_ context.Context, formType string) (domain.FormTemplate, error) {
	if f.err != nil {
		return domain.FormTemplate{}, f.err
	}
	tmpl, ok := f.templates[formType]
	if !ok {
		return domain.FormTemplate{}, fmt.Errorf("form type %q: %w", formType, domain.ErrNotFound)
	}
	return tmpl, nil
}

type avFailureCall struct {
	sub   domain.Submission
	files []string
}

type processedByEmailCall struct {
	sub   domain.Submission
	files []notify.EmailAttachment
}

type fakeNotifier struct {
	avFailures   []avFailureCall
	convFailures []avFailureCall
	processed    []processedByEmailCall
	avErr        error
	convErr      error
	processedErr error
}

func (f *fakeNotifier) SendAVFailure(sub domain.Submission, infectedFiles []string) error {
	if f.avErr != nil {
		return f.avErr
	}
	f.avFailures = append(f.avFailures, avFailureCall{sub: sub, files: infectedFiles})
	return nil
}

func (f *fakeNotifier) SendConversionFailure(sub domain.Submission, failedFiles []string) error {
	if f.convErr != nil {
		return f.convErr
	}
	f.convFailures = append(f.convFailures, avFailureCall{sub: sub, files: failedFiles})
	return nil
}

func (f *fakeNotifier) SendProcessedByEmail(sub domain.Submission, files []notify.EmailAttachment) error {
	if f.processedErr != nil {
		return f.processedErr
	}
	f.processed = append(f.processed, processedByEmailCall{sub: sub, files: files})
	return nil
}

type supportCall struct {
	rows      []notify.SupportEscalationRow
	threshold int
}

type businessCall struct {
	to        string
	rows      []notify.BusinessEscalationRow
	threshold int
}

type sameDayCall struct {
	rows      []notify.SameDayEscalationRow
	threshold int
}

type fakeEscalations struct {
	support  []supportCall
	business []businessCall
	sameDay  []sameDayCall

	supportErr error
}

func (f *fakeEscalations) SendSupportEscalation(rows []notify.SupportEscalationRow, thresholdMinutes int) error {
	if f.supportErr != nil {
		return f.supportErr
	}
	f.support = append(f.support, supportCall{rows: rows, threshold: thresholdMinutes})
	return nil
}

func (f *fakeEscalations) SendBusinessEscalation(to string, rows []notify.BusinessEscalationRow, thresholdMinutes int) error {
	f.business = append(f.business, businessCall{to: to, rows: rows, threshold: thresholdMinutes})
	return nil
}

func (f *fakeEscalations) SendSameDayEscalation(rows []notify.SameDayEscalationRow, thresholdMinutes int) error {
	f.sameDay = append(f.sameDay, sameDayCall{rows: rows, threshold: thresholdMinutes})
	return nil
}

type fakeDispatcher struct {
	batches [][]domain.Decision
	err     error
}

func (f *fakeDispatcher) QueueMessages(_ context.Context, decisions []domain.Decision) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, decisions)
	return nil
}

type fakeLinks struct {
	err error
}

func (f *fakeLinks) PresignedLink(_ context.Context, fileID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://files.example.com/" + fileID, nil
}

type fakeBarcodes struct {
	barcode  string
	err      error
	received []time.Time
}

func (f *fakeBarcodes) Request(_ context.Context, received time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.received = append(f.received, received)
	return f.barcode, nil
}

type fakeContents struct {
	files map[string][]byte
	err   error
}

func (f *fakeContents) Download(_ context.Context, fileID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, domain.ErrNotFound)
	}
	return content, nil
}

type fakeLoader struct {
	records []domain.FesLoaderRecord
	err     error
}

func (f *fakeLoader) InsertSubmission(_ context.Context, rec domain.FesLoaderRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}
