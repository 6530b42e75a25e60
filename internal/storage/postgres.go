package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"filing-processor/internal/domain"
)

const submissionColumns = `
	id, confirmation_reference, status, company_name, company_number,
	presenter_email, form_type, barcode, attachments, payment_sessions,
	created_at, submitted_at, last_modified_at`

// PostgresStore is the primary submission store. The pipeline mutates status
// and attachment sub-records; it never creates or deletes submissions.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying handle for read-only collaborators sharing the
// same database, e.g. the form catalog.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// FindByStatus returns submissions in the given status, oldest first. A
// limit of zero or less fetches all matches.
func (s *PostgresStore) FindByStatus(ctx context.Context, status domain.SubmissionStatus, limit int) ([]domain.Submission, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM submissions
		WHERE status = $1
		ORDER BY COALESCE(submitted_at, created_at) ASC`, submissionColumns)
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

// FindDelayed returns submissions in the given status whose last activity is
// strictly older than before.
func (s *PostgresStore) FindDelayed(ctx context.Context, status domain.SubmissionStatus, before time.Time) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM submissions
		WHERE status = $1 AND last_modified_at < $2
		ORDER BY COALESCE(submitted_at, created_at) ASC`, submissionColumns),
		status, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

// FindDelayedSameDay is FindDelayed over a set of statuses, used by the
// same-day service level which also escalates READY_TO_SUBMIT submissions.
func (s *PostgresStore) FindDelayedSameDay(ctx context.Context, statuses []domain.SubmissionStatus, before time.Time) ([]domain.Submission, error) {
	raw := make([]string, 0, len(statuses))
	for _, st := range statuses {
		raw = append(raw, string(st))
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM submissions
		WHERE status = ANY($1) AND last_modified_at < $2
		ORDER BY COALESCE(submitted_at, created_at) ASC`, submissionColumns),
		pq.Array(raw), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM submissions
		WHERE id = $1`, submissionColumns), id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	return sub, err
}

// Update persists the submission's mutable fields in one call.
func (s *PostgresStore) Update(ctx context.Context, sub domain.Submission) error {
	attachments, err := json.Marshal(sub.FormDetails.Attachments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = $2, barcode = $3, attachments = $4::jsonb, last_modified_at = NOW()
		WHERE id = $1
	`, sub.ID, sub.Status, sub.FormDetails.Barcode, string(attachments))
	return err
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = $2, last_modified_at = NOW()
		WHERE id = $1
	`, id, status)
	return err
}

func (s *PostgresStore) UpdateBarcode(ctx context.Context, id string, barcode string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET barcode = $2, last_modified_at = NOW()
		WHERE id = $1
	`, id, barcode)
	return err
}

// UpdateQueued marks a submission dispatched to the conversion queue: the
// submission moves to PROCESSING and its attachments carry the QUEUED
// conversion status in the same write. PROCESSING is the state the converter
// callback and the delayed-submission monitors act on.
func (s *PostgresStore) UpdateQueued(ctx context.Context, sub domain.Submission) error {
	attachments, err := json.Marshal(sub.FormDetails.Attachments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = $2, attachments = $3::jsonb, last_modified_at = NOW()
		WHERE id = $1
	`, sub.ID, domain.StatusProcessing, string(attachments))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (domain.Submission, error) {
	var sub domain.Submission
	var barcode sql.NullString
	var attachments []byte
	var paymentSessions []byte
	var submittedAt sql.NullTime
	if err := row.Scan(
		&sub.ID,
		&sub.ConfirmationReference,
		&sub.Status,
		&sub.Company.Name,
		&sub.Company.Number,
		&sub.Presenter.Email,
		&sub.FormDetails.FormType,
		&barcode,
		&attachments,
		&paymentSessions,
		&sub.CreatedAt,
		&submittedAt,
		&sub.LastModifiedAt,
	); err != nil {
		return domain.Submission{}, err
	}
	if barcode.Valid {
		sub.FormDetails.Barcode = barcode.String
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		sub.SubmittedAt = &t
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &sub.FormDetails.Attachments); err != nil {
			return domain.Submission{}, fmt.Errorf("decode attachments for %s: %w", sub.ID, err)
		}
	}
	if len(paymentSessions) > 0 {
		if err := json.Unmarshal(paymentSessions, &sub.PaymentSessions); err != nil {
			return domain.Submission{}, fmt.Errorf("decode payment sessions for %s: %w", sub.ID, err)
		}
	}
	return sub, nil
}

func collectSubmissions(rows *sql.Rows) ([]domain.Submission, error) {
	subs := make([]domain.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}
