package fes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"filing-processor/internal/domain"
)

// Every form row starts in this status; examination moves it on.
const initialFormStatus = "N"

// Same-day work loads into its own batch-name series, distinct from the
// standard series under the plain prefix.
const sameDaySuffix = "SD"

// LoaderError wraps any store failure during a load. The transaction is
// rolled back, so callers must treat the whole call as failed.
type LoaderError struct {
	Err error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("fes loader: %v", e.Err)
}

func (e *LoaderError) Unwrap() error {
	return e.Err
}

// Loader writes accepted submissions into the legacy examination database.
// Identifier allocation is delegated to the store's sequences, so concurrent
// pipeline instances are safe without in-process locking.
type Loader struct {
	db     *sql.DB
	prefix string
	now    func() time.Time
}

func NewLoader(dsn string, batchPrefix string) (*Loader, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &Loader{db: db, prefix: batchPrefix, now: time.Now}, nil
}

func (l *Loader) Close() error {
	return l.db.Close()
}

func (l *Loader) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// InsertSubmission writes one batch, one envelope, and an image+form pair
// per attachment, in attachment order, as a single transaction.
func (l *Loader) InsertSubmission(ctx context.Context, rec domain.FesLoaderRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return &LoaderError{Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if err := l.insert(ctx, tx, rec); err != nil {
		return &LoaderError{Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &LoaderError{Err: err}
	}
	return nil
}

func (l *Loader) insert(ctx context.Context, tx *sql.Tx, rec domain.FesLoaderRecord) error {
	now := l.now().UTC()

	batchID, err := nextID(ctx, tx, "batch_id_seq")
	if err != nil {
		return err
	}
	batchName, err := l.nextBatchName(ctx, tx, now, rec.SameDay)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO batch (batch_id, batch_name, created_date)
		VALUES ($1, $2, $3)
	`, batchID, batchName, now); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	envelopeID, err := nextID(ctx, tx, "envelope_id_seq")
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO envelope (envelope_id, batch_id)
		VALUES ($1, $2)
	`, envelopeID, batchID); err != nil {
		return fmt.Errorf("insert envelope: %w", err)
	}

	for _, att := range rec.Attachments {
		imageID, err := nextID(ctx, tx, "image_id_seq")
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO image (image_id, image)
			VALUES ($1, $2)
		`, imageID, att.Content); err != nil {
			return fmt.Errorf("insert image: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO form (barcode, company_name, company_number, form_type,
				image_id, envelope_id, form_status, number_of_pages, barcode_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, rec.Barcode, rec.CompanyName, rec.CompanyNumber, rec.FormType,
			imageID, envelopeID, initialFormStatus, att.PageCount, rec.SubmittedAt); err != nil {
			return fmt.Errorf("insert form: %w", err)
		}
	}
	return nil
}

// nextBatchName allocates the next per-prefix sequence number and formats
// the batch name as <PREFIX>_<yyMMdd>_<NNNN>. Same-day records count under
// <PREFIX>SD instead. The calendar-day prefix and the running counter are
// two independent pieces: the counter is keyed by the formatted prefix and
// created on first use.
func (l *Loader) nextBatchName(ctx context.Context, tx *sql.Tx, now time.Time, sameDay bool) (string, error) {
	base := l.prefix
	if sameDay {
		base += sameDaySuffix
	}
	prefix := fmt.Sprintf("%s_%s", base, now.Format("060102"))

	var seq int
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO batch_name_sequence (prefix, sequence)
		VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET sequence = batch_name_sequence.sequence + 1
		RETURNING sequence
	`, prefix).Scan(&seq); err != nil {
		return "", fmt.Errorf("batch name sequence for %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s_%04d", prefix, seq), nil
}

func nextID(ctx context.Context, tx *sql.Tx, sequence string) (int64, error) {
	var id int64
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT nextval('%s')`, sequence)).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate %s: %w", sequence, err)
	}
	return id, nil
}
