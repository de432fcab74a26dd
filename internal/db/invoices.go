package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recibox/receipt-ocr-service/internal/models"
)

// ErrDuplicateInvoice is returned by SaveInvoice when the invoice number is
// already persisted. Rows are rejected, never merged or overwritten.
var ErrDuplicateInvoice = errors.New("invoice number already exists")

// Store persists invoice records in the invoices table. Append-only: no
// update or delete is exposed.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateTables creates the invoices table and its constraints if absent.
// The unique index is partial: "N/A" marks an unextractable invoice number,
// not a business key, so sentinel rows are never deduplicated against each
// other.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS invoices (
			id         BIGSERIAL PRIMARY KEY,
			store_name TEXT NOT NULL,
			invoice_no TEXT NOT NULL,
			date       TEXT NOT NULL,
			total      NUMERIC(14,2),
			raw_text   TEXT NOT NULL DEFAULT '',
			file_path  TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating invoices table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS invoices_invoice_no_key
		ON invoices (invoice_no)
		WHERE invoice_no <> 'N/A'
	`)
	if err != nil {
		return fmt.Errorf("creating invoice_no unique index: %w", err)
	}
	return nil
}

// RecordExists reports whether any persisted record carries exactly this
// invoice number. Advisory only: the unique index is what actually guarantees
// no duplicate row lands between this check and the insert.
func (s *Store) RecordExists(ctx context.Context, invoiceNo string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE invoice_no = $1)`,
		invoiceNo,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking invoice existence: %w", err)
	}
	return exists, nil
}

// SaveInvoice inserts one new record and fills in its ID and CreatedAt.
// A unique-constraint violation surfaces as ErrDuplicateInvoice; that is the
// authoritative duplicate signal.
func (s *Store) SaveInvoice(ctx context.Context, rec *models.InvoiceRecord) error {
	var total *string
	if rec.Total != models.NotAvailable {
		total = &rec.Total
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (store_name, invoice_no, date, total, raw_text, file_path)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING id, created_at
	`,
		rec.StoreName, rec.InvoiceNo, rec.Date, total, rec.RawText, rec.FilePath,
	).Scan(&rec.ID, &rec.CreatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicateInvoice
	}
	if err != nil {
		return fmt.Errorf("saving invoice: %w", err)
	}
	return nil
}

// ListInvoices returns the summary projection of every persisted record,
// most recent insertion first.
func (s *Store) ListInvoices(ctx context.Context) ([]models.InvoiceSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT store_name, invoice_no, date,
		       COALESCE(total::text, 'N/A'),
		       created_at
		FROM invoices
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	summaries := []models.InvoiceSummary{}
	for rows.Next() {
		var row models.InvoiceSummary
		if err := rows.Scan(&row.StoreName, &row.InvoiceNo, &row.Date, &row.Total, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning invoice row: %w", err)
		}
		summaries = append(summaries, row)
	}
	return summaries, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
