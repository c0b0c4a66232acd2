package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
)

// SearchFilter narrows a receipt query. Zero values mean "no constraint";
// range bounds are pointers so zero amounts and dates stay expressible.
type SearchFilter struct {
	Vendor        string
	DateFrom      *time.Time
	DateTo        *time.Time
	AmountMin     *float64
	AmountMax     *float64
	Category      string
	Currency      string
	MinConfidence *float64
}

type ReceiptRepository interface {
	Save(ctx context.Context, rec *entity.Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	List(ctx context.Context) ([]*entity.Receipt, error)
	Search(ctx context.Context, f SearchFilter) ([]*entity.Receipt, error)
	Update(ctx context.Context, rec *entity.Receipt) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

type receiptRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewReceiptRepository(db *sql.DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{db: db, logger: logger}
}

const selectReceipt = `SELECT id, vendor, tx_date, amount, category, currency,
	source_file, extracted_text, confidence, created_at, updated_at FROM receipts`

// Save validates the receipt, assigns an ID and timestamps, and inserts it.
func (r *receiptRepository) Save(ctx context.Context, rec *entity.Receipt) error {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Second)
	rec.CreatedAt, rec.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO receipts (
		id, vendor, tx_date, amount, category, currency,
		source_file, extracted_text, confidence, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Vendor, fmtTime(rec.TxDate), rec.Amount,
		rec.CategoryName, rec.CurrencyCode, rec.SourceFile, rec.ExtractedText,
		rec.Confidence, fmtTime(now), fmtTime(now))
	if err != nil {
		r.logger.Error("failed to save receipt", "vendor", rec.Vendor, "error", err)
		return common.NewAppError("DB_SAVE", "could not save receipt", err)
	}
	r.logger.Info("receipt saved", "id", rec.ID, "vendor", rec.Vendor, "amount", rec.Amount)
	return nil
}

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	row := r.db.QueryRowContext(ctx, selectReceipt+` WHERE id = ?`, id.String())
	rec, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND",
			fmt.Sprintf("receipt %s not found", id), common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load receipt", "id", id, "error", err)
		return nil, common.NewAppError("DB_QUERY", "could not load receipt", err)
	}
	return rec, nil
}

// List returns every receipt, newest transaction first.
func (r *receiptRepository) List(ctx context.Context) ([]*entity.Receipt, error) {
	return r.query(ctx, selectReceipt+` ORDER BY tx_date DESC, created_at DESC`)
}

// Search applies the filter as a dynamic WHERE clause, newest first.
func (r *receiptRepository) Search(ctx context.Context, f SearchFilter) ([]*entity.Receipt, error) {
	var (
		conds []string
		args  []any
	)
	if f.Vendor != "" {
		conds = append(conds, "vendor LIKE ?")
		args = append(args, "%"+f.Vendor+"%")
	}
	if f.DateFrom != nil {
		conds = append(conds, "tx_date >= ?")
		args = append(args, fmtTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		conds = append(conds, "tx_date <= ?")
		args = append(args, fmtTime(*f.DateTo))
	}
	if f.AmountMin != nil {
		conds = append(conds, "amount >= ?")
		args = append(args, *f.AmountMin)
	}
	if f.AmountMax != nil {
		conds = append(conds, "amount <= ?")
		args = append(args, *f.AmountMax)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Currency != "" {
		conds = append(conds, "currency = ?")
		args = append(args, f.Currency)
	}
	if f.MinConfidence != nil {
		conds = append(conds, "confidence >= ?")
		args = append(args, *f.MinConfidence)
	}

	query := selectReceipt
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY tx_date DESC"
	return r.query(ctx, query, args...)
}

// Update rewrites every mutable column of an existing receipt.
func (r *receiptRepository) Update(ctx context.Context, rec *entity.Receipt) error {
	if rec.ID == uuid.Nil {
		return common.NewAppError("INVALID_RECEIPT", "cannot update receipt without ID", common.ErrInvalidInput)
	}
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := r.db.ExecContext(ctx, `UPDATE receipts SET
		vendor = ?, tx_date = ?, amount = ?, category = ?, currency = ?,
		source_file = ?, extracted_text = ?, confidence = ?, updated_at = ?
	WHERE id = ?`,
		rec.Vendor, fmtTime(rec.TxDate), rec.Amount, rec.CategoryName,
		rec.CurrencyCode, rec.SourceFile, rec.ExtractedText, rec.Confidence,
		fmtTime(rec.UpdatedAt), rec.ID.String())
	if err != nil {
		r.logger.Error("failed to update receipt", "id", rec.ID, "error", err)
		return common.NewAppError("DB_UPDATE", "could not update receipt", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewAppError("DB_UPDATE", "could not update receipt", err)
	}
	if n == 0 {
		r.logger.Warn("no receipt to update", "id", rec.ID)
		return common.NewAppError("NOT_FOUND",
			fmt.Sprintf("receipt %s not found", rec.ID), common.ErrNotFound)
	}
	r.logger.Info("receipt updated", "id", rec.ID)
	return nil
}

func (r *receiptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id.String())
	if err != nil {
		r.logger.Error("failed to delete receipt", "id", id, "error", err)
		return common.NewAppError("DB_DELETE", "could not delete receipt", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewAppError("DB_DELETE", "could not delete receipt", err)
	}
	if n == 0 {
		r.logger.Warn("no receipt to delete", "id", id)
		return common.NewAppError("NOT_FOUND",
			fmt.Sprintf("receipt %s not found", id), common.ErrNotFound)
	}
	r.logger.Info("receipt deleted", "id", id)
	return nil
}

func (r *receiptRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts`).Scan(&n); err != nil {
		return 0, common.NewAppError("DB_QUERY", "could not count receipts", err)
	}
	return n, nil
}

func (r *receiptRepository) query(ctx context.Context, query string, args ...any) ([]*entity.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("receipt query failed", "error", err)
		return nil, common.NewAppError("DB_QUERY", "receipt query failed", err)
	}
	defer rows.Close()

	var out []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, common.NewAppError("DB_QUERY", "could not scan receipt row", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_QUERY", "receipt query failed", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var (
		rec                              entity.Receipt
		id, txDate, createdAt, updatedAt string
	)
	err := row.Scan(&id, &rec.Vendor, &txDate, &rec.Amount, &rec.CategoryName,
		&rec.CurrencyCode, &rec.SourceFile, &rec.ExtractedText, &rec.Confidence,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad receipt id %q: %w", id, err)
	}
	if rec.TxDate, err = parseTime(txDate); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Times are stored as RFC3339 UTC strings so lexicographic comparison in SQL
// matches chronological order.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
