// Package storage persists transaction records in SQLite. Timestamps are
// stored as RFC 3339 UTC strings, which sort lexicographically and keep the
// database file readable.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"khata/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Save implements core.TransactionWriter. message_id is the natural key:
// a second save for the same message updates the existing row in place and
// returns its original id.
func (r *SQLiteRepository) Save(ctx context.Context, t core.TransactionRecord) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validate transaction: %w", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, message_id, sms_text, occurred_at, sender, is_expense,
			amount_paise, mode, bank, account, category, receiver,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			sms_text     = excluded.sms_text,
			occurred_at  = excluded.occurred_at,
			sender       = excluded.sender,
			is_expense   = excluded.is_expense,
			amount_paise = excluded.amount_paise,
			mode         = excluded.mode,
			bank         = excluded.bank,
			account      = excluded.account,
			category     = excluded.category,
			receiver     = excluded.receiver,
			updated_at   = excluded.updated_at`,
		t.ID, t.MessageID, t.SMSText, formatTime(t.OccurredAt), t.Sender,
		boolToInt(t.IsExpense), t.Amount.Paise, string(t.Mode), t.Bank,
		t.Account, string(t.Category), t.Receiver,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}

	// On conflict the stored id is the original one, not the candidate.
	var id string
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE message_id = ?`, t.MessageID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("read back transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"message_id", t.MessageID,
		"amount_paise", t.Amount.Paise,
		"category", t.Category)
	return id, nil
}

// List implements core.TransactionLister: filtered, occurred_at descending.
func (r *SQLiteRepository) List(ctx context.Context, f core.ListFilter) ([]core.TransactionRecord, error) {
	query := `
		SELECT id, message_id, sms_text, occurred_at, sender, is_expense,
		       amount_paise, mode, bank, account, category, receiver,
		       created_at, updated_at
		FROM transactions`
	var conds []string
	var args []any

	if !f.Start.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		// End is inclusive through the whole closing day.
		conds = append(conds, "occurred_at < ?")
		args = append(args, formatTime(f.End.AddDate(0, 0, 1)))
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.Bank != "" {
		conds = append(conds, "bank = ?")
		args = append(args, f.Bank)
	}
	if f.Mode != "" {
		conds = append(conds, "mode = ?")
		args = append(args, string(f.Mode))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionRecord
	for rows.Next() {
		var t core.TransactionRecord
		var occurredAt, createdAt, updatedAt string
		var isExpense int
		var mode, category string
		err := rows.Scan(
			&t.ID, &t.MessageID, &t.SMSText, &occurredAt, &t.Sender, &isExpense,
			&t.Amount.Paise, &mode, &t.Bank, &t.Account, &category, &t.Receiver,
			&createdAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.IsExpense = isExpense != 0
		t.Mode = core.PaymentMode(mode)
		t.Category = core.Category(category)
		if t.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("parse occurred_at: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateByID implements core.TransactionEditor. Only the user-editable
// fields are written; nil pointers leave columns untouched.
func (r *SQLiteRepository) UpdateByID(ctx context.Context, id string, fields core.UpdateFields) error {
	var sets []string
	var args []any

	if fields.Amount != nil {
		sets = append(sets, "amount_paise = ?")
		args = append(args, fields.Amount.Paise)
	}
	if fields.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*fields.Category))
	}
	if fields.Mode != nil {
		sets = append(sets, "mode = ?")
		args = append(args, string(*fields.Mode))
	}
	if fields.Receiver != nil {
		sets = append(sets, "receiver = ?")
		args = append(args, *fields.Receiver)
	}
	if fields.Bank != nil {
		sets = append(sets, "bank = ?")
		args = append(args, *fields.Bank)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now().UTC()))
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}
	return nil
}

// DeleteByID implements core.TransactionEditor.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
