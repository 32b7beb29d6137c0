package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/txretry"
)

// SQLiteKhatmRepository persists cycle records in a single SQLite file.
// Transactions begin IMMEDIATE, so the read and the write of Transact happen
// under the database write lock; SQLITE_BUSY is retried.
type SQLiteKhatmRepository struct {
	db     *sql.DB
	runner *txretry.Runner
	now    func() time.Time
}

var _ khatm.Repository = (*SQLiteKhatmRepository)(nil)

func NewSQLiteKhatmRepository(db *sql.DB, runner *txretry.Runner) *SQLiteKhatmRepository {
	return &SQLiteKhatmRepository{db: db, runner: runner, now: time.Now}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func (r *SQLiteKhatmRepository) Create(ctx context.Context, k *khatm.Khatm) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	query := `INSERT INTO khatms (id, name, slug, total_pages, current_page, completed_count, is_completed, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, k.ID, k.Name, k.Slug, k.TotalPages, k.CurrentPage, k.CompletedCount, k.IsCompleted, toMillis(now), toMillis(now))
	if err != nil {
		tagged := classifySQLiteError(err)
		if errors.Is(tagged, khatm.ErrDuplicateSlug) {
			return khatm.ErrDuplicateSlug
		}
		return fmt.Errorf("error creating khatm: %w", tagged)
	}
	k.CreatedAt = now
	k.UpdatedAt = now
	return nil
}

func (r *SQLiteKhatmRepository) GetByID(ctx context.Context, id string) (*khatm.Khatm, error) {
	query := `SELECT ` + khatmColumns + ` FROM khatms WHERE id = ?`
	k, err := scanSQLiteKhatm(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, khatm.ErrNotFound
		}
		return nil, fmt.Errorf("error getting khatm by ID: %w", classifySQLiteError(err))
	}
	return k, nil
}

func (r *SQLiteKhatmRepository) GetBySlug(ctx context.Context, slug string) (*khatm.Khatm, error) {
	query := `SELECT ` + khatmColumns + ` FROM khatms WHERE slug = ?`
	k, err := scanSQLiteKhatm(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, khatm.ErrNotFound
		}
		return nil, fmt.Errorf("error getting khatm by slug: %w", classifySQLiteError(err))
	}
	return k, nil
}

func (r *SQLiteKhatmRepository) ListAll(ctx context.Context) ([]*khatm.Khatm, error) {
	query := `SELECT ` + khatmColumns + ` FROM khatms ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing khatms: %w", classifySQLiteError(err))
	}
	defer rows.Close()

	khatms := make([]*khatm.Khatm, 0)
	for rows.Next() {
		k, err := scanSQLiteKhatm(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning khatm row: %w", err)
		}
		khatms = append(khatms, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating khatm rows: %w", classifySQLiteError(err))
	}
	return khatms, nil
}

func (r *SQLiteKhatmRepository) Transact(ctx context.Context, id string, fn khatm.MutateFunc) error {
	return r.runner.Run(ctx, func() error {
		return classifySQLiteError(r.transactOnce(ctx, id, fn))
	})
}

func (r *SQLiteKhatmRepository) transactOnce(ctx context.Context, id string, fn khatm.MutateFunc) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin khatm transaction: %w", err)
	}
	defer txn.Rollback()

	query := `SELECT ` + khatmColumns + ` FROM khatms WHERE id = ?`
	current, err := scanSQLiteKhatm(txn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return khatm.ErrNotFound
		}
		return fmt.Errorf("error reading khatm in transaction: %w", err)
	}

	updated, err := fn(*current)
	if err != nil {
		return err
	}

	_, err = txn.ExecContext(ctx, `UPDATE khatms
               SET current_page = ?, completed_count = ?, is_completed = ?, updated_at = ?
               WHERE id = ?`,
		updated.CurrentPage, updated.CompletedCount, updated.IsCompleted, toMillis(r.now()), id)
	if err != nil {
		return fmt.Errorf("error updating khatm in transaction: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("error committing khatm transaction: %w", err)
	}
	return nil
}

func scanSQLiteKhatm(row rowScanner) (*khatm.Khatm, error) {
	var (
		k                    khatm.Khatm
		createdAt, updatedAt int64
	)
	err := row.Scan(&k.ID, &k.Name, &k.Slug, &k.TotalPages, &k.CurrentPage, &k.CompletedCount, &k.IsCompleted, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	k.CreatedAt = fromMillis(createdAt)
	k.UpdatedAt = fromMillis(updatedAt)
	return &k, nil
}
