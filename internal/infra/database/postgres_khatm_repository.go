// internal/infra/database/postgres_khatm_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/txretry"
)

const khatmColumns = `id, name, slug, total_pages, current_page, completed_count, is_completed, created_at, updated_at`

type PostgresKhatmRepository struct {
	db     *sql.DB
	runner *txretry.Runner
}

var _ khatm.Repository = (*PostgresKhatmRepository)(nil)

func NewPostgresKhatmRepository(db *sql.DB, runner *txretry.Runner) *PostgresKhatmRepository {
	return &PostgresKhatmRepository{db: db, runner: runner}
}

func (r *PostgresKhatmRepository) Create(ctx context.Context, k *khatm.Khatm) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	query := `INSERT INTO khatms (id, name, slug, total_pages, current_page, completed_count, is_completed)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, k.ID, k.Name, k.Slug, k.TotalPages, k.CurrentPage, k.CompletedCount, k.IsCompleted).
		Scan(&k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		tagged := classifyPostgresError(err)
		if errors.Is(tagged, khatm.ErrDuplicateSlug) {
			return khatm.ErrDuplicateSlug
		}
		return fmt.Errorf("error creating khatm: %w", tagged)
	}
	return nil
}

func (r *PostgresKhatmRepository) GetByID(ctx context.Context, id string) (*khatm.Khatm, error) {
	query := `SELECT ` + khatmColumns + ` FROM khatms WHERE id = $1`
	k, err := scanPostgresKhatm(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, khatm.ErrNotFound
		}
		return nil, fmt.Errorf("error getting khatm by ID: %w", classifyPostgresError(err))
	}
	return k, nil
}

func (r *PostgresKhatmRepository) GetBySlug(ctx context.Context, slug string) (*khatm.Khatm, error) {
	query := `SELECT ` + khatmColumns + ` FROM khatms WHERE slug = $1`
	k, err := scanPostgresKhatm(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, khatm.ErrNotFound
		}
		return nil, fmt.Errorf("error getting khatm by slug: %w", classifyPostgresError(err))
	}
	return k, nil
}

func (r *PostgresKhatmRepository) ListAll(ctx context.Context) ([]*khatm.Khatm, error) {
	query := `SELECT ` + khatmColumns + ` FROM khatms ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing khatms: %w", classifyPostgresError(err))
	}
	defer rows.Close()

	khatms := make([]*khatm.Khatm, 0)
	for rows.Next() {
		k, err := scanPostgresKhatm(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning khatm row: %w", err)
		}
		khatms = append(khatms, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating khatm rows: %w", classifyPostgresError(err))
	}
	return khatms, nil
}

// Transact runs fn under SERIALIZABLE isolation. Postgres aborts one of two
// transactions that read the same row before either wrote it (SQLSTATE 40001);
// the aborted one is retried from the read.
func (r *PostgresKhatmRepository) Transact(ctx context.Context, id string, fn khatm.MutateFunc) error {
	return r.runner.Run(ctx, func() error {
		return classifyPostgresError(r.transactOnce(ctx, id, fn))
	})
}

func (r *PostgresKhatmRepository) transactOnce(ctx context.Context, id string, fn khatm.MutateFunc) error {
	txn, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin khatm transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	query := `SELECT ` + khatmColumns + ` FROM khatms WHERE id = $1`
	current, err := scanPostgresKhatm(txn.QueryRowContext(ctx, query, id))
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
               SET current_page = $1, completed_count = $2, is_completed = $3, updated_at = NOW()
               WHERE id = $4`,
		updated.CurrentPage, updated.CompletedCount, updated.IsCompleted, id)
	if err != nil {
		return fmt.Errorf("error updating khatm in transaction: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("error committing khatm transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresKhatm(row rowScanner) (*khatm.Khatm, error) {
	k := &khatm.Khatm{}
	err := row.Scan(&k.ID, &k.Name, &k.Slug, &k.TotalPages, &k.CurrentPage, &k.CompletedCount, &k.IsCompleted, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return k, nil
}
