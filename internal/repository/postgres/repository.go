package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence. Every statement runs in a
// transaction scoped to one farm through the app.farm_id setting, which the
// row-level security policies check.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ repository.Store = (*Repository)(nil)

// NewRepository constructs a Repository over an existing pool.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger.Named("repo.postgres")}
}

// Connect opens a pool, verifies it and applies the schema.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Repository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	r := NewRepository(pool, logger)
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply postgres schema: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close(context.Context) error {
	r.pool.Close()
	return nil
}

// withFarm runs fn inside a transaction whose RLS scope is farmID.
func (r *Repository) withFarm(ctx context.Context, farmID string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.farm_id', $1, true)", farmID); err != nil {
		return fmt.Errorf("scope transaction to farm: %w", err)
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
