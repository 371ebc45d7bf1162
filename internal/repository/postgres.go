package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// Postgres implements Store on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool

	// fault, when set, is consulted between the statements of multi-step
	// transactions. Tests use it to abort a transaction half way.
	fault func(step string) error
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) checkpoint(step string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(step)
}

type scanner interface {
	Scan(dest ...any) error
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return mapPgErr(err)
}
