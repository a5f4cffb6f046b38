package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by pgxpool.Pool and pgx.Tx. Repositories
// are written against it so the same code serves both transaction scopes and
// standalone reads.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements UnitOfWork over PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Within executes fn inside one transaction, handing it repositories bound
// to that transaction.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, newRepositories(tx)); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rollbackErr)
		}

		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Repos returns pool-bound repositories for reads and single-statement
// operations that need no surrounding transaction (outbox publishing).
func (s *Store) Repos() *Repositories {
	return newRepositories(s.pool)
}

func newRepositories(db DBTX) *Repositories {
	return &Repositories{
		Pairings:      &PairingRepositoryImpl{db: db},
		Events:        &EventRepositoryImpl{db: db},
		Registrations: &RegistrationRepositoryImpl{db: db},
		Holds:         &HoldRepositoryImpl{db: db},
		Tickets:       &TicketRepositoryImpl{db: db},
		Ledger:        &LedgerRepositoryImpl{db: db},
		Outbox:        &OutboxRepositoryImpl{db: db},
		EventLog:      &EventLogRepositoryImpl{db: db},
		Refunds:       &RefundRepositoryImpl{db: db},
	}
}
