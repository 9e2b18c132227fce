package membership

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the registry needs; pgxmock satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRegistryRepository implements RegistryRepository using PostgreSQL.
type PostgresRegistryRepository struct {
	db DB
}

// NewPostgresRegistryRepository creates a new PostgreSQL registry repository.
func NewPostgresRegistryRepository(db DB) *PostgresRegistryRepository {
	return &PostgresRegistryRepository{db: db}
}

// WithTx runs fn inside one transaction; any error rolls everything back.
func (r *PostgresRegistryRepository) WithTx(ctx context.Context, fn func(tx RegistryTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin registry transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&registryTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit registry transaction: %w", err)
	}
	return nil
}

type registryTx struct {
	tx pgx.Tx
}

// InsertIfAbsent relies on ON CONFLICT DO NOTHING for first-seen semantics;
// a zero rows-affected result means the key was already registered.
func (t *registryTx) InsertIfAbsent(ctx context.Context, entry RegistryEntry) (bool, error) {
	query := `
		INSERT INTO membership_registry (member_key, patient, membership_type, start_date, first_seen_week)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (member_key) DO NOTHING`

	tag, err := t.tx.Exec(ctx, query,
		entry.MemberKey,
		entry.Patient,
		entry.Type,
		entry.StartDate,
		entry.FirstSeenWeek,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert registry entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
