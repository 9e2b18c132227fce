package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRegistry_InsertIfAbsent_New(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	entry := RegistryEntry{
		MemberKey:     "jane doe|family|2025-01-06",
		Patient:       "Jane Doe",
		Type:          TypeFamily,
		StartDate:     time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		FirstSeenWeek: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO membership_registry`).
		WithArgs(entry.MemberKey, entry.Patient, entry.Type, entry.StartDate, entry.FirstSeenWeek).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPostgresRegistryRepository(mock)
	err = repo.WithTx(context.Background(), func(tx RegistryTx) error {
		inserted, err := tx.InsertIfAbsent(context.Background(), entry)
		require.NoError(t, err)
		assert.True(t, inserted)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_InsertIfAbsent_AlreadySeen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO membership_registry`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	repo := NewPostgresRegistryRepository(mock)
	err = repo.WithTx(context.Background(), func(tx RegistryTx) error {
		inserted, err := tx.InsertIfAbsent(context.Background(), RegistryEntry{MemberKey: "k"})
		require.NoError(t, err)
		assert.False(t, inserted)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_WithTx_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := NewPostgresRegistryRepository(mock)
	wantErr := errors.New("boom")
	err = repo.WithTx(context.Background(), func(tx RegistryTx) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
