package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

func strPtr(s string) *string { return &s }

func TestStoreRecordsUpsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	first := catalog.PreviewRecord{ID: 1, Title: strPtr("Тетрадь смерти"), URL: "/anime/death-note-95"}
	second := catalog.PreviewRecord{ID: 2, Title: strPtr("Стальной алхимик"), URL: "/anime/fma-1"}
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO catalog_records").
		WithArgs("previews", 1, firstJSON).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO catalog_records").
		WithArgs("previews", 2, secondJSON).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = store.StoreRecords(context.Background(), catalog.PhasePreviews, []catalog.Identified{first, second})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordsRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "records")
	require.NoError(t, err)

	rec := catalog.PreviewRecord{ID: 7, URL: "/anime/x"}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").
		WithArgs("previews", 7, pgxmock.AnyArg()).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err = store.StoreRecords(context.Background(), catalog.PhasePreviews, []catalog.Identified{rec})
	require.ErrorContains(t, err, "upsert record 7")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordsNoopOnEmpty(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	require.NoError(t, store.StoreRecords(context.Background(), catalog.PhaseDetails, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS catalog_records").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "bad-name;")
	require.Error(t, err)
}
