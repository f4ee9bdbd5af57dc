package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entitySpec() UpsertSpec {
	return UpsertSpec{
		Table:   "reference_entities",
		Columns: []string{"id", "name", "country"},
		Key:     "id",
	}
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, entitySpec(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_SpecValidation(t *testing.T) {
	rows := [][]any{{"E1", "Alpha", "CN"}}
	cases := []struct {
		name    string
		mutate  func(*UpsertSpec)
		wantErr string
	}{
		{"no table", func(s *UpsertSpec) { s.Table = "" }, "no table"},
		{"no columns", func(s *UpsertSpec) { s.Columns = nil }, "no columns"},
		{"no key", func(s *UpsertSpec) { s.Key = "" }, "no key column"},
		{"key outside columns", func(s *UpsertSpec) { s.Key = "uid" }, "not among columns"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := entitySpec()
			tc.mutate(&spec)
			_, err := BulkUpsert(context.Background(), nil, spec, rows)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestUpsertSpec_MergeSQL(t *testing.T) {
	got := entitySpec().mergeSQL()
	want := `INSERT INTO "reference_entities" ("id", "name", "country") ` +
		`SELECT "id", "name", "country" FROM "_stage_reference_entities" ` +
		`ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "country" = EXCLUDED."country"`
	assert.Equal(t, want, got)
}

func TestBulkUpsert_Flow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_reference_entities"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_reference_entities"}, []string{"id", "name", "country"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "reference_entities"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"E1", "Alpha", "CN"}, {"E2", "Beta", "RU"}}
	n, err := BulkUpsert(context.Background(), mock, entitySpec(), rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_reference_entities"}, []string{"id", "name", "country"}).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, entitySpec(), [][]any{{"E1", "Alpha", "CN"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into stage")
	assert.NoError(t, mock.ExpectationsWereMet())
}
