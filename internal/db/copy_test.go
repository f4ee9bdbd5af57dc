package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entityCols = []string{"id", "name", "country"}

func TestCopyFrom_EmptyRows(t *testing.T) {
	// No rows means no COPY; a nil Copier must not be touched.
	n, err := CopyFrom(context.TODO(), nil, "reference_entities", entityCols, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom(t *testing.T) {
	rows := [][]any{
		{"E1", "Acme Corp", "US"},
		{"E2", "Beta Ltd", "GB"},
		{"E3", "Gamma GmbH", "DE"},
	}

	t.Run("streams all rows", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectCopyFrom(pgx.Identifier{"reference_entities"}, entityCols).
			WillReturnResult(int64(len(rows)))

		n, err := CopyFrom(context.Background(), mock, "reference_entities", entityCols, rows)
		assert.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps copy failure with the table name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectCopyFrom(pgx.Identifier{"reference_entities"}, entityCols).
			WillReturnError(fmt.Errorf("connection lost"))

		_, err = CopyFrom(context.Background(), mock, "reference_entities", entityCols, rows[:1])
		require.Error(t, err)
		assert.Contains(t, err.Error(), "COPY INTO reference_entities")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
