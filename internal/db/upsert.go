package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertSpec describes a bulk merge: every row is inserted, and rows whose
// key already exists have all remaining columns updated in place.
type UpsertSpec struct {
	Table   string   // unqualified table name
	Columns []string // every inserted column, key included
	Key     string   // conflict column
}

func (s UpsertSpec) validate() error {
	if s.Table == "" {
		return eris.New("db: upsert: no table")
	}
	if len(s.Columns) == 0 {
		return eris.New("db: upsert: no columns")
	}
	if s.Key == "" {
		return eris.New("db: upsert: no key column")
	}
	if !slices.Contains(s.Columns, s.Key) {
		return eris.Errorf("db: upsert: key %q not among columns", s.Key)
	}
	return nil
}

// stage is the COPY target; LIKE the real table, dropped with the tx.
func (s UpsertSpec) stage() string { return "_stage_" + s.Table }

// mergeSQL builds the INSERT ... ON CONFLICT DO UPDATE that folds the stage
// table into the target. Every column except the key updates from EXCLUDED.
func (s UpsertSpec) mergeSQL() string {
	cols := make([]string, len(s.Columns))
	var sets []string
	for i, c := range s.Columns {
		q := pgx.Identifier{c}.Sanitize()
		cols[i] = q
		if c != s.Key {
			sets = append(sets, q+" = EXCLUDED."+q)
		}
	}
	list := strings.Join(cols, ", ")
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{s.Table}.Sanitize(),
		list,
		list,
		pgx.Identifier{s.stage()}.Sanitize(),
		pgx.Identifier{s.Key}.Sanitize(),
		strings.Join(sets, ", "),
	)
}

// BulkUpsert merges rows into spec.Table through a transaction-scoped stage
// table: COPY everything into the stage, then fold it in with a single
// INSERT ... ON CONFLICT DO UPDATE. One statement per batch regardless of
// row count, which is what keeps full list imports fast.
func BulkUpsert(ctx context.Context, pool Pool, spec UpsertSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := spec.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{spec.stage()}.Sanitize(),
		pgx.Identifier{spec.Table}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create stage for %s", spec.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{spec.stage()}, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy into stage for %s", spec.Table)
	}

	tag, err := tx.Exec(ctx, spec.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", spec.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}
