package dataset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/chainreactions/screener/internal/db"
	"github.com/chainreactions/screener/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"get_entity":     `SELECT id, name, aliases, country, category, description, source_url, published_at, updated_at FROM reference_entities WHERE id = $1`,
	"count_entities": `SELECT COUNT(*) FROM reference_entities`,
	"get_meta":       `SELECT value FROM dataset_meta WHERE key = $1`,
	"delete_entity":  `DELETE FROM reference_entities WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with a mock
// pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reference_entities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	aliases      TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reference_entities_name ON reference_entities(name);
CREATE INDEX IF NOT EXISTS idx_reference_entities_country ON reference_entities(country);
CREATE INDEX IF NOT EXISTS idx_reference_entities_category ON reference_entities(category);

CREATE TABLE IF NOT EXISTS dataset_meta (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_log (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL,
	entities    INTEGER NOT NULL DEFAULT 0,
	version     BIGINT NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sync_log_source ON sync_log(source, started_at DESC);
`

const entityColumns = `id, name, aliases, country, category, description, source_url, published_at, updated_at`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AllEntities(ctx context.Context) ([]*model.ReferenceEntity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM reference_entities ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all entities")
	}
	defer rows.Close()

	var entities []*model.ReferenceEntity
	for rows.Next() {
		e, err := scanEntityPgx(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, eris.Wrap(rows.Err(), "postgres: all entities iterate")
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.ReferenceEntity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM reference_entities WHERE id = $1`, id)
	e, err := scanEntityPgx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get entity %s", id)
	}
	return e, nil
}

func (s *PostgresStore) ListEntities(ctx context.Context, filter ListFilter) ([]model.ReferenceEntity, error) {
	query := `SELECT ` + entityColumns + ` FROM reference_entities WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Country != "" {
		query += fmt.Sprintf(` AND country = $%d`, argIdx)
		args = append(args, filter.Country)
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	query += ` ORDER BY name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var entities []model.ReferenceEntity
	for rows.Next() {
		e, err := scanEntityPgx(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, eris.Wrap(rows.Err(), "postgres: list entities iterate")
}

func (s *PostgresStore) CountEntities(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reference_entities`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count entities")
}

// UpsertEntities inserts or updates entities in bulk, keyed on id.
func (s *PostgresStore) UpsertEntities(ctx context.Context, entities []*model.ReferenceEntity) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertSpec{
		Table:   "reference_entities",
		Columns: entityColumnList(),
		Key:     "id",
	}, entityRows(entities))
}

// ReplaceEntities swaps the whole table for the given set atomically.
func (s *PostgresStore) ReplaceEntities(ctx context.Context, entities []*model.ReferenceEntity) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: replace: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE reference_entities`); err != nil {
		return 0, eris.Wrap(err, "postgres: replace: truncate")
	}

	n, err := db.CopyFrom(ctx, tx, "reference_entities", entityColumnList(), entityRows(entities))
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: replace: commit tx")
	}
	return n, nil
}

func (s *PostgresStore) DeleteEntity(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reference_entities WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete entity %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("entity not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) Version(ctx context.Context) (int64, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM dataset_meta WHERE key = 'version'`).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrap(err, "postgres: get version")
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: parse version %q", value)
	}
	return v, nil
}

// BumpVersion atomically increments the dataset version and returns the
// new value.
func (s *PostgresStore) BumpVersion(ctx context.Context) (int64, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO dataset_meta (key, value, updated_at) VALUES ('version', '1', now())
		 ON CONFLICT (key) DO UPDATE SET value = (dataset_meta.value::bigint + 1)::text, updated_at = now()
		 RETURNING value`).Scan(&value)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bump version")
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: parse bumped version %q", value)
	}
	return v, nil
}

func (s *PostgresStore) RecordSync(ctx context.Context, rec SyncRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	var errText *string
	if rec.Error != "" {
		errText = &rec.Error
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_log (id, source, status, entities, version, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   status = $3, entities = $4, version = $5, error = $6, finished_at = $8`,
		rec.ID, rec.Source, rec.Status, rec.Entities, rec.Version, errText, rec.StartedAt, rec.FinishedAt,
	)
	return eris.Wrap(err, "postgres: record sync")
}

func (s *PostgresStore) LastSync(ctx context.Context, source string) (*SyncRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, status, entities, version, error, started_at, finished_at
		 FROM sync_log WHERE source = $1 ORDER BY started_at DESC LIMIT 1`,
		source,
	)
	rec, err := scanSyncPgx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: last sync %s", source)
	}
	return rec, nil
}

func (s *PostgresStore) ListSyncs(ctx context.Context, limit int) ([]SyncRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, status, entities, version, error, started_at, finished_at
		 FROM sync_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list syncs")
	}
	defer rows.Close()

	var recs []SyncRecord
	for rows.Next() {
		rec, err := scanSyncPgx(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list syncs iterate")
}

// helpers

type pgxScannable interface {
	Scan(dest ...any) error
}

func scanEntityPgx(row pgxScannable) (*model.ReferenceEntity, error) {
	var e model.ReferenceEntity
	var aliases string
	var publishedAt *time.Time

	err := row.Scan(&e.ID, &e.Name, &aliases, &e.Country, &e.Category,
		&e.Description, &e.SourceURL, &publishedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Aliases = model.SplitAliases(aliases)
	if publishedAt != nil {
		e.PublishedAt = *publishedAt
	}
	return &e, nil
}

func scanSyncPgx(row pgxScannable) (*SyncRecord, error) {
	var rec SyncRecord
	var errText *string
	err := row.Scan(&rec.ID, &rec.Source, &rec.Status, &rec.Entities,
		&rec.Version, &errText, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		return nil, err
	}
	if errText != nil {
		rec.Error = *errText
	}
	return &rec, nil
}

func entityColumnList() []string {
	return []string{"id", "name", "aliases", "country", "category", "description", "source_url", "published_at", "updated_at"}
}

func entityRows(entities []*model.ReferenceEntity) [][]any {
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		var publishedAt *time.Time
		if !e.PublishedAt.IsZero() {
			t := e.PublishedAt
			publishedAt = &t
		}
		updatedAt := e.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		rows = append(rows, []any{
			e.ID, e.Name, e.AliasList(), e.Country, e.Category,
			e.Description, e.SourceURL, publishedAt, updatedAt,
		})
	}
	return rows
}
