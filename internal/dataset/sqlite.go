package dataset

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/chainreactions/screener/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reference_entities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	aliases      TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	published_at DATETIME,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reference_entities_name ON reference_entities(name);
CREATE INDEX IF NOT EXISTS idx_reference_entities_country ON reference_entities(country);
CREATE INDEX IF NOT EXISTS idx_reference_entities_category ON reference_entities(category);

CREATE TABLE IF NOT EXISTS dataset_meta (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_log (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL,
	entities    INTEGER NOT NULL DEFAULT 0,
	version     INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sync_log_source ON sync_log(source, started_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AllEntities(ctx context.Context) ([]*model.ReferenceEntity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM reference_entities ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all entities")
	}
	defer rows.Close()

	var entities []*model.ReferenceEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		entities = append(entities, e)
	}
	return entities, eris.Wrap(rows.Err(), "sqlite: all entities iterate")
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.ReferenceEntity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM reference_entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get entity %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, filter ListFilter) ([]model.ReferenceEntity, error) {
	query := `SELECT ` + entityColumns + ` FROM reference_entities WHERE 1=1`
	var args []any

	if filter.Country != "" {
		query += ` AND country = ?`
		args = append(args, filter.Country)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()

	var entities []model.ReferenceEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		entities = append(entities, *e)
	}
	return entities, eris.Wrap(rows.Err(), "sqlite: list entities iterate")
}

func (s *SQLiteStore) CountEntities(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_entities`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count entities")
}

func (s *SQLiteStore) UpsertEntities(ctx context.Context, entities []*model.ReferenceEntity) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO reference_entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, aliases = excluded.aliases, country = excluded.country,
		   category = excluded.category, description = excluded.description,
		   source_url = excluded.source_url, published_at = excluded.published_at,
		   updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert: prepare")
	}
	defer stmt.Close()

	var total int64
	for _, e := range entities {
		row := sqliteEntityArgs(e)
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert entity %s", e.ID)
		}
		total++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert: commit tx")
	}
	return total, nil
}

func (s *SQLiteStore) ReplaceEntities(ctx context.Context, entities []*model.ReferenceEntity) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reference_entities`); err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: clear table")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO reference_entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: prepare")
	}
	defer stmt.Close()

	var total int64
	for _, e := range entities {
		if _, err := stmt.ExecContext(ctx, sqliteEntityArgs(e)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: replace entity %s", e.ID)
		}
		total++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: commit tx")
	}
	return total, nil
}

func (s *SQLiteStore) DeleteEntity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reference_entities WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete entity %s", id)
	}
	return checkRowsAffected(res, "entity", id)
}

func (s *SQLiteStore) Version(ctx context.Context) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM dataset_meta WHERE key = 'version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: get version")
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: parse version %q", value)
	}
	return v, nil
}

func (s *SQLiteStore) BumpVersion(ctx context.Context) (int64, error) {
	current, err := s.Version(ctx)
	if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dataset_meta (key, value, updated_at) VALUES ('version', ?, datetime('now'))
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		strconv.FormatInt(next, 10),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bump version")
	}
	return next, nil
}

func (s *SQLiteStore) RecordSync(ctx context.Context, rec SyncRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	var errText any
	if rec.Error != "" {
		errText = rec.Error
	}
	var finishedAt any
	if rec.FinishedAt != nil {
		finishedAt = rec.FinishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (id, source, status, entities, version, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   status = excluded.status, entities = excluded.entities, version = excluded.version,
		   error = excluded.error, finished_at = excluded.finished_at`,
		rec.ID, rec.Source, rec.Status, rec.Entities, rec.Version, errText, rec.StartedAt.UTC(), finishedAt,
	)
	return eris.Wrap(err, "sqlite: record sync")
}

func (s *SQLiteStore) LastSync(ctx context.Context, source string) (*SyncRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, entities, version, error, started_at, finished_at
		 FROM sync_log WHERE source = ? ORDER BY started_at DESC LIMIT 1`,
		source,
	)
	rec, err := scanSync(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: last sync %s", source)
	}
	return rec, nil
}

func (s *SQLiteStore) ListSyncs(ctx context.Context, limit int) ([]SyncRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, status, entities, version, error, started_at, finished_at
		 FROM sync_log ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list syncs")
	}
	defer rows.Close()

	var recs []SyncRecord
	for rows.Next() {
		rec, err := scanSync(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list syncs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntity(row scannable) (*model.ReferenceEntity, error) {
	var e model.ReferenceEntity
	var aliases string
	var publishedAt sql.NullTime

	err := row.Scan(&e.ID, &e.Name, &aliases, &e.Country, &e.Category,
		&e.Description, &e.SourceURL, &publishedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Aliases = model.SplitAliases(aliases)
	if publishedAt.Valid {
		e.PublishedAt = publishedAt.Time
	}
	return &e, nil
}

func scanSync(row scannable) (*SyncRecord, error) {
	var rec SyncRecord
	var errText sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.Source, &rec.Status, &rec.Entities,
		&rec.Version, &errText, &rec.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if errText.Valid {
		rec.Error = errText.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return &rec, nil
}

func sqliteEntityArgs(e *model.ReferenceEntity) []any {
	var publishedAt any
	if !e.PublishedAt.IsZero() {
		publishedAt = e.PublishedAt.UTC()
	}
	updatedAt := e.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return []any{
		e.ID, e.Name, e.AliasList(), e.Country, e.Category,
		e.Description, e.SourceURL, publishedAt, updatedAt.UTC(),
	}
}
