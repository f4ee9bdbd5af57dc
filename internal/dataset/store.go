// Package dataset persists the watchlist reference entities the engine
// matches against, tracks the dataset version, and records import
// history. PostgreSQL backs shared deployments; SQLite backs local and
// single-node use.
package dataset

import (
	"context"
	"time"

	"github.com/chainreactions/screener/internal/model"
)

// ListFilter specifies criteria for listing reference entities.
type ListFilter struct {
	Country  string `json:"country,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// Sync statuses recorded in the import log.
const (
	SyncRunning  = "running"
	SyncComplete = "complete"
	SyncFailed   = "failed"
)

// SyncRecord is one row of the import history.
type SyncRecord struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	Entities   int        `json:"entities"`
	Version    int64      `json:"version"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Reader is the read-only view the matching engine sees. The engine
// never writes; imports and version bumps go through Store.
type Reader interface {
	AllEntities(ctx context.Context) ([]*model.ReferenceEntity, error)
	GetEntity(ctx context.Context, id string) (*model.ReferenceEntity, error)
	ListEntities(ctx context.Context, filter ListFilter) ([]model.ReferenceEntity, error)
	CountEntities(ctx context.Context) (int, error)
	Version(ctx context.Context) (int64, error)
}

// Store is the full persistence surface used by the importer and the
// dataset CLI commands.
type Store interface {
	Reader

	UpsertEntities(ctx context.Context, entities []*model.ReferenceEntity) (int64, error)
	ReplaceEntities(ctx context.Context, entities []*model.ReferenceEntity) (int64, error)
	DeleteEntity(ctx context.Context, id string) error
	BumpVersion(ctx context.Context) (int64, error)

	RecordSync(ctx context.Context, rec SyncRecord) error
	LastSync(ctx context.Context, source string) (*SyncRecord, error)
	ListSyncs(ctx context.Context, limit int) ([]SyncRecord, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
