package dataset

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chainreactions/screener/internal/model"
	"github.com/chainreactions/screener/internal/resilience"
)

// Snapshot pairs a full entity load with the version it was read at.
type Snapshot struct {
	Entities []*model.ReferenceEntity
	Version  int64
}

// Load reads the whole dataset plus its version, retrying on transient
// store errors. The version is read before and after the scan; if it
// moved mid-read the snapshot is inconsistent and the load retries.
func Load(ctx context.Context, r Reader) (*Snapshot, error) {
	pol := resilience.DefaultPolicy()
	pol.OnRetry = resilience.RetryLogger("dataset", "load")

	snap, err := resilience.DoVal(ctx, pol, func(ctx context.Context) (*Snapshot, error) {
		before, err := r.Version(ctx)
		if err != nil {
			return nil, err
		}
		entities, err := r.AllEntities(ctx)
		if err != nil {
			return nil, err
		}
		after, err := r.Version(ctx)
		if err != nil {
			return nil, err
		}
		if after != before {
			return nil, resilience.MarkTransient(
				eris.Errorf("dataset: version moved during load (%d -> %d)", before, after))
		}
		return &Snapshot{Entities: entities, Version: after}, nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("dataset: loaded",
		zap.Int("entities", len(snap.Entities)),
		zap.Int64("version", snap.Version),
	)
	return snap, nil
}
