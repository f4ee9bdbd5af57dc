package match

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainreactions/screener/internal/model"
)

// affiliatedBreakdownLimit caps the matches echoed per affiliate in the
// breakdown; the flattened list keeps everything.
const affiliatedBreakdownLimit = 5

// MatchBatch screens up to maxBatchSize queries concurrently. Results
// come back in input order; one item failing never aborts its siblings.
// When the context deadline expires, finished items are returned and
// pending ones carry a timeout error.
func (e *Engine) MatchBatch(ctx context.Context, queries []string, opts model.Options) (*model.BatchResult, error) {
	start := time.Now()

	if len(queries) == 0 {
		e.errCount.Add(1)
		return nil, NewInputError("batch is empty")
	}
	if len(queries) > maxBatchSize {
		e.errCount.Add(1)
		return nil, NewInputError("batch size %d exceeds limit %d", len(queries), maxBatchSize)
	}
	if err := validateOptions(opts); err != nil {
		e.errCount.Add(1)
		return nil, err
	}
	if e.snap.Load() == nil {
		e.errCount.Add(1)
		return nil, &DatasetUnavailableError{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	items := make([]model.BatchItem, len(queries))
	var succeeded, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Concurrency)
	for i, query := range queries {
		g.Go(func() error {
			res, err := e.match(ctx, query, "", opts)
			if err != nil {
				items[i] = model.BatchItem{Query: query, Error: err.Error()}
				failed.Add(1)
				return nil
			}
			items[i] = model.BatchItem{Query: query, Result: res}
			succeeded.Add(1)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // item errors are recorded per item

	e.batchCalls.Add(1)
	out := &model.BatchResult{
		Items:     items,
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		TookMS:    time.Since(start).Milliseconds(),
	}
	zap.L().Info("match: batch complete",
		zap.Int("queries", len(queries)),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
		zap.Int64("took_ms", out.TookMS),
	)
	return out, nil
}

// MatchAffiliated screens a primary organization plus its affiliated
// names. Affiliated confidences may be boosted by a multiplier to
// reflect corroboration through the primary; the boost is applied to
// copies after assessment and clamped to 1.
func (e *Engine) MatchAffiliated(ctx context.Context, primary string, affiliated []model.AffiliatedInput, opts model.Options) (*model.AffiliatedResult, error) {
	start := time.Now()

	if len(affiliated) > maxBatchSize {
		e.errCount.Add(1)
		return nil, NewInputError("affiliated size %d exceeds limit %d", len(affiliated), maxBatchSize)
	}
	if err := validateOptions(opts); err != nil {
		e.errCount.Add(1)
		return nil, err
	}
	if e.snap.Load() == nil {
		e.errCount.Add(1)
		return nil, &DatasetUnavailableError{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	direct, err := e.match(ctx, primary, "", opts)
	if err != nil {
		e.errCount.Add(1)
		return nil, err
	}

	boost := opts.AffiliatedBoost
	if boost <= 0 {
		boost = e.cfg.AffiliatedBoost
	}

	breakdown := make([]model.AffiliatedBreakdown, len(affiliated))
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Concurrency)
	for i, input := range affiliated {
		g.Go(func() error {
			b := model.AffiliatedBreakdown{CompanyName: input.CompanyName}
			res, err := e.match(ctx, input.CompanyName, "", opts)
			if err != nil {
				b.Error = err.Error()
				breakdown[i] = b
				return nil
			}
			matches := boostMatches(res.Matches, boost)
			b.HasMatches = len(matches) > 0
			b.MatchCount = len(matches)
			if len(matches) > 0 {
				b.TopConfidence = matches[0].Confidence
			}
			b.Matches = matches
			if len(b.Matches) > affiliatedBreakdownLimit {
				b.Matches = b.Matches[:affiliatedBreakdownLimit]
			}
			breakdown[i] = b
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	result := &model.AffiliatedResult{
		DirectMatches: direct,
		Breakdown:     breakdown,
	}
	for _, b := range breakdown {
		result.AffiliatedMatches = append(result.AffiliatedMatches, b.Matches...)
		result.Summary.TotalAffiliated++
		if b.HasMatches {
			result.Summary.WithMatches++
		}
		result.Summary.TotalMatches += b.MatchCount
		if b.TopConfidence > result.Summary.TopConfidence {
			result.Summary.TopConfidence = b.TopConfidence
		}
	}
	result.TookMS = time.Since(start).Milliseconds()

	e.affiliated.Add(1)
	zap.L().Info("match: affiliated complete",
		zap.String("primary", primary),
		zap.Int("affiliated", len(affiliated)),
		zap.Int("with_matches", result.Summary.WithMatches),
		zap.Int64("took_ms", result.TookMS),
	)
	return result, nil
}

// boostMatches scales confidences on copies. The input slice may come
// straight from the cache and must not be mutated.
func boostMatches(matches []model.ScoredMatch, boost float64) []model.ScoredMatch {
	if len(matches) == 0 {
		return nil
	}
	out := append([]model.ScoredMatch(nil), matches...)
	if boost <= 0 || boost == 1 {
		return out
	}
	for i := range out {
		c := out[i].Confidence * boost
		if c > 1 {
			c = 1
		}
		out[i].Confidence = c
	}
	return out
}
