// Package collab defines the collaborator interfaces the analysis engines
// depend on for externally sourced context, plus bounded fan-out helpers
// for batch calls. Collaborator failures degrade results; they are never
// retried here and never block an analysis run.
package collab

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/elchacal801/sentinel/internal/model"
	pkgerrors "github.com/elchacal801/sentinel/pkg/errors"
)

// DefaultWorkerLimit bounds concurrent collaborator calls per batch.
const DefaultWorkerLimit = 8

// GraphQuerier resolves assets and the vulnerabilities attached to them.
type GraphQuerier interface {
	Asset(ctx context.Context, assetID string) (model.Asset, error)
	AssetVulnerabilities(ctx context.Context, assetID string) ([]model.Vulnerability, error)
}

// ThreatContextProvider supplies exploitation and targeting flags for a
// vulnerability, typically backed by external threat intelligence.
type ThreatContextProvider interface {
	ThreatContext(ctx context.Context, vuln model.Vulnerability) (model.ThreatContext, error)
}

// Enricher resolves geographic locations for spatial correlation.
type Enricher interface {
	Locate(ctx context.Context, entityID string) (model.SpatialEntity, error)
}

// BatchResult pairs one batch item's output with the error that produced
// it, keyed by the input it belongs to.
type BatchResult[T any] struct {
	Key   string
	Value T
	Err   error
}

// FanOut runs fn for every key with at most limit concurrent calls and
// returns one result per key, in input order. Individual failures are
// recorded as pkg/errors collaborator errors on their result; a failed
// item never cancels the rest of the batch.
func FanOut[T any](ctx context.Context, keys []string, limit int, name string, fn func(context.Context, string) (T, error)) []BatchResult[T] {
	if limit <= 0 {
		limit = DefaultWorkerLimit
	}

	results := make([]BatchResult[T], len(keys))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			value, err := fn(gctx, key)
			if err != nil {
				err = pkgerrors.Collaborator(err, name)
			}
			mu.Lock()
			results[i] = BatchResult[T]{Key: key, Value: value, Err: err}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// Successes filters a batch down to the values that succeeded, preserving
// order, and logs each failure at warn level.
func Successes[T any](logger *slog.Logger, results []BatchResult[T]) []T {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("collaborator call failed, excluding item",
				"key", r.Key, "error", r.Err)
			continue
		}
		values = append(values, r.Value)
	}
	return values
}
