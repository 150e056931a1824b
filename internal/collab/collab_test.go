package collab

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/elchacal801/sentinel/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestFanOut tests bounded batch fan-out.
func TestFanOut(t *testing.T) {
	t.Run("results keep input order", func(t *testing.T) {
		keys := []string{"a", "b", "c", "d"}
		results := FanOut(context.Background(), keys, 2, "graph",
			func(_ context.Context, key string) (string, error) {
				return key + "-value", nil
			})

		require.Len(t, results, 4)
		for i, key := range keys {
			assert.Equal(t, key, results[i].Key)
			assert.Equal(t, key+"-value", results[i].Value)
			assert.NoError(t, results[i].Err)
		}
	})

	t.Run("one failure never blocks the rest", func(t *testing.T) {
		keys := []string{"ok-1", "bad", "ok-2"}
		results := FanOut(context.Background(), keys, 2, "enricher",
			func(_ context.Context, key string) (int, error) {
				if key == "bad" {
					return 0, fmt.Errorf("lookup failed")
				}
				return 1, nil
			})

		require.Len(t, results, 3)
		assert.NoError(t, results[0].Err)
		assert.Error(t, results[1].Err)
		assert.NoError(t, results[2].Err)
	})

	t.Run("failures are wrapped as collaborator errors", func(t *testing.T) {
		results := FanOut(context.Background(), []string{"x"}, 1, "threat-intel",
			func(_ context.Context, _ string) (int, error) {
				return 0, fmt.Errorf("timeout")
			})

		require.Error(t, results[0].Err)
		assert.True(t, pkgerrors.Is(results[0].Err, pkgerrors.CodeCollaborator))
		assert.Contains(t, results[0].Err.Error(), "threat-intel")
	})

	t.Run("concurrency never exceeds the limit", func(t *testing.T) {
		var active, peak int64
		var mu sync.Mutex

		keys := make([]string, 20)
		for i := range keys {
			keys[i] = fmt.Sprintf("k%d", i)
		}

		FanOut(context.Background(), keys, 3, "graph",
			func(_ context.Context, _ string) (struct{}, error) {
				n := atomic.AddInt64(&active, 1)
				mu.Lock()
				if n > peak {
					peak = n
				}
				mu.Unlock()
				atomic.AddInt64(&active, -1)
				return struct{}{}, nil
			})

		assert.LessOrEqual(t, peak, int64(3))
	})

	t.Run("non-positive limit falls back to default", func(t *testing.T) {
		results := FanOut(context.Background(), []string{"a"}, 0, "graph",
			func(_ context.Context, key string) (string, error) {
				return key, nil
			})
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].Value)
	})
}

// TestSuccesses tests failure filtering.
func TestSuccesses(t *testing.T) {
	results := []BatchResult[int]{
		{Key: "a", Value: 1},
		{Key: "b", Err: fmt.Errorf("boom")},
		{Key: "c", Value: 3},
	}

	values := Successes(testLogger(), results)
	assert.Equal(t, []int{1, 3}, values)
}
