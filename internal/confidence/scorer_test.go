package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/elchacal801/sentinel/internal/model"
)

// TestSourceConfidence tests single source scoring.
func TestSourceConfidence(t *testing.T) {
	t.Run("known source types", func(t *testing.T) {
		assert.InDelta(t, 0.75, SourceConfidence(model.SourceOSINT, 0.8), 1e-9)
		assert.InDelta(t, 0.825, SourceConfidence(model.SourceSIGINT, 0.8), 1e-9)
		assert.InDelta(t, 0.85, SourceConfidence(model.SourceCYBINT, 0.8), 1e-9)
		assert.InDelta(t, 0.80, SourceConfidence(model.SourceGEOINT, 0.8), 1e-9)
		assert.InDelta(t, 0.70, SourceConfidence(model.SourceHUMINT, 0.8), 1e-9)
	})

	t.Run("unknown source type falls back to neutral base", func(t *testing.T) {
		assert.InDelta(t, 0.65, SourceConfidence("carrier_pigeon", 0.8), 1e-9)
	})

	t.Run("source type matching is case insensitive", func(t *testing.T) {
		assert.Equal(t,
			SourceConfidence(model.SourceOSINT, 0.6),
			SourceConfidence("OSINT", 0.6))
	})
}

// TestMultiSourceConfidence tests corroboration scoring.
func TestMultiSourceConfidence(t *testing.T) {
	t.Run("empty sources", func(t *testing.T) {
		assert.Equal(t, 0.0, MultiSourceConfidence(nil))
	})

	t.Run("single source equals SourceConfidence", func(t *testing.T) {
		src := model.Source{Type: model.SourceSIGINT, Reputation: 0.9}
		assert.Equal(t,
			SourceConfidence(src.Type, src.Reputation),
			MultiSourceConfidence([]model.Source{src}))
	})

	t.Run("differing type adds 15 percent plus diversity bonus", func(t *testing.T) {
		sources := []model.Source{
			{Type: model.SourceOSINT, Reputation: 0.8},  // 0.75 primary
			{Type: model.SourceSIGINT, Reputation: 0.8}, // +0.825*0.15
		}
		// 0.75 + 0.12375 + 0.05 diversity
		assert.InDelta(t, 0.92375, MultiSourceConfidence(sources), 1e-9)
	})

	t.Run("same type adds only 5 percent and no diversity bonus", func(t *testing.T) {
		sources := []model.Source{
			{Type: model.SourceOSINT, Reputation: 0.8},
			{Type: model.SourceOSINT, Reputation: 0.8},
		}
		// 0.75 + 0.75*0.05
		assert.InDelta(t, 0.7875, MultiSourceConfidence(sources), 1e-9)
	})

	t.Run("never exceeds 1.0", func(t *testing.T) {
		sources := []model.Source{
			{Type: model.SourceCYBINT, Reputation: 1.0},
			{Type: model.SourceSIGINT, Reputation: 1.0},
			{Type: model.SourceGEOINT, Reputation: 1.0},
			{Type: model.SourceOSINT, Reputation: 1.0},
			{Type: model.SourceHUMINT, Reputation: 1.0},
		}
		assert.LessOrEqual(t, MultiSourceConfidence(sources), 1.0)
	})
}

// TestTemporalConfidence tests age-based decay.
func TestTemporalConfidence(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("fresh observation", func(t *testing.T) {
		assert.Equal(t, 1.0, TemporalConfidence(now, now, 30))
	})

	t.Run("linear decay", func(t *testing.T) {
		observed := now.AddDate(0, 0, -15)
		assert.InDelta(t, 0.5, TemporalConfidence(observed, now, 30), 1e-9)
	})

	t.Run("floor at 0.1", func(t *testing.T) {
		observed := now.AddDate(0, 0, -365)
		assert.Equal(t, 0.1, TemporalConfidence(observed, now, 30))
	})

	t.Run("future observation scores 1.0", func(t *testing.T) {
		observed := now.AddDate(0, 0, 5)
		assert.Equal(t, 1.0, TemporalConfidence(observed, now, 30))
	})

	t.Run("mixed time zones compare in UTC", func(t *testing.T) {
		est := time.FixedZone("EST", -5*3600)
		observed := now.AddDate(0, 0, -15).In(est)
		assert.InDelta(t, 0.5, TemporalConfidence(observed, now, 30), 1e-9)
	})

	t.Run("non-positive decay uses default", func(t *testing.T) {
		observed := now.AddDate(0, 0, -15)
		assert.InDelta(t, 0.5, TemporalConfidence(observed, now, 0), 1e-9)
	})
}

// TestLabel tests the qualitative confidence bands.
func TestLabel(t *testing.T) {
	assert.Equal(t, "high", Label(0.8))
	assert.Equal(t, "high", Label(1.0))
	assert.Equal(t, "moderate", Label(0.5))
	assert.Equal(t, "moderate", Label(0.79))
	assert.Equal(t, "low", Label(0.2))
	assert.Equal(t, "low", Label(0.49))
	assert.Equal(t, "minimal", Label(0.19))
	assert.Equal(t, "minimal", Label(0.0))
}
