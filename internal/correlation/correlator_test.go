package correlation

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elchacal801/sentinel/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestCorrelateIndicators tests value-based indicator clustering.
func TestCorrelateIndicators(t *testing.T) {
	c := New(24, testLogger())

	t.Run("same value from two disciplines forms one cluster", func(t *testing.T) {
		indicators := []model.Indicator{
			{
				ID: "ind-1", Type: model.IndicatorIP, Value: "198.51.100.7",
				SourceType: model.SourceOSINT,
				FirstSeen:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
				LastSeen:   time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			},
			{
				ID: "ind-2", Type: model.IndicatorIP, Value: "198.51.100.7",
				SourceType:  model.SourceSIGINT,
				ThreatActor: "APT-29",
				FirstSeen:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
				LastSeen:    time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
			},
			{ID: "ind-3", Type: model.IndicatorDomain, Value: "lonely.example.com"},
		}

		clusters := c.CorrelateIndicators(indicators)
		require.Len(t, clusters, 1)

		cluster := clusters[0]
		assert.Equal(t, "198.51.100.7", cluster.Value)
		assert.Equal(t, 2, cluster.OccurrenceCount)
		assert.Equal(t, []string{"APT-29"}, cluster.ThreatActors)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), cluster.FirstSeen)
		assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), cluster.LastSeen)

		// osint primary 0.75, sigint adds 0.825*0.15, diversity +0.05
		assert.InDelta(t, 0.92375, cluster.Confidence, 1e-9)
		assert.Equal(t, "high", cluster.ConfidenceLabel)
	})

	t.Run("value matching is case insensitive", func(t *testing.T) {
		indicators := []model.Indicator{
			{ID: "a", Type: model.IndicatorDomain, Value: "Evil.Example.COM", SourceType: model.SourceOSINT},
			{ID: "b", Type: model.IndicatorDomain, Value: "evil.example.com", SourceType: model.SourceCYBINT},
		}
		clusters := c.CorrelateIndicators(indicators)
		require.Len(t, clusters, 1)
		assert.Equal(t, "evil.example.com", clusters[0].Value)
	})

	t.Run("singletons are dropped", func(t *testing.T) {
		indicators := []model.Indicator{
			{ID: "a", Value: "one.example.com", SourceType: model.SourceOSINT},
			{ID: "b", Value: "two.example.com", SourceType: model.SourceOSINT},
		}
		assert.Empty(t, c.CorrelateIndicators(indicators))
	})

	t.Run("clusters sorted by confidence descending", func(t *testing.T) {
		indicators := []model.Indicator{
			{ID: "a1", Value: "weak.example.com", SourceType: model.SourceHUMINT},
			{ID: "a2", Value: "weak.example.com", SourceType: model.SourceHUMINT},
			{ID: "b1", Value: "strong.example.com", SourceType: model.SourceCYBINT},
			{ID: "b2", Value: "strong.example.com", SourceType: model.SourceSIGINT},
		}
		clusters := c.CorrelateIndicators(indicators)
		require.Len(t, clusters, 2)
		assert.Equal(t, "strong.example.com", clusters[0].Value)
		assert.Greater(t, clusters[0].Confidence, clusters[1].Confidence)
	})
}

// TestCorrelateVulnerabilitiesWithThreats tests CVE cross-referencing.
func TestCorrelateVulnerabilitiesWithThreats(t *testing.T) {
	c := New(24, testLogger())

	vulns := []model.Vulnerability{
		{ID: "CVE-2024-1234", CVSSScore: 9.8, Severity: "critical"},
		{ID: "CVE-2024-9999", CVSSScore: 5.0, Severity: "medium"},
		{ID: "misconfig-001", CVSSScore: 7.0, Severity: "high"},
	}

	t.Run("explicit cve id match", func(t *testing.T) {
		threats := []model.ThreatRecord{
			{ID: "t1", CVEIDs: []string{"CVE-2024-1234"}, ActiveExploitation: true, ThreatActor: "FIN7"},
		}
		correlations := c.CorrelateVulnerabilitiesWithThreats(vulns, threats)
		require.Len(t, correlations, 1)

		corr := correlations[0]
		assert.Equal(t, "CVE-2024-1234", corr.CVEID)
		assert.Equal(t, 1, corr.ThreatIntelCount)
		assert.True(t, corr.ActiveExploitation)
		assert.Equal(t, 2.5, corr.RiskMultiplier)
		assert.Equal(t, []string{"FIN7"}, corr.ThreatActors)
		assert.Equal(t, "URGENT: Patch immediately", corr.Recommendation)
	})

	t.Run("description substring match", func(t *testing.T) {
		threats := []model.ThreatRecord{
			{ID: "t1", Description: "Campaign exploiting cve-2024-9999 in the wild"},
		}
		correlations := c.CorrelateVulnerabilitiesWithThreats(vulns, threats)
		require.Len(t, correlations, 1)
		assert.Equal(t, "CVE-2024-9999", correlations[0].CVEID)
		assert.Equal(t, 1.0, correlations[0].RiskMultiplier)
	})

	t.Run("non-cve vulnerabilities are skipped", func(t *testing.T) {
		threats := []model.ThreatRecord{
			{ID: "t1", Description: "mentions misconfig-001 directly"},
		}
		assert.Empty(t, c.CorrelateVulnerabilitiesWithThreats(vulns, threats))
	})

	t.Run("unmentioned cves are excluded", func(t *testing.T) {
		threats := []model.ThreatRecord{
			{ID: "t1", CVEIDs: []string{"CVE-2020-0001"}},
		}
		assert.Empty(t, c.CorrelateVulnerabilitiesWithThreats(vulns, threats))
	})
}

// TestTemporalCorrelation tests window-based event clustering.
func TestTemporalCorrelation(t *testing.T) {
	c := New(24, testLogger())
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("events inside window cluster together", func(t *testing.T) {
		events := []model.Event{
			{ID: "e1", Timestamp: base, SourceType: model.SourceOSINT},
			{ID: "e2", Timestamp: base.Add(2 * time.Hour), SourceType: model.SourceSIGINT},
			{ID: "e3", Timestamp: base.Add(20 * time.Hour), SourceType: model.SourceOSINT},
			{ID: "e4", Timestamp: base.Add(23 * time.Hour), SourceType: model.SourceCYBINT},
			{ID: "e5", Timestamp: base.Add(80 * time.Hour), SourceType: model.SourceOSINT},
		}

		clusters := c.TemporalCorrelation(events, 24)
		require.Len(t, clusters, 1)

		cluster := clusters[0]
		assert.Equal(t, "temporal-cluster-1", cluster.ClusterID)
		assert.Equal(t, 4, cluster.EventCount)
		assert.Equal(t, 23.0, cluster.TimeSpanHours)
		assert.Equal(t, base, cluster.StartTime)
		assert.Equal(t, base.Add(23*time.Hour), cluster.EndTime)
	})

	t.Run("window anchors to cluster start", func(t *testing.T) {
		// Each event is 20h from the previous but e3 is 40h from cluster start.
		events := []model.Event{
			{ID: "e1", Timestamp: base},
			{ID: "e2", Timestamp: base.Add(20 * time.Hour)},
			{ID: "e3", Timestamp: base.Add(40 * time.Hour)},
			{ID: "e4", Timestamp: base.Add(41 * time.Hour)},
		}
		clusters := c.TemporalCorrelation(events, 24)
		require.Len(t, clusters, 2)
		assert.Equal(t, 2, clusters[0].EventCount)
		assert.Equal(t, 2, clusters[1].EventCount)
	})

	t.Run("zero timestamps are skipped", func(t *testing.T) {
		events := []model.Event{
			{ID: "e1"},
			{ID: "e2", Timestamp: base},
			{ID: "e3", Timestamp: base.Add(time.Hour)},
		}
		clusters := c.TemporalCorrelation(events, 24)
		require.Len(t, clusters, 1)
		assert.Equal(t, 2, clusters[0].EventCount)
	})

	t.Run("unsorted input is handled", func(t *testing.T) {
		events := []model.Event{
			{ID: "e2", Timestamp: base.Add(2 * time.Hour)},
			{ID: "e1", Timestamp: base},
		}
		clusters := c.TemporalCorrelation(events, 24)
		require.Len(t, clusters, 1)
		assert.Equal(t, base, clusters[0].StartTime)
	})
}

// TestSpatialCorrelation tests location-based entity grouping.
func TestSpatialCorrelation(t *testing.T) {
	c := New(24, testLogger())

	t.Run("locations with more than two entities cluster", func(t *testing.T) {
		entities := []model.SpatialEntity{
			{ID: "a", Type: "server", Country: "DE"},
			{ID: "b", Type: "server", Country: "DE"},
			{ID: "c", Type: "workstation", Country: "DE"},
			{ID: "d", Type: "server", Country: "FR"},
			{ID: "e", Type: "server", Country: "FR"},
		}
		clusters := c.SpatialCorrelation(entities)
		require.Len(t, clusters, 1)

		cluster := clusters[0]
		assert.Equal(t, "DE", cluster.Location)
		assert.Equal(t, 3, cluster.EntityCount)
		assert.Equal(t, []string{"server", "workstation"}, cluster.EntityTypes)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, cluster.EntityIDs)
	})

	t.Run("entities without a location are skipped", func(t *testing.T) {
		entities := []model.SpatialEntity{
			{ID: "a"}, {ID: "b"}, {ID: "c"},
		}
		assert.Empty(t, c.SpatialCorrelation(entities))
	})
}

// TestIdentifyCampaigns tests promotion of indicator clusters to campaigns.
func TestIdentifyCampaigns(t *testing.T) {
	c := New(24, testLogger())

	strong := IndicatorCluster{
		Value:           "c2.example.com",
		Type:            model.IndicatorDomain,
		OccurrenceCount: 2,
		Confidence:      0.9,
		ThreatActors:    []string{"APT-29"},
	}
	weak := IndicatorCluster{
		Value:           "noise.example.com",
		OccurrenceCount: 10,
		Confidence:      0.5,
	}

	temporal := []TemporalCluster{
		{
			ClusterID:  "temporal-cluster-1",
			EventCount: 3,
			Events: []model.Event{
				{ID: "e1", Summary: "beacon to c2.example.com observed"},
			},
		},
	}

	t.Run("related temporal activity promotes cluster", func(t *testing.T) {
		campaigns := c.IdentifyCampaigns([]IndicatorCluster{strong}, temporal)
		require.Len(t, campaigns, 1)

		campaign := campaigns[0]
		assert.Equal(t, "campaign-1", campaign.CampaignID)
		assert.Equal(t, "c2.example.com", campaign.IOC)
		assert.Equal(t, 1, campaign.TemporalClusters)
		assert.Equal(t, 3, campaign.TotalEvents)
		assert.InDelta(t, 0.99, campaign.Confidence, 1e-9)
	})

	t.Run("confidence below 0.7 never promotes", func(t *testing.T) {
		assert.Empty(t, c.IdentifyCampaigns([]IndicatorCluster{weak}, temporal))
	})

	t.Run("broad recurrence promotes without temporal support", func(t *testing.T) {
		recurrent := strong
		recurrent.Value = "spread.example.com"
		recurrent.OccurrenceCount = 4
		campaigns := c.IdentifyCampaigns([]IndicatorCluster{recurrent}, nil)
		require.Len(t, campaigns, 1)
		assert.Equal(t, 0, campaigns[0].TemporalClusters)
	})

	t.Run("strong but isolated cluster is not promoted", func(t *testing.T) {
		isolated := strong
		isolated.Value = "quiet.example.com"
		isolated.OccurrenceCount = 2
		assert.Empty(t, c.IdentifyCampaigns([]IndicatorCluster{isolated}, nil))
	})

	t.Run("confidence boost caps at 1.0", func(t *testing.T) {
		maxed := strong
		maxed.Confidence = 0.95
		campaigns := c.IdentifyCampaigns([]IndicatorCluster{maxed}, temporal)
		require.Len(t, campaigns, 1)
		assert.Equal(t, 1.0, campaigns[0].Confidence)
	})
}
