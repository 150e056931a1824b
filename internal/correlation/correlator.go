// Package correlation fuses indicators, vulnerabilities, and events from
// multiple intelligence sources into confidence-scored clusters and
// campaigns.
package correlation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/elchacal801/sentinel/internal/confidence"
	"github.com/elchacal801/sentinel/internal/model"
)

// DefaultWindowHours is the default temporal correlation window.
const DefaultWindowHours = 24

// IndicatorCluster is a group of indicators sharing the same normalized
// value, observed by more than one source.
type IndicatorCluster struct {
	Value           string              `json:"ioc_value"`
	Type            model.IndicatorType `json:"ioc_type"`
	OccurrenceCount int                 `json:"occurrence_count"`
	Sources         []model.SourceType  `json:"sources"`
	Confidence      float64             `json:"confidence"`
	ConfidenceLabel string              `json:"confidence_label"`
	ThreatActors    []string            `json:"threat_actors"`
	MalwareFamilies []string            `json:"malware_families"`
	Tags            []string            `json:"tags"`
	FirstSeen       time.Time           `json:"first_seen"`
	LastSeen        time.Time           `json:"last_seen"`
}

// VulnThreatCorrelation links a CVE-shaped vulnerability to the threat
// records that mention it.
type VulnThreatCorrelation struct {
	CVEID              string   `json:"cve_id"`
	CVSSScore          float64  `json:"cvss_score"`
	Severity           string   `json:"severity"`
	ThreatIntelCount   int      `json:"threat_intelligence"`
	ActiveExploitation bool     `json:"active_exploitation"`
	ThreatActors       []string `json:"threat_actors"`
	Confidence         float64  `json:"confidence"`
	ConfidenceLabel    string   `json:"confidence_label"`
	RiskMultiplier     float64  `json:"risk_multiplier"`
	Recommendation     string   `json:"recommendation"`
}

// TemporalCluster is a set of events falling within one correlation window.
type TemporalCluster struct {
	ClusterID       string             `json:"cluster_id"`
	EventCount      int                `json:"event_count"`
	TimeSpanHours   float64            `json:"time_span_hours"`
	StartTime       time.Time          `json:"start_time"`
	EndTime         time.Time          `json:"end_time"`
	Sources         []model.SourceType `json:"sources"`
	Confidence      float64            `json:"confidence"`
	ConfidenceLabel string             `json:"confidence_label"`
	Events          []model.Event      `json:"events"`
	Analysis        string             `json:"analysis"`
}

// SpatialCluster is a set of entities sharing a geographic location.
type SpatialCluster struct {
	Location        string   `json:"location"`
	EntityCount     int      `json:"entity_count"`
	EntityTypes     []string `json:"entity_types"`
	Confidence      float64  `json:"confidence"`
	ConfidenceLabel string   `json:"confidence_label"`
	EntityIDs       []string `json:"entities"`
	Analysis        string   `json:"analysis"`
}

// Campaign is a strong indicator cluster promoted by corroborating temporal
// activity.
type Campaign struct {
	CampaignID       string              `json:"campaign_id"`
	IOC              string              `json:"ioc"`
	IOCType          model.IndicatorType `json:"ioc_type"`
	ThreatActors     []string            `json:"threat_actors"`
	MalwareFamilies  []string            `json:"malware_families"`
	TemporalClusters int                 `json:"temporal_clusters"`
	TotalEvents      int                 `json:"total_events"`
	Confidence       float64             `json:"confidence"`
	ConfidenceLabel  string              `json:"confidence_label"`
	FirstObserved    time.Time           `json:"first_observed"`
	LastObserved     time.Time           `json:"last_observed"`
	Assessment       string              `json:"assessment"`
}

// Correlator groups raw intelligence into confidence-scored clusters. It is
// stateless and safe for concurrent use.
type Correlator struct {
	temporalWindow time.Duration
	logger         *slog.Logger
}

// New creates a Correlator with the given default temporal window.
func New(windowHours int, logger *slog.Logger) *Correlator {
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	return &Correlator{
		temporalWindow: time.Duration(windowHours) * time.Hour,
		logger:         logger.With("component", "correlator"),
	}
}

// CorrelateIndicators clusters indicators by case-normalized value and
// scores corroboration across their sources. Singleton values are dropped.
// Output is sorted by confidence descending.
func (c *Correlator) CorrelateIndicators(indicators []model.Indicator) []IndicatorCluster {
	c.logger.Info("correlating indicators", "count", len(indicators))

	groups := make(map[string][]model.Indicator)
	var order []string
	for _, ind := range indicators {
		value := strings.ToLower(strings.TrimSpace(ind.Value))
		if value == "" {
			continue
		}
		if _, seen := groups[value]; !seen {
			order = append(order, value)
		}
		groups[value] = append(groups[value], ind)
	}

	clusters := make([]IndicatorCluster, 0)
	for _, value := range order {
		group := groups[value]
		if len(group) < 2 {
			continue
		}

		sources := make([]model.Source, 0, len(group))
		sourceTypes := make([]model.SourceType, 0, len(group))
		actors := newStringSet()
		families := newStringSet()
		tags := newStringSet()

		firstSeen := group[0].FirstSeen
		lastSeen := group[0].LastSeen
		for _, ind := range group {
			sources = append(sources, indicatorSources(ind)...)
			sourceTypes = append(sourceTypes, indicatorSourceType(ind))
			if ind.ThreatActor != "" {
				actors.add(ind.ThreatActor)
			}
			if ind.MalwareFamily != "" {
				families.add(ind.MalwareFamily)
			}
			for _, tag := range ind.Tags {
				tags.add(tag)
			}
			if ind.FirstSeen.Before(firstSeen) {
				firstSeen = ind.FirstSeen
			}
			if ind.LastSeen.After(lastSeen) {
				lastSeen = ind.LastSeen
			}
		}

		conf := confidence.MultiSourceConfidence(sources)
		clusters = append(clusters, IndicatorCluster{
			Value:           value,
			Type:            group[0].Type,
			OccurrenceCount: len(group),
			Sources:         sourceTypes,
			Confidence:      conf,
			ConfidenceLabel: confidence.Label(conf),
			ThreatActors:    actors.sorted(),
			MalwareFamilies: families.sorted(),
			Tags:            tags.sorted(),
			FirstSeen:       firstSeen,
			LastSeen:        lastSeen,
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Confidence != clusters[j].Confidence {
			return clusters[i].Confidence > clusters[j].Confidence
		}
		return clusters[i].Value < clusters[j].Value
	})

	c.logger.Info("indicator correlation complete", "clusters", len(clusters))
	return clusters
}

// CorrelateVulnerabilitiesWithThreats cross-references CVE-shaped
// vulnerabilities against threat records that list the id explicitly or
// mention it in their description text. The substring match is deliberately
// loose; it can false-positive when an id collides with unrelated text.
// Output is sorted by (confidence, cvss) descending.
func (c *Correlator) CorrelateVulnerabilitiesWithThreats(vulns []model.Vulnerability, threats []model.ThreatRecord) []VulnThreatCorrelation {
	c.logger.Info("correlating vulnerabilities with threat intel",
		"vulnerabilities", len(vulns), "threat_records", len(threats))

	correlations := make([]VulnThreatCorrelation, 0)
	for _, vuln := range vulns {
		if !vuln.IsCVE() {
			continue
		}

		var related []model.ThreatRecord
		for _, threat := range threats {
			if threatMentionsCVE(threat, vuln.ID) {
				related = append(related, threat)
			}
		}
		if len(related) == 0 {
			continue
		}

		// CVE data itself counts as a cybint source.
		sources := []model.Source{{Type: model.SourceCYBINT, Reputation: 0.9}}
		active := false
		actors := newStringSet()
		for _, threat := range related {
			st := threat.SourceType
			if st == "" {
				st = model.SourceOSINT
			}
			sources = append(sources, model.Source{Type: st, Reputation: confidence.DefaultReputation})
			if threat.ActiveExploitation {
				active = true
			}
			if threat.ThreatActor != "" {
				actors.add(threat.ThreatActor)
			}
		}

		conf := confidence.MultiSourceConfidence(sources)
		multiplier := 1.0
		if active {
			multiplier = 2.5
		}
		recommendation := "Prioritize patching"
		if conf > 0.8 {
			recommendation = "URGENT: Patch immediately"
		}

		correlations = append(correlations, VulnThreatCorrelation{
			CVEID:              vuln.ID,
			CVSSScore:          vuln.CVSSScore,
			Severity:           vuln.Severity,
			ThreatIntelCount:   len(related),
			ActiveExploitation: active,
			ThreatActors:       actors.sorted(),
			Confidence:         conf,
			ConfidenceLabel:    confidence.Label(conf),
			RiskMultiplier:     multiplier,
			Recommendation:     recommendation,
		})
	}

	sort.SliceStable(correlations, func(i, j int) bool {
		if correlations[i].Confidence != correlations[j].Confidence {
			return correlations[i].Confidence > correlations[j].Confidence
		}
		return correlations[i].CVSSScore > correlations[j].CVSSScore
	})

	c.logger.Info("vulnerability-threat correlation complete", "correlations", len(correlations))
	return correlations
}

// TemporalCorrelation clusters events whose timestamps fall within the
// window of the cluster's first event. The window anchors to cluster start,
// not the previous event. Singleton clusters are dropped; events without a
// timestamp are skipped.
func (c *Correlator) TemporalCorrelation(events []model.Event, windowHours int) []TemporalCluster {
	window := c.temporalWindow
	if windowHours > 0 {
		window = time.Duration(windowHours) * time.Hour
	}
	c.logger.Info("performing temporal correlation",
		"events", len(events), "window_hours", window.Hours())

	timed := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			continue
		}
		timed = append(timed, ev)
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Timestamp.Before(timed[j].Timestamp)
	})

	var groups [][]model.Event
	var current []model.Event
	var clusterStart time.Time
	for _, ev := range timed {
		if len(current) == 0 {
			current = []model.Event{ev}
			clusterStart = ev.Timestamp
			continue
		}
		if ev.Timestamp.Sub(clusterStart) <= window {
			current = append(current, ev)
		} else {
			if len(current) > 1 {
				groups = append(groups, current)
			}
			current = []model.Event{ev}
			clusterStart = ev.Timestamp
		}
	}
	if len(current) > 1 {
		groups = append(groups, current)
	}

	clusters := make([]TemporalCluster, 0, len(groups))
	for idx, group := range groups {
		sources := make([]model.Source, 0, len(group))
		for _, ev := range group {
			st := ev.SourceType
			if st == "" {
				st = model.SourceOSINT
			}
			sources = append(sources, model.Source{Type: st, Reputation: confidence.DefaultReputation})
		}
		conf := confidence.MultiSourceConfidence(sources)

		start := group[0].Timestamp
		end := group[len(group)-1].Timestamp
		clusters = append(clusters, TemporalCluster{
			ClusterID:       fmt.Sprintf("temporal-cluster-%d", idx+1),
			EventCount:      len(group),
			TimeSpanHours:   end.Sub(start).Hours(),
			StartTime:       start,
			EndTime:         end,
			Sources:         distinctSourceTypes(group),
			Confidence:      conf,
			ConfidenceLabel: confidence.Label(conf),
			Events:          group,
			Analysis:        fmt.Sprintf("Detected %d related events within %gh window", len(group), window.Hours()),
		})
	}

	c.logger.Info("temporal correlation complete", "clusters", len(clusters))
	return clusters
}

// SpatialCorrelation groups entities by resolved location and reports
// locations with more than two entities, sorted by member count descending.
func (c *Correlator) SpatialCorrelation(entities []model.SpatialEntity) []SpatialCluster {
	c.logger.Info("performing spatial correlation", "entities", len(entities))

	groups := make(map[string][]model.SpatialEntity)
	var order []string
	for _, e := range entities {
		loc := e.BestLocation()
		if loc == "" {
			continue
		}
		if _, seen := groups[loc]; !seen {
			order = append(order, loc)
		}
		groups[loc] = append(groups[loc], e)
	}

	clusters := make([]SpatialCluster, 0)
	for _, loc := range order {
		group := groups[loc]
		if len(group) <= 2 {
			continue
		}

		sources := make([]model.Source, 0, len(group))
		types := newStringSet()
		ids := make([]string, 0, len(group))
		for _, e := range group {
			st := e.SourceType
			if st == "" {
				st = model.SourceGEOINT
			}
			sources = append(sources, model.Source{Type: st, Reputation: confidence.DefaultReputation})
			if e.Type != "" {
				types.add(e.Type)
			}
			ids = append(ids, e.ID)
		}
		conf := confidence.MultiSourceConfidence(sources)

		clusters = append(clusters, SpatialCluster{
			Location:        loc,
			EntityCount:     len(group),
			EntityTypes:     types.sorted(),
			Confidence:      conf,
			ConfidenceLabel: confidence.Label(conf),
			EntityIDs:       ids,
			Analysis:        fmt.Sprintf("Detected %d entities clustered in %s", len(group), loc),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].EntityCount != clusters[j].EntityCount {
			return clusters[i].EntityCount > clusters[j].EntityCount
		}
		return clusters[i].Location < clusters[j].Location
	})

	c.logger.Info("spatial correlation complete", "clusters", len(clusters))
	return clusters
}

// IdentifyCampaigns promotes strong indicator clusters to campaigns when
// temporal clusters reference the indicator value or the indicator recurs
// broadly. Campaign confidence is boosted 10%, capped at 1.0.
func (c *Correlator) IdentifyCampaigns(iocClusters []IndicatorCluster, temporalClusters []TemporalCluster) []Campaign {
	c.logger.Info("identifying threat campaigns",
		"ioc_clusters", len(iocClusters), "temporal_clusters", len(temporalClusters))

	campaigns := make([]Campaign, 0)
	for _, cluster := range iocClusters {
		if cluster.Confidence < 0.7 {
			continue
		}

		var related []TemporalCluster
		for _, tc := range temporalClusters {
			for _, ev := range tc.Events {
				if eventMentions(ev, cluster.Value) {
					related = append(related, tc)
					break
				}
			}
		}

		if len(related) == 0 && cluster.OccurrenceCount <= 3 {
			continue
		}

		totalEvents := 0
		for _, tc := range related {
			totalEvents += tc.EventCount
		}
		conf := cluster.Confidence * 1.1
		if conf > 1.0 {
			conf = 1.0
		}

		campaigns = append(campaigns, Campaign{
			CampaignID:       fmt.Sprintf("campaign-%d", len(campaigns)+1),
			IOC:              cluster.Value,
			IOCType:          cluster.Type,
			ThreatActors:     cluster.ThreatActors,
			MalwareFamilies:  cluster.MalwareFamilies,
			TemporalClusters: len(related),
			TotalEvents:      totalEvents,
			Confidence:       conf,
			ConfidenceLabel:  confidence.Label(conf),
			FirstObserved:    cluster.FirstSeen,
			LastObserved:     cluster.LastSeen,
			Assessment:       "Coordinated threat campaign detected based on correlated indicators and temporal patterns",
		})
	}

	sort.SliceStable(campaigns, func(i, j int) bool {
		if campaigns[i].Confidence != campaigns[j].Confidence {
			return campaigns[i].Confidence > campaigns[j].Confidence
		}
		return campaigns[i].IOC < campaigns[j].IOC
	})

	c.logger.Info("campaign identification complete", "campaigns", len(campaigns))
	return campaigns
}

// indicatorSources returns the sources contributed by one indicator,
// defaulting reputation when unset.
func indicatorSources(ind model.Indicator) []model.Source {
	if len(ind.Sources) == 0 {
		return []model.Source{{Type: indicatorSourceType(ind), Reputation: confidence.DefaultReputation}}
	}
	sources := make([]model.Source, 0, len(ind.Sources))
	for _, s := range ind.Sources {
		if s.Reputation == 0 {
			s.Reputation = confidence.DefaultReputation
		}
		sources = append(sources, s)
	}
	return sources
}

func indicatorSourceType(ind model.Indicator) model.SourceType {
	if len(ind.Sources) > 0 {
		return ind.Sources[0].Type
	}
	if ind.SourceType != "" {
		return ind.SourceType
	}
	return model.SourceOSINT
}

func threatMentionsCVE(threat model.ThreatRecord, cveID string) bool {
	for _, id := range threat.CVEIDs {
		if strings.EqualFold(id, cveID) {
			return true
		}
	}
	return strings.Contains(strings.ToUpper(threat.Description), strings.ToUpper(cveID))
}

func eventMentions(ev model.Event, value string) bool {
	needle := strings.ToLower(value)
	if strings.Contains(strings.ToLower(ev.ID), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(ev.Summary), needle) {
		return true
	}
	for _, v := range ev.Fields {
		if strings.Contains(strings.ToLower(fmt.Sprintf("%v", v)), needle) {
			return true
		}
	}
	return false
}

func distinctSourceTypes(events []model.Event) []model.SourceType {
	seen := make(map[model.SourceType]bool)
	var out []model.SourceType
	for _, ev := range events {
		st := ev.SourceType
		if st == "" || seen[st] {
			continue
		}
		seen[st] = true
		out = append(out, st)
	}
	return out
}

// stringSet collects unique strings with sorted output.
type stringSet map[string]bool

func newStringSet() stringSet { return make(stringSet) }

func (s stringSet) add(v string) { s[v] = true }

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
