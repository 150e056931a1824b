// Command sentinel-analytics runs a batch intelligence analysis: it loads
// JSON snapshots named by a YAML request, runs the enabled engines over
// them, and writes a single JSON report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elchacal801/sentinel/internal/attackpath"
	"github.com/elchacal801/sentinel/internal/collab"
	"github.com/elchacal801/sentinel/internal/confidence"
	"github.com/elchacal801/sentinel/internal/config"
	"github.com/elchacal801/sentinel/internal/correlation"
	"github.com/elchacal801/sentinel/internal/model"
	"github.com/elchacal801/sentinel/internal/predictive"
	"github.com/elchacal801/sentinel/internal/risk"
	"github.com/elchacal801/sentinel/pkg/errors"
	"github.com/elchacal801/sentinel/pkg/logger"
)

// Report is the top level JSON report. Sections are present only when the
// corresponding analysis is enabled in the request.
type Report struct {
	RunID       string    `json:"run_id"`
	RequestName string    `json:"request_name"`
	GeneratedAt time.Time `json:"generated_at"`

	Confidence  []IndicatorConfidence `json:"confidence,omitempty"`
	Correlation *CorrelationSection   `json:"correlation,omitempty"`
	Risk        *RiskSection          `json:"risk,omitempty"`
	AttackPaths *AttackPathSection    `json:"attack_paths,omitempty"`
	Predictive  *PredictiveSection    `json:"predictive,omitempty"`
}

// IndicatorConfidence is one indicator's fused confidence score.
type IndicatorConfidence struct {
	IndicatorID string  `json:"indicator_id"`
	Value       string  `json:"value"`
	Confidence  float64 `json:"confidence"`
	Label       string  `json:"label"`
}

type CorrelationSection struct {
	IndicatorClusters []correlation.IndicatorCluster      `json:"indicator_clusters"`
	VulnThreats       []correlation.VulnThreatCorrelation `json:"vulnerability_threats,omitempty"`
	TemporalClusters  []correlation.TemporalCluster       `json:"temporal_clusters,omitempty"`
	SpatialClusters   []correlation.SpatialCluster        `json:"spatial_clusters,omitempty"`
	Campaigns         []correlation.Campaign              `json:"campaigns,omitempty"`
}

type RiskSection struct {
	AssetProfiles []risk.AssetProfile   `json:"asset_profiles"`
	Organization  risk.OrganizationRisk `json:"organization"`
}

type AttackPathSection struct {
	Paths         []attackpath.Analysis     `json:"paths"`
	CriticalNodes []attackpath.CriticalNode `json:"critical_nodes,omitempty"`
}

type PredictiveSection struct {
	VulnerabilityTrends *predictive.TrendReport        `json:"vulnerability_trends,omitempty"`
	Anomalies           []predictive.Anomaly           `json:"anomalies,omitempty"`
	AttackLikelihood    []predictive.AttackLikelihood  `json:"attack_likelihood,omitempty"`
	RiskTrajectory      *predictive.TrajectoryForecast `json:"risk_trajectory,omitempty"`
}

func main() {
	cfg := config.Load()
	log := logger.New(&logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	slog.SetDefault(log.Logger)

	runID := uuid.NewString()
	l := log.Logger.With("service", cfg.ServiceName, "run_id", runID)
	ctx := logger.ContextWithRunID(context.Background(), runID)

	requestPath := "analysis.yaml"
	if len(os.Args) > 1 {
		requestPath = os.Args[1]
	}

	req, err := config.NewRequestParser().ParseFile(requestPath)
	if err != nil {
		l.Error("failed to load analysis request", "path", requestPath, "error", err)
		os.Exit(1)
	}

	store, err := loadSnapshots(req)
	if err != nil {
		l.Error("failed to load snapshots", "error", err)
		os.Exit(1)
	}
	l.Info("snapshots loaded",
		"assets", len(store.assets),
		"indicators", len(store.indicators),
		"threats", len(store.threats),
		"events", len(store.events))

	report := buildReport(ctx, cfg, req, store, l)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		l.Error("failed to encode report", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(req.Output, data, 0644); err != nil {
		l.Error("failed to write report", "path", req.Output, "error", err)
		os.Exit(1)
	}
	l.Info("report written", "path", req.Output)
}

func buildReport(ctx context.Context, cfg *config.Config, req *config.AnalysisRequest, store *snapshotStore, l *slog.Logger) *Report {
	report := &Report{
		RunID:       logger.RunIDFromContext(ctx),
		RequestName: req.Name,
		GeneratedAt: time.Now().UTC(),
	}

	if req.Analyses.Confidence {
		report.Confidence = scoreIndicators(store.indicators)
	}
	if req.Analyses.Correlation {
		report.Correlation = correlate(ctx, cfg, req, store, l)
	}

	var org risk.OrganizationRisk
	if req.Analyses.Risk {
		section := assessRisk(ctx, cfg, store, l)
		org = section.Organization
		report.Risk = section
	}
	if req.Analyses.AttackPaths {
		report.AttackPaths = analyzePaths(store.paths, l)
	}
	if req.Analyses.Predictive {
		report.Predictive = predict(cfg, req, store, org, l)
	}
	return report
}

func scoreIndicators(indicators []model.Indicator) []IndicatorConfidence {
	scored := make([]IndicatorConfidence, 0, len(indicators))
	for _, ind := range indicators {
		sources := ind.Sources
		if len(sources) == 0 && ind.SourceType != "" {
			sources = []model.Source{{Type: ind.SourceType, Reputation: confidence.DefaultReputation}}
		}
		score := confidence.MultiSourceConfidence(sources)
		scored = append(scored, IndicatorConfidence{
			IndicatorID: ind.ID,
			Value:       ind.Value,
			Confidence:  score,
			Label:       confidence.Label(score),
		})
	}
	return scored
}

func correlate(ctx context.Context, cfg *config.Config, req *config.AnalysisRequest, store *snapshotStore, l *slog.Logger) *CorrelationSection {
	correlator := correlation.New(req.Parameters.TemporalWindowHours, l)

	section := &CorrelationSection{
		IndicatorClusters: correlator.CorrelateIndicators(store.indicators),
		VulnThreats:       correlator.CorrelateVulnerabilitiesWithThreats(store.allVulnerabilities(), store.threats),
		TemporalClusters:  correlator.TemporalCorrelation(store.events, req.Parameters.TemporalWindowHours),
	}
	section.Campaigns = correlator.IdentifyCampaigns(section.IndicatorClusters, section.TemporalClusters)

	if len(store.entities) > 0 {
		ids := make([]string, len(store.entities))
		for i, e := range store.entities {
			ids[i] = e.ID
		}
		located := collab.Successes(l, collab.FanOut(ctx, ids, cfg.Workers, "enricher", store.Locate))
		section.SpatialClusters = correlator.SpatialCorrelation(located)
	}
	return section
}

func assessRisk(ctx context.Context, cfg *config.Config, store *snapshotStore, l *slog.Logger) *RiskSection {
	engine := risk.NewEngine(l)

	ids := make([]string, len(store.assets))
	for i, a := range store.assets {
		ids[i] = a.ID
	}

	results := collab.FanOut(ctx, ids, cfg.Workers, "graph",
		func(ctx context.Context, assetID string) (risk.AssetProfile, error) {
			asset, err := store.Asset(ctx, assetID)
			if err != nil {
				return risk.AssetProfile{}, err
			}
			vulns, err := store.AssetVulnerabilities(ctx, assetID)
			if err != nil {
				return risk.AssetProfile{}, err
			}
			threatCtxs := make([]*model.ThreatContext, len(vulns))
			for i, v := range vulns {
				if tc, err := store.ThreatContext(ctx, v); err == nil {
					threatCtxs[i] = &tc
				}
			}
			return engine.AssetProfileFor(asset, vulns, threatCtxs), nil
		})

	profiles := collab.Successes(l, results)
	return &RiskSection{
		AssetProfiles: profiles,
		Organization:  engine.OrganizationRiskFor(profiles),
	}
}

func analyzePaths(paths []model.AttackPath, l *slog.Logger) *AttackPathSection {
	analyzer := attackpath.NewAnalyzer(l)

	analyses := make([]attackpath.Analysis, 0, len(paths))
	for _, p := range paths {
		analyses = append(analyses, analyzer.AnalyzePath(p.Nodes, p.Vulnerabilities))
	}
	ranked := analyzer.RankPaths(analyses)

	return &AttackPathSection{
		Paths:         ranked,
		CriticalNodes: analyzer.IdentifyCriticalNodes(ranked),
	}
}

func predict(cfg *config.Config, req *config.AnalysisRequest, store *snapshotStore, org risk.OrganizationRisk, l *slog.Logger) *PredictiveSection {
	predictor := predictive.NewPredictor(l)
	section := &PredictiveSection{}

	if len(store.events) > 0 {
		trends := predictor.VulnerabilityTrends(store.events, req.Parameters.ForecastDays)
		section.VulnerabilityTrends = &trends
		section.Anomalies = predictor.DetectAnomalies(store.events, req.Parameters.AnomalyThresholdStd)
	}
	for _, asset := range store.assets {
		section.AttackLikelihood = append(section.AttackLikelihood,
			predictor.PredictAttackLikelihood(asset, store.threats, store.attacks, len(store.vulnsByAsset[asset.ID])))
	}
	if len(store.riskHistory) > 0 {
		trajectory := predictor.ForecastRiskTrajectory(org.OverallRisk, store.riskHistory, req.Parameters.ForecastDays)
		section.RiskTrajectory = &trajectory
	}
	return section
}

// assetVulnerabilities is the snapshot shape binding vulnerabilities to the
// asset they were observed on.
type assetVulnerabilities struct {
	AssetID         string                `json:"asset_id"`
	Vulnerabilities []model.Vulnerability `json:"vulnerabilities"`
}

// snapshotStore backs the collaborator interfaces with data loaded from the
// request's snapshot files.
type snapshotStore struct {
	assets       []model.Asset
	assetsByID   map[string]model.Asset
	vulnsByAsset map[string][]model.Vulnerability
	indicators   []model.Indicator
	threats      []model.ThreatRecord
	events       []model.Event
	entities     []model.SpatialEntity
	entitiesByID map[string]model.SpatialEntity
	paths        []model.AttackPath
	attacks      []model.AttackRecord
	riskHistory  []model.RiskPoint
}

var (
	_ collab.GraphQuerier          = (*snapshotStore)(nil)
	_ collab.ThreatContextProvider = (*snapshotStore)(nil)
	_ collab.Enricher              = (*snapshotStore)(nil)
)

func loadSnapshots(req *config.AnalysisRequest) (*snapshotStore, error) {
	store := &snapshotStore{
		assetsByID:   make(map[string]model.Asset),
		vulnsByAsset: make(map[string][]model.Vulnerability),
		entitiesByID: make(map[string]model.SpatialEntity),
	}

	var err error
	if store.assets, err = loadJSON[model.Asset](req.Inputs.Assets); err != nil {
		return nil, err
	}
	for _, a := range store.assets {
		store.assetsByID[a.ID] = a
	}

	assetVulns, err := loadJSON[assetVulnerabilities](req.Inputs.Vulnerabilities)
	if err != nil {
		return nil, err
	}
	for _, av := range assetVulns {
		store.vulnsByAsset[av.AssetID] = append(store.vulnsByAsset[av.AssetID], av.Vulnerabilities...)
	}

	if store.indicators, err = loadJSON[model.Indicator](req.Inputs.Indicators); err != nil {
		return nil, err
	}
	if store.threats, err = loadJSON[model.ThreatRecord](req.Inputs.Threats); err != nil {
		return nil, err
	}
	if store.events, err = loadJSON[model.Event](req.Inputs.Events); err != nil {
		return nil, err
	}
	if store.entities, err = loadJSON[model.SpatialEntity](req.Inputs.Entities); err != nil {
		return nil, err
	}
	for _, e := range store.entities {
		store.entitiesByID[e.ID] = e
	}
	if store.paths, err = loadJSON[model.AttackPath](req.Inputs.AttackPaths); err != nil {
		return nil, err
	}
	if store.attacks, err = loadJSON[model.AttackRecord](req.Inputs.Attacks); err != nil {
		return nil, err
	}
	if store.riskHistory, err = loadJSON[model.RiskPoint](req.Inputs.RiskHistory); err != nil {
		return nil, err
	}
	return store, nil
}

// loadJSON reads one snapshot file holding a JSON array. An empty path
// means the input was not provided and yields no items.
func loadJSON[T any](path string) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return items, nil
}

func (s *snapshotStore) allVulnerabilities() []model.Vulnerability {
	all := make([]model.Vulnerability, 0)
	for _, a := range s.assets {
		all = append(all, s.vulnsByAsset[a.ID]...)
	}
	return all
}

// Asset implements collab.GraphQuerier.
func (s *snapshotStore) Asset(_ context.Context, assetID string) (model.Asset, error) {
	asset, ok := s.assetsByID[assetID]
	if !ok {
		return model.Asset{}, errors.MissingData(fmt.Sprintf("asset %s not in snapshot", assetID))
	}
	return asset, nil
}

// AssetVulnerabilities implements collab.GraphQuerier.
func (s *snapshotStore) AssetVulnerabilities(_ context.Context, assetID string) ([]model.Vulnerability, error) {
	return s.vulnsByAsset[assetID], nil
}

// ThreatContext implements collab.ThreatContextProvider by scanning the
// threat snapshot for records mentioning the vulnerability.
func (s *snapshotStore) ThreatContext(_ context.Context, vuln model.Vulnerability) (model.ThreatContext, error) {
	var tc model.ThreatContext
	upperID := strings.ToUpper(vuln.ID)
	for _, t := range s.threats {
		mentioned := false
		for _, cve := range t.CVEIDs {
			if strings.EqualFold(cve, vuln.ID) {
				mentioned = true
				break
			}
		}
		if !mentioned && strings.Contains(strings.ToUpper(t.Description), upperID) {
			mentioned = true
		}
		if !mentioned {
			continue
		}
		tc.ThreatMentions++
		if t.ActiveExploitation {
			tc.ActiveExploitation = true
		}
		if t.TargetedCampaign {
			tc.TargetedCampaign = true
		}
		if t.ThreatActor != "" {
			tc.APTLinked = true
		}
	}
	return tc, nil
}

// Locate implements collab.Enricher.
func (s *snapshotStore) Locate(_ context.Context, entityID string) (model.SpatialEntity, error) {
	entity, ok := s.entitiesByID[entityID]
	if !ok {
		return model.SpatialEntity{}, errors.MissingData(fmt.Sprintf("entity %s not in snapshot", entityID))
	}
	return entity, nil
}
