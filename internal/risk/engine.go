// Package risk computes contextual risk scores that go beyond CVSS by
// weighing threat intelligence, exploit availability, asset criticality,
// exposure, vulnerability age, and active targeting.
package risk

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/elchacal801/sentinel/internal/model"
)

// Factor tables. Built once at process start; never mutated. The exact
// values are a compatibility contract with existing outputs.
var (
	criticalityFactors = map[model.Criticality]float64{
		model.CriticalityCritical: 1.5, // crown jewels
		model.CriticalityHigh:     1.3,
		model.CriticalityMedium:   1.0,
		model.CriticalityLow:      0.7,
		model.CriticalityUnknown:  1.0,
	}

	exploitFactors = map[model.ExploitStatus]float64{
		model.ExploitWeaponized:  2.0,
		model.ExploitPoC:         1.5,
		model.ExploitTheoretical: 1.0,
		model.ExploitUnknown:     1.2,
	}
)

// Threat intelligence multipliers, evaluated in precedence order.
const (
	threatActiveExploitation = 2.5
	threatTargetedCampaign   = 2.0
	threatAPTLinked          = 1.8
	threatMentioned          = 1.3
	threatNone               = 1.0
)

// Factors is the per-assessment factor breakdown.
type Factors struct {
	CVSSBase            float64 `json:"cvss_base"`
	AssetCriticality    float64 `json:"asset_criticality"`
	ExploitAvailability float64 `json:"exploit_availability"`
	ThreatIntelligence  float64 `json:"threat_intelligence"`
	Exposure            float64 `json:"exposure"`
	Age                 float64 `json:"age"`
	ActiveTargeting     float64 `json:"active_targeting"`
}

// Assessment is the contextual risk assessment for one asset/vulnerability
// pair. Derived per call, never persisted by the engine.
type Assessment struct {
	RiskScore       float64   `json:"risk_score"`
	Severity        string    `json:"severity"`
	Factors         Factors   `json:"factors"`
	Recommendations []string  `json:"recommendations"`
	Priority        string    `json:"priority"`
	CalculatedAt    time.Time `json:"calculated_at"`
}

// AssetProfile aggregates assessments across an asset's vulnerabilities.
type AssetProfile struct {
	AssetID               string       `json:"asset_id"`
	AssetValue            string       `json:"asset_value,omitempty"`
	OverallRisk           float64      `json:"overall_risk"`
	Severity              string       `json:"severity"`
	VulnerabilityCount    int          `json:"vulnerability_count"`
	CriticalCount         int          `json:"critical_count"`
	HighCount             int          `json:"high_count"`
	MediumCount           int          `json:"medium_count"`
	LowCount              int          `json:"low_count"`
	TopRisks              []Assessment `json:"top_risks,omitempty"`
	UrgentActionsRequired bool         `json:"urgent_actions_required"`
	CalculatedAt          time.Time    `json:"calculated_at"`
}

// AssetRiskSummary is the compact per-asset entry in the organization view.
type AssetRiskSummary struct {
	AssetID            string  `json:"asset_id"`
	AssetValue         string  `json:"asset_value,omitempty"`
	RiskScore          float64 `json:"risk_score"`
	VulnerabilityCount int     `json:"vulnerability_count"`
}

// OrganizationRisk is the organization-wide posture.
type OrganizationRisk struct {
	OverallRisk           float64            `json:"overall_risk"`
	Severity              string             `json:"severity"`
	TotalAssets           int                `json:"total_assets"`
	TotalVulnerabilities  int                `json:"total_vulnerabilities"`
	RiskDistribution      map[string]int     `json:"risk_distribution"`
	CriticalAssets        int                `json:"critical_assets"`
	HighRiskAssets        int                `json:"high_risk_assets"`
	TopRiskyAssets        []AssetRiskSummary `json:"top_risky_assets"`
	UrgentActionsRequired bool               `json:"urgent_actions_required"`
	CalculatedAt          time.Time          `json:"calculated_at"`
}

// Engine computes contextual risk scores. Stateless; safe for concurrent
// use by many callers.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a risk scoring engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With("component", "risk-engine")}
}

// Score computes the contextual risk for an asset/vulnerability pair.
// threatCtx may be nil, in which case the neutral threat and targeting
// factors apply.
func (e *Engine) Score(asset model.Asset, vuln model.Vulnerability, threatCtx *model.ThreatContext) Assessment {
	factors := Factors{
		CVSSBase:            vuln.CVSSScore,
		AssetCriticality:    criticalityFactor(asset.Criticality),
		ExploitAvailability: exploitFactor(vuln.ExploitStatus),
		ThreatIntelligence:  threatNone,
		Exposure:            exposureFactor(asset),
		Age:                 ageFactor(vuln, time.Now()),
		ActiveTargeting:     1.0,
	}
	if threatCtx != nil {
		factors.ThreatIntelligence = threatIntelFactor(threatCtx)
		factors.ActiveTargeting = targetingFactor(threatCtx)
	}

	score := factors.CVSSBase *
		factors.AssetCriticality *
		factors.ExploitAvailability *
		factors.ThreatIntelligence *
		factors.Exposure *
		factors.Age *
		factors.ActiveTargeting
	if score > 10.0 {
		score = 10.0
	}

	return Assessment{
		RiskScore:       round2(score),
		Severity:        model.SeverityForScore(score),
		Factors:         factors,
		Recommendations: recommendations(score, factors, vuln),
		Priority:        priority(score, factors),
		CalculatedAt:    time.Now().UTC(),
	}
}

// AssetProfileFor aggregates per-vulnerability assessments into an asset
// risk profile. Overall risk is top-weighted rather than averaged so the
// worst findings dominate. threatCtxs aligns by index with vulns and may be
// nil or shorter.
func (e *Engine) AssetProfileFor(asset model.Asset, vulns []model.Vulnerability, threatCtxs []*model.ThreatContext) AssetProfile {
	if len(vulns) == 0 {
		return AssetProfile{
			AssetID:      asset.ID,
			AssetValue:   asset.Value,
			Severity:     "none",
			CalculatedAt: time.Now().UTC(),
		}
	}

	assessments := make([]Assessment, 0, len(vulns))
	counts := map[string]int{}
	urgent := false
	for i, vuln := range vulns {
		var ctx *model.ThreatContext
		if i < len(threatCtxs) {
			ctx = threatCtxs[i]
		}
		a := e.Score(asset, vuln, ctx)
		assessments = append(assessments, a)
		counts[a.Severity]++
		if a.Priority == "urgent" {
			urgent = true
		}
	}

	sorted := make([]Assessment, len(assessments))
	copy(sorted, assessments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RiskScore > sorted[j].RiskScore
	})

	// Top-weighted aggregation: the worst findings carry most of the weight.
	var overall float64
	switch {
	case len(sorted) >= 3:
		overall = sorted[0].RiskScore*0.5 + sorted[1].RiskScore*0.3 + sorted[2].RiskScore*0.2
	case len(sorted) == 2:
		overall = sorted[0].RiskScore*0.6 + sorted[1].RiskScore*0.4
	default:
		overall = sorted[0].RiskScore
	}

	top := sorted
	if len(top) > 5 {
		top = top[:5]
	}

	return AssetProfile{
		AssetID:               asset.ID,
		AssetValue:            asset.Value,
		OverallRisk:           round2(overall),
		Severity:              model.SeverityForScore(overall),
		VulnerabilityCount:    len(vulns),
		CriticalCount:         counts["critical"],
		HighCount:             counts["high"],
		MediumCount:           counts["medium"],
		LowCount:              counts["low"],
		TopRisks:              top,
		UrgentActionsRequired: counts["critical"] > 0 || urgent,
		CalculatedAt:          time.Now().UTC(),
	}
}

// OrganizationRiskFor aggregates asset profiles into the organization-wide
// posture: mean overall risk, per-band counts, and the ten riskiest assets.
func (e *Engine) OrganizationRiskFor(profiles []AssetProfile) OrganizationRisk {
	if len(profiles) == 0 {
		return OrganizationRisk{
			RiskDistribution: map[string]int{},
			CalculatedAt:     time.Now().UTC(),
		}
	}

	distribution := map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0}
	totalVulns := 0
	var sum float64
	for _, p := range profiles {
		if _, ok := distribution[p.Severity]; ok {
			distribution[p.Severity]++
		}
		totalVulns += p.VulnerabilityCount
		sum += p.OverallRisk
	}
	orgRisk := sum / float64(len(profiles))

	ranked := make([]AssetProfile, len(profiles))
	copy(ranked, profiles)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OverallRisk > ranked[j].OverallRisk
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	top := make([]AssetRiskSummary, 0, len(ranked))
	for _, p := range ranked {
		top = append(top, AssetRiskSummary{
			AssetID:            p.AssetID,
			AssetValue:         p.AssetValue,
			RiskScore:          p.OverallRisk,
			VulnerabilityCount: p.VulnerabilityCount,
		})
	}

	e.logger.Info("organization risk computed",
		"assets", len(profiles), "overall_risk", round2(orgRisk))

	return OrganizationRisk{
		OverallRisk:           round2(orgRisk),
		Severity:              model.SeverityForScore(orgRisk),
		TotalAssets:           len(profiles),
		TotalVulnerabilities:  totalVulns,
		RiskDistribution:      distribution,
		CriticalAssets:        distribution["critical"],
		HighRiskAssets:        distribution["high"],
		TopRiskyAssets:        top,
		UrgentActionsRequired: distribution["critical"] > 0,
		CalculatedAt:          time.Now().UTC(),
	}
}

func criticalityFactor(c model.Criticality) float64 {
	if f, ok := criticalityFactors[c]; ok {
		return f
	}
	return 1.0
}

func exploitFactor(s model.ExploitStatus) float64 {
	if f, ok := exploitFactors[s]; ok {
		return f
	}
	return 1.2
}

// threatIntelFactor evaluates flags in precedence order; the first match
// wins.
func threatIntelFactor(ctx *model.ThreatContext) float64 {
	switch {
	case ctx.ActiveExploitation:
		return threatActiveExploitation
	case ctx.TargetedCampaign:
		return threatTargetedCampaign
	case ctx.APTLinked:
		return threatAPTLinked
	case ctx.ThreatMentions > 0:
		return threatMentioned
	default:
		return threatNone
	}
}

func targetingFactor(ctx *model.ThreatContext) float64 {
	switch {
	case ctx.TargetingOrganization:
		return 2.0
	case ctx.TargetingIndustry:
		return 1.5
	case ctx.TargetingRegion:
		return 1.3
	default:
		return 1.0
	}
}

func exposureFactor(asset model.Asset) float64 {
	caps := asset.EffectiveCapabilities()
	switch {
	case caps.HasAny(model.CapInternetFacing, model.CapPublic):
		return 1.5
	case caps.Has(model.CapDMZ):
		return 1.3
	case caps.Has(model.CapInternal):
		return 1.0
	default:
		return 1.2 // assume moderate exposure when unknown
	}
}

func ageFactor(vuln model.Vulnerability, now time.Time) float64 {
	if vuln.PublishedDate == nil {
		return 1.0
	}
	ageDays := int(now.UTC().Sub(vuln.PublishedDate.UTC()).Hours() / 24)
	switch {
	case ageDays < 7:
		return 1.4 // very recent, limited patches available
	case ageDays < 30:
		return 1.2
	case ageDays < 90:
		return 1.0
	case ageDays < 365:
		return 0.9
	default:
		return 0.8
	}
}

func priority(score float64, factors Factors) string {
	switch {
	case score >= 9.0 || factors.ThreatIntelligence >= threatActiveExploitation:
		return "urgent"
	case score >= 7.0:
		return "high"
	case score >= 4.0:
		return "medium"
	default:
		return "low"
	}
}

// recommendations builds the deterministic, ordered recommendation list for
// an assessment.
func recommendations(score float64, factors Factors, vuln model.Vulnerability) []string {
	recs := make([]string, 0, 8)

	if factors.ThreatIntelligence >= threatActiveExploitation {
		recs = append(recs, "URGENT: Active exploitation detected - patch immediately")
	}
	if factors.ActiveTargeting >= 2.0 {
		recs = append(recs, "WARNING: Your organization is being actively targeted")
	}

	if factors.ExploitAvailability >= 2.0 {
		recs = append(recs, "Public exploit code available - prioritize patching")
	} else if factors.ExploitAvailability >= 1.5 {
		recs = append(recs, "Proof of concept exploit exists - monitor closely")
	}

	if factors.AssetCriticality >= 1.5 {
		recs = append(recs, "Critical asset affected - consider emergency patching")
	}
	if factors.Exposure >= 1.5 {
		recs = append(recs, "Internet-facing asset - consider firewall rules or WAF")
	}
	if factors.Age >= 1.4 {
		recs = append(recs, "Recent vulnerability - patches may be limited")
	}

	switch {
	case score >= 9.0:
		recs = append(recs, "Patch within 24 hours")
	case score >= 7.0:
		recs = append(recs, "Patch within 7 days")
	case score >= 4.0:
		recs = append(recs, "Patch within 30 days")
	}

	if vuln.PatchAvailable {
		recs = append(recs, "Patch available - apply immediately")
	} else {
		recs = append(recs, "No patch available - implement compensating controls")
	}

	return recs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
