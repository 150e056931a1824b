// Package attackpath analyzes externally resolved attack paths: likelihood,
// difficulty, detectability, impact, ranking, and chokepoint detection. The
// engine never traverses the graph itself; it only scores traversal results
// supplied by the graph collaborator.
package attackpath

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/elchacal801/sentinel/internal/model"
)

// Lookup tables, built once at process start.
var (
	// exploitDifficulty maps exploit maturity to attacker difficulty.
	exploitDifficulty = map[model.ExploitStatus]float64{
		model.ExploitWeaponized:  1.0, // public exploits
		model.ExploitPoC:         3.0,
		model.ExploitTheoretical: 7.0,
		model.ExploitUnknown:     5.0,
	}

	// criticalityImpact maps target criticality to impact.
	criticalityImpact = map[model.Criticality]float64{
		model.CriticalityCritical: 10.0,
		model.CriticalityHigh:     7.0,
		model.CriticalityMedium:   5.0,
		model.CriticalityLow:      3.0,
		model.CriticalityUnknown:  5.0,
	}
)

// Analysis is the full result for one attack path.
type Analysis struct {
	Valid           bool             `json:"valid"`
	Reason          string           `json:"reason,omitempty"`
	Viable          bool             `json:"viable"`
	PathLength      int              `json:"path_length"`
	Source          string           `json:"source,omitempty"`
	Target          string           `json:"target,omitempty"`
	Likelihood      float64          `json:"likelihood"`    // 0-1
	Difficulty      float64          `json:"difficulty"`    // 0-10
	Detectability   float64          `json:"detectability"` // 0-1
	Impact          float64          `json:"impact"`        // 0-10
	SkillRequired   string           `json:"skill_required"`
	EstimatedTime   string           `json:"estimated_time"`
	OverallRisk     float64          `json:"overall_risk"` // 0-10
	RiskLevel       string           `json:"risk_level"`
	Rank            int              `json:"rank,omitempty"`
	Nodes           []model.PathNode `json:"nodes,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

// CriticalNode is a chokepoint recurring across multiple attack paths.
type CriticalNode struct {
	NodeID           string  `json:"node_id"`
	Frequency        int     `json:"frequency"`
	AverageRisk      float64 `json:"average_risk"`
	CriticalityScore float64 `json:"criticality_score"`
	Recommendation   string  `json:"recommendation"`
}

// Analyzer scores attack paths. Stateless; safe for concurrent use.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates an attack path analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger.With("component", "attackpath-analyzer")}
}

// AnalyzePath analyzes a single path. Paths shorter than two nodes produce
// a structured invalid result rather than an error, so callers can render
// them gracefully.
func (a *Analyzer) AnalyzePath(nodes []model.PathNode, vulns []model.Vulnerability) Analysis {
	if len(nodes) < 2 {
		return Analysis{
			Valid:      false,
			Reason:     "path too short",
			PathLength: len(nodes),
			AnalyzedAt: time.Now().UTC(),
		}
	}

	likelihood := pathLikelihood(nodes, vulns)
	difficulty := pathDifficulty(nodes, vulns)
	detectability := pathDetectability(nodes)
	impact := pathImpact(nodes)
	skill := skillLevel(difficulty)
	estimate := timeEstimate(difficulty, len(nodes))

	overall := likelihood * impact * (1 - detectability) * 1.5
	if overall > 10.0 {
		overall = 10.0
	}

	return Analysis{
		Valid:           true,
		Viable:          likelihood > 0.1 && difficulty < 9.5,
		PathLength:      len(nodes),
		Source:          nodeLabel(nodes[0]),
		Target:          nodeLabel(nodes[len(nodes)-1]),
		Likelihood:      round3(likelihood),
		Difficulty:      round2(difficulty),
		Detectability:   round3(detectability),
		Impact:          round2(impact),
		SkillRequired:   skill,
		EstimatedTime:   estimate,
		OverallRisk:     round2(overall),
		RiskLevel:       riskLevel(overall),
		Nodes:           simplifyNodes(nodes),
		Recommendations: pathRecommendations(nodes, likelihood, impact, detectability, skill, estimate, vulns),
		AnalyzedAt:      time.Now().UTC(),
	}
}

// RankPaths sorts analyses by overall risk descending and assigns
// contiguous 1-based ranks.
func (a *Analyzer) RankPaths(paths []Analysis) []Analysis {
	ranked := make([]Analysis, len(paths))
	copy(ranked, paths)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OverallRisk > ranked[j].OverallRisk
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// IdentifyCriticalNodes finds nodes recurring across more than one path.
// Hardening these chokepoints disrupts the most high-risk paths at once.
func (a *Analyzer) IdentifyCriticalNodes(paths []Analysis) []CriticalNode {
	frequency := make(map[string]int)
	totalRisk := make(map[string]float64)
	for _, p := range paths {
		for _, node := range p.Nodes {
			if node.ID == "" {
				continue
			}
			frequency[node.ID]++
			totalRisk[node.ID] += p.OverallRisk
		}
	}

	nodes := make([]CriticalNode, 0)
	for id, freq := range frequency {
		if freq <= 1 {
			continue
		}
		avg := totalRisk[id] / float64(freq)
		nodes = append(nodes, CriticalNode{
			NodeID:           id,
			Frequency:        freq,
			AverageRisk:      round2(avg),
			CriticalityScore: round2(float64(freq) * avg),
			Recommendation:   fmt.Sprintf("Critical chokepoint - securing this node blocks %d attack paths", freq),
		})
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].CriticalityScore != nodes[j].CriticalityScore {
			return nodes[i].CriticalityScore > nodes[j].CriticalityScore
		}
		return nodes[i].NodeID < nodes[j].NodeID
	})

	a.logger.Info("critical node analysis complete",
		"paths", len(paths), "chokepoints", len(nodes))
	return nodes
}

// pathLikelihood models success probability: each extra hop compounds a 5%
// failure chance, exploit maturity scales it, and each observed security
// control along the path cuts it by 10%.
func pathLikelihood(nodes []model.PathNode, vulns []model.Vulnerability) float64 {
	likelihood := 0.9 * math.Pow(0.95, float64(len(nodes)-1))

	if len(vulns) > 0 {
		likelihood *= 1.0 - avgExploitDifficulty(vulns)/10.0
	}

	likelihood *= math.Pow(0.9, float64(securityControls(nodes)))

	return clamp(likelihood, 0, 1)
}

func pathDifficulty(nodes []model.PathNode, vulns []model.Vulnerability) float64 {
	difficulty := float64(len(nodes))*1.5 + float64(len(nodes))*0.5
	if len(vulns) > 0 {
		difficulty += avgExploitDifficulty(vulns)
	}
	return clamp(difficulty, 0, 10)
}

// pathDetectability: longer paths make more noise, and monitored or logged
// nodes add per-node bonuses.
func pathDetectability(nodes []model.PathNode) float64 {
	detect := 0.5 + math.Min(0.3, float64(len(nodes))*0.05)
	for _, node := range nodes {
		caps := model.CapabilitiesFromTags(node.Tags)
		if caps.Has(model.CapMonitored) {
			detect += 0.1
		}
		if caps.Has(model.CapLogged) {
			detect += 0.05
		}
	}
	return clamp(detect, 0, 1)
}

// pathImpact scores the target's criticality plus a bonus for each critical
// node touched along the way.
func pathImpact(nodes []model.PathNode) float64 {
	target := nodes[len(nodes)-1]
	impact, ok := criticalityImpact[target.Criticality]
	if !ok {
		impact = 5.0
	}

	criticalCount := 0
	for _, node := range nodes {
		if node.Criticality == model.CriticalityCritical {
			criticalCount++
		}
	}
	impact += math.Min(2.0, float64(criticalCount)*0.5)

	return clamp(impact, 0, 10)
}

// securityControls counts defensive capabilities observed on the path: one
// increment per control group (waf/firewall, mfa/2fa, edr/ids) per node.
func securityControls(nodes []model.PathNode) int {
	controls := 0
	for _, node := range nodes {
		caps := model.CapabilitiesFromTags(node.Tags)
		if caps.HasAny(model.CapWAF, model.CapFirewall) {
			controls++
		}
		if caps.HasAny(model.CapMFA, model.Cap2FA) {
			controls++
		}
		if caps.HasAny(model.CapEDR, model.CapIDS) {
			controls++
		}
	}
	return controls
}

func avgExploitDifficulty(vulns []model.Vulnerability) float64 {
	var sum float64
	for _, v := range vulns {
		d, ok := exploitDifficulty[v.ExploitStatus]
		if !ok {
			d = 5.0
		}
		sum += d
	}
	return sum / float64(len(vulns))
}

func skillLevel(difficulty float64) string {
	switch {
	case difficulty >= 8.0:
		return "expert"
	case difficulty >= 6.0:
		return "high"
	case difficulty >= 3.0:
		return "medium"
	default:
		return "low"
	}
}

func timeEstimate(difficulty float64, pathLength int) string {
	hours := difficulty * float64(pathLength)
	switch {
	case hours < 1:
		return "< 1 hour"
	case hours < 8:
		return fmt.Sprintf("%d hours", int(hours))
	case hours < 40:
		return fmt.Sprintf("%d days", int(hours/8))
	case hours < 160:
		return fmt.Sprintf("%d weeks", int(hours/40))
	default:
		return fmt.Sprintf("%d months", int(hours/160))
	}
}

func riskLevel(risk float64) string {
	switch {
	case risk >= 7.0:
		return "critical"
	case risk >= 5.0:
		return "high"
	case risk >= 3.0:
		return "medium"
	default:
		return "low"
	}
}

func nodeLabel(node model.PathNode) string {
	if node.Value != "" {
		return node.Value
	}
	return node.ID
}

func simplifyNodes(nodes []model.PathNode) []model.PathNode {
	out := make([]model.PathNode, len(nodes))
	for i, n := range nodes {
		out[i] = model.PathNode{
			ID:          n.ID,
			Type:        n.Type,
			Value:       n.Value,
			Criticality: n.Criticality,
		}
	}
	return out
}

func pathRecommendations(nodes []model.PathNode, likelihood, impact, detectability float64, skill, estimate string, vulns []model.Vulnerability) []string {
	recs := make([]string, 0, 8)

	if likelihood > 0.7 {
		recs = append(recs, "HIGH LIKELIHOOD: This attack path is highly exploitable - immediate action required")
	}
	if impact >= 8.0 {
		recs = append(recs, "HIGH IMPACT: Target is critical asset - prioritize protection")
	}
	if detectability < 0.3 {
		recs = append(recs, "LOW DETECTABILITY: Implement monitoring and logging along this path")
	}

	for _, vuln := range vulns {
		if vuln.ExploitStatus == model.ExploitWeaponized {
			recs = append(recs, fmt.Sprintf("Patch %s immediately - public exploits available", vuln.ID))
		}
	}

	if len(nodes) <= 2 {
		recs = append(recs, "Short attack path - implement defense in depth")
	}
	if skill == "low" {
		recs = append(recs, "Low skill required - script kiddies could exploit this path")
	}

	recs = append(recs, fmt.Sprintf("Estimated exploitation time: %s - ensure detection within this window", estimate))
	recs = append(recs, "Consider network segmentation to break attack path")
	recs = append(recs, "Implement principle of least privilege")

	return recs
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
