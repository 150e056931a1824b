// Package predictive derives trends, anomalies, attack-likelihood
// predictions, emerging threats, and risk trajectory forecasts from
// historical intelligence series.
package predictive

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/elchacal801/sentinel/internal/model"
)

// Attack likelihood factor weights.
var likelihoodWeights = map[string]float64{
	"exposure":             0.25,
	"criticality":          0.15,
	"threat_landscape":     0.30,
	"historical_targeting": 0.20,
	"vulnerabilities":      0.10,
}

// TimelinePoint is one calendar-day bucket in an event timeline.
type TimelinePoint struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// ForecastPoint is one projected day in a count forecast.
type ForecastPoint struct {
	Day            int     `json:"day"`
	PredictedCount float64 `json:"predicted_count"`
}

// TrendReport summarizes direction and velocity of a vulnerability series.
type TrendReport struct {
	Trend               string          `json:"trend"`
	Velocity            float64         `json:"velocity"`
	VelocityDescription string          `json:"velocity_description,omitempty"`
	Forecast            []ForecastPoint `json:"forecast"`
	Patterns            []string        `json:"patterns,omitempty"`
	Confidence          string          `json:"confidence"`
	AnalyzedAt          time.Time       `json:"analyzed_at"`
}

// Anomaly is a day whose event count deviates beyond the z-score threshold.
type Anomaly struct {
	Date          string  `json:"date"`
	EventCount    int     `json:"event_count"`
	ExpectedRange string  `json:"expected_range"`
	ZScore        float64 `json:"z_score"`
	Severity      string  `json:"severity"`
	Type          string  `json:"type"` // spike or drop
	Description   string  `json:"description"`
}

// AttackLikelihood predicts how likely an asset is to be attacked.
type AttackLikelihood struct {
	AssetID            string             `json:"asset_id"`
	Likelihood         float64            `json:"likelihood"` // 0-1
	LikelihoodLabel    string             `json:"likelihood_label"`
	PredictedTimeframe string             `json:"predicted_timeframe"`
	Factors            map[string]float64 `json:"factors"`
	Recommendations    []string           `json:"recommendations"`
	Confidence         string             `json:"confidence"`
	PredictedAt        time.Time          `json:"predicted_at"`
}

// EmergingThreat is a threat actor or malware family whose activity is new
// or escalating relative to baseline.
type EmergingThreat struct {
	Type               string  `json:"type"` // threat_actor or malware
	Name               string  `json:"name"`
	Status             string  `json:"status"` // new or escalating
	RecentActivity     int     `json:"recent_activity"`
	BaselineActivity   int     `json:"baseline_activity,omitempty"`
	IncreasePercentage float64 `json:"increase_percentage,omitempty"`
	Trend              string  `json:"trend"`
	Severity           string  `json:"severity"`
}

// TrajectoryPoint is one projected day in a risk forecast.
type TrajectoryPoint struct {
	Day           int       `json:"day"`
	Date          time.Time `json:"date"`
	PredictedRisk float64   `json:"predicted_risk"`
}

// TrajectoryForecast projects how risk evolves over the forecast horizon.
type TrajectoryForecast struct {
	CurrentRisk    float64           `json:"current_risk"`
	Trajectory     string            `json:"trajectory"`
	Severity       string            `json:"severity,omitempty"`
	Slope          float64           `json:"slope"`
	Forecast       []TrajectoryPoint `json:"forecast,omitempty"`
	PeakRisk       float64           `json:"peak_risk,omitempty"`
	Recommendation string            `json:"recommendation,omitempty"`
	Confidence     string            `json:"confidence"`
	ForecastedAt   time.Time         `json:"forecasted_at"`
}

// Predictor derives forecasts from historical series. Stateless; safe for
// concurrent use.
type Predictor struct {
	logger *slog.Logger
}

// NewPredictor creates a predictor.
func NewPredictor(logger *slog.Logger) *Predictor {
	return &Predictor{logger: logger.With("component", "predictor")}
}

// VulnerabilityTrends analyzes the discovery timeline of historical
// vulnerabilities and projects daysAhead days forward at flat velocity.
func (p *Predictor) VulnerabilityTrends(history []model.Event, daysAhead int) TrendReport {
	if len(history) == 0 {
		return TrendReport{
			Trend:      "insufficient_data",
			Forecast:   []ForecastPoint{},
			Confidence: "low",
			AnalyzedAt: time.Now().UTC(),
		}
	}

	timeline := buildTimeline(history)
	velocity := timelineVelocity(timeline)

	return TrendReport{
		Trend:               timelineTrend(timeline),
		Velocity:            round2(velocity),
		VelocityDescription: describeVelocity(velocity),
		Forecast:            forecastCounts(timeline, velocity, daysAhead),
		Patterns:            timelinePatterns(timeline),
		Confidence:          timelineConfidence(timeline),
		AnalyzedAt:          time.Now().UTC(),
	}
}

// DetectAnomalies flags days whose event counts deviate more than
// thresholdStd standard deviations from the mean. Requires at least ten
// events; zero standard deviation resolves to z=0 rather than an error.
func (p *Predictor) DetectAnomalies(events []model.Event, thresholdStd float64) []Anomaly {
	if len(events) < 10 {
		return nil
	}
	if thresholdStd <= 0 {
		thresholdStd = 2.0
	}

	timeline := buildTimeline(events)
	values := make([]float64, len(timeline))
	for i, pt := range timeline {
		values[i] = float64(pt.Count)
	}
	m := mean(values)
	sd := stdev(values)

	anomalies := make([]Anomaly, 0)
	for _, pt := range timeline {
		z := 0.0
		if sd > 0 {
			z = (float64(pt.Count) - m) / sd
		}
		if math.Abs(z) <= thresholdStd {
			continue
		}

		severity := "medium"
		if math.Abs(z) > 3 {
			severity = "critical"
		} else if math.Abs(z) > 2.5 {
			severity = "high"
		}
		kind := "spike"
		word := "Spike"
		if z < 0 {
			kind = "drop"
			word = "Drop"
		}

		anomalies = append(anomalies, Anomaly{
			Date:          pt.Date,
			EventCount:    pt.Count,
			ExpectedRange: fmt.Sprintf("%.0f - %.0f", m-thresholdStd*sd, m+thresholdStd*sd),
			ZScore:        round2(z),
			Severity:      severity,
			Type:          kind,
			Description: fmt.Sprintf("%s of %.0f events (%.1f std from normal)",
				word, math.Abs(float64(pt.Count)-m), math.Abs(z)),
		})
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return math.Abs(anomalies[i].ZScore) > math.Abs(anomalies[j].ZScore)
	})

	p.logger.Info("anomaly detection complete",
		"events", len(events), "anomalies", len(anomalies))
	return anomalies
}

// PredictAttackLikelihood scores how likely an asset is to be attacked from
// its exposure, criticality, the current threat landscape, historical
// targeting, and vulnerability density.
func (p *Predictor) PredictAttackLikelihood(asset model.Asset, threatIntel []model.ThreatRecord, historicalAttacks []model.AttackRecord, vulnCount int) AttackLikelihood {
	factors := map[string]float64{
		"exposure":             exposureScore(asset),
		"criticality":          criticalityScore(asset.Criticality),
		"threat_landscape":     threatLandscapeScore(threatIntel),
		"historical_targeting": historicalTargetingScore(asset.ID, historicalAttacks),
		"vulnerabilities":      math.Min(1.0, float64(vulnCount)/10.0),
	}

	likelihood := 0.0
	for name, score := range factors {
		likelihood += score * likelihoodWeights[name]
	}

	rounded := make(map[string]float64, len(factors))
	for name, score := range factors {
		rounded[name] = round3(score)
	}

	return AttackLikelihood{
		AssetID:            asset.ID,
		Likelihood:         round3(likelihood),
		LikelihoodLabel:    likelihoodLabel(likelihood),
		PredictedTimeframe: attackTimeframe(likelihood),
		Factors:            rounded,
		Recommendations:    protectionRecommendations(likelihood, asset),
		Confidence:         "moderate",
		PredictedAt:        time.Now().UTC(),
	}
}

// IdentifyEmergingThreats compares actor and malware activity in recent
// intelligence against a historical baseline window of windowDays days.
func (p *Predictor) IdentifyEmergingThreats(recent, baseline []model.ThreatRecord, windowDays int) []EmergingThreat {
	p.logger.Info("identifying emerging threats",
		"recent", len(recent), "baseline", len(baseline), "window_days", windowDays)

	recentActors, recentMalware := countMentions(recent)
	baselineActors, baselineMalware := countMentions(baseline)

	threats := make([]EmergingThreat, 0)

	for _, actor := range sortedKeys(recentActors) {
		recentCount := recentActors[actor]
		baselineCount := baselineActors[actor]

		switch {
		case baselineCount == 0:
			severity := "medium"
			if recentCount > 5 {
				severity = "high"
			}
			threats = append(threats, EmergingThreat{
				Type:           "threat_actor",
				Name:           actor,
				Status:         "new",
				RecentActivity: recentCount,
				Trend:          "emerging",
				Severity:       severity,
			})
		case recentCount > baselineCount*2:
			increase := float64(recentCount-baselineCount) / float64(baselineCount) * 100
			severity := "medium"
			if increase > 300 {
				severity = "high"
			}
			threats = append(threats, EmergingThreat{
				Type:               "threat_actor",
				Name:               actor,
				Status:             "escalating",
				RecentActivity:     recentCount,
				BaselineActivity:   baselineCount,
				IncreasePercentage: round1(increase),
				Trend:              "escalating",
				Severity:           severity,
			})
		}
	}

	for _, malware := range sortedKeys(recentMalware) {
		recentCount := recentMalware[malware]
		if baselineMalware[malware] == 0 && recentCount > 2 {
			severity := "medium"
			if recentCount > 10 {
				severity = "high"
			}
			threats = append(threats, EmergingThreat{
				Type:           "malware",
				Name:           malware,
				Status:         "new",
				RecentActivity: recentCount,
				Trend:          "emerging",
				Severity:       severity,
			})
		}
	}

	sort.SliceStable(threats, func(i, j int) bool {
		if threats[i].RecentActivity != threats[j].RecentActivity {
			return threats[i].RecentActivity > threats[j].RecentActivity
		}
		return threats[i].Name < threats[j].Name
	})
	return threats
}

// ForecastRiskTrajectory projects currentRisk forward along the OLS slope
// of the historical series. Fewer than five points reports insufficient
// data rather than failing.
func (p *Predictor) ForecastRiskTrajectory(currentRisk float64, historical []model.RiskPoint, daysAhead int) TrajectoryForecast {
	if len(historical) < 5 {
		return TrajectoryForecast{
			CurrentRisk:  round2(currentRisk),
			Trajectory:   "insufficient_data",
			Confidence:   "low",
			ForecastedAt: time.Now().UTC(),
		}
	}

	y := make([]float64, len(historical))
	for i, pt := range historical {
		y[i] = pt.Risk
	}
	slope := olsSlope(y)

	now := time.Now().UTC()
	points := make([]TrajectoryPoint, 0, daysAhead)
	peak := 0.0
	for day := 1; day <= daysAhead; day++ {
		projected := currentRisk + slope*float64(day)
		if projected < 0 {
			projected = 0
		}
		if projected > 10 {
			projected = 10
		}
		projected = round2(projected)
		if projected > peak {
			peak = projected
		}
		points = append(points, TrajectoryPoint{
			Day:           day,
			Date:          now.AddDate(0, 0, day),
			PredictedRisk: projected,
		})
	}

	var trajectory, severity string
	switch {
	case slope > 0.05:
		trajectory = "increasing"
		switch {
		case slope > 0.2:
			severity = "critical"
		case slope > 0.1:
			severity = "high"
		default:
			severity = "medium"
		}
	case slope < -0.05:
		trajectory = "decreasing"
		severity = "low"
	default:
		trajectory = "stable"
		severity = "medium"
	}

	return TrajectoryForecast{
		CurrentRisk:    round2(currentRisk),
		Trajectory:     trajectory,
		Severity:       severity,
		Slope:          round4(slope),
		Forecast:       points,
		PeakRisk:       peak,
		Recommendation: trajectoryRecommendation(trajectory, slope),
		Confidence:     "moderate",
		ForecastedAt:   now,
	}
}

// buildTimeline buckets events into calendar-day counts, ordered ascending.
// Events without a timestamp are skipped.
func buildTimeline(events []model.Event) []TimelinePoint {
	counts := make(map[string]int)
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			continue
		}
		counts[ev.Timestamp.UTC().Format("2006-01-02")]++
	}

	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	timeline := make([]TimelinePoint, len(dates))
	for i, d := range dates {
		timeline[i] = TimelinePoint{Date: d, Count: counts[d]}
	}
	return timeline
}

// timelineTrend compares the mean of the first half against the second:
// a rise over 20% is increasing, a fall over 20% is decreasing.
func timelineTrend(timeline []TimelinePoint) string {
	if len(timeline) < 3 {
		return "insufficient_data"
	}

	values := timelineValues(timeline)
	half := len(values) / 2
	avgFirst := mean(values[:half])
	avgSecond := mean(values[half:])

	switch {
	case avgSecond > avgFirst*1.2:
		return "increasing"
	case avgSecond < avgFirst*0.8:
		return "decreasing"
	default:
		return "stable"
	}
}

// timelineVelocity is the mean day-over-day delta.
func timelineVelocity(timeline []TimelinePoint) float64 {
	if len(timeline) < 2 {
		return 0.0
	}
	values := timelineValues(timeline)
	changes := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		changes = append(changes, values[i]-values[i-1])
	}
	return mean(changes)
}

func describeVelocity(velocity float64) string {
	switch {
	case velocity > 5:
		return "rapidly_increasing"
	case velocity > 2:
		return "increasing"
	case velocity > -2:
		return "stable"
	case velocity > -5:
		return "decreasing"
	default:
		return "rapidly_decreasing"
	}
}

// forecastCounts projects the mean count forward at flat velocity.
func forecastCounts(timeline []TimelinePoint, velocity float64, daysAhead int) []ForecastPoint {
	if len(timeline) < 3 {
		return []ForecastPoint{}
	}
	avg := mean(timelineValues(timeline))
	forecast := make([]ForecastPoint, 0, daysAhead)
	for day := 1; day <= daysAhead; day++ {
		predicted := avg + velocity*float64(day)
		if predicted < 0 {
			predicted = 0
		}
		forecast = append(forecast, ForecastPoint{Day: day, PredictedCount: round1(predicted)})
	}
	return forecast
}

func timelinePatterns(timeline []TimelinePoint) []string {
	if len(timeline) < 7 {
		return nil
	}

	values := timelineValues(timeline)
	m := mean(values)
	sd := stdev(values)

	spikes := 0
	for _, v := range values {
		if v > m+2*sd {
			spikes++
		}
	}
	if spikes == 0 {
		return nil
	}
	return []string{fmt.Sprintf("Detected %d spike(s) above normal", spikes)}
}

// timelineConfidence scales with the number of distinct observed days.
func timelineConfidence(timeline []TimelinePoint) string {
	switch {
	case len(timeline) < 7:
		return "low"
	case len(timeline) < 30:
		return "moderate"
	default:
		return "high"
	}
}

func exposureScore(asset model.Asset) float64 {
	caps := asset.EffectiveCapabilities()
	switch {
	case caps.HasAny(model.CapInternetFacing, model.CapPublic):
		return 1.0
	case caps.Has(model.CapDMZ):
		return 0.7
	case caps.Has(model.CapInternal):
		return 0.3
	default:
		return 0.5
	}
}

func criticalityScore(c model.Criticality) float64 {
	switch c {
	case model.CriticalityCritical:
		return 1.0
	case model.CriticalityHigh:
		return 0.7
	case model.CriticalityMedium:
		return 0.5
	case model.CriticalityLow:
		return 0.3
	default:
		return 0.5
	}
}

func threatLandscapeScore(threatIntel []model.ThreatRecord) float64 {
	if len(threatIntel) == 0 {
		return 0.3
	}
	active := 0
	for _, t := range threatIntel {
		if t.ActiveExploitation || t.TargetedCampaign {
			active++
		}
	}
	return math.Min(1.0, float64(active)/10.0+0.3)
}

func historicalTargetingScore(assetID string, attacks []model.AttackRecord) float64 {
	count := 0
	for _, a := range attacks {
		if a.TargetAssetID == assetID {
			count++
		}
	}
	return math.Min(1.0, float64(count)/5.0)
}

func attackTimeframe(likelihood float64) string {
	switch {
	case likelihood >= 0.8:
		return "within_days"
	case likelihood >= 0.6:
		return "within_weeks"
	case likelihood >= 0.4:
		return "within_months"
	default:
		return "beyond_quarter"
	}
}

func likelihoodLabel(likelihood float64) string {
	switch {
	case likelihood >= 0.8:
		return "very_high"
	case likelihood >= 0.6:
		return "high"
	case likelihood >= 0.4:
		return "moderate"
	case likelihood >= 0.2:
		return "low"
	default:
		return "very_low"
	}
}

func protectionRecommendations(likelihood float64, asset model.Asset) []string {
	recs := make([]string, 0, 5)
	if likelihood >= 0.7 {
		recs = append(recs, "Implement 24/7 monitoring for this asset")
		recs = append(recs, "Consider moving to more secure network segment")
	}
	if likelihood >= 0.5 {
		recs = append(recs, "Ensure all patches are current")
		recs = append(recs, "Review and strengthen access controls")
	}
	if asset.EffectiveCapabilities().Has(model.CapInternetFacing) {
		recs = append(recs, "Consider WAF or additional perimeter defense")
	}
	recs = append(recs, "Regular security assessments recommended")
	return recs
}

func trajectoryRecommendation(trajectory string, slope float64) string {
	switch trajectory {
	case "increasing":
		if slope > 0.2 {
			return "URGENT: Risk rapidly increasing - immediate intervention required"
		}
		return "Risk trending upward - review security posture"
	case "decreasing":
		return "Risk decreasing - current controls effective"
	default:
		return "Risk stable - maintain current security measures"
	}
}

func countMentions(records []model.ThreatRecord) (actors, malware map[string]int) {
	actors = make(map[string]int)
	malware = make(map[string]int)
	for _, r := range records {
		if r.ThreatActor != "" {
			actors[r.ThreatActor]++
		}
		if r.MalwareFamily != "" {
			malware[r.MalwareFamily]++
		}
	}
	return actors, malware
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func timelineValues(timeline []TimelinePoint) []float64 {
	values := make([]float64, len(timeline))
	for i, pt := range timeline {
		values[i] = float64(pt.Count)
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdev is the sample standard deviation; a single value yields 0.
func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// olsSlope is the ordinary least squares slope of values against their
// index. A degenerate denominator resolves to 0 rather than an error.
func olsSlope(y []float64) float64 {
	n := len(y)
	if n < 2 {
		return 0.0
	}
	xMean := float64(n-1) / 2
	yMean := mean(y)

	var num, den float64
	for i, v := range y {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0.0
	}
	return num / den
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
