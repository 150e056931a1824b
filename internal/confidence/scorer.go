// Package confidence converts source attribution and observation age into
// confidence values using structured analytic technique conventions.
package confidence

import (
	"strings"
	"time"

	"github.com/elchacal801/sentinel/internal/model"
)

// DefaultDecayDays is the default confidence decay horizon.
const DefaultDecayDays = 30

// DefaultReputation is assumed when a source carries no reputation score.
const DefaultReputation = 0.8

// baseConfidence holds the base confidence per collection discipline.
// Built once at init; never mutated.
var baseConfidence = map[model.SourceType]float64{
	model.SourceOSINT:  0.70, // open source, verifiable but may be stale
	model.SourceSIGINT: 0.85, // signals, technical, hard to spoof
	model.SourceCYBINT: 0.90, // cyber, technical, verifiable
	model.SourceGEOINT: 0.80, // geographic, visual, verifiable
	model.SourceHUMINT: 0.60, // human, valuable but subjective
}

const unknownSourceConfidence = 0.5

// SourceConfidence scores a single source from its type and reputation.
// Unknown source types fall back to a neutral base; the result is the mean
// of the base and the reputation.
func SourceConfidence(sourceType model.SourceType, reputation float64) float64 {
	base, ok := baseConfidence[model.SourceType(strings.ToLower(string(sourceType)))]
	if !ok {
		base = unknownSourceConfidence
	}
	return (base + reputation) / 2
}

// MultiSourceConfidence scores corroboration across multiple sources.
//
// The first source in the list is the primary and seeds the score. Each
// subsequent source adds 15% of its own confidence when its type differs
// from the primary's, 5% when it matches, clamping to 1.0 after each
// addition. A diversity bonus of 0.05 per distinct type beyond the first is
// added last. Input order is significant and preserved.
func MultiSourceConfidence(sources []model.Source) float64 {
	if len(sources) == 0 {
		return 0.0
	}

	if len(sources) == 1 {
		return SourceConfidence(sources[0].Type, sources[0].Reputation)
	}

	primary := sources[0]
	primaryType := strings.ToLower(string(primary.Type))
	conf := SourceConfidence(primary.Type, primary.Reputation)

	types := make(map[string]bool)
	for _, s := range sources {
		types[strings.ToLower(string(s.Type))] = true
	}

	for _, s := range sources[1:] {
		sourceConf := SourceConfidence(s.Type, s.Reputation)
		if strings.ToLower(string(s.Type)) != primaryType {
			conf = clamp1(conf + sourceConf*0.15)
		} else {
			conf = clamp1(conf + sourceConf*0.05)
		}
	}

	diversityBonus := float64(len(types)-1) * 0.05
	return clamp1(conf + diversityBonus)
}

// TemporalConfidence decays confidence linearly with observation age.
// Negative age (future observation) scores 1.0; the floor is 0.1. Both
// timestamps are normalized to UTC before subtraction so mixed-zone inputs
// compare correctly.
func TemporalConfidence(observed, now time.Time, decayDays int) float64 {
	if decayDays <= 0 {
		decayDays = DefaultDecayDays
	}

	ageDays := int(now.UTC().Sub(observed.UTC()).Hours() / 24)
	if ageDays < 0 {
		return 1.0
	}

	conf := 1.0 - float64(ageDays)/float64(decayDays)
	if conf < 0.1 {
		return 0.1
	}
	return conf
}

// Label maps a confidence score to its qualitative band:
// high [0.8,1.0], moderate [0.5,0.8), low [0.2,0.5), minimal [0,0.2).
func Label(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.5:
		return "moderate"
	case score >= 0.2:
		return "low"
	default:
		return "minimal"
	}
}

func clamp1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
