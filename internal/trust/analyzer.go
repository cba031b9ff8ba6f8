// Relationship analysis — trend, trajectory, probabilities, turning points.
package trust

import (
	"fmt"
	"sort"
	"time"

	"github.com/talgya/statecraft/internal/config"
	"github.com/talgya/statecraft/internal/faction"
)

// Trend classifies how a pair's trust has moved over the analysis window.
type Trend string

const (
	TrendRapidlyImproving Trend = "rapidly_improving"
	TrendImproving        Trend = "improving"
	TrendStable           Trend = "stable"
	TrendDeclining        Trend = "declining"
	TrendRapidlyDeclining Trend = "rapidly_declining"
	TrendVolatile         Trend = "volatile"
)

// Summary is the computed projection over one pair's trust evolution and
// interaction history. Never persisted; recomputed on demand.
type Summary struct {
	FactionA faction.ID `json:"faction_a"`
	FactionB faction.ID `json:"faction_b"`

	Evolution Evolution `json:"evolution"`
	Category  Category  `json:"category"`
	Trend     Trend     `json:"trend"`
	Predicted Trend     `json:"predicted"`

	AllianceProbability float64 `json:"alliance_probability"`
	ConflictProbability float64 `json:"conflict_probability"`
	StabilityScore      float64 `json:"stability_score"`

	TurningPoints []Interaction `json:"turning_points,omitempty"`

	Status faction.DiplomaticStatus `json:"status,omitempty"`
}

// ErrNoRelationship is returned when a pair has no recorded history.
var ErrNoRelationship = fmt.Errorf("no relationship recorded for pair")

// Analyzer derives relationship summaries from the store.
type Analyzer struct {
	Store  RelationshipStore
	Status faction.StatusProvider // optional, reporting only
	Cal    *config.Calibration
	Now    func() time.Time
}

// NewAnalyzer wires a relationship analyzer.
func NewAnalyzer(store RelationshipStore, cal *config.Calibration) *Analyzer {
	if cal == nil {
		cal = config.Default()
	}
	return &Analyzer{Store: store, Cal: cal, Now: time.Now}
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Summarize computes the full relationship picture for one pair.
func (a *Analyzer) Summarize(x, y faction.ID) (Summary, error) {
	_, ca, cb := KeyFor(x, y)
	ev, err := a.Store.Evolution(ca, cb)
	if err != nil {
		return Summary{}, err
	}
	if ev == nil {
		return Summary{}, fmt.Errorf("%w: %s and %s", ErrNoRelationship, ca, cb)
	}
	history, err := a.Store.Interactions(ca, cb)
	if err != nil {
		return Summary{}, err
	}

	rc := a.Cal.Relationship
	trend := a.classifyTrend(*ev)
	s := Summary{
		FactionA:      ca,
		FactionB:      cb,
		Evolution:     ev.Clone(),
		Category:      ev.Category(),
		Trend:         trend,
		Predicted:     predictTrajectory(trend, ev.BaselineCompatibility, rc),
		TurningPoints: turningPoints(history, rc),
	}

	mean := ev.MeanTrust()
	compat := ev.BaselineCompatibility
	vol := ev.Volatility

	// Alliance odds grow with trust and compatibility and shrink with
	// volatility; conflict odds grow as trust sinks below the low-trust
	// line, with volatility, and with incompatibility.
	s.AllianceProbability = clamp01(0.5*mean + 0.4*compat - 0.4*vol)
	deficit := 0.0
	if mean < rc.LowCompatibility {
		deficit = rc.LowCompatibility - mean
	}
	s.ConflictProbability = clamp01(1.5*deficit + 0.4*vol + 0.3*(1-compat))
	s.StabilityScore = clamp01(mean * (1 - vol))

	if a.Status != nil {
		if status, err := a.Status.Status(ca, cb); err == nil {
			s.Status = status
		}
	}
	return s, nil
}

// classifyTrend compares the windowed start and end of the mean trust.
// High volatility overrides the directional reading.
func (a *Analyzer) classifyTrend(ev Evolution) Trend {
	rc := a.Cal.Relationship
	if ev.Volatility > rc.VolatilityThreshold {
		return TrendVolatile
	}
	if len(ev.History) < 2 {
		return TrendStable
	}
	windowStart := a.now().Add(-time.Duration(rc.TrendWindowDays) * 24 * time.Hour)
	// Trust is a step function: its value at the window start is the latest
	// sample at or before that instant, carried forward.
	start := ev.History[0]
	for _, s := range ev.History[1:] {
		if s.At.After(windowStart) {
			break
		}
		start = s
	}
	end := ev.History[len(ev.History)-1]
	delta := mean(end) - mean(start)
	switch {
	case delta > rc.RapidTrendThreshold:
		return TrendRapidlyImproving
	case delta > rc.SlowTrendThreshold:
		return TrendImproving
	case delta < -rc.RapidTrendThreshold:
		return TrendRapidlyDeclining
	case delta < -rc.SlowTrendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(s Sample) float64 {
	return (s.ATrustB + s.BTrustA) / 2
}

// predictTrajectory nudges a declining trend upward for highly compatible
// pairs (mean reversion) and an improving trend downward for incompatible
// ones.
func predictTrajectory(current Trend, compat float64, rc config.RelationshipCal) Trend {
	if compat > rc.HighCompatibility {
		switch current {
		case TrendRapidlyDeclining:
			return TrendDeclining
		case TrendDeclining:
			return TrendStable
		}
	}
	if compat < rc.LowCompatibility {
		switch current {
		case TrendRapidlyImproving:
			return TrendImproving
		case TrendImproving:
			return TrendStable
		}
	}
	return current
}

// turningPoints returns the most significant interactions by trust impact
// magnitude, limited to the configured count.
func turningPoints(history []Interaction, rc config.RelationshipCal) []Interaction {
	var significant []Interaction
	for _, rec := range history {
		if abs(rec.TrustImpact) > rc.SignificanceThreshold {
			significant = append(significant, rec)
		}
	}
	sort.SliceStable(significant, func(i, j int) bool {
		return abs(significant[i].TrustImpact) > abs(significant[j].TrustImpact)
	})
	if len(significant) > rc.TurningPointLimit {
		significant = significant[:rc.TurningPointLimit]
	}
	return significant
}
