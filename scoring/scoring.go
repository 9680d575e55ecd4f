// Package scoring implements the Impact IQ calculation formulas. The math is
// deliberately transparent: tier brackets, growth constants and ring weights
// all come from the public catalog tables so users can verify exactly how
// their score moves.
package scoring

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lumeiq/core/catalog"
	"github.com/lumeiq/core/types"
)

// Formula constants
const (
	// BaseInitialIQ is the starting point before baseline adjustments
	BaseInitialIQ = 40.0

	// RingSeedBase is the starting point of every ring before adjustments
	RingSeedBase = 30.0

	// RingSeedFactor scales the baseline impact when seeding rings
	RingSeedFactor = 1.5

	// MaxIQChangePerEvent caps the IQ gain of any single event, applied
	// before the verification boost
	MaxIQChangePerEvent = 6.0

	// VerificationBoost multiplies points and IQ change for photo-verified
	// actions
	VerificationBoost = 1.15

	// MaxTotalMultiplier caps the combined rarity/weight/consistency
	// multiplier
	MaxTotalMultiplier = 2.5
)

// IQResult is the outcome of one IQ update.
type IQResult struct {
	NewIQ    float64 `json:"new_iq"`
	IQChange float64 `json:"iq_change"`
}

// Engine evaluates the scoring formulas. It is stateless; every method takes
// all of its inputs as arguments.
type Engine struct {
	log *zap.Logger
}

// NewEngine creates a scoring engine. A nil logger silences the engine.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

var defaultEngine = NewEngine(nil)

// TierFromIQ returns the tier bracket containing iq. Fractional scores can
// land in the gaps between brackets (59.4 sits between 59 and 60); those map
// to the lowest tier.
func (e *Engine) TierFromIQ(iq float64) types.TierLevel {
	for _, def := range catalog.TierDefinitions {
		if iq >= def.Min && iq <= def.Max {
			return def.Tier
		}
	}
	e.log.Debug("iq between tier brackets", zap.Float64("iq", iq))
	return types.TierFoundation
}

// TierFromIQ is the package-level convenience form.
func TierFromIQ(iq float64) types.TierLevel {
	return defaultEngine.TierFromIQ(iq)
}

// InitialIQ seeds a new user's IQ from the onboarding questionnaire: the
// three answer impacts are summed onto a base of 40 and clamped.
func (e *Engine) InitialIQ(baseline types.Baseline) float64 {
	total := catalog.ImpactOf(catalog.CommuteTypes, baseline.CommuteType) +
		catalog.ImpactOf(catalog.DietTypes, baseline.DietType) +
		catalog.ImpactOf(catalog.ClothingFrequencies, baseline.ClothingFrequency)
	return types.ClampScore(BaseInitialIQ + total)
}

// InitialRings seeds each ring from its related questionnaire answer. The
// ring formula intentionally differs from the IQ seeding formula; the two
// are never re-synchronized.
func (e *Engine) InitialRings(baseline types.Baseline) types.RingValues {
	return types.RingValues{
		Circularity: types.ClampScore(RingSeedBase + catalog.ImpactOf(catalog.ClothingFrequencies, baseline.ClothingFrequency)*RingSeedFactor),
		Consumption: types.ClampScore(RingSeedBase + catalog.ImpactOf(catalog.DietTypes, baseline.DietType)*RingSeedFactor),
		Mobility:    types.ClampScore(RingSeedBase + catalog.ImpactOf(catalog.CommuteTypes, baseline.CommuteType)*RingSeedFactor),
	}
}

// InitialIQ is the package-level convenience form.
func InitialIQ(baseline types.Baseline) float64 {
	return defaultEngine.InitialIQ(baseline)
}

// InitialRings is the package-level convenience form.
func InitialRings(baseline types.Baseline) types.RingValues {
	return defaultEngine.InitialRings(baseline)
}

// BlendedProgressIndex computes the weighted average of the positive ring
// deltas. Rings that did not improve are excluded from numerator and
// denominator alike, so a decrease never dilutes the index. No improvement
// at all yields zero.
func BlendedProgressIndex(changes types.RingValues) float64 {
	totalImprovement := 0.0
	totalWeight := 0.0
	for _, ring := range types.Rings {
		delta := changes.Get(ring)
		if delta > 0 {
			w := catalog.RingWeights[ring]
			totalImprovement += delta * w
			totalWeight += w
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return totalImprovement / totalWeight
}

// NewIQ applies the saturating-growth formula to one event's ring changes:
//
//	iqChange = (100 - currentIQ) * (1 - e^(-k * BPI))
//
// capped at +6, boosted by 1.15 when verified, rounded to one decimal. IQ
// asymptotically approaches 100 and never decreases through this path.
func (e *Engine) NewIQ(currentIQ float64, ringChanges types.RingValues, verified bool) IQResult {
	tier := e.TierFromIQ(currentIQ)
	k, ok := catalog.TierGrowthRates[tier]
	if !ok {
		e.log.Error("no growth rate for tier", zap.String("tier", string(tier)))
		k = catalog.TierGrowthRates[types.TierFoundation]
	}

	bpi := BlendedProgressIndex(ringChanges)

	iqChange := (types.MaxScore - currentIQ) * (1 - math.Exp(-k*bpi))
	if iqChange > MaxIQChangePerEvent {
		iqChange = MaxIQChangePerEvent
	}
	if verified {
		iqChange *= VerificationBoost
	}
	iqChange = roundTo(iqChange, 1)

	newIQ := currentIQ + iqChange
	if newIQ > types.MaxScore {
		newIQ = types.MaxScore
	}
	return IQResult{NewIQ: newIQ, IQChange: iqChange}
}

// NewIQ is the package-level convenience form.
func NewIQ(currentIQ float64, ringChanges types.RingValues, verified bool) IQResult {
	return defaultEngine.NewIQ(currentIQ, ringChanges, verified)
}

// ApplyImpactMode adds basePoints*multiplier (boosted 1.15 when verified) to
// the named ring, clamping at 100. Other rings are untouched. An unknown
// ring is logged and leaves the values unchanged.
func (e *Engine) ApplyImpactMode(ring types.Ring, basePoints, multiplier float64, current types.RingValues, verified bool) types.RingValues {
	boost := 1.0
	if verified {
		boost = VerificationBoost
	}
	actualPoints := basePoints * multiplier * boost

	updated := current
	if !updated.Set(ring, types.ClampScore(current.Get(ring)+actualPoints)) {
		e.log.Error("unknown ring in impact mode", zap.String("ring", string(ring)))
		return current
	}
	return updated
}

// ApplyImpactMode is the package-level convenience form.
func ApplyImpactMode(ring types.Ring, basePoints, multiplier float64, current types.RingValues, verified bool) types.RingValues {
	return defaultEngine.ApplyImpactMode(ring, basePoints, multiplier, current, verified)
}

// TotalMultiplier combines the rarity, sustainability-weight and consistency
// factors with the verification boost, capped at 2.5.
func TotalMultiplier(rarityFactor, sustainabilityWeight, consistencyFactor float64, verified bool) float64 {
	boost := 1.0
	if verified {
		boost = VerificationBoost
	}
	total := rarityFactor * sustainabilityWeight * consistencyFactor * boost
	if total > MaxTotalMultiplier {
		return MaxTotalMultiplier
	}
	return total
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// LeaderboardEntry is the slice of a leaderboard needed for percentiles.
type LeaderboardEntry struct {
	IQ   float64 `json:"iq"`
	City string  `json:"city"`
}

// CityPercentile returns the share of same-city users with a lower IQ,
// rounded to a whole percent. An empty city cohort reads as the median.
func CityPercentile(iq float64, city string, leaderboard []LeaderboardEntry) int {
	cohort := 0
	below := 0
	for _, entry := range leaderboard {
		if entry.City != city {
			continue
		}
		cohort++
		if entry.IQ < iq {
			below++
		}
	}
	if cohort == 0 {
		return 50
	}
	return int(math.Round(float64(below) / float64(cohort) * 100))
}

// IQHistoryPoint is one day of reconstructed IQ history.
type IQHistoryPoint struct {
	Date string  `json:"date"`
	IQ   float64 `json:"iq"`
}

// IQHistory reconstructs the user's IQ for the last days calendar days by
// walking today's IQ backwards, subtracting each day's logged IQChange.
// Points come back oldest first.
func IQHistory(user *types.User, days int, now time.Time) []IQHistoryPoint {
	if user == nil || days < 0 {
		return nil
	}

	logsByDate := make(map[string]types.DailyLog, len(user.DailyLogs))
	for _, l := range user.DailyLogs {
		logsByDate[l.Date] = l
	}

	points := make([]IQHistoryPoint, days+1)
	iq := user.IQ
	for i := 0; i <= days; i++ {
		date := types.DateOf(now.AddDate(0, 0, -i))
		points[days-i] = IQHistoryPoint{Date: date, IQ: roundTo(iq, 1)}
		if l, ok := logsByDate[date]; ok {
			iq = math.Max(types.MinScore, iq-l.IQChange)
		}
	}
	return points
}
