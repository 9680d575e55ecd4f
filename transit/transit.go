// Package transit implements the deterministic route emission comparison and
// carbon-saving bonus. Emissions use fixed per-mode factors against a car
// baseline; no external routing API is involved, so the calculator works
// fully offline.
package transit

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumeiq/core/catalog"
	"github.com/lumeiq/core/store"
	"github.com/lumeiq/core/types"
)

// Bounded log sizes
const (
	maxRouteHistory = 50
	maxEmissionLogs = 200
)

// Storage keys
const (
	routeHistoryKey = "lumeiq_route_history"
	emissionLogsKey = "lumeiq_emission_logs"
)

// MaxMobilityRingImpact caps the mobility ring gain of a single confirmed
// route. This cap is independent of the scoring engine's own per-event IQ
// cap; both can bind on the same event.
const MaxMobilityRingImpact = 15.0

// RingImpactScale converts the IQ bonus into mobility ring points.
const RingImpactScale = 3.0

// RouteRequest describes one (start, end) trip query. DistanceKm may be
// supplied directly; when zero, it is derived from the coordinates.
type RouteRequest struct {
	StartLocation string       `json:"start_location"`
	EndLocation   string       `json:"end_location"`
	StartCoord    types.LatLng `json:"start_coord,omitempty"`
	EndCoord      types.LatLng `json:"end_coord,omitempty"`
	DistanceKm    float64      `json:"distance_km"`
}

// RouteOption is one transport mode's emission and duration for a request.
type RouteOption struct {
	Mode            catalog.TransportMode `json:"mode"`
	DistanceKm      float64               `json:"distance_km"`
	EmissionGrams   float64               `json:"emission_grams"`
	DurationMinutes float64               `json:"duration_minutes"`
	Label           string                `json:"label"`
}

// RouteComparison is an immutable snapshot of the emission options for one
// request, sorted ascending by emission.
type RouteComparison struct {
	ID           string       `json:"id"`
	Request      RouteRequest `json:"request"`
	Options      []RouteOption `json:"options"`
	CarEmission  float64      `json:"car_emission"`
	CalculatedAt time.Time    `json:"calculated_at"`
}

// RouteConfirmation is the append-only record of the option a user chose.
type RouteConfirmation struct {
	ID                string                `json:"id"`
	RouteComparisonID string                `json:"route_comparison_id"`
	UserID            string                `json:"user_id"`
	SelectedMode      catalog.TransportMode `json:"selected_mode"`
	CarbonSavedGrams  float64               `json:"carbon_saved_grams"`
	ImpactBonus       float64               `json:"impact_bonus"`
	ConfirmedAt       time.Time             `json:"confirmed_at"`
}

// RouteHistoryEntry pairs a comparison with the confirmation made from it.
type RouteHistoryEntry struct {
	Comparison   RouteComparison   `json:"comparison"`
	Confirmation RouteConfirmation `json:"confirmation"`
}

// EmissionLog is one day's emission record for a confirmed route.
type EmissionLog struct {
	ID               string                `json:"id"`
	UserID           string                `json:"user_id"`
	Date             string                `json:"date"`
	Mode             catalog.TransportMode `json:"mode"`
	DistanceKm       float64               `json:"distance_km"`
	EmissionGrams    float64               `json:"emission_grams"`
	CarbonSavedGrams float64               `json:"carbon_saved_grams"`
}

// CarbonSaving is the derived benefit of choosing a mode over the car
// baseline.
type CarbonSaving struct {
	CarbonSavedGrams float64 `json:"carbon_saved_grams"`
	ImpactBonus      float64 `json:"impact_bonus"`
}

// PopularRoute is a preset trip shown before the user has any history.
type PopularRoute struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	DistanceKm float64 `json:"distance_km"`
}

// PopularRoutes are the built-in Bengaluru presets.
var PopularRoutes = []PopularRoute{
	{Start: "Koramangala", End: "Electronic City", DistanceKm: 16},
	{Start: "Indiranagar", End: "Whitefield", DistanceKm: 14},
	{Start: "MG Road", End: "HSR Layout", DistanceKm: 10},
	{Start: "Jayanagar", End: "Marathahalli", DistanceKm: 18},
	{Start: "BTM Layout", End: "Yelahanka", DistanceKm: 25},
	{Start: "Malleshwaram", End: "Silk Board", DistanceKm: 12},
}

// Engine computes route comparisons and persists confirmations.
type Engine struct {
	mu    sync.Mutex
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewEngine creates a transit engine. A nil logger silences it.
func NewEngine(s store.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, log: log, now: time.Now}
}

// WithClock overrides the engine clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CalculateRouteOptions builds the emission comparison for a request.
// Impractical modes are excluded (walking beyond 5 km, cycling beyond
// 15 km); the rest are sorted ascending by emission. The car baseline
// emission is always carried for comparison rendering.
func (e *Engine) CalculateRouteOptions(req RouteRequest) (*RouteComparison, error) {
	distance, err := e.resolveDistance(req)
	if err != nil {
		return nil, err
	}
	req.DistanceKm = distance

	options := make([]RouteOption, 0, len(catalog.TransportModes))
	for _, mode := range catalog.TransportModes {
		if !catalog.IsPractical(mode, distance) {
			continue
		}
		options = append(options, RouteOption{
			Mode:            mode,
			DistanceKm:      distance,
			EmissionGrams:   math.Round(distance * catalog.EmissionFactors[mode]),
			DurationMinutes: math.Round(distance / catalog.SpeedEstimates[mode] * 60),
			Label:           catalog.ModeLabels[mode],
		})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].EmissionGrams < options[j].EmissionGrams
	})

	return &RouteComparison{
		ID:           uuid.NewString(),
		Request:      req,
		Options:      options,
		CarEmission:  math.Round(distance * catalog.EmissionFactors[catalog.ModeCar]),
		CalculatedAt: e.now(),
	}, nil
}

func (e *Engine) resolveDistance(req RouteRequest) (float64, error) {
	if req.DistanceKm > 0 {
		return req.DistanceKm, nil
	}
	if !req.StartCoord.IsZero() && !req.EndCoord.IsZero() {
		if !req.StartCoord.IsValid() || !req.EndCoord.IsValid() {
			return 0, fmt.Errorf("%w: coordinates out of range", types.ErrInvalidInput)
		}
		return RouteDistanceKm(req.StartCoord, req.EndCoord), nil
	}
	return 0, fmt.Errorf("%w: %v km", types.ErrInvalidDistance, req.DistanceKm)
}

// CalculateCarbonSaved derives the grams saved against the car baseline and
// the resulting IQ bonus. An unknown mode is logged and treated as
// zero-emission.
func (e *Engine) CalculateCarbonSaved(distanceKm float64, mode catalog.TransportMode) CarbonSaving {
	factor, ok := catalog.EmissionFactors[mode]
	if !ok {
		e.log.Error("unknown transport mode", zap.String("mode", string(mode)))
		factor = 0
	}
	carEmission := distanceKm * catalog.EmissionFactors[catalog.ModeCar]
	saved := math.Max(0, math.Round(carEmission-distanceKm*factor))
	bonus := math.Round(saved*catalog.CarbonConversionFactor*100) / 100
	return CarbonSaving{CarbonSavedGrams: saved, ImpactBonus: bonus}
}

// ConfirmRoute records the user's mode choice for a comparison, appending a
// route history entry and an emission log feeding the cumulative stats.
func (e *Engine) ConfirmRoute(comparison *RouteComparison, userID string, mode catalog.TransportMode) (*RouteConfirmation, error) {
	if comparison == nil {
		return nil, fmt.Errorf("%w: nil comparison", types.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	saving := e.CalculateCarbonSaved(comparison.Request.DistanceKm, mode)
	confirmation := RouteConfirmation{
		ID:                uuid.NewString(),
		RouteComparisonID: comparison.ID,
		UserID:            userID,
		SelectedMode:      mode,
		CarbonSavedGrams:  saving.CarbonSavedGrams,
		ImpactBonus:       saving.ImpactBonus,
		ConfirmedAt:       now,
	}

	store.AppendBounded(e.store, routeHistoryKey, RouteHistoryEntry{
		Comparison:   *comparison,
		Confirmation: confirmation,
	}, maxRouteHistory, e.log)

	factor := catalog.EmissionFactors[mode]
	store.AppendBounded(e.store, emissionLogsKey, EmissionLog{
		ID:               uuid.NewString(),
		UserID:           userID,
		Date:             types.DateOf(now),
		Mode:             mode,
		DistanceKm:       comparison.Request.DistanceKm,
		EmissionGrams:    math.Round(comparison.Request.DistanceKm * factor),
		CarbonSavedGrams: saving.CarbonSavedGrams,
	}, maxEmissionLogs, e.log)

	return &confirmation, nil
}

// RouteHistory returns the recorded comparisons and confirmations.
func (e *Engine) RouteHistory() []RouteHistoryEntry {
	return store.LoadList[RouteHistoryEntry](e.store, routeHistoryKey, e.log)
}

// EmissionLogs returns the emission records, optionally filtered to a user.
func (e *Engine) EmissionLogs(userID string) []EmissionLog {
	logs := store.LoadList[EmissionLog](e.store, emissionLogsKey, e.log)
	if userID == "" {
		return logs
	}
	var out []EmissionLog
	for _, l := range logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out
}

// TotalCarbonSaved sums the user's saved grams over the emission log.
func (e *Engine) TotalCarbonSaved(userID string) float64 {
	total := 0.0
	for _, l := range e.EmissionLogs(userID) {
		total += l.CarbonSavedGrams
	}
	return total
}

// TotalEcoRoutes counts the user's confirmed non-car routes.
func (e *Engine) TotalEcoRoutes(userID string) int {
	count := 0
	for _, l := range e.EmissionLogs(userID) {
		if l.Mode != catalog.ModeCar {
			count++
		}
	}
	return count
}

// RouteRingImpact maps a route's IQ bonus onto the mobility ring, scaled up
// for visibility and capped at MaxMobilityRingImpact per event.
func RouteRingImpact(impactBonus float64) types.RingValues {
	return types.RingValues{
		Mobility: math.Min(impactBonus*RingImpactScale, MaxMobilityRingImpact),
	}
}
