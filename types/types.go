// Package types provides common types and errors for the LumeIQ core packages.
// This package defines the fundamental data structures shared across catalog,
// scoring, trust, transit, rewards and events.
package types

import (
	"errors"
	"fmt"
	"time"
)

// Common Error Definitions
var (
	// General errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrOperationFailed = errors.New("operation failed")

	// User-related errors
	ErrInvalidUserID = errors.New("invalid user ID")
	ErrUserNotFound  = errors.New("user not found")

	// Scoring errors
	ErrScoreOutOfRange = errors.New("score out of valid range")
	ErrUnknownTier     = errors.New("unknown tier")
	ErrUnknownRing     = errors.New("unknown ring")

	// Transit errors
	ErrUnknownMode     = errors.New("unknown transport mode")
	ErrInvalidDistance = errors.New("invalid distance")

	// Reward errors
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponExpired   = errors.New("coupon expired")
	ErrCouponExhausted = errors.New("coupon redemption limit reached")
	ErrInsufficientIQ  = errors.New("impact IQ below coupon threshold")
)

// WrapError wraps an error with additional context
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Score boundaries shared by the IQ and ring scales.
const (
	// MinScore is the floor of the Impact IQ and every ring sub-score
	MinScore = 0.0

	// MaxScore is the ceiling of the Impact IQ and every ring sub-score
	MaxScore = 100.0
)

// TierLevel identifies one of the five Impact IQ brackets.
type TierLevel string

const (
	TierFoundation  TierLevel = "FND"
	TierAware       TierLevel = "Aware"
	TierAligned     TierLevel = "Aligned"
	TierProgressive TierLevel = "Progressive"
	TierVanguard    TierLevel = "Vanguard"
)

// Ring identifies one of the three sub-scores feeding the Impact IQ.
type Ring string

const (
	RingCircularity Ring = "circularity"
	RingConsumption Ring = "consumption"
	RingMobility    Ring = "mobility"
)

// Rings lists all rings in their canonical order.
var Rings = []Ring{RingCircularity, RingConsumption, RingMobility}

// RingValues holds the three bounded [0,100] ring sub-scores. The same
// shape doubles as a per-event delta, where values may be negative.
type RingValues struct {
	Circularity float64 `json:"circularity"`
	Consumption float64 `json:"consumption"`
	Mobility    float64 `json:"mobility"`
}

// Get returns the value for a named ring. Unknown rings read as zero.
func (rv RingValues) Get(ring Ring) float64 {
	switch ring {
	case RingCircularity:
		return rv.Circularity
	case RingConsumption:
		return rv.Consumption
	case RingMobility:
		return rv.Mobility
	}
	return 0
}

// Set writes the value for a named ring and reports whether the ring exists.
func (rv *RingValues) Set(ring Ring, value float64) bool {
	switch ring {
	case RingCircularity:
		rv.Circularity = value
	case RingConsumption:
		rv.Consumption = value
	case RingMobility:
		rv.Mobility = value
	default:
		return false
	}
	return true
}

// Add returns the element-wise sum of two ring value sets.
func (rv RingValues) Add(other RingValues) RingValues {
	return RingValues{
		Circularity: rv.Circularity + other.Circularity,
		Consumption: rv.Consumption + other.Consumption,
		Mobility:    rv.Mobility + other.Mobility,
	}
}

// Clamp bounds every ring to the [MinScore, MaxScore] range.
func (rv RingValues) Clamp() RingValues {
	return RingValues{
		Circularity: ClampScore(rv.Circularity),
		Consumption: ClampScore(rv.Consumption),
		Mobility:    ClampScore(rv.Mobility),
	}
}

// ClampScore bounds a scalar to the shared [0,100] score range.
func ClampScore(v float64) float64 {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// Baseline is the onboarding questionnaire result used to seed a user's
// initial IQ and rings.
type Baseline struct {
	CommuteType       string `json:"commute_type"`
	DietType          string `json:"diet_type"`
	ClothingFrequency string `json:"clothing_frequency"`
	City              string `json:"city"`
}

// DailyLog records the aggregate scoring activity for one calendar date.
// At most one log exists per date; same-day events merge into it.
type DailyLog struct {
	Date        string     `json:"date"` // YYYY-MM-DD
	RingChanges RingValues `json:"ring_changes"`
	IQChange    float64    `json:"iq_change"`
	Modes       []string   `json:"modes"`
	Verified    bool       `json:"verified"`
}

// User is the complete impact state for one account.
type User struct {
	ID        string     `json:"id"`
	Baseline  Baseline   `json:"baseline"`
	IQ        float64    `json:"iq"`
	Tier      TierLevel  `json:"tier"`
	Rings     RingValues `json:"rings"`
	DailyLogs []DailyLog `json:"daily_logs"`
	CreatedAt time.Time  `json:"created_at"`
}

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsValid checks the coordinate is within geographic bounds.
func (ll LatLng) IsValid() bool {
	return ll.Lat >= -90 && ll.Lat <= 90 && ll.Lng >= -180 && ll.Lng <= 180
}

// IsZero reports whether the coordinate is the unset zero value.
func (ll LatLng) IsZero() bool {
	return ll.Lat == 0 && ll.Lng == 0
}

// DateOf formats a timestamp as the calendar date key used by DailyLog
// and the scan-abuse gate.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
