package scoring

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumeiq/core/catalog"
	"github.com/lumeiq/core/types"
)

// MergeDailyLog folds entry into logs, keeping at most one log per calendar
// date. A same-date entry sums ring and IQ changes, unions the mode list and
// ORs the verified flag.
func MergeDailyLog(logs []types.DailyLog, entry types.DailyLog) []types.DailyLog {
	for i := range logs {
		if logs[i].Date != entry.Date {
			continue
		}
		logs[i].RingChanges = logs[i].RingChanges.Add(entry.RingChanges)
		logs[i].IQChange += entry.IQChange
		logs[i].Modes = unionModes(logs[i].Modes, entry.Modes)
		logs[i].Verified = logs[i].Verified || entry.Verified
		return logs
	}
	return append(logs, entry)
}

func unionModes(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, m := range append(append([]string{}, a...), b...) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// LogsForDateRange returns the user's logs for the trailing days window.
func LogsForDateRange(user *types.User, days int, now time.Time) []types.DailyLog {
	if user == nil {
		return nil
	}
	cutoff := types.DateOf(now.AddDate(0, 0, -days))
	var out []types.DailyLog
	for _, l := range user.DailyLogs {
		if l.Date >= cutoff && l.Date <= types.DateOf(now) {
			out = append(out, l)
		}
	}
	return out
}

// NewUser creates a user from the onboarding questionnaire, seeding IQ,
// tier and rings.
func (e *Engine) NewUser(baseline types.Baseline, now time.Time) *types.User {
	iq := e.InitialIQ(baseline)
	return &types.User{
		ID:        uuid.NewString(),
		Baseline:  baseline,
		IQ:        iq,
		Tier:      e.TierFromIQ(iq),
		Rings:     e.InitialRings(baseline),
		DailyLogs: []types.DailyLog{},
		CreatedAt: now,
	}
}

// ModeActivation summarizes one impact-mode activation applied to a user.
type ModeActivation struct {
	ModeID      string           `json:"mode_id"`
	RingChanges types.RingValues `json:"ring_changes"`
	IQChange    float64          `json:"iq_change"`
	NewIQ       float64          `json:"new_iq"`
	NewTier     types.TierLevel  `json:"new_tier"`
	Verified    bool             `json:"verified"`
}

// ActivateMode applies a catalog impact mode to the user in place: rings
// move first, the ring deltas drive the IQ formula, the tier is re-derived
// from the new IQ, and the day's log is merged.
func (e *Engine) ActivateMode(user *types.User, modeID string, verified bool, now time.Time) (*ModeActivation, error) {
	if user == nil {
		return nil, types.ErrUserNotFound
	}
	mode := catalog.ImpactModeByID(modeID)
	if mode == nil {
		return nil, fmt.Errorf("%w: impact mode %q", types.ErrNotFound, modeID)
	}

	newRings := e.ApplyImpactMode(mode.Ring, mode.BasePoints, mode.Multiplier, user.Rings, verified)
	ringChanges := types.RingValues{
		Circularity: newRings.Circularity - user.Rings.Circularity,
		Consumption: newRings.Consumption - user.Rings.Consumption,
		Mobility:    newRings.Mobility - user.Rings.Mobility,
	}

	result := e.NewIQ(user.IQ, ringChanges, verified)

	user.Rings = newRings
	user.IQ = result.NewIQ
	user.Tier = e.TierFromIQ(result.NewIQ)
	user.DailyLogs = MergeDailyLog(user.DailyLogs, types.DailyLog{
		Date:        types.DateOf(now),
		RingChanges: ringChanges,
		IQChange:    result.IQChange,
		Modes:       []string{modeID},
		Verified:    verified,
	})

	return &ModeActivation{
		ModeID:      modeID,
		RingChanges: ringChanges,
		IQChange:    result.IQChange,
		NewIQ:       result.NewIQ,
		NewTier:     user.Tier,
		Verified:    verified,
	}, nil
}
