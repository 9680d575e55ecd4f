// Package trust implements device fingerprinting, fraud flagging, trust
// scoring and scan-abuse prevention. Trust scores are heuristics in the
// 0.0-1.0 range, not a security boundary: they cap how many points a
// suspicious account can earn, they never authenticate anyone.
package trust

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumeiq/core/store"
)

// Error definitions
var (
	ErrFlagNotFound = errors.New("fraud flag not found")
	ErrInvalidUser  = errors.New("invalid user ID")
)

// Constants
const (
	// BaseTrustScore anchors every trust computation
	BaseTrustScore = 0.7

	// UntrustedDeviceFactor discounts accounts on shared devices
	UntrustedDeviceFactor = 0.7

	// ConsistencyMaturityDays is the account age at which the consistency
	// factor saturates at 1.0
	ConsistencyMaturityDays = 30

	// FraudPenaltyBase is the per-unresolved-flag geometric decay
	FraudPenaltyBase = 0.8

	// ReceiptBoost is the flat trust addition for a provided receipt
	ReceiptBoost = 0.15

	// MultiplierFloor is the lowest fraud multiplier ever applied; earned
	// points are reduced, never fully zeroed
	MultiplierFloor = 0.3

	// ScanCooldown blocks re-scanning the same product
	ScanCooldown = 4 * time.Hour

	// MaxScansPerDay is the per-user daily scan cap
	MaxScansPerDay = 10

	// RapidScanWindow and RapidScanThreshold define the velocity check that
	// raises a rapid_scan flag
	RapidScanWindow    = 5 * time.Minute
	RapidScanThreshold = 5

	// Bounded log sizes
	maxFraudFlags   = 100
	maxTrustRecords = 50
	maxScanEntries  = 200
)

// Storage keys
const (
	deviceRegistryKey = "lumeiq_device_registry"
	fraudFlagsKey     = "lumeiq_fraud_flags"
	trustScoresKey    = "lumeiq_trust_scores"
	scanLogKey        = "lumeiq_scan_abuse_log"
)

// FlagType classifies a fraud suspicion.
type FlagType string

const (
	FlagMultiAccount      FlagType = "multi_account"
	FlagRapidScan         FlagType = "rapid_scan"
	FlagDuplicateReceipt  FlagType = "duplicate_receipt"
	FlagSuspiciousPattern FlagType = "suspicious_pattern"
)

// Severity grades a fraud flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityMultipliers maps severity to its point-earning discount. Multiple
// unresolved flags compound multiplicatively.
var SeverityMultipliers = map[Severity]float64{
	SeverityLow:    0.9,
	SeverityMedium: 0.7,
	SeverityHigh:   0.5,
}

// FraudFlag is a recorded suspicion event. Flags are never auto-deleted;
// Resolved is the only mutable field.
type FraudFlag struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id"`
	DeviceFingerprint string   `json:"device_fingerprint"`
	Type              FlagType `json:"type"`
	Severity          Severity `json:"severity"`
	Description       string   `json:"description"`
	FlaggedAt         time.Time `json:"flagged_at"`
	Resolved          bool     `json:"resolved"`
}

// DeviceRecord is one (user, device) registration.
type DeviceRecord struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	Platform          string    `json:"platform"`
	RegisteredAt      time.Time `json:"registered_at"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	Trusted           bool      `json:"trusted"`
}

// TrustFactors are the inputs behind one trust score, retained for audit.
type TrustFactors struct {
	ReceiptProvided  bool    `json:"receipt_provided"`
	AccountAgeDays   int     `json:"account_age_days"`
	ConsistencyScore float64 `json:"consistency_score"`
	FraudFlagCount   int     `json:"fraud_flag_count"`
	DeviceTrusted    bool    `json:"device_trusted"`
}

// TrustScoreRecord is one full trust computation. The latest record per user
// is authoritative; history is kept in a bounded ring buffer.
type TrustScoreRecord struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Score        float64      `json:"score"`
	Factors      TrustFactors `json:"factors"`
	CalculatedAt time.Time    `json:"calculated_at"`
}

// ScanEntry is one recorded barcode scan.
type ScanEntry struct {
	Barcode   string    `json:"barcode"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ScanDecision is the structured outcome of the scan-abuse gate. Rejections
// carry a renderable reason instead of an error.
type ScanDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Engine evaluates trust and fraud rules against an injected store. All
// state is recomputed from the store on demand rather than patched
// incrementally, so concurrent writers lose at most one append.
type Engine struct {
	mu      *sync.Mutex
	store   store.Store
	log     *zap.Logger
	signals DeviceSignals
	now     func() time.Time
}

// NewEngine creates a trust engine bound to the current device's signals.
func NewEngine(s store.Store, signals DeviceSignals, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{mu: &sync.Mutex{}, store: s, log: log, signals: signals, now: time.Now}
}

// ForDevice derives an engine bound to another device's signals. The store,
// lock and clock are shared, so a server can evaluate each request against
// the device that made it while all engines see the same registry and flags.
func (e *Engine) ForDevice(signals DeviceSignals) *Engine {
	return &Engine{mu: e.mu, store: e.store, log: e.log, signals: signals, now: e.now}
}

// WithClock overrides the engine clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RegisterDevice upserts the (userID, current fingerprint) pair. A
// fingerprint already claimed by another user marks the new registration
// untrusted and raises a medium multi_account flag.
func (e *Engine) RegisterDevice(userID string) (*DeviceRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fingerprint := e.signals.Fingerprint()
	now := e.now()
	registry := store.LoadList[DeviceRecord](e.store, deviceRegistryKey, e.log)

	for i := range registry {
		if registry[i].DeviceFingerprint == fingerprint && registry[i].UserID == userID {
			registry[i].LastSeenAt = now
			store.SaveJSON(e.store, deviceRegistryKey, registry, e.log)
			rec := registry[i]
			return &rec, nil
		}
	}

	otherAccounts := 0
	for _, rec := range registry {
		if rec.DeviceFingerprint == fingerprint {
			otherAccounts++
		}
	}
	if otherAccounts > 0 {
		e.createFlagLocked(userID, fingerprint, FlagMultiAccount, SeverityMedium,
			fmt.Sprintf("Device already has %d account(s) registered", otherAccounts))
	}

	record := DeviceRecord{
		ID:                uuid.NewString(),
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		Platform:          e.signals.Platform(),
		RegisteredAt:      now,
		LastSeenAt:        now,
		Trusted:           otherAccounts == 0,
	}
	registry = append(registry, record)
	store.SaveJSON(e.store, deviceRegistryKey, registry, e.log)
	return &record, nil
}

// IsDeviceTrusted reports whether the current device is a trusted
// registration for userID. Unregistered pairs read as untrusted.
func (e *Engine) IsDeviceTrusted(userID string) bool {
	fingerprint := e.signals.Fingerprint()
	registry := store.LoadList[DeviceRecord](e.store, deviceRegistryKey, e.log)
	for _, rec := range registry {
		if rec.DeviceFingerprint == fingerprint && rec.UserID == userID {
			return rec.Trusted
		}
	}
	return false
}

// CreateFlag records a fraud suspicion for userID on the current device.
func (e *Engine) CreateFlag(userID string, flagType FlagType, severity Severity, description string) FraudFlag {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createFlagLocked(userID, e.signals.Fingerprint(), flagType, severity, description)
}

func (e *Engine) createFlagLocked(userID, fingerprint string, flagType FlagType, severity Severity, description string) FraudFlag {
	flag := FraudFlag{
		ID:                uuid.NewString(),
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		Type:              flagType,
		Severity:          severity,
		Description:       description,
		FlaggedAt:         e.now(),
	}
	store.AppendBounded(e.store, fraudFlagsKey, flag, maxFraudFlags, e.log)
	e.log.Info("fraud flag raised",
		zap.String("user_id", userID),
		zap.String("type", string(flagType)),
		zap.String("severity", string(severity)))
	return flag
}

// Flags returns all flags for userID, oldest first.
func (e *Engine) Flags(userID string) []FraudFlag {
	var out []FraudFlag
	for _, f := range store.LoadList[FraudFlag](e.store, fraudFlagsKey, e.log) {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out
}

// UnresolvedFlags returns the flags still counting against userID.
func (e *Engine) UnresolvedFlags(userID string) []FraudFlag {
	var out []FraudFlag
	for _, f := range e.Flags(userID) {
		if !f.Resolved {
			out = append(out, f)
		}
	}
	return out
}

// ResolveFlag marks a flag resolved. Resolution is administrative; the flag
// itself is never deleted.
func (e *Engine) ResolveFlag(flagID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	flags := store.LoadList[FraudFlag](e.store, fraudFlagsKey, e.log)
	for i := range flags {
		if flags[i].ID == flagID {
			flags[i].Resolved = true
			store.SaveJSON(e.store, fraudFlagsKey, flags, e.log)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrFlagNotFound, flagID)
}

// TrustScore recomputes the user's trust from current device and flag state:
//
//	score = 0.7 * deviceFactor * min(1, ageDays/30) * 0.8^unresolvedFlags
//
// with a flat +0.15 for a provided receipt, rounded to two decimals and
// clamped to [0,1]. The record is appended to the audit ring buffer.
func (e *Engine) TrustScore(userID string, accountCreatedAt time.Time, receiptProvided bool) TrustScoreRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	deviceTrusted := e.IsDeviceTrusted(userID)
	unresolved := len(e.UnresolvedFlags(userID))
	ageDays := int(now.Sub(accountCreatedAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}

	deviceFactor := 1.0
	if !deviceTrusted {
		deviceFactor = UntrustedDeviceFactor
	}
	consistency := math.Min(1.0, float64(ageDays)/ConsistencyMaturityDays)
	fraudPenalty := math.Pow(FraudPenaltyBase, float64(unresolved))

	score := BaseTrustScore * deviceFactor * consistency * fraudPenalty
	if receiptProvided {
		score = math.Min(1.0, score+ReceiptBoost)
	}
	score = roundTo(score, 2)
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	record := TrustScoreRecord{
		ID:     uuid.NewString(),
		UserID: userID,
		Score:  score,
		Factors: TrustFactors{
			ReceiptProvided:  receiptProvided,
			AccountAgeDays:   ageDays,
			ConsistencyScore: consistency,
			FraudFlagCount:   unresolved,
			DeviceTrusted:    deviceTrusted,
		},
		CalculatedAt: now,
	}
	store.AppendBounded(e.store, trustScoresKey, record, maxTrustRecords, e.log)
	return record
}

// LatestTrustScore returns the most recent recorded score for userID, or the
// 0.7 base when none exists.
func (e *Engine) LatestTrustScore(userID string) float64 {
	records := store.LoadList[TrustScoreRecord](e.store, trustScoresKey, e.log)
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].UserID == userID {
			return records[i].Score
		}
	}
	return BaseTrustScore
}

// ApplyTrustDecay decays a trust score by 0.05 per unresolved flag per week,
// capped at 0.3 total decay, never dropping the score below 0.1.
func ApplyTrustDecay(currentScore float64, unresolvedFlagCount int, weeksSinceLastFlag int) float64 {
	decay := math.Min(0.3, 0.05*float64(unresolvedFlagCount)*float64(weeksSinceLastFlag))
	return math.Max(0.1, currentScore-decay)
}

// FraudImpactMultiplier compounds the severity discounts of every unresolved
// flag, floored at 0.3 so earned points shrink but never vanish.
func (e *Engine) FraudImpactMultiplier(userID string) float64 {
	flags := e.UnresolvedFlags(userID)
	if len(flags) == 0 {
		return 1.0
	}

	multiplier := 1.0
	for _, flag := range flags {
		factor, ok := SeverityMultipliers[flag.Severity]
		if !ok {
			e.log.Error("unknown flag severity", zap.String("severity", string(flag.Severity)))
			continue
		}
		multiplier *= factor
	}
	return math.Max(MultiplierFloor, roundTo(multiplier, 2))
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
