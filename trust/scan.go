package trust

import (
	"fmt"
	"math"

	"github.com/lumeiq/core/store"
	"github.com/lumeiq/core/types"
)

// CheckScanAllowed runs the scan-abuse gate for one (barcode, user) pair.
// Rules fire in order; the first rejection wins:
//
//  1. daily cap: MaxScansPerDay scans this calendar day
//  2. cooldown: same barcode within ScanCooldown, reason carries the
//     remaining minutes
//  3. same-day repeat: same barcode already scanned today, even after the
//     cooldown has expired
//
// The gate only decides; it records nothing. Callers that proceed must
// invoke RecordScan separately.
func (e *Engine) CheckScanAllowed(barcode, userID string) ScanDecision {
	now := e.now()
	today := types.DateOf(now)
	log := store.LoadList[ScanEntry](e.store, scanLogKey, e.log)

	todayScans := 0
	for _, entry := range log {
		if entry.UserID == userID && types.DateOf(entry.Timestamp) == today {
			todayScans++
		}
	}
	if todayScans >= MaxScansPerDay {
		return ScanDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("Daily scan limit reached (%d/day). Try again tomorrow.", MaxScansPerDay),
		}
	}

	var productScans []ScanEntry
	for _, entry := range log {
		if entry.UserID == userID && entry.Barcode == barcode {
			productScans = append(productScans, entry)
		}
	}
	if len(productScans) > 0 {
		last := productScans[len(productScans)-1].Timestamp
		if elapsed := now.Sub(last); elapsed < ScanCooldown {
			remaining := int(math.Ceil((ScanCooldown - elapsed).Minutes()))
			return ScanDecision{
				Allowed: false,
				Reason:  fmt.Sprintf("Same product cooldown: %d minutes remaining.", remaining),
			}
		}
	}

	for _, entry := range productScans {
		if types.DateOf(entry.Timestamp) == today {
			return ScanDecision{
				Allowed: false,
				Reason:  "This product was already scanned today. Try again tomorrow.",
			}
		}
	}

	return ScanDecision{Allowed: true}
}

// RecordScan appends the scan to the bounded abuse log and raises a low
// severity rapid_scan flag when the user's scan velocity crosses
// RapidScanThreshold within RapidScanWindow. Velocity is checked on every
// recorded scan, independent of the gate's decision for it.
func (e *Engine) RecordScan(barcode, userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	log := store.AppendBounded(e.store, scanLogKey, ScanEntry{
		Barcode:   barcode,
		UserID:    userID,
		Timestamp: now,
	}, maxScanEntries, e.log)

	recent := 0
	for _, entry := range log {
		if entry.UserID == userID && now.Sub(entry.Timestamp) < RapidScanWindow {
			recent++
		}
	}
	if recent >= RapidScanThreshold {
		e.createFlagLocked(userID, e.signals.Fingerprint(), FlagRapidScan, SeverityLow,
			fmt.Sprintf("Rapid scanning detected: %d scans in 5 minutes", recent))
	}
}

// ScanLog returns the recorded scans, optionally filtered to one user.
func (e *Engine) ScanLog(userID string) []ScanEntry {
	entries := store.LoadList[ScanEntry](e.store, scanLogKey, e.log)
	if userID == "" {
		return entries
	}
	var out []ScanEntry
	for _, entry := range entries {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	return out
}
