package trust

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestCheckScanAllowedDailyCap(t *testing.T) {
	e, clock := newTestEngine(t)

	// Ten distinct products, spaced out to dodge the velocity flag.
	for i := 0; i < MaxScansPerDay; i++ {
		*clock = clock.Add(10 * time.Minute)
		barcode := fmt.Sprintf("30100%02d", i)
		if d := e.CheckScanAllowed(barcode, "user-a"); !d.Allowed {
			t.Fatalf("scan %d rejected early: %s", i, d.Reason)
		}
		e.RecordScan(barcode, "user-a")
	}

	// Cap fires before the per-product rules: a brand new barcode is
	// rejected too.
	d := e.CheckScanAllowed("9999999", "user-a")
	if d.Allowed {
		t.Fatal("11th scan of the day should be rejected")
	}
	if !strings.Contains(d.Reason, "Daily scan limit") {
		t.Errorf("reason = %q", d.Reason)
	}

	// Another user is unaffected.
	if d := e.CheckScanAllowed("9999999", "user-b"); !d.Allowed {
		t.Errorf("other user rejected: %s", d.Reason)
	}

	// The next calendar day resets the cap.
	*clock = clock.AddDate(0, 0, 1)
	if d := e.CheckScanAllowed("9999999", "user-a"); !d.Allowed {
		t.Errorf("next day scan rejected: %s", d.Reason)
	}
}

func TestCheckScanAllowedCooldown(t *testing.T) {
	e, clock := newTestEngine(t)

	e.RecordScan("3015551", "user-a")

	*clock = clock.Add(90 * time.Minute)
	d := e.CheckScanAllowed("3015551", "user-a")
	if d.Allowed {
		t.Fatal("scan inside cooldown should be rejected")
	}
	if !strings.Contains(d.Reason, "150 minutes") {
		t.Errorf("reason = %q, want 150 minutes remaining", d.Reason)
	}

	// A different barcode is fine.
	if d := e.CheckScanAllowed("5449999", "user-a"); !d.Allowed {
		t.Errorf("different product rejected: %s", d.Reason)
	}
}

func TestCheckScanAllowedSameDayRepeat(t *testing.T) {
	e, clock := newTestEngine(t)

	// Scan at 01:00 so the 4h cooldown expires within the same day.
	*clock = time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	e.RecordScan("3015551", "user-a")

	*clock = clock.Add(5 * time.Hour) // cooldown long gone, still 2026-03-10
	d := e.CheckScanAllowed("3015551", "user-a")
	if d.Allowed {
		t.Fatal("same-day repeat should be rejected even after cooldown")
	}
	if !strings.Contains(d.Reason, "already scanned today") {
		t.Errorf("reason = %q", d.Reason)
	}

	// The next calendar day it clears.
	*clock = time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC)
	if d := e.CheckScanAllowed("3015551", "user-a"); !d.Allowed {
		t.Errorf("next day rejected: %s", d.Reason)
	}
}

func TestRecordScanRaisesRapidScanFlag(t *testing.T) {
	e, clock := newTestEngine(t)

	for i := 0; i < RapidScanThreshold-1; i++ {
		e.RecordScan(fmt.Sprintf("code-%d", i), "user-a")
		*clock = clock.Add(30 * time.Second)
	}
	if len(e.Flags("user-a")) != 0 {
		t.Fatalf("flag raised below threshold: %+v", e.Flags("user-a"))
	}

	e.RecordScan("code-final", "user-a")
	flags := e.Flags("user-a")
	if len(flags) != 1 {
		t.Fatalf("got %d flags, want 1", len(flags))
	}
	if flags[0].Type != FlagRapidScan || flags[0].Severity != SeverityLow {
		t.Errorf("flag = %+v", flags[0])
	}
}

func TestScanLogBounded(t *testing.T) {
	e, clock := newTestEngine(t)

	for i := 0; i < maxScanEntries+25; i++ {
		*clock = clock.Add(10 * time.Minute)
		e.RecordScan(fmt.Sprintf("code-%d", i), "user-a")
	}
	if got := len(e.ScanLog("")); got != maxScanEntries {
		t.Errorf("scan log length = %d, want %d", got, maxScanEntries)
	}
}
