package trust

import (
	"testing"
	"time"

	"github.com/lumeiq/core/store"
)

var testSignals = DeviceSignals{
	UserAgent:           "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36",
	Language:            "en-IN",
	ScreenWidth:         1080,
	ScreenHeight:        2400,
	ColorDepth:          24,
	TimezoneOffsetMin:   -330,
	HardwareConcurrency: 8,
	MaxTouchPoints:      5,
}

func newTestEngine(t *testing.T) (*Engine, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	clock := &now
	e := NewEngine(store.NewMemoryStore(), testSignals, nil).WithClock(func() time.Time { return *clock })
	return e, clock
}

func TestFingerprintDeterministic(t *testing.T) {
	a := testSignals.Fingerprint()
	b := testSignals.Fingerprint()
	if a != b {
		t.Fatalf("fingerprint not deterministic: %q vs %q", a, b)
	}
	if len(a) <= len("device_") {
		t.Fatalf("fingerprint too short: %q", a)
	}

	other := testSignals
	other.ScreenWidth = 720
	if other.Fingerprint() == a {
		t.Error("different signals should produce a different fingerprint")
	}
}

func TestPlatform(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (Linux; Android 14)", "android"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", "ios"},
		{"Mozilla/5.0 (X11; Linux x86_64)", "web"},
	}
	for _, tt := range tests {
		ds := DeviceSignals{UserAgent: tt.ua}
		if got := ds.Platform(); got != tt.want {
			t.Errorf("Platform(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}

func TestRegisterDevice(t *testing.T) {
	e, clock := newTestEngine(t)

	rec, err := e.RegisterDevice("user-a")
	if err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}
	if !rec.Trusted {
		t.Error("first registration should be trusted")
	}
	if rec.Platform != "android" {
		t.Errorf("platform = %q", rec.Platform)
	}

	// Re-registering the same pair only bumps LastSeenAt.
	*clock = clock.Add(time.Hour)
	again, err := e.RegisterDevice("user-a")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != rec.ID {
		t.Error("same pair should not create a new record")
	}
	if !again.LastSeenAt.After(rec.LastSeenAt) {
		t.Error("LastSeenAt should advance on re-registration")
	}
	if len(e.Flags("user-a")) != 0 {
		t.Errorf("re-registration raised flags: %+v", e.Flags("user-a"))
	}

	// A second user on the same fingerprint is untrusted and flagged.
	second, err := e.RegisterDevice("user-b")
	if err != nil {
		t.Fatal(err)
	}
	if second.Trusted {
		t.Error("colliding registration should be untrusted")
	}
	flags := e.Flags("user-b")
	if len(flags) != 1 || flags[0].Type != FlagMultiAccount || flags[0].Severity != SeverityMedium {
		t.Errorf("flags = %+v, want one medium multi_account flag", flags)
	}

	if _, err := e.RegisterDevice("  "); err == nil {
		t.Error("blank user ID should error")
	}
}

func TestIsDeviceTrusted(t *testing.T) {
	e, _ := newTestEngine(t)

	if e.IsDeviceTrusted("ghost") {
		t.Error("unregistered pair should be untrusted")
	}
	if _, err := e.RegisterDevice("user-a"); err != nil {
		t.Fatal(err)
	}
	if !e.IsDeviceTrusted("user-a") {
		t.Error("registered sole account should be trusted")
	}
}

func TestTrustScore(t *testing.T) {
	e, clock := newTestEngine(t)
	if _, err := e.RegisterDevice("user-a"); err != nil {
		t.Fatal(err)
	}

	t.Run("mature trusted account", func(t *testing.T) {
		created := clock.AddDate(0, 0, -60)
		rec := e.TrustScore("user-a", created, false)
		if rec.Score != 0.7 {
			t.Errorf("score = %v, want 0.7", rec.Score)
		}
		if !rec.Factors.DeviceTrusted || rec.Factors.ConsistencyScore != 1.0 {
			t.Errorf("factors = %+v", rec.Factors)
		}
	})

	t.Run("receipt boost is additive", func(t *testing.T) {
		created := clock.AddDate(0, 0, -60)
		rec := e.TrustScore("user-a", created, true)
		if rec.Score != 0.85 {
			t.Errorf("score = %v, want 0.85", rec.Score)
		}
	})

	t.Run("young account is capped by consistency", func(t *testing.T) {
		created := clock.AddDate(0, 0, -15)
		rec := e.TrustScore("user-a", created, false)
		if rec.Score != 0.35 { // 0.7 * 1.0 * 0.5
			t.Errorf("score = %v, want 0.35", rec.Score)
		}
	})

	t.Run("unresolved flags decay geometrically", func(t *testing.T) {
		e.CreateFlag("user-a", FlagSuspiciousPattern, SeverityLow, "test")
		created := clock.AddDate(0, 0, -60)
		rec := e.TrustScore("user-a", created, false)
		if rec.Score != 0.56 { // 0.7 * 0.8
			t.Errorf("score with one flag = %v, want 0.56", rec.Score)
		}

		e.CreateFlag("user-a", FlagSuspiciousPattern, SeverityLow, "test")
		rec = e.TrustScore("user-a", created, false)
		if rec.Score != 0.45 { // 0.7 * 0.64, rounded
			t.Errorf("score with two flags = %v, want 0.45", rec.Score)
		}
	})

	t.Run("bounds hold for extreme inputs", func(t *testing.T) {
		rec := e.TrustScore("user-a", clock.Add(time.Hour), true) // created "in the future"
		if rec.Score < 0 || rec.Score > 1 {
			t.Errorf("score = %v outside [0,1]", rec.Score)
		}
	})
}

func TestTrustScoreMonotonicInAge(t *testing.T) {
	e, clock := newTestEngine(t)
	if _, err := e.RegisterDevice("user-a"); err != nil {
		t.Fatal(err)
	}

	prev := -1.0
	for _, days := range []int{0, 5, 15, 29, 30, 90} {
		rec := e.TrustScore("user-a", clock.AddDate(0, 0, -days), false)
		if rec.Score < prev {
			t.Errorf("score decreased at age %d days: %v < %v", days, rec.Score, prev)
		}
		prev = rec.Score
	}
}

func TestLatestTrustScore(t *testing.T) {
	e, clock := newTestEngine(t)

	if got := e.LatestTrustScore("nobody"); got != 0.7 {
		t.Errorf("default latest score = %v, want 0.7", got)
	}

	if _, err := e.RegisterDevice("user-a"); err != nil {
		t.Fatal(err)
	}
	e.TrustScore("user-a", clock.AddDate(0, 0, -15), false)
	if got := e.LatestTrustScore("user-a"); got != 0.35 {
		t.Errorf("latest score = %v, want 0.35", got)
	}
}

func TestApplyTrustDecay(t *testing.T) {
	tests := []struct {
		name         string
		score        float64
		flags, weeks int
		want         float64
	}{
		{"no flags", 0.8, 0, 4, 0.8},
		{"mild decay", 0.8, 1, 2, 0.7},
		{"decay capped at 0.3", 0.8, 5, 10, 0.5},
		{"floor at 0.1", 0.2, 3, 2, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyTrustDecay(tt.score, tt.flags, tt.weeks)
			if got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("ApplyTrustDecay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFraudImpactMultiplier(t *testing.T) {
	e, _ := newTestEngine(t)

	if got := e.FraudImpactMultiplier("clean"); got != 1.0 {
		t.Errorf("clean multiplier = %v, want 1.0", got)
	}

	e.CreateFlag("user-a", FlagRapidScan, SeverityLow, "t")
	if got := e.FraudImpactMultiplier("user-a"); got != 0.9 {
		t.Errorf("one low flag = %v, want 0.9", got)
	}

	e.CreateFlag("user-a", FlagMultiAccount, SeverityMedium, "t")
	if got := e.FraudImpactMultiplier("user-a"); got != 0.63 {
		t.Errorf("low+medium = %v, want 0.63", got)
	}

	// Enough high flags push past the floor.
	for i := 0; i < 4; i++ {
		e.CreateFlag("user-a", FlagDuplicateReceipt, SeverityHigh, "t")
	}
	if got := e.FraudImpactMultiplier("user-a"); got != MultiplierFloor {
		t.Errorf("heavily flagged = %v, want floor %v", got, MultiplierFloor)
	}

	// Resolving flags restores earnings.
	for _, f := range e.Flags("user-a") {
		if err := e.ResolveFlag(f.ID); err != nil {
			t.Fatal(err)
		}
	}
	if got := e.FraudImpactMultiplier("user-a"); got != 1.0 {
		t.Errorf("all resolved = %v, want 1.0", got)
	}
}

func TestResolveFlagMissing(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.ResolveFlag("nope"); err == nil {
		t.Error("resolving a missing flag should error")
	}
}

func TestForDevice(t *testing.T) {
	e, clock := newTestEngine(t)
	if _, err := e.RegisterDevice("user-a"); err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}
	created := clock.AddDate(0, 0, -60)

	t.Run("same signals see the registration", func(t *testing.T) {
		derived := e.ForDevice(testSignals)
		if !derived.IsDeviceTrusted("user-a") {
			t.Error("device that registered should be trusted")
		}
		rec := derived.TrustScore("user-a", created, false)
		if !rec.Factors.DeviceTrusted {
			t.Error("factors should report the device as trusted")
		}
		if rec.Score != 0.7 {
			t.Errorf("trusted score = %v, want 0.7", rec.Score)
		}
	})

	t.Run("other signals fingerprint separately", func(t *testing.T) {
		other := testSignals
		other.UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)"
		derived := e.ForDevice(other)
		if derived.IsDeviceTrusted("user-a") {
			t.Error("an unregistered device should not be trusted")
		}
		rec := derived.TrustScore("user-a", created, false)
		if rec.Factors.DeviceTrusted {
			t.Error("factors should report the device as untrusted")
		}
		if rec.Score != 0.49 { // 0.7 * 0.7
			t.Errorf("untrusted score = %v, want 0.49", rec.Score)
		}
	})

	t.Run("flags are shared across derived engines", func(t *testing.T) {
		derived := e.ForDevice(testSignals)
		derived.CreateFlag("user-b", FlagSuspiciousPattern, SeverityLow, "t")
		if got := len(e.Flags("user-b")); got != 1 {
			t.Errorf("base engine sees %d flag(s), want 1", got)
		}
	})
}
