package rewards

import (
	"errors"
	"testing"
	"time"

	"github.com/lumeiq/core/catalog"
	"github.com/lumeiq/core/store"
	"github.com/lumeiq/core/types"
)

func newTestEngine() (*Engine, *time.Time) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := &now
	e := NewEngine(catalog.Default(), store.NewMemoryStore(), nil).
		WithClock(func() time.Time { return *clock })
	return e, clock
}

func couponIDs(coupons []catalog.Coupon) map[string]bool {
	ids := make(map[string]bool, len(coupons))
	for _, c := range coupons {
		ids[c.ID] = true
	}
	return ids
}

func TestAvailableCoupons(t *testing.T) {
	e, clock := newTestEngine()

	t.Run("threshold is inclusive", func(t *testing.T) {
		// promo-ecobrew-1 requires IQ 40
		below := couponIDs(e.AvailableCoupons(39.9))
		if below["coupon-promo-ecobrew-1"] {
			t.Errorf("coupon available at IQ 39.9, threshold is 40")
		}
		at := couponIDs(e.AvailableCoupons(40))
		if !at["coupon-promo-ecobrew-1"] {
			t.Errorf("coupon unavailable at IQ 40, boundary should be inclusive")
		}
	})

	t.Run("higher IQ unlocks more", func(t *testing.T) {
		low := e.AvailableCoupons(45)
		high := e.AvailableCoupons(95)
		if len(high) <= len(low) {
			t.Errorf("IQ 95 unlocked %d coupons, IQ 45 unlocked %d", len(high), len(low))
		}
		if len(high) != len(catalog.Default().Coupons()) {
			t.Errorf("IQ 95 unlocked %d coupons, want all %d",
				len(high), len(catalog.Default().Coupons()))
		}
	})

	t.Run("expired coupons excluded", func(t *testing.T) {
		*clock = time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
		defer func() { *clock = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }()
		if got := e.AvailableCoupons(100); len(got) != 0 {
			t.Errorf("got %d coupons past expiry, want 0", len(got))
		}
	})

	t.Run("exhausted coupons excluded", func(t *testing.T) {
		e, _ := newTestEngine()
		// promo-greenweave-1 allows a single redemption
		if _, err := e.RedeemCoupon("coupon-promo-greenweave-1", "user-1", 80); err != nil {
			t.Fatalf("RedeemCoupon() error = %v", err)
		}
		if couponIDs(e.AvailableCoupons(80))["coupon-promo-greenweave-1"] {
			t.Errorf("exhausted coupon still listed as available")
		}
	})
}

func TestLockedCoupons(t *testing.T) {
	e, _ := newTestEngine()

	t.Run("complement of available", func(t *testing.T) {
		available := couponIDs(e.AvailableCoupons(55))
		locked := e.LockedCoupons(55)
		for _, lc := range locked {
			if available[lc.Coupon.ID] {
				t.Errorf("coupon %s both available and locked", lc.Coupon.ID)
			}
		}
		total := len(available) + len(locked)
		if total != len(catalog.Default().Coupons()) {
			t.Errorf("available + locked = %d, want %d", total, len(catalog.Default().Coupons()))
		}
	})

	t.Run("iq needed uses rounded user IQ", func(t *testing.T) {
		for _, lc := range e.LockedCoupons(55.6) {
			want := lc.Coupon.MinIQRequired - 56
			if lc.IQNeeded != want {
				t.Errorf("coupon %s: IQNeeded = %v, want %v", lc.Coupon.ID, lc.IQNeeded, want)
			}
		}
	})

	t.Run("high IQ locks nothing", func(t *testing.T) {
		if got := e.LockedCoupons(100); len(got) != 0 {
			t.Errorf("got %d locked coupons at IQ 100, want 0", len(got))
		}
	})
}

func TestRedeemCoupon(t *testing.T) {
	t.Run("appends redemption record", func(t *testing.T) {
		e, _ := newTestEngine()
		r, err := e.RedeemCoupon("coupon-promo-ecobrew-1", "user-1", 50)
		if err != nil {
			t.Fatalf("RedeemCoupon() error = %v", err)
		}
		if r.CouponID != "coupon-promo-ecobrew-1" || r.UserID != "user-1" {
			t.Errorf("redemption = %+v", r)
		}
		if r.Code == "" {
			t.Errorf("redemption carries no coupon code")
		}
		if got := e.Redemptions("user-1"); len(got) != 1 {
			t.Errorf("got %d redemptions, want 1", len(got))
		}
	})

	t.Run("unknown coupon", func(t *testing.T) {
		e, _ := newTestEngine()
		_, err := e.RedeemCoupon("coupon-nope", "user-1", 100)
		if !errors.Is(err, types.ErrCouponNotFound) {
			t.Errorf("error = %v, want ErrCouponNotFound", err)
		}
	})

	t.Run("insufficient IQ rechecked at call time", func(t *testing.T) {
		e, _ := newTestEngine()
		_, err := e.RedeemCoupon("coupon-promo-voltride-2", "user-1", 89.9)
		if !errors.Is(err, types.ErrInsufficientIQ) {
			t.Errorf("error = %v, want ErrInsufficientIQ", err)
		}
	})

	t.Run("expired at call time", func(t *testing.T) {
		e, clock := newTestEngine()
		*clock = time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
		_, err := e.RedeemCoupon("coupon-promo-ecobrew-1", "user-1", 50)
		if !errors.Is(err, types.ErrCouponExpired) {
			t.Errorf("error = %v, want ErrCouponExpired", err)
		}
	})

	t.Run("redemption cap enforced across users", func(t *testing.T) {
		e, _ := newTestEngine()
		// promo-voltride-2 allows 2 redemptions
		for i, user := range []string{"user-1", "user-2"} {
			if _, err := e.RedeemCoupon("coupon-promo-voltride-2", user, 95); err != nil {
				t.Fatalf("redemption %d error = %v", i+1, err)
			}
		}
		_, err := e.RedeemCoupon("coupon-promo-voltride-2", "user-3", 95)
		if !errors.Is(err, types.ErrCouponExhausted) {
			t.Errorf("error = %v, want ErrCouponExhausted", err)
		}
	})
}
