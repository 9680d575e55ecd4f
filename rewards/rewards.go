// Package rewards gates coupon access by Impact IQ. Eligibility is a hard
// threshold against the coupon's minimum IQ; redemption is IQ-neutral and
// re-checks every condition at call time so a stale caller cannot redeem a
// coupon it no longer qualifies for.
package rewards

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumeiq/core/catalog"
	"github.com/lumeiq/core/store"
	"github.com/lumeiq/core/types"
)

const (
	redemptionsKey    = "lumeiq_coupon_redemptions"
	maxRedemptionRows = 500
)

// CouponRedemption is the append-only proof of one redemption event.
// Counting rows per coupon enforces the promotion's redemption cap.
type CouponRedemption struct {
	ID         string    `json:"id"`
	CouponID   string    `json:"coupon_id"`
	UserID     string    `json:"user_id"`
	Code       string    `json:"code"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// LockedCoupon is a coupon the user cannot redeem yet, annotated with the
// whole IQ points still needed.
type LockedCoupon struct {
	Coupon   catalog.Coupon `json:"coupon"`
	IQNeeded float64        `json:"iq_needed"`
}

// Engine evaluates coupon eligibility against the catalog and the
// redemption log.
type Engine struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	store   store.Store
	log     *zap.Logger
	now     func() time.Time
}

// NewEngine creates a reward engine over the given catalog. A nil logger
// silences it.
func NewEngine(cat *catalog.Catalog, s store.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{catalog: cat, store: s, log: log, now: time.Now}
}

// WithClock overrides the engine clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// AvailableCoupons returns the coupons userIQ can redeem right now: IQ at or
// above the threshold (boundary inclusive), not expired, and redemption
// count still under the promotion's cap.
func (e *Engine) AvailableCoupons(userIQ float64) []catalog.Coupon {
	now := e.now()
	counts := e.redemptionCounts()

	var out []catalog.Coupon
	for _, c := range e.catalog.Coupons() {
		if userIQ < c.MinIQRequired {
			continue
		}
		if now.After(c.ExpiresAt) {
			continue
		}
		if e.capReached(c, counts) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// LockedCoupons returns the non-expired coupons userIQ falls short of, each
// annotated with the IQ still needed.
func (e *Engine) LockedCoupons(userIQ float64) []LockedCoupon {
	now := e.now()

	var out []LockedCoupon
	for _, c := range e.catalog.Coupons() {
		if userIQ >= c.MinIQRequired {
			continue
		}
		if now.After(c.ExpiresAt) {
			continue
		}
		out = append(out, LockedCoupon{
			Coupon:   c,
			IQNeeded: c.MinIQRequired - math.Round(userIQ),
		})
	}
	return out
}

// RedeemCoupon verifies eligibility, expiry, and the redemption cap at call
// time and appends a redemption record. It never mutates the user's IQ.
func (e *Engine) RedeemCoupon(couponID, userID string, userIQ float64) (*CouponRedemption, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	coupon := e.catalog.CouponByID(couponID)
	if coupon == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrCouponNotFound, couponID)
	}
	if userIQ < coupon.MinIQRequired {
		return nil, fmt.Errorf("%w: requires IQ %.0f", types.ErrInsufficientIQ, coupon.MinIQRequired)
	}
	now := e.now()
	if now.After(coupon.ExpiresAt) {
		return nil, types.ErrCouponExpired
	}
	if e.capReached(*coupon, e.redemptionCounts()) {
		return nil, types.ErrCouponExhausted
	}

	redemption := CouponRedemption{
		ID:         uuid.NewString(),
		CouponID:   coupon.ID,
		UserID:     userID,
		Code:       coupon.Code,
		RedeemedAt: now,
	}
	store.AppendBounded(e.store, redemptionsKey, redemption, maxRedemptionRows, e.log)

	e.log.Info("coupon redeemed",
		zap.String("coupon_id", coupon.ID),
		zap.String("user_id", userID))
	return &redemption, nil
}

// Redemptions returns redemption records, optionally filtered to a user.
func (e *Engine) Redemptions(userID string) []CouponRedemption {
	rows := store.LoadList[CouponRedemption](e.store, redemptionsKey, e.log)
	if userID == "" {
		return rows
	}
	var out []CouponRedemption
	for _, r := range rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) redemptionCounts() map[string]int {
	counts := make(map[string]int)
	for _, r := range store.LoadList[CouponRedemption](e.store, redemptionsKey, e.log) {
		counts[r.CouponID]++
	}
	return counts
}

func (e *Engine) capReached(c catalog.Coupon, counts map[string]int) bool {
	promo := e.catalog.PromotionByID(c.PromotionID)
	if promo == nil {
		e.log.Error("coupon references unknown promotion",
			zap.String("coupon_id", c.ID),
			zap.String("promotion_id", c.PromotionID))
		return true
	}
	return counts[c.ID] >= promo.MaxRedemptions
}
