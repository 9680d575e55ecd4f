package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lumeiq/core/assistant"
	"github.com/lumeiq/core/catalog"
	"github.com/lumeiq/core/events"
	"github.com/lumeiq/core/scoring"
	"github.com/lumeiq/core/transit"
	"github.com/lumeiq/core/trust"
	"github.com/lumeiq/core/types"
)

// scanBasePoints is the circularity gain of one accepted scan before the
// partner weight and fraud multiplier apply.
const scanBasePoints = 10.0

// deviceSignalsHeader carries the caller's device signals as a JSON object so
// trust checks run against the device that made the request.
const deviceSignalsHeader = "X-Device-Signals"

// Handler exposes the engines over HTTP.
type Handler struct {
	app      *App
	log      *zap.Logger
	validate *validator.Validate
}

// NewHandler creates the HTTP handler set.
func NewHandler(app *App, log *zap.Logger) *Handler {
	return &Handler{app: app, log: log, validate: validator.New()}
}

// Routes mounts every endpoint on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", h.Healthz)

	r.Post("/users", h.CreateUser)
	r.Get("/users/{userID}", h.GetUser)
	r.Get("/users/{userID}/history", h.GetIQHistory)
	r.Get("/users/{userID}/trust", h.GetTrustScore)
	r.Get("/users/{userID}/events", h.GetEvents)
	r.Get("/users/{userID}/stats", h.GetStats)
	r.Post("/users/{userID}/modes", h.ActivateMode)
	r.Post("/users/{userID}/scans", h.ScanPurchase)
	r.Post("/users/{userID}/receipts", h.UploadReceipt)
	r.Post("/users/{userID}/routes/confirm", h.ConfirmRoute)
	r.Get("/users/{userID}/coupons", h.GetCoupons)
	r.Post("/users/{userID}/coupons/{couponID}/redeem", h.RedeemCoupon)

	r.Post("/routes/options", h.RouteOptions)
	r.Get("/routes/popular", h.PopularRoutes)
	r.Get("/catalog/search", h.SearchCatalog)
	r.Post("/assistant/chat", h.Chat)
	return r
}

// Healthz is a simple health check endpoint.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("unable to write response stream", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.Error("failed to decode json", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.log.Warn("validation failed", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) *types.User {
	id := chi.URLParam(r, "userID")
	u, err := h.app.loadUser(id)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "user not found")
		} else {
			h.log.Error("failed to load user", zap.String("user_id", id), zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "storage failure")
		}
		return nil
	}
	return u
}

// deviceSignals reads the caller's device signals from the request header.
// A missing or malformed header yields the zero signals, which fingerprint
// as an unidentified device.
func (h *Handler) deviceSignals(r *http.Request) trust.DeviceSignals {
	var signals trust.DeviceSignals
	raw := r.Header.Get(deviceSignalsHeader)
	if raw == "" {
		return signals
	}
	if err := json.Unmarshal([]byte(raw), &signals); err != nil {
		h.log.Warn("malformed device signals header", zap.Error(err))
		return trust.DeviceSignals{}
	}
	return signals
}

// trustFor binds the trust engine to the requesting device.
func (h *Handler) trustFor(r *http.Request) *trust.Engine {
	return h.app.trust.ForDevice(h.deviceSignals(r))
}

func (h *Handler) persist(w http.ResponseWriter, u *types.User) bool {
	if err := h.app.saveUser(u); err != nil {
		h.log.Error("failed to save user", zap.String("user_id", u.ID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "storage failure")
		return false
	}
	return true
}

type createUserRequest struct {
	CommuteType       string              `json:"commute_type" validate:"required"`
	DietType          string              `json:"diet_type" validate:"required"`
	ClothingFrequency string              `json:"clothing_frequency" validate:"required"`
	City              string              `json:"city"`
	Device            trust.DeviceSignals `json:"device"`
}

// CreateUser onboards a user from the baseline questionnaire and registers
// the submitting device.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	u := h.app.scoring.NewUser(types.Baseline{
		CommuteType:       req.CommuteType,
		DietType:          req.DietType,
		ClothingFrequency: req.ClothingFrequency,
		City:              req.City,
	}, time.Now())
	if !h.persist(w, u) {
		return
	}

	signals := req.Device
	if signals == (trust.DeviceSignals{}) {
		signals = h.deviceSignals(r)
	}
	device, err := h.app.trust.ForDevice(signals).RegisterDevice(u.ID)
	if err != nil {
		h.log.Warn("device registration failed", zap.String("user_id", u.ID), zap.Error(err))
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"user":   u,
		"device": device,
	})
}

// GetUser returns the stored impact state.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u := h.user(w, r)
	if u == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

// GetIQHistory reconstructs the user's IQ over the past days.
func (h *Handler) GetIQHistory(w http.ResponseWriter, r *http.Request) {
	u := h.user(w, r)
	if u == nil {
		return
	}
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			h.writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}
	h.writeJSON(w, http.StatusOK, scoring.IQHistory(u, days, time.Now()))
}

// GetTrustScore recomputes and returns the user's trust record.
func (h *Handler) GetTrustScore(w http.ResponseWriter, r *http.Request) {
	u := h.user(w, r)
	if u == nil {
		return
	}
	receipt := r.URL.Query().Get("receipt") == "true"
	record := h.trustFor(r).TrustScore(u.ID, u.CreatedAt, receipt)
	h.writeJSON(w, http.StatusOK, record)
}

// GetEvents returns the user's impact event history, optionally filtered by
// type.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	u := h.user(w, r)
	if u == nil {
		return
	}
	t := events.Type(r.URL.Query().Get("type"))
	h.writeJSON(w, http.StatusOK, h.app.dispatcher.EventHistory(u.ID, t))
}

// GetStats returns cumulative transit statistics.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	u := h.user(w, r)
	if u == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"total_carbon_saved_grams": h.app.transit.TotalCarbonSaved(u.ID),
		"total_eco_routes":         h.app.transit.TotalEcoRoutes(u.ID),
		"iq":                       u.IQ,
		"tier":                     u.Tier,
	})
}

type activateModeRequest struct {
	ModeID   string `json:"mode_id" validate:"required"`
	Verified bool   `json:"verified"`
}

// ActivateMode applies a lifestyle impact mode to the user.
func (h *Handler) ActivateMode(w http.ResponseWriter, r *http.Request) {
	var req activateModeRequest
	if !h.decode(w, r, &req) {
		return
	}
	u := h.user(w, r)
	if u == nil {
		return
	}

	activation, err := h.app.scoring.ActivateMode(u, req.ModeID, req.Verified, time.Now())
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "unknown impact mode")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "activation failed")
		return
	}
	if !h.persist(w, u) {
		return
	}

	h.app.dispatcher.Dispatch(events.TypeModeActivate, u.ID, events.Payload{
		IQDelta:     activation.IQChange,
		RingChanges: activation.RingChanges,
		Source:      "impact_mode",
		Metadata:    map[string]string{"mode_id": req.ModeID},
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"activation": activation,
		"user":       u,
	})
}

type scanRequest struct {
	Barcode  string `json:"barcode" validate:"required"`
	Verified bool   `json:"verified"`
}

// ScanPurchase runs the anti-abuse gate, then credits a scanned purchase to
// the circularity ring scaled by the partner weight and the fraud
// multiplier.
func (h *Handler) ScanPurchase(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !h.decode(w, r, &req) {
		return
	}
	u := h.user(w, r)
	if u == nil {
		return
	}

	trustEngine := h.trustFor(r)
	decision := trustEngine.CheckScanAllowed(req.Barcode, u.ID)
	if !decision.Allowed {
		h.writeJSON(w, http.StatusTooManyRequests, decision)
		return
	}
	trustEngine.RecordScan(req.Barcode, u.ID)

	weight := 1.0
	company := catalog.MatchCompanyByBarcode(h.app.catalog.Companies, req.Barcode)
	if company != nil {
		weight = company.SustainabilityWeight
	}
	multiplier := trustEngine.FraudImpactMultiplier(u.ID)

	delta := types.RingValues{Circularity: scanBasePoints * weight * multiplier}
	result := h.app.scoring.NewIQ(u.IQ, delta, req.Verified)

	u.Rings = u.Rings.Add(delta).Clamp()
	u.IQ = result.NewIQ
	u.Tier = h.app.scoring.TierFromIQ(result.NewIQ)
	u.DailyLogs = scoring.MergeDailyLog(u.DailyLogs, types.DailyLog{
		Date:        types.DateOf(time.Now()),
		RingChanges: delta,
		IQChange:    result.IQChange,
		Verified:    req.Verified,
	})
	if !h.persist(w, u) {
		return
	}

	meta := map[string]string{"barcode": req.Barcode}
	if company != nil {
		meta["company_id"] = company.ID
	}
	h.app.dispatcher.Dispatch(events.TypeScanPurchase, u.ID, events.Payload{
		IQDelta:     result.IQChange,
		RingChanges: delta,
		Source:      "scan",
		Metadata:    meta,
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"iq_change":        result.IQChange,
		"fraud_multiplier": multiplier,
		"user":             u,
	})
}

type receiptRequest struct {
	Reference string `json:"reference" validate:"required"`
}

// UploadReceipt records a purchase receipt. The upload boosts the trust
// score recomputed here; a reference seen before is accepted but flagged.
func (h *Handler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	u := h.user(w, r)
	if u == nil {
		return
	}

	trustEngine := h.trustFor(r)
	receipt, err := trustEngine.RecordReceipt(u.ID, req.Reference)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	record := trustEngine.TrustScore(u.ID, u.CreatedAt, true)

	h.app.dispatcher.Dispatch(events.TypeReceiptUpload, u.ID, events.Payload{
		IQDelta:  0,
		Source:   "receipt",
		Metadata: map[string]string{"reference": receipt.Reference},
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"receipt": receipt,
		"trust":   record,
	})
}

type routeOptionsRequest struct {
	StartLocation string       `json:"start_location"`
	EndLocation   string       `json:"end_location"`
	StartCoord    types.LatLng `json:"start_coord"`
	EndCoord      types.LatLng `json:"end_coord"`
	DistanceKm    float64      `json:"distance_km"`
}

// RouteOptions computes the emission comparison for a trip.
func (h *Handler) RouteOptions(w http.ResponseWriter, r *http.Request) {
	var req routeOptionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	comp, err := h.app.transit.CalculateRouteOptions(transit.RouteRequest{
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		StartCoord:    req.StartCoord,
		EndCoord:      req.EndCoord,
		DistanceKm:    req.DistanceKm,
	})
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, comp)
}

// PopularRoutes returns the built-in trip presets.
func (h *Handler) PopularRoutes(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, transit.PopularRoutes)
}

type confirmRouteRequest struct {
	StartLocation string                `json:"start_location"`
	EndLocation   string                `json:"end_location"`
	DistanceKm    float64               `json:"distance_km" validate:"required,gt=0"`
	Mode          catalog.TransportMode `json:"mode" validate:"required"`
	Verified      bool                  `json:"verified"`
}

// ConfirmRoute records a chosen route and credits the mobility ring.
func (h *Handler) ConfirmRoute(w http.ResponseWriter, r *http.Request) {
	var req confirmRouteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !catalog.IsKnownMode(req.Mode) {
		h.writeError(w, http.StatusBadRequest, "unknown transport mode")
		return
	}
	u := h.user(w, r)
	if u == nil {
		return
	}

	comp, err := h.app.transit.CalculateRouteOptions(transit.RouteRequest{
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		DistanceKm:    req.DistanceKm,
	})
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	confirmation, err := h.app.transit.ConfirmRoute(comp, u.ID, req.Mode)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "confirmation failed")
		return
	}

	delta := transit.RouteRingImpact(confirmation.ImpactBonus)
	result := h.app.scoring.NewIQ(u.IQ, delta, req.Verified)

	u.Rings = u.Rings.Add(delta).Clamp()
	u.IQ = result.NewIQ
	u.Tier = h.app.scoring.TierFromIQ(result.NewIQ)
	u.DailyLogs = scoring.MergeDailyLog(u.DailyLogs, types.DailyLog{
		Date:        types.DateOf(time.Now()),
		RingChanges: delta,
		IQChange:    result.IQChange,
		Verified:    req.Verified,
	})
	if !h.persist(w, u) {
		return
	}

	h.app.dispatcher.Dispatch(events.TypeRouteConfirm, u.ID, events.Payload{
		IQDelta:     result.IQChange,
		RingChanges: delta,
		Source:      "transit",
		Metadata: map[string]string{
			"mode":               string(req.Mode),
			"carbon_saved_grams": strconv.FormatFloat(confirmation.CarbonSavedGrams, 'f', -1, 64),
		},
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"confirmation": confirmation,
		"iq_change":    result.IQChange,
		"user":         u,
	})
}

// GetCoupons returns the available and locked coupons for the user's IQ.
func (h *Handler) GetCoupons(w http.ResponseWriter, r *http.Request) {
	u := h.user(w, r)
	if u == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"available": h.app.rewards.AvailableCoupons(u.IQ),
		"locked":    h.app.rewards.LockedCoupons(u.IQ),
	})
}

// RedeemCoupon redeems a coupon against the user's current IQ. Redemption
// is IQ-neutral; the event payload always carries a zero delta.
func (h *Handler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	u := h.user(w, r)
	if u == nil {
		return
	}
	couponID := chi.URLParam(r, "couponID")

	redemption, err := h.app.rewards.RedeemCoupon(couponID, u.ID, u.IQ)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrCouponNotFound):
			h.writeError(w, http.StatusNotFound, "coupon not found")
		case errors.Is(err, types.ErrInsufficientIQ):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, types.ErrCouponExpired), errors.Is(err, types.ErrCouponExhausted):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "redemption failed")
		}
		return
	}

	h.app.dispatcher.Dispatch(events.TypeCouponRedeem, u.ID, events.Payload{
		IQDelta:  0,
		Source:   "rewards",
		Metadata: map[string]string{"coupon_id": couponID},
	})
	h.writeJSON(w, http.StatusOK, redemption)
}

// SearchCatalog fuzzy-matches companies and coupons by name.
func (h *Handler) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	h.writeJSON(w, http.StatusOK, h.app.catalog.Search(q, 10))
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
	UserID  string `json:"user_id"`
}

// Chat answers an assistant message, personalized when the user is known.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}

	var userCtx *assistant.UserContext
	if req.UserID != "" {
		if u, err := h.app.loadUser(req.UserID); err == nil {
			userCtx = &assistant.UserContext{IQ: u.IQ, Tier: u.Tier}
		}
	}
	h.writeJSON(w, http.StatusOK, h.app.assistant.Respond(r.Context(), req.Message, userCtx))
}
