// Package events is the central bus for every IQ-modifying action. Each
// action produces exactly one append-only ImpactEvent; independent modules
// subscribe per type or globally and never call each other directly. A
// parallel sync queue records intents for eventual push to a remote store.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumeiq/core/store"
	"github.com/lumeiq/core/types"
)

// Event types, one per scoring-relevant action.
type Type string

const (
	TypeScanPurchase  Type = "scan_purchase"
	TypeRouteConfirm  Type = "route_confirm"
	TypeModeActivate  Type = "mode_activate"
	TypeReceiptUpload Type = "receipt_upload"
	TypeCouponRedeem  Type = "coupon_redeem"
)

// Bounds on the persisted logs.
const (
	maxEventLog     = 500
	maxUnsyncedRows = 200
	maxSyncRetries  = 5
)

// Storage keys
const (
	eventLogKey  = "lumeiq_impact_events"
	syncQueueKey = "lumeiq_sync_queue"
)

// Payload carries the scoring consequence of an action. Coupon redemption
// events always carry a zero IQDelta.
type Payload struct {
	IQDelta     float64           `json:"iq_delta"`
	RingChanges types.RingValues  `json:"ring_changes"`
	Source      string            `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ImpactEvent is the canonical audit record of one action.
type ImpactEvent struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
	Processed bool      `json:"processed"`
}

// Listener receives every dispatched event it subscribed to. A panicking
// listener is recovered and logged without affecting persistence or other
// listeners.
type Listener func(ImpactEvent)

type subscription struct {
	id int
	fn Listener
}

// Dispatcher persists events and fans them out to subscribers.
type Dispatcher struct {
	mu     sync.Mutex
	store  store.Store
	log    *zap.Logger
	now    func() time.Time
	nextID int
	typed  map[Type][]subscription
	global []subscription
}

// NewDispatcher creates a dispatcher. A nil logger silences it.
func NewDispatcher(s store.Store, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		store: s,
		log:   log,
		now:   time.Now,
		typed: make(map[Type][]subscription),
	}
}

// WithClock overrides the dispatcher clock. Intended for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// OnImpactEvent registers a listener for one event type and returns its
// unsubscribe function.
func (d *Dispatcher) OnImpactEvent(t Type, fn Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.typed[t] = append(d.typed[t], subscription{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.typed[t] = removeSubscription(d.typed[t], id)
	}
}

// OnAnyImpactEvent registers a listener for every event type and returns its
// unsubscribe function.
func (d *Dispatcher) OnAnyImpactEvent(fn Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.global = append(d.global, subscription{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.global = removeSubscription(d.global, id)
	}
}

func removeSubscription(subs []subscription, id int) []subscription {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Dispatch records an event and notifies subscribers. The event is persisted
// and enqueued for sync before any listener runs, so a misbehaving listener
// cannot lose the record. Type-specific listeners fire before global ones.
func (d *Dispatcher) Dispatch(t Type, userID string, payload Payload) ImpactEvent {
	event := ImpactEvent{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		Timestamp: d.now(),
		Payload:   payload,
	}

	d.mu.Lock()
	store.AppendBounded(d.store, eventLogKey, event, maxEventLog, d.log)
	d.enqueueSyncLocked(SyncCreate, "impact_events", event)

	typed := append([]subscription(nil), d.typed[t]...)
	global := append([]subscription(nil), d.global...)
	d.mu.Unlock()

	for _, s := range typed {
		d.invoke(s.fn, event)
	}
	for _, s := range global {
		d.invoke(s.fn, event)
	}
	return event
}

func (d *Dispatcher) invoke(fn Listener, event ImpactEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event listener panicked",
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	fn(event)
}

// EventHistory returns recorded events, optionally filtered by user and
// type. Empty filters match everything.
func (d *Dispatcher) EventHistory(userID string, t Type) []ImpactEvent {
	events := store.LoadList[ImpactEvent](d.store, eventLogKey, d.log)
	var out []ImpactEvent
	for _, e := range events {
		if userID != "" && e.UserID != userID {
			continue
		}
		if t != "" && e.Type != t {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ClearEventHistory drops the persisted event log. Subscriptions and the
// sync queue are untouched.
func (d *Dispatcher) ClearEventHistory() {
	if err := d.store.Delete(eventLogKey); err != nil {
		d.log.Warn("failed to clear event log", zap.Error(err))
	}
}

// marshalSyncData serializes a sync payload, falling back to null on
// unmarshalable values.
func (d *Dispatcher) marshalSyncData(data any) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		d.log.Error("failed to marshal sync payload", zap.Error(err))
		return json.RawMessage("null")
	}
	return raw
}
