package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumeiq/core/store"
)

// SyncAction is the intent a sync item records against the remote store.
type SyncAction string

const (
	SyncCreate SyncAction = "create"
	SyncUpdate SyncAction = "update"
	SyncDelete SyncAction = "delete"
)

// SyncItem is one pending push to the remote store. Items stay queued until
// synced or retried out; delivery is at-least-once with no ordering
// guarantee relative to the event log.
type SyncItem struct {
	ID         string          `json:"id"`
	Action     SyncAction      `json:"action"`
	Table      string          `json:"table"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	Synced     bool            `json:"synced"`
	RetryCount int             `json:"retry_count"`
}

// SyncFunc pushes one item to the remote store. A non-nil error leaves the
// item queued with its retry counter incremented.
type SyncFunc func(ctx context.Context, item SyncItem) error

// SyncResult summarizes one ProcessSyncQueue pass.
type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// QueueSync records a create/update/delete intent for the remote store.
func (d *Dispatcher) QueueSync(action SyncAction, table string, data any) SyncItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enqueueSyncLocked(action, table, data)
}

func (d *Dispatcher) enqueueSyncLocked(action SyncAction, table string, data any) SyncItem {
	item := SyncItem{
		ID:        uuid.NewString(),
		Action:    action,
		Table:     table,
		Data:      d.marshalSyncData(data),
		CreatedAt: d.now(),
	}

	queue := store.LoadList[SyncItem](d.store, syncQueueKey, d.log)
	queue = append(queue, item)
	// Synced items are dropped here; only the newest unsynced survive.
	unsynced := queue[:0]
	for _, q := range queue {
		if !q.Synced {
			unsynced = append(unsynced, q)
		}
	}
	queue = store.TrimToLast(unsynced, maxUnsyncedRows)
	store.SaveJSON(d.store, syncQueueKey, queue, d.log)
	return item
}

// PendingSyncItems returns the queued items still eligible for a push:
// unsynced with fewer than five failed attempts.
func (d *Dispatcher) PendingSyncItems() []SyncItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingLocked()
}

func (d *Dispatcher) pendingLocked() []SyncItem {
	var out []SyncItem
	for _, q := range store.LoadList[SyncItem](d.store, syncQueueKey, d.log) {
		if !q.Synced && q.RetryCount < maxSyncRetries {
			out = append(out, q)
		}
	}
	return out
}

// ProcessSyncQueue pushes every pending item through syncFn, marking
// successes synced and incrementing the retry counter on failure. It stops
// early when ctx is done, leaving the remainder queued.
func (d *Dispatcher) ProcessSyncQueue(ctx context.Context, syncFn SyncFunc) SyncResult {
	d.mu.Lock()
	pending := d.pendingLocked()
	d.mu.Unlock()

	var result SyncResult
	for _, item := range pending {
		if ctx.Err() != nil {
			d.log.Warn("sync pass interrupted",
				zap.Int("remaining", len(pending)-result.Synced-result.Failed))
			break
		}
		if err := syncFn(ctx, item); err != nil {
			d.log.Warn("sync item failed",
				zap.String("item_id", item.ID),
				zap.String("table", item.Table),
				zap.Error(err))
			d.updateSyncItem(item.ID, func(q *SyncItem) { q.RetryCount++ })
			result.Failed++
			continue
		}
		d.updateSyncItem(item.ID, func(q *SyncItem) { q.Synced = true })
		result.Synced++
	}
	return result
}

func (d *Dispatcher) updateSyncItem(id string, mutate func(*SyncItem)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	queue := store.LoadList[SyncItem](d.store, syncQueueKey, d.log)
	for i := range queue {
		if queue[i].ID == id {
			mutate(&queue[i])
			break
		}
	}
	store.SaveJSON(d.store, syncQueueKey, queue, d.log)
}
