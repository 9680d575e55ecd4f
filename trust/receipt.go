package trust

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumeiq/core/store"
)

// ErrInvalidReceipt rejects blank receipt references.
var ErrInvalidReceipt = errors.New("invalid receipt reference")

const (
	receiptLogKey     = "lumeiq_receipt_log"
	maxReceiptEntries = 200
)

// ReceiptRecord is one uploaded purchase receipt. The reference is whatever
// stable identifier the client extracts (receipt number, content hash).
type ReceiptRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Reference  string    `json:"reference"`
	Duplicate  bool      `json:"duplicate"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// RecordReceipt stores a receipt upload. A reference seen before raises a
// medium duplicate_receipt flag on the uploader; the record is kept either
// way.
func (e *Engine) RecordReceipt(userID, reference string) (*ReceiptRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidReceipt
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	duplicate := false
	for _, rec := range store.LoadList[ReceiptRecord](e.store, receiptLogKey, e.log) {
		if rec.Reference == reference {
			duplicate = true
			break
		}
	}
	if duplicate {
		e.createFlagLocked(userID, e.signals.Fingerprint(), FlagDuplicateReceipt, SeverityMedium,
			fmt.Sprintf("Receipt %q was already uploaded", reference))
	}

	record := ReceiptRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Reference:  reference,
		Duplicate:  duplicate,
		UploadedAt: e.now(),
	}
	store.AppendBounded(e.store, receiptLogKey, record, maxReceiptEntries, e.log)
	return &record, nil
}

// Receipts returns the recorded uploads, optionally filtered to a user.
func (e *Engine) Receipts(userID string) []ReceiptRecord {
	var out []ReceiptRecord
	for _, rec := range store.LoadList[ReceiptRecord](e.store, receiptLogKey, e.log) {
		if userID == "" || rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}
