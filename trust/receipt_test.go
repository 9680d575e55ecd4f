package trust

import (
	"errors"
	"testing"
)

func TestRecordReceipt(t *testing.T) {
	e, _ := newTestEngine(t)

	rec, err := e.RecordReceipt("user-a", "receipt-2026-001")
	if err != nil {
		t.Fatalf("RecordReceipt() error = %v", err)
	}
	if rec.Duplicate {
		t.Error("first upload should not be a duplicate")
	}
	if got := len(e.UnresolvedFlags("user-a")); got != 0 {
		t.Errorf("first upload raised %d flag(s), want 0", got)
	}

	// The same reference from another account is flagged but still kept.
	dup, err := e.RecordReceipt("user-b", "receipt-2026-001")
	if err != nil {
		t.Fatalf("RecordReceipt() error = %v", err)
	}
	if !dup.Duplicate {
		t.Error("repeated reference should be marked as duplicate")
	}
	flags := e.UnresolvedFlags("user-b")
	if len(flags) != 1 {
		t.Fatalf("duplicate upload raised %d flag(s), want 1", len(flags))
	}
	if flags[0].Type != FlagDuplicateReceipt || flags[0].Severity != SeverityMedium {
		t.Errorf("flag = %s/%s, want %s/%s", flags[0].Type, flags[0].Severity, FlagDuplicateReceipt, SeverityMedium)
	}
	if got := e.FraudImpactMultiplier("user-b"); got != 0.7 {
		t.Errorf("multiplier after duplicate = %v, want 0.7", got)
	}

	if got := len(e.Receipts("user-a")); got != 1 {
		t.Errorf("user-a receipts = %d, want 1", got)
	}
	if got := len(e.Receipts("")); got != 2 {
		t.Errorf("all receipts = %d, want 2", got)
	}
}

func TestRecordReceiptInvalid(t *testing.T) {
	e, _ := newTestEngine(t)

	if _, err := e.RecordReceipt("", "ref"); !errors.Is(err, ErrInvalidUser) {
		t.Errorf("empty user error = %v, want ErrInvalidUser", err)
	}
	if _, err := e.RecordReceipt("user-a", "   "); !errors.Is(err, ErrInvalidReceipt) {
		t.Errorf("blank reference error = %v, want ErrInvalidReceipt", err)
	}
}
