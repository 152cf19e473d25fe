package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-alerts/internal/event"
	"wallet-alerts/internal/session"
)

func testEvent(txid string, ts int64) event.PaymentEvent {
	return event.PaymentEvent{
		Type:      event.TypePaymentReceived,
		AssetID:   "eip155:1/slip44:60",
		NetworkID: "eip155:1",
		Symbol:    "ETH",
		Amount:    decimal.NewFromInt(1),
		Address:   "0xabc",
		TxID:      txid,
		Timestamp: ts,
	}
}

func TestDuplicateWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := New(ctx, session.NewMemory(), Options{}, zerolog.Nop())

	ev := testEvent("0x1", 1_000_000)
	key := TransactionKey(ev)
	store.Record(ctx, key, ev)

	dup := testEvent("0x1", 1_000_000+30_000)
	if !store.IsDuplicate(dup, TransactionKey(dup), DefaultTransactionWindow) {
		t.Fatal("same key within the window should be a duplicate")
	}

	late := testEvent("0x1", 1_000_000+61_000)
	if store.IsDuplicate(late, TransactionKey(late), DefaultTransactionWindow) {
		t.Fatal("same key outside the window should not be a duplicate")
	}

	other := testEvent("0x2", 1_000_000+1)
	if store.IsDuplicate(other, TransactionKey(other), DefaultTransactionWindow) {
		t.Fatal("different key should never be a duplicate")
	}
}

func TestCheckAndRecordIdempotence(t *testing.T) {
	ctx := context.Background()
	store := New(ctx, session.NewMemory(), Options{}, zerolog.Nop())

	ev := testEvent("0x1", 1_000_000)
	key := TransactionKey(ev)

	if !store.CheckAndRecord(ctx, key, ev, DefaultTransactionWindow) {
		t.Fatal("first occurrence should record")
	}
	if store.CheckAndRecord(ctx, key, ev, DefaultTransactionWindow) {
		t.Fatal("second occurrence should be rejected")
	}
	if store.Size() != 1 {
		t.Fatalf("exactly one entry expected, got %d", store.Size())
	}
}

func TestPruneKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	store := New(ctx, session.NewMemory(), Options{Cap: 100}, zerolog.Nop())

	base := time.Now().UnixMilli()
	for i := 0; i < 150; i++ {
		ev := testEvent(fmt.Sprintf("0x%03d", i), base+int64(i)*120_000)
		store.Record(ctx, TransactionKey(ev), ev)
	}

	if store.Size() != 100 {
		t.Fatalf("history should be capped at 100, got %d", store.Size())
	}

	events := store.Events()
	oldest := events[len(events)-1]
	if oldest.Timestamp != base+50*120_000 {
		t.Fatalf("the 100 most recent entries should survive; oldest is %d", oldest.Timestamp-base)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()

	store := New(ctx, backend, Options{}, zerolog.Nop())
	ev := testEvent("0x1", 1_000_000)
	store.Record(ctx, TransactionKey(ev), ev)

	reloaded := New(ctx, backend, Options{}, zerolog.Nop())
	if reloaded.Size() != 1 {
		t.Fatalf("reloaded store should contain one entry, got %d", reloaded.Size())
	}
	if !reloaded.IsDuplicate(ev, TransactionKey(ev), DefaultTransactionWindow) {
		t.Fatal("duplicate detection should survive a reload")
	}
}

func TestCorruptStateFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()
	if err := backend.Set(ctx, "payment_events.history", []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt state: %v", err)
	}

	store := New(ctx, backend, Options{}, zerolog.Nop())
	if store.Size() != 0 {
		t.Fatalf("corrupt state should yield an empty history, got %d entries", store.Size())
	}
	if store.SessionStarted() == 0 {
		t.Fatal("fresh history should carry a session start timestamp")
	}
}

func TestNilBackendStillDedupes(t *testing.T) {
	ctx := context.Background()
	store := New(ctx, nil, Options{}, zerolog.Nop())

	ev := testEvent("0x1", 1_000_000)
	if !store.CheckAndRecord(ctx, TransactionKey(ev), ev, DefaultTransactionWindow) {
		t.Fatal("record should succeed without a backend")
	}
	if store.CheckAndRecord(ctx, TransactionKey(ev), ev, DefaultTransactionWindow) {
		t.Fatal("dedup should work without a backend")
	}
}

func TestKeySchemes(t *testing.T) {
	ev := testEvent("0xfeed", 12_345_678)
	ev.Address = "0xabc"

	if got := TransactionKey(ev); got != "0xfeed:0xabc" {
		t.Fatalf("transaction key mismatch: %s", got)
	}

	// Balance keys round the timestamp to the second.
	if got := BalanceKey(ev); got != "eip155:1/slip44:60:0xfeed:12345" {
		t.Fatalf("balance key mismatch: %s", got)
	}

	ev.TxID = ""
	if got := BalanceKey(ev); got != "eip155:1/slip44:60::12345" {
		t.Fatalf("balance key without txid mismatch: %s", got)
	}
}
