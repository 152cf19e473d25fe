package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-alerts/internal/event"
	"wallet-alerts/internal/history"
	"wallet-alerts/internal/session"
	"wallet-alerts/internal/sound"
)

type recordingToaster struct {
	mu    sync.Mutex
	shown []event.PaymentEvent
}

func (r *recordingToaster) Show(_ context.Context, ev event.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, ev)
	return nil
}

func (r *recordingToaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown)
}

type countingPlayer struct {
	mu    sync.Mutex
	plays int
}

func (p *countingPlayer) Play(context.Context, string, float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return nil
}

func (p *countingPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

func txEvent(txid, address string, ts int64) event.PaymentEvent {
	return event.PaymentEvent{
		Type:            event.TypePaymentReceived,
		AssetID:         "eip155:1/slip44:60",
		NetworkID:       "eip155:1",
		Symbol:          "ETH",
		Amount:          decimal.NewFromInt(1),
		AmountFormatted: "1 ETH",
		Address:         address,
		TxID:            txid,
		Timestamp:       ts,
	}
}

type fixture struct {
	hist    *history.Store
	player  *countingPlayer
	toaster *recordingToaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		hist:    history.New(context.Background(), session.NewMemory(), history.Options{}, zerolog.Nop()),
		player:  &countingPlayer{},
		toaster: &recordingToaster{},
	}
}

func (f *fixture) orchestrator(opts Options) *Orchestrator {
	sounds := sound.NewSink(session.NewMemory(), f.player, sound.Options{}, zerolog.Nop())
	return New(opts, f.hist, sounds, f.toaster, zerolog.Nop())
}

func TestIngestDedupesWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orch := f.orchestrator(Options{
		Name:            "transaction",
		Key:             history.TransactionKey,
		Window:          history.DefaultTransactionWindow,
		DispatchEnabled: true,
	})

	ev := txEvent("0x1", "0xabc", 1_000_000)
	orch.Ingest(ctx, []event.PaymentEvent{ev})
	orch.Ingest(ctx, []event.PaymentEvent{ev})

	if f.toaster.count() != 1 {
		t.Fatalf("duplicate input must toast once, got %d", f.toaster.count())
	}
	if f.player.count() != 1 {
		t.Fatalf("duplicate input must play once, got %d", f.player.count())
	}
	if f.hist.Size() != 1 {
		t.Fatalf("exactly one history entry expected, got %d", f.hist.Size())
	}
}

func TestIngestSameTxDifferentAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orch := f.orchestrator(Options{
		Name:            "transaction",
		Key:             history.TransactionKey,
		Window:          history.DefaultTransactionWindow,
		DispatchEnabled: true,
	})

	// One multi-output transaction notifies once per affected address.
	orch.Ingest(ctx, []event.PaymentEvent{
		txEvent("0x1", "0xaaa", 1_000_000),
		txEvent("0x1", "0xbbb", 1_000_000),
	})

	if f.toaster.count() != 2 {
		t.Fatalf("per-address notification expected, got %d", f.toaster.count())
	}
}

func TestListenersNotifiedInOrderAndIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orch := f.orchestrator(Options{
		Name:            "transaction",
		Key:             history.TransactionKey,
		Window:          history.DefaultTransactionWindow,
		DispatchEnabled: true,
	})

	var order []string
	orch.AddListener(func(event.PaymentEvent) { order = append(order, "first") })
	orch.AddListener(func(event.PaymentEvent) { panic("listener blew up") })
	orch.AddListener(func(event.PaymentEvent) { order = append(order, "third") })

	orch.Ingest(ctx, []event.PaymentEvent{txEvent("0x1", "0xabc", 1_000_000)})

	if len(order) != 2 || order[0] != "first" || order[1] != "third" {
		t.Fatalf("a panicking listener must not block the others: %v", order)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orch := f.orchestrator(Options{
		Name:            "transaction",
		Key:             history.TransactionKey,
		Window:          history.DefaultTransactionWindow,
		DispatchEnabled: true,
	})

	calls := 0
	unsubscribe := orch.AddListener(func(event.PaymentEvent) { calls++ })

	orch.Ingest(ctx, []event.PaymentEvent{txEvent("0x1", "0xabc", 1_000_000)})
	unsubscribe()
	orch.Ingest(ctx, []event.PaymentEvent{txEvent("0x2", "0xabc", 2_000_000)})

	if calls != 1 {
		t.Fatalf("unsubscribed listener must not be invoked, got %d calls", calls)
	}
}

func TestDispatchDisabledSuppressesSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orch := f.orchestrator(Options{
		Name:            "balance",
		Key:             history.BalanceKey,
		Window:          history.DefaultBalanceWindow,
		DispatchEnabled: false,
	})

	notified := 0
	orch.AddListener(func(event.PaymentEvent) { notified++ })

	orch.Ingest(ctx, []event.PaymentEvent{txEvent("", "0xabc", 1_000_000)})

	if f.toaster.count() != 0 || f.player.count() != 0 || notified != 0 {
		t.Fatal("disabled dispatch must produce no side effects")
	}
	if f.hist.Size() != 0 {
		t.Fatal("disabled dispatch must not pollute the shared history")
	}
}

func TestRecordHappensBeforeNotify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orch := f.orchestrator(Options{
		Name:            "transaction",
		Key:             history.TransactionKey,
		Window:          history.DefaultTransactionWindow,
		DispatchEnabled: true,
	})

	ev := txEvent("0x1", "0xabc", 1_000_000)
	recordedAtNotify := -1
	orch.AddListener(func(event.PaymentEvent) {
		recordedAtNotify = f.hist.Size()
	})

	orch.Ingest(ctx, []event.PaymentEvent{ev})

	if recordedAtNotify != 1 {
		t.Fatalf("the dedup record must exist before listeners run, size was %d", recordedAtNotify)
	}
}

func TestCrossPathDualFireIsAllowed(t *testing.T) {
	// A balance-path event and a transaction-path event for the same real
	// payment use independent keys; both firing is the accepted trade-off,
	// not a bug.
	ctx := context.Background()
	f := newFixture(t)

	balance := f.orchestrator(Options{
		Name:            "balance",
		Key:             history.BalanceKey,
		Window:          history.DefaultBalanceWindow,
		DispatchEnabled: true,
	})
	tx := f.orchestrator(Options{
		Name:            "transaction",
		Key:             history.TransactionKey,
		Window:          history.DefaultTransactionWindow,
		DispatchEnabled: true,
	})

	samePayment := txEvent("0xsame", "0xabc", 1_000_000)
	balance.Ingest(ctx, []event.PaymentEvent{samePayment})
	tx.Ingest(ctx, []event.PaymentEvent{samePayment})

	if f.toaster.count() != 2 {
		t.Fatalf("two notifications may occur for one payment, got %d", f.toaster.count())
	}
	if f.hist.Size() != 2 {
		t.Fatalf("both paths record under their own keys, got %d entries", f.hist.Size())
	}
}

func TestConcurrentDuplicatesSingleDispatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orch := f.orchestrator(Options{
		Name:            "transaction",
		Key:             history.TransactionKey,
		Window:          history.DefaultTransactionWindow,
		DispatchEnabled: true,
	})

	ev := txEvent("0x1", "0xabc", time.Now().UnixMilli())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orch.Ingest(ctx, []event.PaymentEvent{ev})
		}()
	}
	wg.Wait()

	if f.toaster.count() != 1 {
		t.Fatalf("concurrent duplicates must dispatch once, got %d", f.toaster.count())
	}
}
