package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wallet-alerts/internal/alerting"
	"wallet-alerts/internal/event"
	"wallet-alerts/internal/history"
	"wallet-alerts/internal/sound"
)

// KeyFunc derives the dedup key for an event under one detection strategy.
type KeyFunc func(event.PaymentEvent) string

// Listener receives every uniquely dispatched event.
type Listener func(event.PaymentEvent)

// Options configure an orchestrator instance.
type Options struct {
	// Name tags log lines ("balance", "transaction").
	Name string
	// Key derives the strategy's dedup key.
	Key KeyFunc
	// Window is the dedup window for this strategy.
	Window time.Duration
	// DispatchEnabled gates side effects. When false the orchestrator still
	// evaluates candidates and logs what it would have sent; the balance path
	// runs this way in production because it false-positives on re-pricing.
	DispatchEnabled bool
}

// Orchestrator coordinates one detection strategy: dedup against the shared
// history store, then record, sound, toast, and listener fan-out for each
// unique event.
//
// The record happens before any sink fires, so a crash mid-dispatch leaves
// the dedup entry in place and a retry of the same input will not re-fire.
type Orchestrator struct {
	opts    Options
	history *history.Store
	sounds  *sound.Sink
	toasts  alerting.ToastSink
	logger  zerolog.Logger

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// New constructs an orchestrator over the shared history store and sinks.
func New(opts Options, hist *history.Store, sounds *sound.Sink, toasts alerting.ToastSink, logger zerolog.Logger) *Orchestrator {
	if opts.Window <= 0 {
		opts.Window = history.DefaultTransactionWindow
	}
	return &Orchestrator{
		opts:      opts,
		history:   hist,
		sounds:    sounds,
		toasts:    toasts,
		logger:    logger.With().Str("component", "orchestrator").Str("strategy", opts.Name).Logger(),
		listeners: make(map[int]Listener),
	}
}

// AddListener registers a fan-out consumer and returns its unsubscribe
// function. Listeners are notified synchronously in registration order.
func (o *Orchestrator) AddListener(fn Listener) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.listeners[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

// Ingest runs the full pipeline for a batch of candidate events. Duplicates
// are dropped with a log line only; nothing here propagates an error.
func (o *Orchestrator) Ingest(ctx context.Context, candidates []event.PaymentEvent) {
	for _, ev := range candidates {
		o.ingestOne(ctx, ev)
	}
}

func (o *Orchestrator) ingestOne(ctx context.Context, ev event.PaymentEvent) {
	key := o.opts.Key(ev)

	if !o.opts.DispatchEnabled {
		// Detection-only mode: report the would-be notification, leave the
		// history untouched so the active path's dedup is unaffected.
		o.logger.Info().
			Str("key", key).
			Str("type", string(ev.Type)).
			Str("amount", ev.AmountFormatted).
			Bool("duplicate", o.history.IsDuplicate(ev, key, o.opts.Window)).
			Msg("dispatch disabled; event suppressed")
		return
	}

	if !o.history.CheckAndRecord(ctx, key, ev, o.opts.Window) {
		o.logger.Debug().Str("key", key).Msg("duplicate event dropped")
		return
	}

	if o.sounds != nil {
		o.sounds.Play(ctx, sound.TypeFor(ev.Type))
	}

	if o.toasts != nil {
		if err := o.toasts.Show(ctx, ev); err != nil {
			o.logger.Error().Err(err).Str("key", key).Msg("toast sink failed")
		}
	}

	o.notifyListeners(ev)

	o.logger.Info().
		Str("key", key).
		Str("type", string(ev.Type)).
		Str("amount", ev.AmountFormatted).
		Msg("event dispatched")
}

func (o *Orchestrator) notifyListeners(ev event.PaymentEvent) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.listeners[id])
	}
	o.mu.Unlock()

	for i, fn := range fns {
		o.callListener(ids[i], fn, ev)
	}
}

// callListener isolates one subscriber; a panicking listener must not block
// the others or the pipeline.
func (o *Orchestrator) callListener(id int, fn Listener, ev event.PaymentEvent) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Int("listener", id).Interface("panic", r).Msg("listener panicked")
		}
	}()
	fn(ev)
}
