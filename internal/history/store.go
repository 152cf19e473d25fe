package history

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wallet-alerts/internal/event"
	"wallet-alerts/internal/session"
)

const (
	// DefaultCap bounds the number of retained history entries.
	DefaultCap = 100
	// DefaultBalanceWindow is the dedup window for balance-diff events.
	DefaultBalanceWindow = 5 * time.Second
	// DefaultTransactionWindow is the dedup window for transaction-notice
	// events; wide enough to absorb slow confirmation re-delivery.
	DefaultTransactionWindow = 60 * time.Second

	storageKey = "payment_events.history"
)

// BalanceKey derives the balance-path dedup key. Snapshots rarely carry a
// txid, so the timestamp rounded to the second is the only practical
// collision signal.
func BalanceKey(ev event.PaymentEvent) string {
	return ev.AssetID + ":" + ev.TxID + ":" + strconv.FormatInt(ev.Timestamp/1000, 10)
}

// TransactionKey derives the transaction-path dedup key. A txid is
// authoritative; keying per address deliberately lets one multi-output
// transaction notify once per affected address.
func TransactionKey(ev event.PaymentEvent) string {
	return ev.TxID + ":" + ev.Address
}

type entry struct {
	Key   string             `json:"key"`
	Event event.PaymentEvent `json:"event"`
}

type persisted struct {
	Events         []entry `json:"events"`
	LastProcessed  int64   `json:"last_processed"`
	SessionStarted int64   `json:"session_started"`
}

// Options tune the history store.
type Options struct {
	Cap int
}

// Store is the bounded, persisted set of previously dispatched event keys.
// Both orchestrators share one instance; all exported methods are safe for
// concurrent use and CheckAndRecord is atomic, so two concurrent duplicates
// cannot both pass the duplicate check.
type Store struct {
	mu             sync.Mutex
	backend        session.Store
	cap            int
	events         map[string]event.PaymentEvent
	lastProcessed  int64
	sessionStarted int64
	logger         zerolog.Logger
}

// New constructs a history store over the given session backend, loading any
// previously persisted state. Corrupt or missing state falls back to an
// empty, freshly-timestamped history; it never fails the caller.
func New(ctx context.Context, backend session.Store, opts Options, logger zerolog.Logger) *Store {
	capacity := opts.Cap
	if capacity <= 0 {
		capacity = DefaultCap
	}

	s := &Store{
		backend:        backend,
		cap:            capacity,
		events:         make(map[string]event.PaymentEvent),
		sessionStarted: time.Now().UnixMilli(),
		logger:         logger.With().Str("component", "event_history").Logger(),
	}
	s.load(ctx)
	return s
}

// IsDuplicate reports whether an event with the same key was recorded within
// window of the candidate's timestamp.
func (s *Store) IsDuplicate(ev event.PaymentEvent, key string, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDuplicateLocked(ev, key, window)
}

func (s *Store) isDuplicateLocked(ev event.PaymentEvent, key string, window time.Duration) bool {
	prev, ok := s.events[key]
	if !ok {
		return false
	}
	delta := ev.Timestamp - prev.Timestamp
	if delta < 0 {
		delta = -delta
	}
	return delta <= window.Milliseconds()
}

// Record inserts the event under key, prunes past the cap, and persists.
func (s *Store) Record(ctx context.Context, key string, ev event.PaymentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(ctx, key, ev)
}

// CheckAndRecord atomically performs the duplicate check and, for a unique
// event, the insert. Returns true when the event is unique and was recorded.
func (s *Store) CheckAndRecord(ctx context.Context, key string, ev event.PaymentEvent, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isDuplicateLocked(ev, key, window) {
		return false
	}
	s.recordLocked(ctx, key, ev)
	return true
}

func (s *Store) recordLocked(ctx context.Context, key string, ev event.PaymentEvent) {
	s.events[key] = ev
	s.lastProcessed = time.Now().UnixMilli()
	s.pruneLocked()
	s.saveLocked(ctx)
}

// pruneLocked keeps the cap most recent entries by event timestamp.
func (s *Store) pruneLocked() {
	if len(s.events) <= s.cap {
		return
	}

	entries := make([]entry, 0, len(s.events))
	for key, ev := range s.events {
		entries = append(entries, entry{Key: key, Event: ev})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Event.Timestamp > entries[j].Event.Timestamp
	})

	pruned := make(map[string]event.PaymentEvent, s.cap)
	for _, e := range entries[:s.cap] {
		pruned[e.Key] = e.Event
	}
	s.logger.Debug().Int("dropped", len(s.events)-len(pruned)).Msg("pruned event history")
	s.events = pruned
}

// Size returns the current number of retained entries.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Events returns a copy of the retained events, most recent first.
func (s *Store) Events() []event.PaymentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]event.PaymentEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// SessionStarted returns when this history was created, ms epoch.
func (s *Store) SessionStarted() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionStarted
}

// Clear drops all history, in memory and in the backend.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make(map[string]event.PaymentEvent)
	s.lastProcessed = 0
	s.sessionStarted = time.Now().UnixMilli()
	if s.backend != nil {
		if err := s.backend.Delete(ctx, storageKey); err != nil {
			s.logger.Error().Err(err).Msg("failed to clear persisted history")
		}
	}
}

func (s *Store) load(ctx context.Context) {
	if s.backend == nil {
		return
	}

	raw, ok, err := s.backend.Get(ctx, storageKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("history backend unavailable; starting empty")
		return
	}
	if !ok {
		return
	}

	var stored persisted
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.Warn().Err(err).Msg("corrupt persisted history; starting empty")
		return
	}

	for _, e := range stored.Events {
		if e.Key == "" {
			continue
		}
		s.events[e.Key] = e.Event
	}
	s.lastProcessed = stored.LastProcessed
	if stored.SessionStarted > 0 {
		s.sessionStarted = stored.SessionStarted
	}
	s.pruneLocked()
	s.logger.Debug().Int("entries", len(s.events)).Msg("loaded event history")
}

func (s *Store) saveLocked(ctx context.Context) {
	if s.backend == nil {
		return
	}

	entries := make([]entry, 0, len(s.events))
	for key, ev := range s.events {
		entries = append(entries, entry{Key: key, Event: ev})
	}
	stored := persisted{
		Events:         entries,
		LastProcessed:  s.lastProcessed,
		SessionStarted: s.sessionStarted,
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		s.logger.Error().Err(err).Int("entries", len(entries)).Msg("failed to encode history")
		return
	}
	if err := s.backend.Set(ctx, storageKey, raw); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist history")
	}
}
