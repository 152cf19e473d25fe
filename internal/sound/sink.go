package sound

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wallet-alerts/internal/event"
	"wallet-alerts/internal/session"
)

const (
	// TypePaymentReceived is the cue for incoming funds.
	TypePaymentReceived = "payment_received"
	// TypeBalanceUpdated is the cue for balance decreases.
	TypeBalanceUpdated = "balance_updated"

	// DefaultMinInterval is the per-type minimum spacing between plays. This
	// throttle is independent of upstream dedup.
	DefaultMinInterval = 3000 * time.Millisecond
	// DefaultVolume applies until the operator sets one.
	DefaultVolume = 0.7

	preferencesKey = "sound.preferences"
	lastPlayedKey  = "sound.last_played"
)

// TypeFor selects the audio cue for an event type.
func TypeFor(t event.Type) string {
	if t == event.TypeBalanceUpdated {
		return TypeBalanceUpdated
	}
	return TypePaymentReceived
}

// Preferences is the persisted mute/volume state.
type Preferences struct {
	Muted  bool    `json:"muted"`
	Volume float64 `json:"volume"`
}

// Options tune the sink.
type Options struct {
	MinInterval   time.Duration
	DefaultVolume float64
}

// Sink plays audio cues, gated by a mute preference and a per-type minimum
// interval. Preferences and last-played timestamps live in the session store;
// nobody else writes those keys.
//
// Initialisation is lazy: the first Play (or an explicit Init) loads the
// persisted state, and further Init calls are no-ops.
type Sink struct {
	mu          sync.Mutex
	backend     session.Store
	player      Player
	minInterval time.Duration
	prefs       Preferences
	lastPlayed  map[string]int64
	initialized bool
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSink constructs a sound sink. A nil player degrades to NopPlayer so
// hosts without audio stay safe.
func NewSink(backend session.Store, player Player, opts Options, logger zerolog.Logger) *Sink {
	if player == nil {
		player = NopPlayer{}
	}
	minInterval := opts.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	volume := opts.DefaultVolume
	if volume <= 0 || volume > 1 {
		volume = DefaultVolume
	}

	return &Sink{
		backend:     backend,
		player:      player,
		minInterval: minInterval,
		prefs:       Preferences{Volume: volume},
		lastPlayed:  make(map[string]int64),
		logger:      logger.With().Str("component", "sound_sink").Logger(),
		now:         time.Now,
	}
}

// Init loads persisted preferences and last-played state. Idempotent.
func (s *Sink) Init(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx)
}

func (s *Sink) initLocked(ctx context.Context) {
	if s.initialized {
		return
	}
	s.initialized = true

	if s.backend == nil {
		return
	}

	if raw, ok, err := s.backend.Get(ctx, preferencesKey); err == nil && ok {
		var prefs Preferences
		if err := json.Unmarshal(raw, &prefs); err != nil {
			s.logger.Warn().Err(err).Msg("corrupt sound preferences; using defaults")
		} else if prefs.Volume >= 0 && prefs.Volume <= 1 {
			s.prefs = prefs
		}
	}

	if raw, ok, err := s.backend.Get(ctx, lastPlayedKey); err == nil && ok {
		var last map[string]int64
		if err := json.Unmarshal(raw, &last); err != nil {
			s.logger.Warn().Err(err).Msg("corrupt last-played state; resetting")
		} else if last != nil {
			s.lastPlayed = last
		}
	}
}

// Play plays the cue for soundType unless muted or rate limited. Playback
// failure is logged and absorbed; Play never propagates an error upstream.
func (s *Sink) Play(ctx context.Context, soundType string) {
	s.mu.Lock()
	s.initLocked(ctx)

	if s.prefs.Muted {
		s.mu.Unlock()
		s.logger.Debug().Str("type", soundType).Msg("muted; skipping sound")
		return
	}

	nowMs := s.now().UnixMilli()
	if last, ok := s.lastPlayed[soundType]; ok && nowMs-last < s.minInterval.Milliseconds() {
		s.mu.Unlock()
		s.logger.Debug().Str("type", soundType).Msg("rate limited; skipping sound")
		return
	}

	s.lastPlayed[soundType] = nowMs
	s.persistLastPlayedLocked(ctx)
	player := s.player
	volume := s.prefs.Volume
	s.mu.Unlock()

	if err := player.Play(ctx, soundType, volume); err != nil {
		s.logger.Warn().Err(err).Str("type", soundType).Msg("sound playback failed")
		return
	}
	s.logger.Debug().Str("type", soundType).Msg("played sound")
}

// ToggleMute flips the mute preference and returns the new state.
func (s *Sink) ToggleMute(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx)

	s.prefs.Muted = !s.prefs.Muted
	s.persistPreferencesLocked(ctx)
	return s.prefs.Muted
}

// SetMuted sets the mute preference.
func (s *Sink) SetMuted(ctx context.Context, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx)

	s.prefs.Muted = muted
	s.persistPreferencesLocked(ctx)
}

// SetVolume sets the playback volume, clamped to [0, 1].
func (s *Sink) SetVolume(ctx context.Context, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx)

	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	s.prefs.Volume = volume
	s.persistPreferencesLocked(ctx)
}

// GetMuted reports the mute preference.
func (s *Sink) GetMuted(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx)
	return s.prefs.Muted
}

// GetVolume reports the playback volume.
func (s *Sink) GetVolume(ctx context.Context) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx)
	return s.prefs.Volume
}

func (s *Sink) persistPreferencesLocked(ctx context.Context) {
	if s.backend == nil {
		return
	}
	raw, err := json.Marshal(s.prefs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode sound preferences")
		return
	}
	if err := s.backend.Set(ctx, preferencesKey, raw); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist sound preferences")
	}
}

func (s *Sink) persistLastPlayedLocked(ctx context.Context) {
	if s.backend == nil {
		return
	}
	raw, err := json.Marshal(s.lastPlayed)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode last-played state")
		return
	}
	if err := s.backend.Set(ctx, lastPlayedKey, raw); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist last-played state")
	}
}
