package sound

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wallet-alerts/internal/session"
)

type countingPlayer struct {
	mu     sync.Mutex
	played []string
	volume float64
}

func (p *countingPlayer) Play(_ context.Context, name string, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, name)
	p.volume = volume
	return nil
}

func (p *countingPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

func newTestSink(backend session.Store, player Player) *Sink {
	return NewSink(backend, player, Options{}, zerolog.Nop())
}

func TestPlayRateLimited(t *testing.T) {
	ctx := context.Background()
	player := &countingPlayer{}
	sink := newTestSink(session.NewMemory(), player)

	base := time.UnixMilli(1_000_000)
	sink.now = func() time.Time { return base }

	sink.Play(ctx, TypePaymentReceived)
	sink.Play(ctx, TypePaymentReceived)
	if player.count() != 1 {
		t.Fatalf("two plays within 3000ms should produce one, got %d", player.count())
	}

	sink.now = func() time.Time { return base.Add(3001 * time.Millisecond) }
	sink.Play(ctx, TypePaymentReceived)
	if player.count() != 2 {
		t.Fatalf("play after the interval should succeed, got %d", player.count())
	}
}

func TestRateLimitIsPerType(t *testing.T) {
	ctx := context.Background()
	player := &countingPlayer{}
	sink := newTestSink(session.NewMemory(), player)

	base := time.UnixMilli(1_000_000)
	sink.now = func() time.Time { return base }

	sink.Play(ctx, TypePaymentReceived)
	sink.Play(ctx, TypeBalanceUpdated)
	if player.count() != 2 {
		t.Fatalf("different types rate limit independently, got %d plays", player.count())
	}
}

func TestMutedSkipsPlayback(t *testing.T) {
	ctx := context.Background()
	player := &countingPlayer{}
	sink := newTestSink(session.NewMemory(), player)

	sink.SetMuted(ctx, true)
	sink.Play(ctx, TypePaymentReceived)
	if player.count() != 0 {
		t.Fatalf("muted sink must not play, got %d", player.count())
	}

	if muted := sink.ToggleMute(ctx); muted {
		t.Fatal("toggle should unmute")
	}
	sink.Play(ctx, TypePaymentReceived)
	if player.count() != 1 {
		t.Fatalf("unmuted sink should play, got %d", player.count())
	}
}

func TestMutePersistsAcrossReconstruction(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()

	first := newTestSink(backend, &countingPlayer{})
	first.SetMuted(ctx, true)
	first.SetVolume(ctx, 0.25)

	second := newTestSink(backend, &countingPlayer{})
	if !second.GetMuted(ctx) {
		t.Fatal("muted state should survive reconstruction")
	}
	if got := second.GetVolume(ctx); got != 0.25 {
		t.Fatalf("volume should survive reconstruction, got %f", got)
	}
}

func TestLastPlayedPersistsAcrossReconstruction(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()
	base := time.UnixMilli(1_000_000)

	first := newTestSink(backend, &countingPlayer{})
	first.now = func() time.Time { return base }
	first.Play(ctx, TypePaymentReceived)

	player := &countingPlayer{}
	second := newTestSink(backend, player)
	second.now = func() time.Time { return base.Add(time.Second) }
	second.Play(ctx, TypePaymentReceived)
	if player.count() != 0 {
		t.Fatal("rate limit state should survive reconstruction")
	}
}

func TestSetVolumeClamps(t *testing.T) {
	ctx := context.Background()
	sink := newTestSink(session.NewMemory(), &countingPlayer{})

	sink.SetVolume(ctx, 1.8)
	if got := sink.GetVolume(ctx); got != 1 {
		t.Fatalf("volume should clamp to 1, got %f", got)
	}
	sink.SetVolume(ctx, -3)
	if got := sink.GetVolume(ctx); got != 0 {
		t.Fatalf("volume should clamp to 0, got %f", got)
	}
}

func TestPlayWithoutAudioCapability(t *testing.T) {
	ctx := context.Background()
	sink := NewSink(session.NewMemory(), nil, Options{}, zerolog.Nop())

	// Must be a silent no-op, never a panic.
	sink.Play(ctx, TypePaymentReceived)
}

func TestPlayerFailureIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	sink := NewSink(session.NewMemory(), failingPlayer{}, Options{}, zerolog.Nop())

	sink.Play(ctx, TypePaymentReceived)
	// Rate limit state advances even when playback fails; the next immediate
	// attempt is throttled, not retried.
	sink.Play(ctx, TypePaymentReceived)
}

type failingPlayer struct{}

func (failingPlayer) Play(context.Context, string, float64) error {
	return context.DeadlineExceeded
}
