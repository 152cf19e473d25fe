package sound

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Player performs the actual audio playback for a named sound.
type Player interface {
	Play(ctx context.Context, name string, volume float64) error
}

// NopPlayer is used when the host has no audio capability; playing is a
// silent success.
type NopPlayer struct{}

// Play does nothing.
func (NopPlayer) Play(context.Context, string, float64) error { return nil }

// CommandPlayer shells out to a configured audio command (e.g. paplay,
// afplay). The sound name and volume are appended as arguments; how the
// command maps them to files is the operator's business.
type CommandPlayer struct {
	Command string
	Args    []string
}

// Play invokes the configured command.
func (p CommandPlayer) Play(ctx context.Context, name string, volume float64) error {
	if strings.TrimSpace(p.Command) == "" {
		return nil
	}

	args := make([]string, 0, len(p.Args)+2)
	args = append(args, p.Args...)
	args = append(args, name, fmt.Sprintf("%.2f", volume))

	cmd := exec.CommandContext(ctx, p.Command, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run sound command: %w", err)
	}
	return nil
}

var (
	_ Player = NopPlayer{}
	_ Player = CommandPlayer{}
)
