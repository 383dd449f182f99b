// Package blockgate holds the controller's block/unblock state: while
// blocked, the HTTP surface accepts start/stop requests but refuses to act
// on them. It is a named state holder rather than fields on the HTTP
// server, so the server, the job manager, and metrics can all observe it
// without reaching into each other.
package blockgate

import (
	"context"
	"sync"
	"time"

	"github.com/saltyorg/sdc/pkg/logger"
)

// Gate serializes block/unblock state behind a single mutex and manages
// the auto-unblock timer for a block with a duration.
type Gate struct {
	mu       sync.Mutex
	blocked  bool
	cancel   context.CancelFunc
	logger   *logger.Logger
	onChange func(blocked bool)
}

// New creates an unblocked Gate. onChange, if non-nil, is called every time
// the blocked state transitions (used to drive the sdc_blocked gauge).
func New(logger *logger.Logger, onChange func(blocked bool)) *Gate {
	return &Gate{
		logger:   logger,
		onChange: onChange,
	}
}

// Block sets the gate blocked for the given duration, after which it
// auto-unblocks. A Block call while already blocked replaces the previous
// timer rather than stacking.
func (g *Gate) Block(duration time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}

	g.blocked = true
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel

	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()

		select {
		case <-timer.C:
			g.mu.Lock()
			g.blocked = false
			g.cancel = nil
			g.mu.Unlock()
			g.notify(false)
			if g.logger != nil {
				g.logger.Info("Auto unblock complete")
			}
		case <-ctx.Done():
		}
	}()

	g.notify(true)
}

// Unblock clears the blocked state immediately and cancels any pending
// auto-unblock timer.
func (g *Gate) Unblock() {
	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.blocked = false
	g.mu.Unlock()

	g.notify(false)
}

// IsBlocked reports the current blocked state.
func (g *Gate) IsBlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked
}

func (g *Gate) notify(blocked bool) {
	if g.onChange != nil {
		g.onChange(blocked)
	}
}
