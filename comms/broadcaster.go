package comms

import (
	"context"
	"time"

	"github.com/cablebotics/gocablebot/robot"
)

// Broadcaster pushes position snapshots on a fixed tick, independent of the
// command-triggered pushes. A tick with no clients or an inactive robot is a
// no-op: this is a conditional heartbeat, not an unconditional one.
type Broadcaster struct {
	State    *robot.State
	Hub      *Hub
	Interval time.Duration
}

// RateToInterval converts a Hz rate into a tick interval.
func RateToInterval(hz int) time.Duration {
	return time.Second / time.Duration(hz)
}

// Run ticks until ctx is canceled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

func (b *Broadcaster) tick() bool {
	if b.Hub.Len() == 0 || !b.State.Active() {
		return false
	}
	b.Hub.BroadcastPush(PushPosition, b.State.Status().Position)
	return true
}
