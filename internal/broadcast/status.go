package broadcast

import (
	"context"
	"fmt"
	"time"

	"meshctl/internal/radio"
	"meshctl/internal/timestamp"
	"meshctl/internal/wire"
)

// StatusBroadcaster periodically sends this node's Status to the peer.
type StatusBroadcaster struct {
	Engine radio.Engine
	Out    Sender
	Period time.Duration
	Now    func() time.Time // defaults to time.Now

	ph phase
}

// Phase reports the lifecycle state.
func (b *StatusBroadcaster) Phase() Phase { return b.ph.get() }

// Run sends a status every Period until ctx is cancelled. A send failure
// ends the loop with an error.
func (b *StatusBroadcaster) Run(ctx context.Context) error {
	if b.Period <= 0 {
		return fmt.Errorf("status broadcast: invalid period %s", b.Period)
	}
	return loop(ctx, b.Period, b.Out, &b.ph, func() error {
		if err := b.Out.Send(b.Build()); err != nil {
			return fmt.Errorf("status broadcast: %w", err)
		}
		return nil
	})
}

// Build snapshots the engine into a Status message.
func (b *StatusBroadcaster) Build() wire.Message {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return wire.Message{Status: &wire.Status{
		RadioID:     b.Engine.NodeID(),
		Timestamp:   timestamp.FromTime(now()),
		Location:    b.Engine.Location(),
		SourceFlows: b.Engine.OutboundFlows(),
		SinkFlows:   b.Engine.InboundFlows(),
	}}
}
