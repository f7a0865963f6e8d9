package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	"meshctl/internal/model"
	"meshctl/internal/netstate"
	"meshctl/internal/radio"
	"meshctl/internal/schedule"
	"meshctl/internal/wire"
)

// ScheduleBroadcaster runs on the gateway. Each period it recomputes the
// schedule from the provisioned roster, installs it locally under a new
// sequence number if it changed, and sends the installed schedule.
type ScheduleBroadcaster struct {
	Self      model.NodeID
	State     *netstate.State
	Engine    radio.Engine // optional
	Out       Sender
	Policy    schedule.Policy
	Frequency float64
	Bandwidth float64
	Period    time.Duration

	ph    phase
	prior map[model.NodeID]int
}

// Phase reports the lifecycle state.
func (b *ScheduleBroadcaster) Phase() Phase { return b.ph.get() }

// Run distributes the schedule every Period until ctx is cancelled.
func (b *ScheduleBroadcaster) Run(ctx context.Context) error {
	if b.Period <= 0 {
		return fmt.Errorf("schedule broadcast: invalid period %s", b.Period)
	}
	return loop(ctx, b.Period, b.Out, &b.ph, func() error {
		msg, ok := b.Step()
		if !ok {
			return nil
		}
		if err := b.Out.Send(msg); err != nil {
			return fmt.Errorf("schedule broadcast: %w", err)
		}
		return nil
	})
}

// Step recomputes and installs the schedule and returns the message to
// send. It reports false when no schedule could be computed.
func (b *ScheduleBroadcaster) Step() (wire.Message, bool) {
	roster := b.State.Roster(b.Self)
	g, assign, err := b.Policy.Compute(roster, b.prior)
	if err != nil {
		log.Printf("schedule: compute failed policy=%s err=%v", b.Policy.Name, err)
		return wire.Message{}, false
	}
	b.prior = assign

	cur, seq, ok := b.State.Schedule()
	if !ok || !cur.Equal(g) {
		next := seq + 1
		if b.State.InstallSchedule(next, g) {
			log.Printf("schedule: new seq=%d policy=%s nodes=%d", next, b.Policy.Name, len(roster))
			if b.Engine != nil {
				if err := b.Engine.InstallSchedule(next, g); err != nil {
					log.Printf("schedule: engine install failed seq=%d err=%v", next, err)
				}
			}
		}
		cur, seq, _ = b.State.Schedule()
	}

	return wire.Message{Schedule: &wire.Schedule{
		Seq:       seq,
		Frequency: b.Frequency,
		Bandwidth: b.Bandwidth,
		NChannels: uint32(cur.Channels()),
		NSlots:    uint32(cur.Slots()),
		Nodes:     roster,
		Slots:     cur.Rows(),
	}}, true
}
