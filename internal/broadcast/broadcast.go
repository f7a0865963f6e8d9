// Package broadcast runs the periodic senders of the control plane: every
// node reports its status, and the gateway distributes the schedule.
package broadcast

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"meshctl/internal/channel"
	"meshctl/internal/wire"
)

// Sender is the outbound half of a channel.Channel.
type Sender interface {
	Send(msg wire.Message) error
	Remote() *net.UDPAddr
}

// Phase is a broadcaster's lifecycle state.
type Phase int32

const (
	// Idle: no peer endpoint configured yet.
	Idle Phase = iota
	// Running: sending every period.
	Running
	// Cancelled: the loop exited because its context was cancelled.
	Cancelled
	// Failed: the loop exited on a send error.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type phase struct {
	v atomic.Int32
}

func (p *phase) get() Phase  { return Phase(p.v.Load()) }
func (p *phase) set(v Phase) { p.v.Store(int32(v)) }

// loop calls step every period while a remote endpoint is configured. It
// returns nil when ctx is cancelled and the step error otherwise, leaving
// the phase at Cancelled or Failed respectively.
func loop(ctx context.Context, period time.Duration, out Sender, ph *phase, step func() error) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ph.set(Cancelled)
			return nil
		case <-ticker.C:
		}
		// A cancel that raced the tick wins.
		if ctx.Err() != nil {
			ph.set(Cancelled)
			return nil
		}
		if out.Remote() == nil {
			ph.set(Idle)
			continue
		}
		ph.set(Running)
		if err := step(); err != nil {
			if ctx.Err() != nil && errors.Is(err, channel.ErrClosed) {
				ph.set(Cancelled)
				return nil
			}
			ph.set(Failed)
			return err
		}
	}
}
