package control

import (
	"log"
	"net"

	"meshctl/internal/metrics"
	"meshctl/internal/model"
	"meshctl/internal/netstate"
	"meshctl/internal/radio"
	"meshctl/internal/schedule"
	"meshctl/internal/wire"
)

// ScheduleHandler installs schedules distributed by the gateway.
type ScheduleHandler struct {
	Self      model.NodeID
	Frequency float64
	Bandwidth float64
	State     *netstate.State
	Engine    radio.Engine
	Stats     *metrics.Collectors
}

// Handle is a channel.Handler for wire.KindSchedule. A schedule is installed
// only if it names this node, matches the configured frequency and
// bandwidth, and carries a newer sequence number.
func (h *ScheduleHandler) Handle(from *net.UDPAddr, msg wire.Message) {
	sc := msg.Schedule
	if sc == nil {
		return
	}
	if !member(sc.Nodes, h.Self) {
		h.Stats.ScheduleRejected("not_member")
		return
	}
	if sc.Frequency != h.Frequency || sc.Bandwidth != h.Bandwidth {
		h.Stats.ScheduleRejected("channel_mismatch")
		log.Printf("schedule: ignore seq=%d freq=%g bw=%g (have freq=%g bw=%g)", sc.Seq, sc.Frequency, sc.Bandwidth, h.Frequency, h.Bandwidth)
		return
	}
	g, err := schedule.GridFromRows(int(sc.NChannels), int(sc.NSlots), sc.Slots)
	if err != nil {
		h.Stats.ScheduleRejected("malformed")
		return
	}
	if !h.State.InstallSchedule(sc.Seq, g) {
		h.Stats.ScheduleRejected("stale")
		return
	}
	h.Stats.ScheduleApplied()
	log.Printf("schedule: installed seq=%d from=%s grid=%dx%d", sc.Seq, from, g.Channels(), g.Slots())
	if h.Engine != nil {
		if err := h.Engine.InstallSchedule(sc.Seq, g); err != nil {
			log.Printf("schedule: engine install failed seq=%d err=%v", sc.Seq, err)
		}
	}
}

func member(ids []model.NodeID, id model.NodeID) bool {
	for _, n := range ids {
		if n == id {
			return true
		}
	}
	return false
}
