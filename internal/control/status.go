// Package control handles inbound control-plane messages and merges them
// into the node's network state.
package control

import (
	"log"
	"net"
	"strconv"
	"time"

	"meshctl/internal/metrics"
	"meshctl/internal/model"
	"meshctl/internal/netstate"
	"meshctl/internal/wire"
)

// Recorder stores flow samples.
type Recorder interface {
	Record(items []model.FlowSample) error
}

// Publisher forwards merged status reports to other consumers.
type Publisher interface {
	PublishStatus(st *wire.Status) error
}

// StatusHandler merges Status messages into State.
type StatusHandler struct {
	State    *netstate.State
	Stats    *metrics.Collectors
	Recorder Recorder         // optional
	Mirror   Publisher        // optional
	Now      func() time.Time // defaults to time.Now
}

// Handle is a channel.Handler for wire.KindStatus.
//
// The sender's location is stored only if the sender is provisioned. Flow
// links are recorded for any sender. Sink flow stats overwrite what was
// there before, whatever the message timestamp. The merge runs on the state
// actor and may complete after Handle returns.
func (h *StatusHandler) Handle(from *net.UDPAddr, msg wire.Message) {
	st := msg.Status
	if st == nil {
		return
	}

	h.State.Apply(nil, func(tx netstate.Txn) {
		tx.UpdateLocation(st.RadioID, st.Location)
		for _, f := range st.SourceFlows {
			tx.AddLink(model.FlowLink{Src: st.RadioID, Dest: f.Dest, Flow: f.Flow})
		}
		for _, f := range st.SinkFlows {
			tx.AddLink(model.FlowLink{Src: f.Src, Dest: st.RadioID, Flow: f.Flow})
			tx.UpdateFlowStats(f.Stats())
		}
		h.Stats.SetTopology(tx.Counts())
		h.Stats.Merged()
	})

	for _, f := range st.SinkFlows {
		h.Stats.ObserveFlow(strconv.FormatUint(uint64(f.Flow), 10), f.Latency, f.Throughput)
	}
	if h.Recorder != nil && len(st.SinkFlows) > 0 {
		if err := h.Recorder.Record(h.samples(st)); err != nil {
			log.Printf("status: record samples failed radio=%d err=%v", st.RadioID, err)
		}
	}
	if h.Mirror != nil {
		if err := h.Mirror.PublishStatus(st); err != nil {
			log.Printf("status: mirror publish failed radio=%d err=%v", st.RadioID, err)
		}
	}
}

func (h *StatusHandler) samples(st *wire.Status) []model.FlowSample {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	ts := now().UTC()
	items := make([]model.FlowSample, 0, len(st.SinkFlows))
	for _, f := range st.SinkFlows {
		items = append(items, model.FlowSample{
			Timestamp:  ts,
			Reporter:   st.RadioID,
			Flow:       f.Flow,
			Src:        f.Src,
			Dest:       st.RadioID,
			Window:     f.Window,
			Latency:    f.Latency,
			Throughput: f.Throughput,
			Bytes:      f.Bytes,
		})
	}
	return items
}
