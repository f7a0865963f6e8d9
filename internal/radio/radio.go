// Package radio defines what the control plane needs from the radio
// engine, plus a static engine for nodes without live flow telemetry.
package radio

import (
	"sync"

	"meshctl/internal/model"
	"meshctl/internal/schedule"
)

// Engine is the radio engine as seen by the control plane.
type Engine interface {
	NodeID() model.NodeID
	Location() model.Location
	// OutboundFlows returns flows this node sources.
	OutboundFlows() []model.FlowInfo
	// InboundFlows returns flows this node sinks.
	InboundFlows() []model.FlowInfo
	// InstallSchedule hands a new slot grid to the MAC.
	InstallSchedule(seq uint32, g schedule.Grid) error
}

// Static is an Engine whose flows and location are set by the caller.
type Static struct {
	id model.NodeID

	mu       sync.Mutex
	loc      model.Location
	outbound []model.FlowInfo
	inbound  []model.FlowInfo
	seq      uint32
	sched    schedule.Grid
	channel  int
}

// NewStatic returns an engine for node id at loc.
func NewStatic(id model.NodeID, loc model.Location) *Static {
	return &Static{id: id, loc: loc, channel: -1}
}

func (s *Static) NodeID() model.NodeID { return s.id }

func (s *Static) Location() model.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// SetLocation replaces the reported location.
func (s *Static) SetLocation(loc model.Location) {
	s.mu.Lock()
	s.loc = loc
	s.mu.Unlock()
}

// SetFlows replaces the flow tables.
func (s *Static) SetFlows(outbound, inbound []model.FlowInfo) {
	s.mu.Lock()
	s.outbound = append([]model.FlowInfo(nil), outbound...)
	s.inbound = append([]model.FlowInfo(nil), inbound...)
	s.mu.Unlock()
}

func (s *Static) OutboundFlows() []model.FlowInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.FlowInfo(nil), s.outbound...)
}

func (s *Static) InboundFlows() []model.FlowInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.FlowInfo(nil), s.inbound...)
}

// InstallSchedule records g and picks the transmit channel this node owns
// the most slots on. A grid giving this node no slot leaves it silent.
func (s *Static) InstallSchedule(seq uint32, g schedule.Grid) error {
	ch, err := schedule.BestChannel(g, s.id)
	if err != nil {
		ch = -1
	}
	s.mu.Lock()
	s.seq = seq
	s.sched = g
	s.channel = ch
	s.mu.Unlock()
	return nil
}

// Schedule returns the last installed grid, its sequence number and the
// selected transmit channel (-1 when none).
func (s *Static) Schedule() (schedule.Grid, uint32, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched, s.seq, s.channel
}
