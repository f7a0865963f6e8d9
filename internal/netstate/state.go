// Package netstate holds this node's view of the mesh: the provisioned
// roster with last-known locations, the directed flow graph and per-flow
// statistics, and the installed schedule.
//
// State is an actor. Every mutation runs as one message in its inbox, so
// status merges, schedule installs and broadcaster snapshots never overlap.
package netstate

import (
	"sort"

	"github.com/Arceliar/phony"

	"meshctl/internal/model"
	"meshctl/internal/schedule"
)

// State is the in-memory network state.
type State struct {
	phony.Inbox
	nodes    map[model.NodeID]*model.Node
	links    map[model.FlowLink]struct{}
	stats    map[model.FlowID]model.FlowStats
	schedSeq uint32
	sched    schedule.Grid
}

// New returns a State provisioned with ids.
func New(ids ...model.NodeID) *State {
	s := &State{
		nodes: make(map[model.NodeID]*model.Node, len(ids)),
		links: make(map[model.FlowLink]struct{}),
		stats: make(map[model.FlowID]model.FlowStats),
	}
	for _, id := range ids {
		s.nodes[id] = &model.Node{ID: id}
	}
	return s
}

// Txn exposes mutations. It is only valid inside an Apply callback.
type Txn struct {
	s *State
}

// Apply runs fn inside the actor. Calls from one goroutine run in order.
func (s *State) Apply(from phony.Actor, fn func(Txn)) {
	s.Act(from, func() {
		fn(Txn{s: s})
	})
}

// Known reports whether id is provisioned.
func (t Txn) Known(id model.NodeID) bool {
	_, ok := t.s.nodes[id]
	return ok
}

// AddNode provisions id if it is new.
func (t Txn) AddNode(id model.NodeID) bool {
	if _, ok := t.s.nodes[id]; ok {
		return false
	}
	t.s.nodes[id] = &model.Node{ID: id}
	return true
}

// UpdateLocation sets the location of a provisioned node. Unknown ids are
// ignored; this never creates a node.
func (t Txn) UpdateLocation(id model.NodeID, loc model.Location) bool {
	n, ok := t.s.nodes[id]
	if !ok {
		return false
	}
	l := loc
	n.Location = &l
	return true
}

// AddLink merges link into the flow graph and reports whether it was new.
func (t Txn) AddLink(link model.FlowLink) bool {
	if _, ok := t.s.links[link]; ok {
		return false
	}
	t.s.links[link] = struct{}{}
	return true
}

// UpdateFlowStats overwrites the stats for stats.Flow.
func (t Txn) UpdateFlowStats(stats model.FlowStats) {
	t.s.stats[stats.Flow] = stats
}

// InstallSchedule replaces the schedule if seq is newer than the installed
// one. The first install accepts any seq.
func (t Txn) InstallSchedule(seq uint32, g schedule.Grid) bool {
	if t.s.sched != nil && seq <= t.s.schedSeq {
		return false
	}
	t.s.schedSeq = seq
	t.s.sched = copyGrid(g)
	return true
}

// ScheduleSeq returns the installed sequence number and whether a schedule
// is installed.
func (t Txn) ScheduleSeq() (uint32, bool) {
	return t.s.schedSeq, t.s.sched != nil
}

// Counts returns the number of nodes and links.
func (t Txn) Counts() (nodes, links int) {
	return len(t.s.nodes), len(t.s.links)
}

// AddNode provisions id.
func (s *State) AddNode(from phony.Actor, id model.NodeID) {
	s.Apply(from, func(t Txn) { t.AddNode(id) })
}

// UpdateLocation sets a known node's location.
func (s *State) UpdateLocation(from phony.Actor, id model.NodeID, loc model.Location) {
	s.Apply(from, func(t Txn) { t.UpdateLocation(id, loc) })
}

// AddLink merges a flow link.
func (s *State) AddLink(from phony.Actor, link model.FlowLink) {
	s.Apply(from, func(t Txn) { t.AddLink(link) })
}

// UpdateFlowStats overwrites a flow's stats.
func (s *State) UpdateFlowStats(from phony.Actor, stats model.FlowStats) {
	s.Apply(from, func(t Txn) { t.UpdateFlowStats(stats) })
}

// InstallSchedule installs g if seq is newer and reports whether it did.
func (s *State) InstallSchedule(seq uint32, g schedule.Grid) bool {
	var ok bool
	phony.Block(s, func() {
		ok = Txn{s: s}.InstallSchedule(seq, g)
	})
	return ok
}

// Node returns a copy of the node record for id.
func (s *State) Node(id model.NodeID) (model.Node, bool) {
	var node model.Node
	var ok bool
	phony.Block(s, func() {
		var n *model.Node
		if n, ok = s.nodes[id]; ok {
			node = copyNode(n)
		}
	})
	return node, ok
}

// Nodes returns all node records ordered by id.
func (s *State) Nodes() []model.Node {
	var nodes []model.Node
	phony.Block(s, func() {
		nodes = s._nodes()
	})
	return nodes
}

// Links returns the flow graph ordered by flow, source, destination.
func (s *State) Links() []model.FlowLink {
	var links []model.FlowLink
	phony.Block(s, func() {
		links = s._links()
	})
	return links
}

// FlowStats returns the latest stats for flow.
func (s *State) FlowStats(flow model.FlowID) (model.FlowStats, bool) {
	var stats model.FlowStats
	var ok bool
	phony.Block(s, func() {
		stats, ok = s.stats[flow]
	})
	return stats, ok
}

// Schedule returns the installed grid and its sequence number.
func (s *State) Schedule() (schedule.Grid, uint32, bool) {
	var g schedule.Grid
	var seq uint32
	phony.Block(s, func() {
		g = copyGrid(s.sched)
		seq = s.schedSeq
	})
	return g, seq, g != nil
}

// Roster returns the provisioned ids sorted ascending with self moved to
// the front, the order schedules are computed from.
func (s *State) Roster(self model.NodeID) []model.NodeID {
	var ids []model.NodeID
	phony.Block(s, func() {
		ids = make([]model.NodeID, 0, len(s.nodes)+1)
		for id := range s.nodes {
			if id != self {
				ids = append(ids, id)
			}
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return append([]model.NodeID{self}, ids...)
}

// Snapshot is a consistent copy of the whole state.
type Snapshot struct {
	Nodes       []model.Node
	Links       []model.FlowLink
	Stats       []model.FlowStats
	ScheduleSeq uint32
	Schedule    schedule.Grid
}

// Snapshot copies the state in a single actor step.
func (s *State) Snapshot() Snapshot {
	var snap Snapshot
	phony.Block(s, func() {
		snap.Nodes = s._nodes()
		snap.Links = s._links()
		snap.Stats = make([]model.FlowStats, 0, len(s.stats))
		for _, st := range s.stats {
			snap.Stats = append(snap.Stats, st)
		}
		snap.ScheduleSeq = s.schedSeq
		snap.Schedule = copyGrid(s.sched)
	})
	sort.Slice(snap.Stats, func(i, j int) bool { return snap.Stats[i].Flow < snap.Stats[j].Flow })
	return snap
}

func (s *State) _nodes() []model.Node {
	nodes := make([]model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, copyNode(n))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

func (s *State) _links() []model.FlowLink {
	links := make([]model.FlowLink, 0, len(s.links))
	for l := range s.links {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Less(links[j]) })
	return links
}

func copyNode(n *model.Node) model.Node {
	out := model.Node{ID: n.ID}
	if n.Location != nil {
		loc := *n.Location
		out.Location = &loc
	}
	return out
}

func copyGrid(g schedule.Grid) schedule.Grid {
	if g == nil {
		return nil
	}
	out := make(schedule.Grid, len(g))
	for i, row := range g {
		out[i] = append([]model.NodeID(nil), row...)
	}
	return out
}
