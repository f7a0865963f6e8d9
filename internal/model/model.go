package model

import (
	"fmt"
	"time"

	"meshctl/internal/timestamp"
)

// NodeID identifies a radio node in the mesh. Zero is reserved to mean
// "no node" in schedules.
type NodeID uint32

// FlowID identifies one data flow across the mesh.
type FlowID uint32

// Location is a node position with the time it was observed.
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Timestamp timestamp.Timestamp
}

// Node is a provisioned mesh participant.
type Node struct {
	ID       NodeID
	Location *Location // nil until a status message reports one
}

// FlowLink is a directed edge in the flow graph.
type FlowLink struct {
	Src  NodeID
	Dest NodeID
	Flow FlowID
}

func (l FlowLink) String() string {
	return fmt.Sprintf("%d->%d/%d", l.Src, l.Dest, l.Flow)
}

// Less orders links by flow, then source, then destination.
func (l FlowLink) Less(o FlowLink) bool {
	if l.Flow != o.Flow {
		return l.Flow < o.Flow
	}
	if l.Src != o.Src {
		return l.Src < o.Src
	}
	return l.Dest < o.Dest
}

// FlowStats is the aggregate performance of one flow. The latest processed
// update replaces the previous one.
type FlowStats struct {
	Flow       FlowID
	Window     float64
	Latency    float64
	Throughput float64
	Bytes      uint64
}

// FlowInfo is one row of a radio flow table as carried in a status message.
type FlowInfo struct {
	Flow       FlowID
	Src        NodeID
	Dest       NodeID
	Window     float64 // latency measurement window (sec)
	Latency    float64 // sec
	Throughput float64 // bits/sec
	Bytes      uint64
}

// Stats returns the stats portion of f.
func (f FlowInfo) Stats() FlowStats {
	return FlowStats{
		Flow:       f.Flow,
		Window:     f.Window,
		Latency:    f.Latency,
		Throughput: f.Throughput,
		Bytes:      f.Bytes,
	}
}

// FlowSample is a recorded stats update for offline summaries.
type FlowSample struct {
	Timestamp  time.Time
	Reporter   NodeID
	Flow       FlowID
	Src        NodeID
	Dest       NodeID
	Window     float64
	Latency    float64
	Throughput float64
	Bytes      uint64
}
