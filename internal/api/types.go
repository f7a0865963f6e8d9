package api

import "meshctl/internal/model"

// LocationInfo is a node position; Timestamp is seconds since the epoch.
type LocationInfo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Timestamp float64 `json:"timestamp"`
}

// NodeInfo describes one provisioned node.
type NodeInfo struct {
	ID       uint32        `json:"id"`
	Location *LocationInfo `json:"location,omitempty"`
}

// NodesResponse lists provisioned nodes.
type NodesResponse struct {
	Self  uint32     `json:"self"`
	Nodes []NodeInfo `json:"nodes"`
}

// FlowInfo is the latest stats for one flow.
type FlowInfo struct {
	Flow       uint32  `json:"flow"`
	Window     float64 `json:"window"`
	Latency    float64 `json:"latency"`
	Throughput float64 `json:"throughput"`
	Bytes      uint64  `json:"bytes"`
}

// FlowsResponse lists flow stats.
type FlowsResponse struct {
	Flows []FlowInfo `json:"flows"`
}

// LinkInfo is one flow graph edge.
type LinkInfo struct {
	Src  uint32 `json:"src"`
	Dest uint32 `json:"dest"`
	Flow uint32 `json:"flow"`
}

// LinksResponse lists the flow graph.
type LinksResponse struct {
	Links []LinkInfo `json:"links"`
}

// ScheduleResponse describes the installed schedule.
type ScheduleResponse struct {
	Installed bool       `json:"installed"`
	Seq       uint32     `json:"seq"`
	Channels  int        `json:"channels"`
	Slots     int        `json:"slots"`
	Grid      [][]uint32 `json:"grid,omitempty"`
}

func nodeInfo(n model.Node) NodeInfo {
	info := NodeInfo{ID: uint32(n.ID)}
	if n.Location != nil {
		info.Location = &LocationInfo{
			Latitude:  n.Location.Latitude,
			Longitude: n.Location.Longitude,
			Altitude:  n.Location.Altitude,
			Timestamp: n.Location.Timestamp.Float(),
		}
	}
	return info
}
