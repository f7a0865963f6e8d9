// Package wire defines the control-plane messages exchanged between mesh
// nodes and their datagram encoding.
//
// Messages use the protobuf wire format so peers built from a .proto schema
// interoperate. Fields and payload variants a reader does not know are
// skipped, which lets nodes on different schema versions coexist.
package wire

import (
	"errors"

	"meshctl/internal/model"
	"meshctl/internal/timestamp"
)

// Kind tags the payload carried by a Message.
type Kind int

const (
	KindUnknown Kind = iota
	KindStatus
	KindSchedule
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

var (
	// ErrUnknownKind is returned when encoding a Message without a payload.
	ErrUnknownKind = errors.New("wire: message has no known payload")
	// ErrMalformed wraps decode failures.
	ErrMalformed = errors.New("wire: malformed message")
)

// Message is a tagged union; at most one payload is set.
type Message struct {
	Status   *Status
	Schedule *Schedule
}

// Kind reports which payload m carries.
func (m Message) Kind() Kind {
	switch {
	case m.Status != nil:
		return KindStatus
	case m.Schedule != nil:
		return KindSchedule
	default:
		return KindUnknown
	}
}

// Status is a node's periodic report of its location and active flows.
type Status struct {
	RadioID     model.NodeID
	Timestamp   timestamp.Timestamp
	Location    model.Location
	SourceFlows []model.FlowInfo // flows this node sends
	SinkFlows   []model.FlowInfo // flows this node receives
}

// Schedule distributes a channel/slot assignment. Slots is row-major,
// NChannels rows of NSlots entries; zero marks an unassigned slot.
type Schedule struct {
	Seq       uint32
	Frequency float64
	Bandwidth float64
	NChannels uint32
	NSlots    uint32
	Nodes     []model.NodeID
	Slots     []model.NodeID
}
