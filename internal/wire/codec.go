package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"meshctl/internal/model"
	"meshctl/internal/timestamp"
)

// Field numbers, kept in step with the internal.proto schema used by peers.
const (
	fieldMessageStatus   protowire.Number = 1
	fieldMessageSchedule protowire.Number = 2

	fieldStatusRadioID     protowire.Number = 1
	fieldStatusTimestamp   protowire.Number = 2
	fieldStatusLocation    protowire.Number = 3
	fieldStatusSourceFlows protowire.Number = 4
	fieldStatusSinkFlows   protowire.Number = 5

	fieldLocPosition  protowire.Number = 1
	fieldLocTimestamp protowire.Number = 2

	fieldPosLatitude  protowire.Number = 1
	fieldPosLongitude protowire.Number = 2
	fieldPosElevation protowire.Number = 3

	fieldTSSeconds     protowire.Number = 1
	fieldTSPicoseconds protowire.Number = 2

	fieldFlowUID        protowire.Number = 1
	fieldFlowSrc        protowire.Number = 2
	fieldFlowDest       protowire.Number = 3
	fieldFlowWindow     protowire.Number = 4
	fieldFlowLatency    protowire.Number = 5
	fieldFlowThroughput protowire.Number = 6
	fieldFlowBytes      protowire.Number = 7

	fieldSchedSeq       protowire.Number = 1
	fieldSchedFrequency protowire.Number = 2
	fieldSchedBandwidth protowire.Number = 3
	fieldSchedNChannels protowire.Number = 4
	fieldSchedNSlots    protowire.Number = 5
	fieldSchedNodes     protowire.Number = 6
	fieldSchedSlots     protowire.Number = 7
)

// Marshal encodes m into a single datagram payload.
func Marshal(m Message) ([]byte, error) {
	var out []byte
	switch m.Kind() {
	case KindStatus:
		out = appendMessage(out, fieldMessageStatus, appendStatus(nil, m.Status))
	case KindSchedule:
		if err := m.Schedule.validate(); err != nil {
			return nil, err
		}
		out = appendMessage(out, fieldMessageSchedule, appendSchedule(nil, m.Schedule))
	default:
		return nil, ErrUnknownKind
	}
	return out, nil
}

// Unmarshal decodes a datagram payload. A payload whose variant is not known
// to this reader decodes to a Message of KindUnknown without error.
func Unmarshal(data []byte) (Message, error) {
	var m Message
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		switch num {
		case fieldMessageStatus:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			st, err := unmarshalStatus(v)
			if err != nil {
				return 0, err
			}
			m = Message{Status: st}
			return n, nil
		case fieldMessageSchedule:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			sc, err := unmarshalSchedule(v)
			if err != nil {
				return 0, err
			}
			m = Message{Schedule: sc}
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// walk visits every field in b. fn returns the number of value bytes it
// consumed, zero to have the field skipped, or a negative protowire error code.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func appendMessage(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendPackedNodes(b []byte, num protowire.Number, ids []model.NodeID) []byte {
	if len(ids) == 0 {
		return b
	}
	var packed []byte
	for _, id := range ids {
		packed = protowire.AppendVarint(packed, uint64(id))
	}
	return appendMessage(b, num, packed)
}

func appendTimestamp(b []byte, t timestamp.Timestamp) []byte {
	b = appendVarint(b, fieldTSSeconds, uint64(t.Seconds))
	return appendVarint(b, fieldTSPicoseconds, uint64(t.Picoseconds))
}

func appendLocation(b []byte, loc model.Location) []byte {
	var pos []byte
	pos = appendDouble(pos, fieldPosLatitude, loc.Latitude)
	pos = appendDouble(pos, fieldPosLongitude, loc.Longitude)
	pos = appendDouble(pos, fieldPosElevation, loc.Altitude)
	b = appendMessage(b, fieldLocPosition, pos)
	return appendMessage(b, fieldLocTimestamp, appendTimestamp(nil, loc.Timestamp))
}

func appendFlow(b []byte, f model.FlowInfo) []byte {
	b = appendVarint(b, fieldFlowUID, uint64(f.Flow))
	b = appendVarint(b, fieldFlowSrc, uint64(f.Src))
	b = appendVarint(b, fieldFlowDest, uint64(f.Dest))
	b = appendDouble(b, fieldFlowWindow, f.Window)
	b = appendDouble(b, fieldFlowLatency, f.Latency)
	b = appendDouble(b, fieldFlowThroughput, f.Throughput)
	return appendVarint(b, fieldFlowBytes, f.Bytes)
}

func appendStatus(b []byte, s *Status) []byte {
	b = appendVarint(b, fieldStatusRadioID, uint64(s.RadioID))
	b = appendMessage(b, fieldStatusTimestamp, appendTimestamp(nil, s.Timestamp))
	b = appendMessage(b, fieldStatusLocation, appendLocation(nil, s.Location))
	for _, f := range s.SourceFlows {
		b = appendMessage(b, fieldStatusSourceFlows, appendFlow(nil, f))
	}
	for _, f := range s.SinkFlows {
		b = appendMessage(b, fieldStatusSinkFlows, appendFlow(nil, f))
	}
	return b
}

func appendSchedule(b []byte, s *Schedule) []byte {
	b = appendVarint(b, fieldSchedSeq, uint64(s.Seq))
	b = appendDouble(b, fieldSchedFrequency, s.Frequency)
	b = appendDouble(b, fieldSchedBandwidth, s.Bandwidth)
	b = appendVarint(b, fieldSchedNChannels, uint64(s.NChannels))
	b = appendVarint(b, fieldSchedNSlots, uint64(s.NSlots))
	b = appendPackedNodes(b, fieldSchedNodes, s.Nodes)
	return appendPackedNodes(b, fieldSchedSlots, s.Slots)
}

// validate requires a non-empty grid whose size matches the slots carried,
// so the shape is bounded by the datagram.
func (s *Schedule) validate() error {
	if s.NChannels == 0 || s.NSlots == 0 {
		return fmt.Errorf("%w: schedule shape %dx%d is empty", ErrMalformed, s.NChannels, s.NSlots)
	}
	if uint64(len(s.Slots)) != uint64(s.NChannels)*uint64(s.NSlots) {
		return fmt.Errorf("%w: schedule has %d slots, want %dx%d", ErrMalformed, len(s.Slots), s.NChannels, s.NSlots)
	}
	return nil
}

func consumeVarint(b []byte, out *uint64) int {
	v, n := protowire.ConsumeVarint(b)
	if n > 0 {
		*out = v
	}
	return n
}

func consumeDouble(b []byte, out *float64) int {
	v, n := protowire.ConsumeFixed64(b)
	if n > 0 {
		*out = math.Float64frombits(v)
	}
	return n
}

// consumeNodes accepts both packed and unpacked repeated encodings.
func consumeNodes(typ protowire.Type, b []byte, out *[]model.NodeID) int {
	switch typ {
	case protowire.VarintType:
		var v uint64
		n := consumeVarint(b, &v)
		if n > 0 {
			*out = append(*out, model.NodeID(v))
		}
		return n
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return m
			}
			*out = append(*out, model.NodeID(v))
			packed = packed[m:]
		}
		return n
	}
	return 0
}

func unmarshalTimestamp(b []byte) (timestamp.Timestamp, error) {
	var secs, ps uint64
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, nil
		}
		switch num {
		case fieldTSSeconds:
			return consumeVarint(b, &secs), nil
		case fieldTSPicoseconds:
			return consumeVarint(b, &ps), nil
		}
		return 0, nil
	})
	if err != nil {
		return timestamp.Timestamp{}, err
	}
	t := timestamp.Timestamp{Seconds: int64(secs), Picoseconds: int64(ps)}
	if !t.Valid() {
		return timestamp.Timestamp{}, fmt.Errorf("%w: picoseconds %d out of range", ErrMalformed, t.Picoseconds)
	}
	return t, nil
}

func unmarshalPosition(b []byte, loc *model.Location) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.Fixed64Type {
			return 0, nil
		}
		switch num {
		case fieldPosLatitude:
			return consumeDouble(b, &loc.Latitude), nil
		case fieldPosLongitude:
			return consumeDouble(b, &loc.Longitude), nil
		case fieldPosElevation:
			return consumeDouble(b, &loc.Altitude), nil
		}
		return 0, nil
	})
}

func unmarshalLocation(b []byte) (model.Location, error) {
	var loc model.Location
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case fieldLocPosition:
			return n, unmarshalPosition(v, &loc)
		case fieldLocTimestamp:
			ts, err := unmarshalTimestamp(v)
			loc.Timestamp = ts
			return n, err
		}
		return 0, nil
	})
	return loc, err
}

func unmarshalFlow(b []byte) (model.FlowInfo, error) {
	var f model.FlowInfo
	var uid, src, dest uint64
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case typ == protowire.VarintType && num == fieldFlowUID:
			return consumeVarint(b, &uid), nil
		case typ == protowire.VarintType && num == fieldFlowSrc:
			return consumeVarint(b, &src), nil
		case typ == protowire.VarintType && num == fieldFlowDest:
			return consumeVarint(b, &dest), nil
		case typ == protowire.VarintType && num == fieldFlowBytes:
			return consumeVarint(b, &f.Bytes), nil
		case typ == protowire.Fixed64Type && num == fieldFlowWindow:
			return consumeDouble(b, &f.Window), nil
		case typ == protowire.Fixed64Type && num == fieldFlowLatency:
			return consumeDouble(b, &f.Latency), nil
		case typ == protowire.Fixed64Type && num == fieldFlowThroughput:
			return consumeDouble(b, &f.Throughput), nil
		}
		return 0, nil
	})
	f.Flow = model.FlowID(uid)
	f.Src = model.NodeID(src)
	f.Dest = model.NodeID(dest)
	return f, err
}

func unmarshalStatus(b []byte) (*Status, error) {
	s := &Status{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldStatusRadioID && typ == protowire.VarintType {
			var id uint64
			n := consumeVarint(b, &id)
			s.RadioID = model.NodeID(id)
			return n, nil
		}
		if typ != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case fieldStatusTimestamp:
			ts, err := unmarshalTimestamp(v)
			s.Timestamp = ts
			return n, err
		case fieldStatusLocation:
			loc, err := unmarshalLocation(v)
			s.Location = loc
			return n, err
		case fieldStatusSourceFlows:
			f, err := unmarshalFlow(v)
			s.SourceFlows = append(s.SourceFlows, f)
			return n, err
		case fieldStatusSinkFlows:
			f, err := unmarshalFlow(v)
			s.SinkFlows = append(s.SinkFlows, f)
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func unmarshalSchedule(b []byte) (*Schedule, error) {
	s := &Schedule{}
	var seq, nchannels, nslots uint64
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldSchedNodes:
			return consumeNodes(typ, b, &s.Nodes), nil
		case num == fieldSchedSlots:
			return consumeNodes(typ, b, &s.Slots), nil
		case typ == protowire.VarintType && num == fieldSchedSeq:
			return consumeVarint(b, &seq), nil
		case typ == protowire.VarintType && num == fieldSchedNChannels:
			return consumeVarint(b, &nchannels), nil
		case typ == protowire.VarintType && num == fieldSchedNSlots:
			return consumeVarint(b, &nslots), nil
		case typ == protowire.Fixed64Type && num == fieldSchedFrequency:
			return consumeDouble(b, &s.Frequency), nil
		case typ == protowire.Fixed64Type && num == fieldSchedBandwidth:
			return consumeDouble(b, &s.Bandwidth), nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if nchannels > math.MaxUint32 || nslots > math.MaxUint32 {
		return nil, fmt.Errorf("%w: schedule shape %dx%d out of range", ErrMalformed, nchannels, nslots)
	}
	s.Seq = uint32(seq)
	s.NChannels = uint32(nchannels)
	s.NSlots = uint32(nslots)
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}
