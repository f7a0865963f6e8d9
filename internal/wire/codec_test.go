package wire

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"meshctl/internal/model"
	"meshctl/internal/timestamp"
)

func sampleStatus() *Status {
	return &Status{
		RadioID:   7,
		Timestamp: timestamp.Timestamp{Seconds: 1700000000, Picoseconds: 250_000_000_000},
		Location: model.Location{
			Latitude:  39.9566,
			Longitude: -75.1899,
			Altitude:  12.5,
			Timestamp: timestamp.Timestamp{Seconds: 1699999999, Picoseconds: 1000},
		},
		SourceFlows: []model.FlowInfo{
			{Flow: 5001, Src: 7, Dest: 20, Window: 1, Latency: 0.012, Throughput: 128000, Bytes: 4096},
		},
		SinkFlows: []model.FlowInfo{
			{Flow: 5002, Src: 3, Dest: 7, Window: 1, Latency: 0.2, Throughput: 64000, Bytes: 1 << 40},
		},
	}
}

func TestStatus_EncodeDecode(t *testing.T) {
	t.Parallel()

	in := Message{Status: sampleStatus()}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Kind() != KindStatus {
		t.Fatalf("kind=%s", out.Kind())
	}
	if !reflect.DeepEqual(out.Status, in.Status) {
		t.Fatalf("status mismatch:\n got %+v\nwant %+v", out.Status, in.Status)
	}
}

func TestSchedule_EncodeDecode(t *testing.T) {
	t.Parallel()

	in := Message{Schedule: &Schedule{
		Seq:       3,
		Frequency: 1e9,
		Bandwidth: 20e6,
		NChannels: 2,
		NSlots:    2,
		Nodes:     []model.NodeID{1, 2},
		Slots:     []model.NodeID{1, 1, 0, 2},
	}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(out.Schedule, in.Schedule) {
		t.Fatalf("schedule mismatch: got %+v", out.Schedule)
	}
}

func TestMarshal_EmptyMessage(t *testing.T) {
	t.Parallel()

	if _, err := Marshal(Message{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err=%v", err)
	}
}

func TestMarshal_ScheduleShapeMismatch(t *testing.T) {
	t.Parallel()

	_, err := Marshal(Message{Schedule: &Schedule{NChannels: 2, NSlots: 2, Slots: []model.NodeID{1}}})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err=%v", err)
	}
}

func TestMarshal_ScheduleEmptyShape(t *testing.T) {
	t.Parallel()

	for _, sc := range []*Schedule{
		{NChannels: 3, NSlots: 0},
		{NChannels: 0, NSlots: 4},
		{},
	} {
		if _, err := Marshal(Message{Schedule: sc}); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%dx%d: err=%v", sc.NChannels, sc.NSlots, err)
		}
	}
}

// scheduleShape hand-encodes a schedule header with the given shape and
// no slots, the way a hostile sender could.
func scheduleShape(nchannels, nslots uint64) []byte {
	var body []byte
	body = appendVarint(body, fieldSchedSeq, 7)
	body = appendVarint(body, fieldSchedNChannels, nchannels)
	body = appendVarint(body, fieldSchedNSlots, nslots)
	return appendMessage(nil, fieldMessageSchedule, body)
}

func TestUnmarshal_ScheduleEmptyShape(t *testing.T) {
	t.Parallel()

	inputs := map[string][]byte{
		"no-slots":      scheduleShape(50_000_000, 0),
		"no-channels":   scheduleShape(0, 4),
		"empty":         scheduleShape(0, 0),
		"wraps-to-zero": scheduleShape(1<<32, 1),
	}
	for name, in := range inputs {
		if _, err := Unmarshal(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: err=%v", name, err)
		}
	}
}

func TestUnmarshal_UnknownVariantIsIgnorable(t *testing.T) {
	t.Parallel()

	// A newer peer sends payload variant 9 which this reader does not know.
	var data []byte
	data = protowire.AppendTag(data, 9, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte{0x08, 0x01})

	msg, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msg.Kind() != KindUnknown {
		t.Fatalf("kind=%s", msg.Kind())
	}
}

func TestUnmarshal_SkipsUnknownStatusFields(t *testing.T) {
	t.Parallel()

	body := appendStatus(nil, &Status{RadioID: 4})
	body = protowire.AppendTag(body, 15, protowire.Fixed32Type)
	body = protowire.AppendFixed32(body, 0xdeadbeef)
	data := appendMessage(nil, fieldMessageStatus, body)

	msg, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msg.Status == nil || msg.Status.RadioID != 4 {
		t.Fatalf("status=%+v", msg.Status)
	}
}

func TestUnmarshal_Malformed(t *testing.T) {
	t.Parallel()

	data, err := Marshal(Message{Status: sampleStatus()})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	inputs := map[string][]byte{
		"truncated": data[:len(data)-3],
		"garbage":   {0xff, 0xff, 0xff},
		"bad-ps":    appendMessage(nil, fieldMessageStatus, appendMessage(nil, fieldStatusTimestamp, appendVarint(nil, fieldTSPicoseconds, timestamp.PicosPerSecond))),
	}
	for name, in := range inputs {
		if _, err := Unmarshal(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: err=%v", name, err)
		}
	}
}
