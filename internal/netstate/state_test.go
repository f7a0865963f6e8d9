package netstate

import (
	"reflect"
	"testing"

	"meshctl/internal/model"
	"meshctl/internal/schedule"
	"meshctl/internal/timestamp"
)

func TestUpdateLocation_UnknownNodeIgnored(t *testing.T) {
	t.Parallel()

	s := New(1, 2)
	loc := model.Location{Latitude: 1, Longitude: 2, Altitude: 3, Timestamp: timestamp.Encode(10.5)}
	s.UpdateLocation(nil, 2, loc)
	s.UpdateLocation(nil, 99, loc)

	n, ok := s.Node(2)
	if !ok || n.Location == nil || *n.Location != loc {
		t.Fatalf("node=%+v ok=%v", n, ok)
	}
	if _, ok := s.Node(99); ok {
		t.Fatalf("unknown node was created")
	}
	if got := len(s.Nodes()); got != 2 {
		t.Fatalf("nodes=%d", got)
	}
}

func TestAddLink_Idempotent(t *testing.T) {
	t.Parallel()

	s := New()
	link := model.FlowLink{Src: 1, Dest: 2, Flow: 7}
	s.AddLink(nil, link)
	s.AddLink(nil, link)
	s.AddLink(nil, model.FlowLink{Src: 2, Dest: 1, Flow: 7})

	links := s.Links()
	want := []model.FlowLink{{Src: 1, Dest: 2, Flow: 7}, {Src: 2, Dest: 1, Flow: 7}}
	if !reflect.DeepEqual(links, want) {
		t.Fatalf("links=%v", links)
	}
}

func TestUpdateFlowStats_LastWins(t *testing.T) {
	t.Parallel()

	s := New()
	s.UpdateFlowStats(nil, model.FlowStats{Flow: 4, Latency: 1, Throughput: 2, Bytes: 3})
	s.UpdateFlowStats(nil, model.FlowStats{Flow: 4, Latency: 0.5, Throughput: 9, Bytes: 1})

	st, ok := s.FlowStats(4)
	if !ok {
		t.Fatalf("stats missing")
	}
	if st.Latency != 0.5 || st.Throughput != 9 || st.Bytes != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestInstallSchedule_RequiresNewerSeq(t *testing.T) {
	t.Parallel()

	s := New()
	g1 := schedule.Grid{{1, 2}}
	g2 := schedule.Grid{{2, 1}}
	if !s.InstallSchedule(5, g1) {
		t.Fatalf("first install rejected")
	}
	if s.InstallSchedule(5, g2) {
		t.Fatalf("same seq accepted")
	}
	if s.InstallSchedule(4, g2) {
		t.Fatalf("older seq accepted")
	}
	if !s.InstallSchedule(6, g2) {
		t.Fatalf("newer seq rejected")
	}
	g, seq, ok := s.Schedule()
	if !ok || seq != 6 || !g.Equal(g2) {
		t.Fatalf("schedule=%v seq=%d ok=%v", g, seq, ok)
	}

	// The returned grid is a copy.
	g[0][0] = 9
	again, _, _ := s.Schedule()
	if again[0][0] != 2 {
		t.Fatalf("schedule aliased: %v", again)
	}
}

func TestRoster_SelfFirst(t *testing.T) {
	t.Parallel()

	s := New(5, 3, 9, 1)
	got := s.Roster(5)
	want := []model.NodeID{5, 1, 3, 9}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roster=%v", got)
	}
}

func TestApply_BatchIsAtomic(t *testing.T) {
	t.Parallel()

	s := New(1)
	s.Apply(nil, func(tx Txn) {
		if !tx.Known(1) || tx.Known(2) {
			t.Errorf("known mismatch")
		}
		tx.AddLink(model.FlowLink{Src: 1, Dest: 2, Flow: 3})
		tx.UpdateFlowStats(model.FlowStats{Flow: 3, Bytes: 10})
	})
	snap := s.Snapshot()
	if len(snap.Links) != 1 || len(snap.Stats) != 1 || snap.Stats[0].Bytes != 10 {
		t.Fatalf("snapshot=%+v", snap)
	}
}
