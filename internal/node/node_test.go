package node

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meshctl/internal/config"
	"meshctl/internal/model"
	"meshctl/internal/schedule"
	"meshctl/internal/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_RequiresValidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(config.Config{Node: &config.NodeConfig{}}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestNodes_ExchangeStatusAndSchedule(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "roster.yaml")
	if err := store.SaveRoster(rosterPath, &store.Roster{Nodes: []store.NodeInfo{{ID: 1}, {ID: 2}}}); err != nil {
		t.Fatalf("SaveRoster: %v", err)
	}

	gwCfg := config.Config{
		Node: &config.NodeConfig{
			ID:                    1,
			Listen:                "127.0.0.1:0",
			Gateway:               true,
			RosterPath:            rosterPath,
			StatusUpdatePeriodSec: 0.01,
			Frequency:             1e9,
			Bandwidth:             5e6,
			MetricsPath:           filepath.Join(dir, "flows.csv"),
		},
		Schedule: &config.ScheduleConfig{Policy: "single", Channels: 1, Slots: 1, Separation: 1, PeriodSec: 0.01},
	}
	edgeCfg := config.Config{
		Node: &config.NodeConfig{
			ID:                    2,
			Listen:                "127.0.0.1:0",
			RosterPath:            rosterPath,
			StatusUpdatePeriodSec: 0.01,
			Frequency:             1e9,
			Bandwidth:             5e6,
			Location:              config.Location{Latitude: 40, Longitude: -75},
		},
	}

	gw, err := New(gwCfg)
	if err != nil {
		t.Fatalf("New gateway: %v", err)
	}
	defer gw.Close()
	edge, err := New(edgeCfg)
	if err != nil {
		t.Fatalf("New edge: %v", err)
	}
	defer edge.Close()

	if err := gw.Channel.SetRemote(edge.Channel.LocalAddr().String()); err != nil {
		t.Fatalf("SetRemote: %v", err)
	}
	if err := edge.Channel.SetRemote(gw.Channel.LocalAddr().String()); err != nil {
		t.Fatalf("SetRemote: %v", err)
	}
	edge.Engine.SetFlows(
		[]model.FlowInfo{{Flow: 5, Src: 2, Dest: 1}},
		[]model.FlowInfo{{Flow: 6, Src: 1, Dest: 2, Latency: 0.5, Throughput: 100, Bytes: 10}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 2)
	go func() { done <- gw.Run(ctx) }()
	go func() { done <- edge.Run(ctx) }()

	waitFor(t, "gateway to learn edge flows", func() bool {
		_, ok := gw.State.FlowStats(6)
		return ok && len(gw.State.Links()) == 2
	})
	n, _ := gw.State.Node(2)
	if n.Location == nil || n.Location.Latitude != 40 {
		t.Fatalf("edge node=%+v", n)
	}

	waitFor(t, "edge to install schedule", func() bool {
		_, _, ok := edge.State.Schedule()
		return ok
	})
	g, seq, _ := edge.State.Schedule()
	if seq != 1 || !g.Equal(schedule.Grid{{1, 2}}) {
		t.Fatalf("edge schedule=%v seq=%d", g, seq)
	}
	if _, _, ch := edge.Engine.Schedule(); ch != 0 {
		t.Fatalf("edge channel=%d", ch)
	}

	cancel()
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("Run did not return")
		}
	}
}
