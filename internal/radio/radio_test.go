package radio

import (
	"testing"

	"meshctl/internal/model"
	"meshctl/internal/schedule"
)

func TestStatic_FlowsAreCopies(t *testing.T) {
	t.Parallel()

	e := NewStatic(1, model.Location{Latitude: 1})
	out := []model.FlowInfo{{Flow: 1, Src: 1, Dest: 2}}
	e.SetFlows(out, nil)
	out[0].Dest = 9

	got := e.OutboundFlows()
	if len(got) != 1 || got[0].Dest != 2 {
		t.Fatalf("outbound=%v", got)
	}
	got[0].Dest = 7
	if e.OutboundFlows()[0].Dest != 2 {
		t.Fatal("outbound aliased")
	}
	if len(e.InboundFlows()) != 0 {
		t.Fatalf("inbound=%v", e.InboundFlows())
	}
}

func TestStatic_InstallScheduleSelectsChannel(t *testing.T) {
	t.Parallel()

	e := NewStatic(2, model.Location{})
	if err := e.InstallSchedule(3, schedule.Grid{{1, 1}, {2, 2}}); err != nil {
		t.Fatalf("InstallSchedule: %v", err)
	}
	_, seq, ch := e.Schedule()
	if seq != 3 || ch != 1 {
		t.Fatalf("seq=%d ch=%d", seq, ch)
	}

	if err := e.InstallSchedule(4, schedule.Grid{{1, 1}}); err != nil {
		t.Fatalf("InstallSchedule: %v", err)
	}
	if _, _, ch := e.Schedule(); ch != -1 {
		t.Fatalf("ch=%d", ch)
	}
}
