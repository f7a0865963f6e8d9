package schedule

import (
	"errors"
	"reflect"
	"testing"

	"meshctl/internal/model"
)

func TestSingleChannel_RosterOrder(t *testing.T) {
	t.Parallel()

	got, err := SingleChannel([]model.NodeID{9, 3, 5})
	if err != nil {
		t.Fatalf("SingleChannel: %v", err)
	}
	want := Schedule{9, 3, 5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestSpaced_Examples(t *testing.T) {
	t.Parallel()

	cases := []struct {
		n, k   int
		roster []model.NodeID
		want   Schedule
	}{
		{n: 4, k: 2, roster: []model.NodeID{1, 2}, want: Schedule{1, Unassigned, 2, Unassigned}},
		{n: 3, k: 1, roster: []model.NodeID{5, 6, 7}, want: Schedule{5, 6, 7}},
		// k=2 collides at slot 0 after wrapping, falls back to 1.
		{n: 4, k: 2, roster: []model.NodeID{1, 2, 3, 4}, want: Schedule{1, 3, 2, 4}},
		// wrap resets to 0 rather than taking i-n.
		{n: 5, k: 3, roster: []model.NodeID{1, 2, 3}, want: Schedule{1, 3, Unassigned, 2, Unassigned}},
		// roster longer than n is truncated.
		{n: 2, k: 1, roster: []model.NodeID{4, 5, 6}, want: Schedule{4, 5}},
	}
	for _, tc := range cases {
		got, err := Spaced(tc.n, tc.k, tc.roster)
		if err != nil {
			t.Fatalf("Spaced(%d,%d,%v): %v", tc.n, tc.k, tc.roster, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Spaced(%d,%d,%v)=%v want %v", tc.n, tc.k, tc.roster, got, tc.want)
		}
	}
}

func TestSpaced_Coverage(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 8; n++ {
		for k := 1; k <= 9; k++ {
			for m := 0; m <= n; m++ {
				roster := make([]model.NodeID, m)
				for i := range roster {
					roster[i] = model.NodeID(100 + i)
				}
				got, err := Spaced(n, k, roster)
				if err != nil {
					t.Fatalf("n=%d k=%d m=%d: %v", n, k, m, err)
				}
				if len(got) != n {
					t.Fatalf("n=%d k=%d m=%d: len=%d", n, k, m, len(got))
				}
				if got.Assigned() != m {
					t.Fatalf("n=%d k=%d m=%d: assigned=%d %v", n, k, m, got.Assigned(), got)
				}
				for _, id := range roster {
					if got.Index(id) < 0 {
						t.Fatalf("n=%d k=%d m=%d: node %d missing from %v", n, k, m, id, got)
					}
				}
				again, _ := Spaced(n, k, roster)
				if !reflect.DeepEqual(got, again) {
					t.Fatalf("n=%d k=%d m=%d: not deterministic", n, k, m)
				}
			}
		}
	}
}

func TestSpaced_InvalidInput(t *testing.T) {
	t.Parallel()

	inputs := []struct {
		n, k   int
		roster []model.NodeID
	}{
		{n: 0, k: 1, roster: nil},
		{n: 2, k: 0, roster: []model.NodeID{1}},
		{n: 2, k: 1, roster: []model.NodeID{1, 1}},
		{n: 2, k: 1, roster: []model.NodeID{Unassigned}},
	}
	for _, in := range inputs {
		if _, err := Spaced(in.n, in.k, in.roster); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Spaced(%d,%d,%v) err=%v", in.n, in.k, in.roster, err)
		}
	}
}

func TestSchedule_Grid(t *testing.T) {
	t.Parallel()

	g := Schedule{1, Unassigned, 2}.Grid(2)
	want := Grid{{1, 1}, {0, 0}, {2, 2}}
	if !g.Equal(want) {
		t.Fatalf("grid=%v", g)
	}
	back, err := GridFromRows(3, 2, g.Rows())
	if err != nil {
		t.Fatalf("GridFromRows: %v", err)
	}
	if !back.Equal(g) {
		t.Fatalf("rows round trip=%v", back)
	}
	if _, err := GridFromRows(2, 2, []model.NodeID{1}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err=%v", err)
	}
	for _, shape := range [][2]int{{0, 4}, {50_000_000, 0}, {0, 0}} {
		if _, err := GridFromRows(shape[0], shape[1], nil); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%dx%d: err=%v", shape[0], shape[1], err)
		}
	}
}

func TestFair_AlternatesSharedChannels(t *testing.T) {
	t.Parallel()

	g, assign, err := Fair(2, 4, 1, []model.NodeID{1, 2, 3, 4}, nil)
	if err != nil {
		t.Fatalf("Fair: %v", err)
	}
	want := Grid{{1, 3, 1, 3}, {2, 4, 2, 4}}
	if !g.Equal(want) {
		t.Fatalf("grid=%v want=%v", g, want)
	}
	if assign[3] != 0 || assign[4] != 1 {
		t.Fatalf("assignments=%v", assign)
	}
}

func TestFair_SeparationAndPrior(t *testing.T) {
	t.Parallel()

	g, assign, err := Fair(4, 2, 3, []model.NodeID{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("Fair: %v", err)
	}
	wantAssign := map[model.NodeID]int{1: 0, 2: 3, 3: 2}
	if !reflect.DeepEqual(assign, wantAssign) {
		t.Fatalf("assignments=%v", assign)
	}
	if g[1][0] != Unassigned || g[3][1] != 2 {
		t.Fatalf("grid=%v", g)
	}

	// Re-running with the previous assignments keeps every node in place.
	g2, assign2, err := Fair(4, 2, 3, []model.NodeID{1, 2, 3}, assign)
	if err != nil {
		t.Fatalf("Fair prior: %v", err)
	}
	if !reflect.DeepEqual(assign2, wantAssign) || !g2.Equal(g) {
		t.Fatalf("prior not honoured: %v %v", assign2, g2)
	}
}

func TestBestChannel(t *testing.T) {
	t.Parallel()

	g := Grid{{1, 2, 1}, {2, 2, 3}}
	ch, err := BestChannel(g, 2)
	if err != nil || ch != 1 {
		t.Fatalf("ch=%d err=%v", ch, err)
	}
	ch, err = BestChannel(g, 1)
	if err != nil || ch != 0 {
		t.Fatalf("ch=%d err=%v", ch, err)
	}
	if _, err := BestChannel(g, 9); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err=%v", err)
	}
}
