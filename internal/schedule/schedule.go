// Package schedule computes deterministic channel and slot assignments
// from an ordered node roster.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"meshctl/internal/model"
)

// Unassigned marks a slot nobody owns.
const Unassigned model.NodeID = 0

// ErrInvalid is returned for bad policy parameters or rosters.
var ErrInvalid = errors.New("schedule: invalid input")

// Schedule is a fixed-length sequence of channel/slot owners.
type Schedule []model.NodeID

// Assigned returns the number of owned entries.
func (s Schedule) Assigned() int {
	count := 0
	for _, id := range s {
		if id != Unassigned {
			count++
		}
	}
	return count
}

// Index returns the position of id in s, or -1.
func (s Schedule) Index(id model.NodeID) int {
	for i, owner := range s {
		if owner == id {
			return i
		}
	}
	return -1
}

func (s Schedule) String() string {
	parts := make([]string, len(s))
	for i, id := range s {
		if id == Unassigned {
			parts[i] = "-"
			continue
		}
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// SingleChannel gives each roster node one slot on a single shared channel,
// in roster order.
func SingleChannel(roster []model.NodeID) (Schedule, error) {
	if err := checkRoster(roster); err != nil {
		return nil, err
	}
	sched := make(Schedule, len(roster))
	copy(sched, roster)
	return sched, nil
}

// Spaced places the first n roster nodes on n channels. The cursor advances
// by k after each placement and by 1 on collision, wrapping to 0 when it
// reaches n, so the result depends only on (n, k, roster order).
func Spaced(n, k int, roster []model.NodeID) (Schedule, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalid, n)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: separation %d", ErrInvalid, k)
	}
	if err := checkRoster(roster); err != nil {
		return nil, err
	}

	pending := roster
	if len(pending) > n {
		pending = pending[:n]
	}

	sched := make(Schedule, n)
	i := 0
	for len(pending) > 0 {
		if sched[i] == Unassigned {
			sched[i] = pending[0]
			pending = pending[1:]
			i += k
		} else {
			i++
		}
		if i >= n {
			i = 0
		}
	}
	return sched, nil
}

// Grid expands s to one row per entry, the owner holding every slot of its
// row. An empty entry yields an empty row.
func (s Schedule) Grid(nslots int) Grid {
	g := NewGrid(len(s), nslots)
	for ch, id := range s {
		for slot := range g[ch] {
			g[ch][slot] = id
		}
	}
	return g
}

func checkRoster(roster []model.NodeID) error {
	seen := make(map[model.NodeID]bool, len(roster))
	for _, id := range roster {
		if id == Unassigned {
			return fmt.Errorf("%w: node id %d is reserved", ErrInvalid, Unassigned)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate node %d in roster", ErrInvalid, id)
		}
		seen[id] = true
	}
	return nil
}
