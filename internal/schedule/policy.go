package schedule

import (
	"fmt"

	"meshctl/internal/model"
)

const (
	PolicySingle = "single"
	PolicySpaced = "spaced"
	PolicyFair   = "fair"
)

// Policy selects an assignment algorithm and its grid shape.
type Policy struct {
	Name       string
	Channels   int
	Slots      int
	Separation int
}

// Compute builds the grid for roster. The returned channel assignments can
// be passed back as prior on the next call; only the fair policy reads them.
func (p Policy) Compute(roster []model.NodeID, prior map[model.NodeID]int) (Grid, map[model.NodeID]int, error) {
	switch p.Name {
	case PolicySingle, "":
		s, err := SingleChannel(roster)
		if err != nil {
			return nil, nil, err
		}
		assign := make(map[model.NodeID]int, len(s))
		for _, id := range s {
			assign[id] = 0
		}
		return Grid{[]model.NodeID(s)}, assign, nil
	case PolicySpaced:
		if p.Slots < 1 {
			return nil, nil, fmt.Errorf("%w: slot count %d", ErrInvalid, p.Slots)
		}
		s, err := Spaced(p.Channels, p.Separation, roster)
		if err != nil {
			return nil, nil, err
		}
		assign := make(map[model.NodeID]int, len(s))
		for ch, id := range s {
			if id != Unassigned {
				assign[id] = ch
			}
		}
		return s.Grid(p.Slots), assign, nil
	case PolicyFair:
		return Fair(p.Channels, p.Slots, p.Separation, roster, prior)
	default:
		return nil, nil, fmt.Errorf("%w: unknown policy %q", ErrInvalid, p.Name)
	}
}
