package schedule

import (
	"fmt"

	"meshctl/internal/model"
)

// Grid is a channel x slot ownership matrix.
type Grid [][]model.NodeID

// NewGrid returns an unassigned nchannels x nslots grid.
func NewGrid(nchannels, nslots int) Grid {
	g := make(Grid, nchannels)
	for ch := range g {
		g[ch] = make([]model.NodeID, nslots)
	}
	return g
}

// GridFromRows rebuilds a grid from its row-major form. Both dimensions
// must be at least 1.
func GridFromRows(nchannels, nslots int, flat []model.NodeID) (Grid, error) {
	if nchannels < 1 || nslots < 1 || len(flat)%nslots != 0 || len(flat)/nslots != nchannels {
		return nil, fmt.Errorf("%w: %d entries for %dx%d grid", ErrInvalid, len(flat), nchannels, nslots)
	}
	g := NewGrid(nchannels, nslots)
	for ch := range g {
		copy(g[ch], flat[ch*nslots:(ch+1)*nslots])
	}
	return g, nil
}

// Channels returns the number of rows.
func (g Grid) Channels() int { return len(g) }

// Slots returns the number of columns.
func (g Grid) Slots() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Rows flattens g in row-major order.
func (g Grid) Rows() []model.NodeID {
	flat := make([]model.NodeID, 0, g.Channels()*g.Slots())
	for _, row := range g {
		flat = append(flat, row...)
	}
	return flat
}

// Equal reports whether g and o have the same shape and owners.
func (g Grid) Equal(o Grid) bool {
	if len(g) != len(o) {
		return false
	}
	for ch := range g {
		if len(g[ch]) != len(o[ch]) {
			return false
		}
		for slot := range g[ch] {
			if g[ch][slot] != o[ch][slot] {
				return false
			}
		}
	}
	return true
}

// Owns reports whether id holds at least one slot.
func (g Grid) Owns(id model.NodeID) bool {
	for _, row := range g {
		for _, owner := range row {
			if owner == id {
				return true
			}
		}
	}
	return false
}

// BestChannel picks the channel on which id owns the most slots. Ties go to
// the lowest channel.
func BestChannel(g Grid, id model.NodeID) (int, error) {
	best, bestCount := -1, 0
	for ch, row := range g {
		count := 0
		for _, owner := range row {
			if owner == id {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = ch, count
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: no slot for node %d", ErrInvalid, id)
	}
	return best, nil
}

// Fair spreads nodes over nchannels with channel separation k, keeping any
// prior channel assignments, then lets the nodes sharing a channel take
// turns across its nslots slots. The returned map holds every node's
// channel and can be fed back in to keep assignments stable.
func Fair(nchannels, nslots, k int, roster []model.NodeID, prior map[model.NodeID]int) (Grid, map[model.NodeID]int, error) {
	if nchannels < 1 || nslots < 1 {
		return nil, nil, fmt.Errorf("%w: grid %dx%d", ErrInvalid, nchannels, nslots)
	}
	if k < 1 {
		return nil, nil, fmt.Errorf("%w: separation %d", ErrInvalid, k)
	}
	if err := checkRoster(roster); err != nil {
		return nil, nil, err
	}

	assignments := make(map[model.NodeID]int, len(roster))
	channels := make([][]model.NodeID, nchannels)
	// Prior assignments are applied in roster order so output is stable.
	for _, id := range roster {
		ch, ok := prior[id]
		if !ok {
			continue
		}
		if ch < 0 || ch >= nchannels {
			return nil, nil, fmt.Errorf("%w: node %d assigned to channel %d", ErrInvalid, id, ch)
		}
		channels[ch] = append(channels[ch], id)
		assignments[id] = ch
	}

	base := 0
	for idx, id := range roster {
		if _, ok := assignments[id]; ok {
			continue
		}
		for i := 0; i < nchannels; i++ {
			ch := (base + i) % nchannels
			if len(channels[ch]) <= idx/nchannels {
				channels[ch] = append(channels[ch], id)
				assignments[id] = ch
				base = ch + k
				break
			}
		}
	}

	g := NewGrid(nchannels, nslots)
	for ch, owners := range channels {
		if len(owners) == 0 {
			continue
		}
		for slot := 0; slot < nslots; slot++ {
			g[ch][slot] = owners[slot%len(owners)]
		}
	}
	return g, assignments, nil
}
