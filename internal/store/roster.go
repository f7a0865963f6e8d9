// Package store persists the node roster provisioned for a mesh.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"meshctl/internal/model"
	"meshctl/internal/timestamp"
)

// Roster lists the nodes a radio may expect to hear from.
type Roster struct {
	UpdatedAt time.Time  `yaml:"updated_at"`
	Nodes     []NodeInfo `yaml:"nodes"`
}

// NodeInfo is one provisioned node with an optional surveyed position.
type NodeInfo struct {
	ID       uint32        `yaml:"id"`
	Name     string        `yaml:"name,omitempty"`
	Location *LocationInfo `yaml:"location,omitempty"`
}

// LocationInfo is a surveyed position.
type LocationInfo struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

// LoadRoster loads the roster from disk. If the file is missing, returns an empty roster.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Roster{}, nil
		}
		return nil, err
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &r, nil
}

// SaveRoster writes the roster to disk.
func SaveRoster(path string, r *Roster) error {
	if r == nil {
		return nil
	}
	r.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate rejects the reserved id 0 and duplicates.
func (r *Roster) Validate() error {
	seen := make(map[uint32]bool, len(r.Nodes))
	for _, n := range r.Nodes {
		if n.ID == 0 {
			return fmt.Errorf("roster: node id 0 is reserved")
		}
		if seen[n.ID] {
			return fmt.Errorf("roster: duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}

// IDs returns the provisioned ids in ascending order.
func (r *Roster) IDs() []model.NodeID {
	ids := make([]model.NodeID, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		ids = append(ids, model.NodeID(n.ID))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Locations returns the surveyed positions keyed by node, stamped at.
func (r *Roster) Locations(at time.Time) map[model.NodeID]model.Location {
	out := make(map[model.NodeID]model.Location)
	for _, n := range r.Nodes {
		if n.Location == nil {
			continue
		}
		out[model.NodeID(n.ID)] = model.Location{
			Latitude:  n.Location.Latitude,
			Longitude: n.Location.Longitude,
			Altitude:  n.Location.Altitude,
			Timestamp: timestamp.FromTime(at),
		}
	}
	return out
}
