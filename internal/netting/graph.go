package netting

import (
	"sort"

	"github.com/google/uuid"
)

// Graph is the channel compatibility graph for one run: participants are
// nodes, and an edge exists between two participants when their channel sets
// intersect. It is built once per run and never mutated afterwards.
//
// All iteration orders are fixed: nodes ascend by participant id and channel
// intersections resolve to the lexicographically smallest shared name, so
// identical snapshots always produce identical routes.
type Graph struct {
	nodes    []uuid.UUID
	channels map[uuid.UUID][]string
}

// NewGraph builds the compatibility graph over the given participants.
// Clearing participants are excluded; they only serve the fallback in the
// netting loop. Channel slices are copied and sorted.
func NewGraph(participants []Participant) *Graph {
	g := &Graph{
		channels: make(map[uuid.UUID][]string, len(participants)),
	}

	for _, p := range participants {
		if p.Clearing {
			continue
		}
		chans := make([]string, len(p.Channels))
		copy(chans, p.Channels)
		sort.Strings(chans)
		g.channels[p.ID] = chans
		g.nodes = append(g.nodes, p.ID)
	}

	sort.Slice(g.nodes, func(i, j int) bool {
		return g.nodes[i].String() < g.nodes[j].String()
	})

	return g
}

// Nodes returns the graph's participant ids in ascending order.
func (g *Graph) Nodes() []uuid.UUID {
	return g.nodes
}

// Contains reports whether the participant is a node of the graph.
func (g *Graph) Contains(id uuid.UUID) bool {
	_, ok := g.channels[id]
	return ok
}

// SharedChannel returns the lexicographically smallest channel shared by two
// distinct participants, or false when they are incompatible. A participant
// never shares a channel with itself.
func (g *Graph) SharedChannel(a, b uuid.UUID) (string, bool) {
	if a == b {
		return "", false
	}
	return firstCommon(g.channels[a], g.channels[b])
}

// firstCommon walks two sorted slices and returns their smallest common
// element.
func firstCommon(a, b []string) (string, bool) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return a[i], true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return "", false
}
