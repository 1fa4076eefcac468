package netting

import (
	"github.com/google/uuid"
)

// Route is a shortest path from a debtor to a creditor through the
// compatibility graph. Channels[i] is the channel used for the hop from
// Hops[i] to Hops[i+1].
type Route struct {
	Hops     []uuid.UUID
	Channels []string
}

// FindRoute runs a breadth-first search from debtor to creditor and returns
// the route with the fewest hops, or false when the creditor is unreachable.
// Neighbors are visited in ascending id order, so ties between equally short
// routes break deterministically. The search keeps all bookkeeping local and
// never touches the graph structure.
func (g *Graph) FindRoute(debtor, creditor uuid.UUID) (*Route, bool) {
	if debtor == creditor {
		return nil, false
	}
	if !g.Contains(debtor) || !g.Contains(creditor) {
		return nil, false
	}

	visited := map[uuid.UUID]bool{debtor: true}
	parent := make(map[uuid.UUID]uuid.UUID)
	channelUsed := make(map[uuid.UUID]string)

	queue := []uuid.UUID{debtor}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == creditor {
			return reconstruct(debtor, creditor, parent, channelUsed), true
		}

		for _, next := range g.nodes {
			if visited[next] {
				continue
			}
			channel, ok := g.SharedChannel(current, next)
			if !ok {
				continue
			}
			visited[next] = true
			parent[next] = current
			channelUsed[next] = channel
			queue = append(queue, next)
		}
	}

	return nil, false
}

// reconstruct walks parent pointers from the creditor back to the debtor and
// reverses the result into hop order.
func reconstruct(debtor, creditor uuid.UUID, parent map[uuid.UUID]uuid.UUID, channelUsed map[uuid.UUID]string) *Route {
	var hops []uuid.UUID
	var channels []string

	for node := creditor; node != debtor; node = parent[node] {
		hops = append(hops, node)
		channels = append(channels, channelUsed[node])
	}
	hops = append(hops, debtor)

	for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
		hops[i], hops[j] = hops[j], hops[i]
	}
	for i, j := 0, len(channels)-1; i < j; i, j = i+1, j-1 {
		channels[i], channels[j] = channels[j], channels[i]
	}

	return &Route{Hops: hops, Channels: channels}
}
