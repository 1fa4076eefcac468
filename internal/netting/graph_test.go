package netting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharedChannelPicksLexicographicallySmallest(t *testing.T) {
	a, b := pid(1), pid(2)

	g := NewGraph([]Participant{
		{ID: a, Channels: []string{"venmo", "bank", "cash"}},
		{ID: b, Channels: []string{"cash", "bank"}},
	})

	channel, ok := g.SharedChannel(a, b)
	assert.True(t, ok)
	assert.Equal(t, "bank", channel)
}

func TestSharedChannelDisjointSets(t *testing.T) {
	a, b := pid(1), pid(2)

	g := NewGraph([]Participant{
		{ID: a, Channels: []string{"bank"}},
		{ID: b, Channels: []string{"cash"}},
	})

	_, ok := g.SharedChannel(a, b)
	assert.False(t, ok)
}

func TestSharedChannelNoSelfEdge(t *testing.T) {
	a := pid(1)

	g := NewGraph([]Participant{
		{ID: a, Channels: []string{"bank"}},
	})

	_, ok := g.SharedChannel(a, a)
	assert.False(t, ok)
}

func TestNewGraphExcludesClearingParticipants(t *testing.T) {
	a, z := pid(1), pid(26)

	g := NewGraph([]Participant{
		{ID: a, Channels: []string{"bank"}},
		{ID: z, Channels: []string{"bank", "cash"}, Clearing: true},
	})

	assert.True(t, g.Contains(a))
	assert.False(t, g.Contains(z))
	assert.Equal(t, 1, len(g.Nodes()))
}

func TestNodesAscendByID(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)

	g := NewGraph([]Participant{
		{ID: c, Channels: []string{"bank"}},
		{ID: a, Channels: []string{"bank"}},
		{ID: b, Channels: []string{"bank"}},
	})

	nodes := g.Nodes()
	assert.Equal(t, []string{a.String(), b.String(), c.String()},
		[]string{nodes[0].String(), nodes[1].String(), nodes[2].String()})
}
