package netting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRouteDirect(t *testing.T) {
	a, b := pid(1), pid(2)

	g := NewGraph([]Participant{
		{ID: a, Channels: []string{"bank"}},
		{ID: b, Channels: []string{"bank"}},
	})

	route, ok := g.FindRoute(a, b)
	require.True(t, ok)
	assert.Equal(t, []string{a.String(), b.String()}, hopStrings(route))
	assert.Equal(t, []string{"bank"}, route.Channels)
}

func TestFindRouteThroughIntermediate(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)

	// a and c share nothing; b bridges them on different channels.
	g := NewGraph([]Participant{
		{ID: a, Channels: []string{"bank"}},
		{ID: b, Channels: []string{"bank", "wallet"}},
		{ID: c, Channels: []string{"wallet"}},
	})

	route, ok := g.FindRoute(a, c)
	require.True(t, ok)
	assert.Equal(t, []string{a.String(), b.String(), c.String()}, hopStrings(route))
	assert.Equal(t, []string{"bank", "wallet"}, route.Channels)
}

func TestFindRoutePrefersFewestHops(t *testing.T) {
	a, b, c, d := pid(1), pid(2), pid(3), pid(4)

	// a reaches d directly via card and indirectly via b->c.
	g := NewGraph([]Participant{
		{ID: a, Channels: []string{"bank", "card"}},
		{ID: b, Channels: []string{"bank", "wallet"}},
		{ID: c, Channels: []string{"wallet", "cash"}},
		{ID: d, Channels: []string{"card", "cash"}},
	})

	route, ok := g.FindRoute(a, d)
	require.True(t, ok)
	assert.Equal(t, []string{a.String(), d.String()}, hopStrings(route))
	assert.Equal(t, []string{"card"}, route.Channels)
}

func TestFindRouteUnreachable(t *testing.T) {
	a, b := pid(1), pid(2)

	g := NewGraph([]Participant{
		{ID: a, Channels: []string{"bank"}},
		{ID: b, Channels: []string{"cash"}},
	})

	_, ok := g.FindRoute(a, b)
	assert.False(t, ok)
}

func TestFindRouteDeterministicTieBreak(t *testing.T) {
	a, b, c, d := pid(1), pid(2), pid(3), pid(4)

	// Two equally short routes a->b->d and a->c->d; the lower id bridge wins.
	participants := []Participant{
		{ID: a, Channels: []string{"bank"}},
		{ID: b, Channels: []string{"bank", "wallet"}},
		{ID: c, Channels: []string{"bank", "wallet"}},
		{ID: d, Channels: []string{"wallet"}},
	}

	for i := 0; i < 5; i++ {
		g := NewGraph(participants)
		route, ok := g.FindRoute(a, d)
		require.True(t, ok)
		assert.Equal(t, []string{a.String(), b.String(), d.String()}, hopStrings(route))
	}
}

func hopStrings(route *Route) []string {
	hops := make([]string, len(route.Hops))
	for i, h := range route.Hops {
		hops[i] = h.String()
	}
	return hops
}
