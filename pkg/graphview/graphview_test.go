package graphview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEmpty(t *testing.T) {
	g := Build(nil, nil, nil)
	require.NotNil(t, g)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}

func TestBuildNodesSortedByLabel(t *testing.T) {
	contacts := []Contact{
		{ID: "3", Name: "Carol"},
		{ID: "1", Name: "Alice"},
		{ID: "2", Name: "Bob"},
	}

	g := Build(contacts, nil, nil)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "Alice", g.Nodes[0].Label)
	assert.Equal(t, "Bob", g.Nodes[1].Label)
	assert.Equal(t, "Carol", g.Nodes[2].Label)
}

func TestBuildAttachesPositions(t *testing.T) {
	contacts := []Contact{
		{ID: "1", Name: "Alice", ImageURL: "https://example.com/a.png"},
		{ID: "2", Name: "Bob"},
	}
	positions := []Position{
		{ContactID: "1", X: 12.5, Y: -3, Fixed: true},
	}

	g := Build(contacts, nil, positions)
	require.Len(t, g.Nodes, 2)

	alice := g.Nodes[0]
	assert.Equal(t, 12.5, alice.X)
	assert.Equal(t, -3.0, alice.Y)
	assert.True(t, alice.HasPosition)
	assert.True(t, alice.Fixed)
	assert.Equal(t, "https://example.com/a.png", alice.ImageURL)

	bob := g.Nodes[1]
	assert.False(t, bob.HasPosition, "nodes without a saved position are seeded by the simulation")
	assert.False(t, bob.Fixed)
}

func TestBuildIgnoresUnknownPositions(t *testing.T) {
	contacts := []Contact{{ID: "1", Name: "Alice"}}
	positions := []Position{{ContactID: "ghost", X: 1, Y: 2}}

	g := Build(contacts, nil, positions)
	require.Len(t, g.Nodes, 1)
	assert.False(t, g.Nodes[0].HasPosition)
}

func TestBuildEdges(t *testing.T) {
	contacts := []Contact{
		{ID: "1", Name: "Alice"},
		{ID: "2", Name: "Bob"},
		{ID: "3", Name: "Carol"},
	}
	links := []Link{
		{A: "2", B: "3", Label: "neighbor"},
		{A: "1", B: "2", Label: "friend"},
	}

	g := Build(contacts, links, nil)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, Edge{Source: "1", Target: "2", Label: "friend"}, g.Edges[0])
	assert.Equal(t, Edge{Source: "2", Target: "3", Label: "neighbor"}, g.Edges[1])
}

func TestBuildDropsDanglingLinks(t *testing.T) {
	contacts := []Contact{{ID: "1", Name: "Alice"}}
	links := []Link{
		{A: "1", B: "ghost", Label: "friend"},
		{A: "ghost", B: "1", Label: "friend"},
	}

	g := Build(contacts, links, nil)
	assert.Empty(t, g.Edges, "links to missing contacts should not render")
}
