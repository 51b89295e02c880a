// Package graphview builds the serializable node/edge model the force
// graph renders. Layout itself belongs to the visualization collaborator;
// this package only assembles current database state into one payload.
package graphview

import "sort"

// Contact is the view builder's input for one graph node.
type Contact struct {
	ID       string
	Name     string
	ImageURL string
}

// Link is one undirected relationship between two contacts.
type Link struct {
	A     string
	B     string
	Label string
}

// Position is a saved layout coordinate for a contact.
type Position struct {
	ContactID string
	X, Y      float64
	Fixed     bool
}

// Node is a renderable graph node. HasPosition tells the renderer whether
// X/Y are a saved layout or should be seeded by the simulation.
type Node struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	HasPosition bool    `json:"hasPosition"`
	Fixed       bool    `json:"fixed"`
}

// Edge is a renderable undirected edge.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Graph is the full render model.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Build assembles the render model. Links whose endpoints are not in
// contacts are dropped; positions for unknown contacts are ignored.
// Output order is deterministic: nodes by label, edges by endpoints.
func Build(contacts []Contact, links []Link, positions []Position) *Graph {
	byID := make(map[string]*Node, len(contacts))

	nodes := make([]Node, 0, len(contacts))
	for _, c := range contacts {
		nodes = append(nodes, Node{ID: c.ID, Label: c.Name, ImageURL: c.ImageURL})
	}
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	for _, p := range positions {
		n, ok := byID[p.ContactID]
		if !ok {
			continue
		}
		n.X = p.X
		n.Y = p.Y
		n.HasPosition = true
		n.Fixed = p.Fixed
	}

	edges := make([]Edge, 0, len(links))
	for _, l := range links {
		if byID[l.A] == nil || byID[l.B] == nil {
			continue
		}
		edges = append(edges, Edge{Source: l.A, Target: l.B, Label: l.Label})
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Label != nodes[j].Label {
			return nodes[i].Label < nodes[j].Label
		}
		return nodes[i].ID < nodes[j].ID
	})
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	return &Graph{Nodes: nodes, Edges: edges}
}
