// Package graph turns decoded result rows into property graphs.
//
// Materialize builds the generic entity/value graph of any result set.
// Network builds the factor network of analysis rows: factors linked to
// the behaviours they were studied against, optionally through a mediator
// or moderator.
package graph

import (
	"strconv"

	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/results"
)

// NodeKind distinguishes row nodes from attribute value nodes.
type NodeKind string

const (
	KindEntity NodeKind = "entity"
	KindValue  NodeKind = "value"
)

// Node is a vertex of a materialized graph. Property is set on value
// nodes only.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Kind     NodeKind `json:"kind"`
	Property string   `json:"property,omitempty"`
}

// Edge links an entity node to one of its value nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Graph is the materialized form of a result set. Nodes keep first-seen
// order; edges keep row then variable order.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeKey identifies a value node. Two cells share a node exactly when
// they are bound to the same variable and display the same string, so
// the number 1 and the string "1" of one variable are one node.
type NodeKey struct {
	Property string
	Display  string
}

// KeyOf returns the node key of value bound to property.
func KeyOf(property string, value ir.Value) NodeKey {
	return NodeKey{Property: property, Display: ir.Display(value)}
}

// ID returns the node id of the key: "value_" followed by the first 16 hex
// characters of its content hash. It is stable across result sets.
func (k NodeKey) ID() string {
	return "value_" + ir.NodeHash(k.Property, k.Display)[:16]
}

// EntityID returns the node id of the row at index i.
func EntityID(i int) string {
	return "entity_" + strconv.Itoa(i)
}

// Materialize builds the entity/value graph of rows. Every row gets an
// entity node; every non-nil cell is linked to the value node of its
// key. Edges are never deduplicated.
func Materialize(rows []results.Row, variables []string) Graph {
	g := Graph{Nodes: []Node{}, Edges: []Edge{}}
	index := make(map[NodeKey]int)

	for i, row := range rows {
		entity := EntityID(i)
		g.Nodes = append(g.Nodes, Node{ID: entity, Label: entity, Kind: KindEntity})

		for _, v := range variables {
			value := row[v]
			if value == nil {
				continue
			}
			key := KeyOf(v, value)
			pos, ok := index[key]
			if !ok {
				pos = len(g.Nodes)
				index[key] = pos
				g.Nodes = append(g.Nodes, Node{
					ID:       key.ID(),
					Label:    key.Display,
					Kind:     KindValue,
					Property: v,
				})
			}
			g.Edges = append(g.Edges, Edge{Source: entity, Target: g.Nodes[pos].ID, Label: v})
		}
	}
	return g
}

// ValueNodes returns the value nodes of g.
func (g Graph) ValueNodes() []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Kind == KindValue {
			out = append(out, n)
		}
	}
	return out
}
