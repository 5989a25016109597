// Package graph holds the RDF statement set used by the SPARQL and Graph Store
// clients, and the parsers and serializers they negotiate between.
package graph

import (
	"github.com/cayleygraph/quad"
)

const xsdString = quad.IRI("http://www.w3.org/2001/XMLSchema#string")

// Graph is an insertion-ordered set of unique statements.
// Statements are stored as quads with no label; the graph identifier plays
// the role of the context they were loaded under.
type Graph struct {
	id      quad.Value
	triples []quad.Quad
	index   map[quad.Quad]int
}

// New returns an empty graph. id may be nil.
func New(id quad.Value) *Graph {
	return &Graph{
		id:    id,
		index: map[quad.Quad]int{},
	}
}

// ID returns the identifier (publicID) the graph was created with.
func (g *Graph) ID() quad.Value {
	return g.id
}

func (g *Graph) Add(s, p, o quad.Value) bool {
	return g.AddQuad(quad.Quad{Subject: s, Predicate: p, Object: o})
}

// AddQuad adds the statement part of q, ignoring its label. It reports
// whether the statement was new.
func (g *Graph) AddQuad(q quad.Quad) bool {
	t := statement(q)
	if _, ok := g.index[t]; ok {
		return false
	}
	g.index[t] = len(g.triples)
	g.triples = append(g.triples, t)
	return true
}

func (g *Graph) Has(q quad.Quad) bool {
	_, ok := g.index[statement(q)]
	return ok
}

// Remove deletes a statement, keeping the order of the remaining ones.
func (g *Graph) Remove(q quad.Quad) bool {
	t := statement(q)
	i, ok := g.index[t]
	if !ok {
		return false
	}
	delete(g.index, t)
	g.triples = append(g.triples[:i], g.triples[i+1:]...)
	for j := i; j < len(g.triples); j++ {
		g.index[g.triples[j]] = j
	}
	return true
}

func (g *Graph) Len() int {
	return len(g.triples)
}

// Triples returns a copy of the statements in insertion order.
func (g *Graph) Triples() []quad.Quad {
	out := make([]quad.Quad, len(g.triples))
	copy(out, g.triples)
	return out
}

// Each calls fn for every statement in insertion order.
func (g *Graph) Each(fn func(quad.Quad)) {
	for _, t := range g.triples {
		fn(t)
	}
}

func (g *Graph) Clone() *Graph {
	c := New(g.id)
	for _, t := range g.triples {
		c.AddQuad(t)
	}
	return c
}

func statement(q quad.Quad) quad.Quad {
	return quad.Quad{
		Subject:   normalize(q.Subject),
		Predicate: normalize(q.Predicate),
		Object:    normalize(q.Object),
	}
}

// normalize folds xsd:string typed literals into plain strings so both
// spellings compare equal.
func normalize(v quad.Value) quad.Value {
	if ts, ok := v.(quad.TypedString); ok && ts.Type == xsdString {
		return ts.Value
	}
	return v
}
