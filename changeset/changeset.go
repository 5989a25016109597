// Package changeset computes the difference between two graphs and describes
// it with the changeset vocabulary (http://purl.org/vocab/changeset/schema#),
// the payload Graph Stores accept for PATCH.
package changeset

import (
	"io"
	"strings"
	"time"

	"github.com/Financial-Times/sparql-client/graph"
	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/rdf"
	"github.com/google/uuid"
)

const (
	NS     = "http://purl.org/vocab/changeset/schema#"
	Prefix = "cs"
)

var (
	ChangeSet       = quad.IRI(NS + "ChangeSet")
	CreatedDate     = quad.IRI(NS + "createdDate")
	SubjectOfChange = quad.IRI(NS + "subjectOfChange")
	Removal         = quad.IRI(NS + "removal")
	Addition        = quad.IRI(NS + "addition")
)

var (
	rdfType      = quad.IRI(rdf.Type).Full()
	rdfStatement = quad.IRI(rdf.Statement).Full()
	rdfSubject   = quad.IRI(rdf.Subject).Full()
	rdfPredicate = quad.IRI(rdf.Predicate).Full()
	rdfObject    = quad.IRI(rdf.Object).Full()
)

// Differences returns the statements of a missing from b (removals) and of b
// missing from a (additions), in the order of their source graph. Statements
// whose predicate is one of exclude are left out of both. Neither graph is
// modified.
func Differences(a, b *graph.Graph, exclude ...string) (removals, additions []quad.Quad) {
	excluded := make(map[quad.Value]struct{}, len(exclude))
	for _, p := range exclude {
		excluded[quad.IRI(p)] = struct{}{}
	}
	return missingFrom(a, b, excluded), missingFrom(b, a, excluded)
}

func missingFrom(src, other *graph.Graph, excluded map[quad.Value]struct{}) []quad.Quad {
	out := []quad.Quad{}
	src.Each(func(q quad.Quad) {
		if _, skip := excluded[q.Predicate]; skip {
			return
		}
		if !other.Has(q) {
			out = append(out, q)
		}
	})
	return out
}

// Changeset is a built, read-only changeset graph.
type Changeset struct {
	graph     *graph.Graph
	subject   quad.BNode
	target    quad.IRI
	created   time.Time
	removals  []quad.Quad
	additions []quad.Quad
}

// Build describes how to turn graph a into graph b, where both are states of
// the graph named graphURI.
func Build(a, b *graph.Graph, graphURI string) *Changeset {
	return BuildExcluding(a, b, graphURI)
}

// BuildExcluding is Build, ignoring changes to statements with the given
// predicates.
func BuildExcluding(a, b *graph.Graph, graphURI string, exclude ...string) *Changeset {
	removals, additions := Differences(a, b, exclude...)
	return build(removals, additions, quad.IRI(graphURI), time.Now().UTC(), newNode)
}

func build(removals, additions []quad.Quad, target quad.IRI, now time.Time, node func() quad.BNode) *Changeset {
	g := graph.New(nil)
	cs := node()
	g.Add(cs, rdfType, ChangeSet)
	g.Add(cs, CreatedDate, quad.String(now.Format(time.RFC3339Nano)))
	g.Add(cs, SubjectOfChange, target)

	for _, stmt := range removals {
		g.Add(cs, Removal, reify(g, stmt, node()))
	}
	for _, stmt := range additions {
		g.Add(cs, Addition, reify(g, stmt, node()))
	}

	return &Changeset{
		graph:     g,
		subject:   cs,
		target:    target,
		created:   now,
		removals:  removals,
		additions: additions,
	}
}

func reify(g *graph.Graph, stmt quad.Quad, node quad.BNode) quad.BNode {
	g.Add(node, rdfType, rdfStatement)
	g.Add(node, rdfSubject, stmt.Subject)
	g.Add(node, rdfPredicate, stmt.Predicate)
	g.Add(node, rdfObject, stmt.Object)
	return node
}

// newNode returns a fresh blank node. The id starts with a letter so it is
// also a valid rdf:nodeID.
func newNode() quad.BNode {
	return quad.BNode("cs" + strings.Replace(uuid.New().String(), "-", "", -1))
}

// Subject is the blank node typed cs:ChangeSet.
func (c *Changeset) Subject() quad.BNode {
	return c.subject
}

func (c *Changeset) SubjectOfChange() quad.IRI {
	return c.target
}

func (c *Changeset) CreatedDate() time.Time {
	return c.created
}

func (c *Changeset) Removals() []quad.Quad {
	return append([]quad.Quad(nil), c.removals...)
}

func (c *Changeset) Additions() []quad.Quad {
	return append([]quad.Quad(nil), c.additions...)
}

// Empty reports whether the changeset carries no removals and no additions.
func (c *Changeset) Empty() bool {
	return len(c.removals) == 0 && len(c.additions) == 0
}

// Graph returns a copy of the changeset graph.
func (c *Changeset) Graph() *graph.Graph {
	return c.graph.Clone()
}

// WriteRDFXML writes the changeset as UTF-8 RDF/XML with the cs prefix bound.
func (c *Changeset) WriteRDFXML(w io.Writer) error {
	return c.graph.WriteRDFXML(w, map[string]string{Prefix: NS})
}
