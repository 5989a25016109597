package changeset

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Financial-Times/sparql-client/graph"
	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	graphURI  = "http://example.com/graphs/concepts"
	exConcept = quad.IRI("http://example.com/thing/1")
	prefLabel = quad.IRI("http://www.w3.org/2004/02/skos/core#prefLabel")
	altLabel  = quad.IRI("http://www.w3.org/2004/02/skos/core#altLabel")
	modified  = quad.IRI("http://purl.org/dc/terms/modified")
)

func fixtureGraphs() (*graph.Graph, *graph.Graph) {
	a := graph.New(nil)
	a.Add(exConcept, prefLabel, quad.String("Old label"))
	a.Add(exConcept, altLabel, quad.String("Shared"))
	a.Add(exConcept, modified, quad.String("2017-01-01"))

	b := graph.New(nil)
	b.Add(exConcept, altLabel, quad.String("Shared"))
	b.Add(exConcept, prefLabel, quad.String("New label"))
	b.Add(exConcept, modified, quad.String("2017-06-01"))
	b.Add(exConcept, altLabel, quad.LangString{Value: "Nouveau", Lang: "fr"})
	return a, b
}

func TestDifferences(t *testing.T) {
	a, b := fixtureGraphs()

	removals, additions := Differences(a, b)

	assert.Equal(t, []quad.Quad{
		{Subject: exConcept, Predicate: prefLabel, Object: quad.String("Old label")},
		{Subject: exConcept, Predicate: modified, Object: quad.String("2017-01-01")},
	}, removals)
	assert.Equal(t, []quad.Quad{
		{Subject: exConcept, Predicate: prefLabel, Object: quad.String("New label")},
		{Subject: exConcept, Predicate: modified, Object: quad.String("2017-06-01")},
		{Subject: exConcept, Predicate: altLabel, Object: quad.LangString{Value: "Nouveau", Lang: "fr"}},
	}, additions)

	for _, q := range removals {
		assert.True(t, a.Has(q))
		assert.False(t, b.Has(q))
	}
	for _, q := range additions {
		assert.True(t, b.Has(q))
		assert.False(t, a.Has(q))
	}
}

func TestDifferences_Excluding(t *testing.T) {
	a, b := fixtureGraphs()

	removals, additions := Differences(a, b, string(modified))

	assert.Len(t, removals, 1)
	assert.Len(t, additions, 2)
	for _, q := range append(removals, additions...) {
		assert.NotEqual(t, modified, q.Predicate)
	}
}

func TestDifferences_SameGraph(t *testing.T) {
	a, _ := fixtureGraphs()

	removals, additions := Differences(a, a)
	assert.Empty(t, removals)
	assert.Empty(t, additions)

	removals, additions = Differences(graph.New(nil), graph.New(nil))
	assert.Empty(t, removals)
	assert.Empty(t, additions)
}

func TestDifferences_Antisymmetric(t *testing.T) {
	a, b := fixtureGraphs()

	removals, additions := Differences(a, b, string(altLabel))
	reverseRemovals, reverseAdditions := Differences(b, a, string(altLabel))

	assert.Equal(t, removals, reverseAdditions)
	assert.Equal(t, additions, reverseRemovals)
}

func TestDifferences_DoesNotMutateInputs(t *testing.T) {
	a, b := fixtureGraphs()
	beforeA, beforeB := a.Triples(), b.Triples()

	Differences(a, b, string(modified))

	assert.Equal(t, beforeA, a.Triples())
	assert.Equal(t, beforeB, b.Triples())
}

func TestDifferences_ExclusionIsNotShared(t *testing.T) {
	a, b := fixtureGraphs()

	Differences(a, b, string(prefLabel), string(altLabel), string(modified))
	removals, additions := Differences(a, b)

	assert.Len(t, removals, 2)
	assert.Len(t, additions, 3)
}

func TestBuild(t *testing.T) {
	a, b := fixtureGraphs()

	cs := Build(a, b, graphURI)
	g := cs.Graph()

	var changeSets, removalLinks, additionLinks []quad.Quad
	g.Each(func(q quad.Quad) {
		switch {
		case q.Predicate == rdfType && q.Object == ChangeSet:
			changeSets = append(changeSets, q)
		case q.Predicate == Removal:
			removalLinks = append(removalLinks, q)
		case q.Predicate == Addition:
			additionLinks = append(additionLinks, q)
		}
	})

	require.Len(t, changeSets, 1)
	assert.Equal(t, cs.Subject(), changeSets[0].Subject)
	assert.Len(t, removalLinks, 2)
	assert.Len(t, additionLinks, 3)
	assert.True(t, g.Has(quad.Quad{Subject: cs.Subject(), Predicate: SubjectOfChange, Object: quad.IRI(graphURI)}))
	assert.Equal(t, quad.IRI(graphURI), cs.SubjectOfChange())

	seen := map[quad.Value]bool{}
	for i, link := range removalLinks {
		assertReified(t, g, link.Object, cs.Removals()[i])
		seen[link.Object] = true
	}
	for i, link := range additionLinks {
		assertReified(t, g, link.Object, cs.Additions()[i])
		seen[link.Object] = true
	}
	assert.Len(t, seen, 5, "every reified statement gets its own node")

	// one type, one date, one target, five links and four triples per reified statement
	assert.Equal(t, 3+5+5*4, g.Len())
}

func assertReified(t *testing.T, g *graph.Graph, node quad.Value, stmt quad.Quad) {
	assert.IsType(t, quad.BNode(""), node)
	assert.True(t, g.Has(quad.Quad{Subject: node, Predicate: rdfType, Object: rdfStatement}))
	assert.True(t, g.Has(quad.Quad{Subject: node, Predicate: rdfSubject, Object: stmt.Subject}))
	assert.True(t, g.Has(quad.Quad{Subject: node, Predicate: rdfPredicate, Object: stmt.Predicate}))
	assert.True(t, g.Has(quad.Quad{Subject: node, Predicate: rdfObject, Object: stmt.Object}))
}

func TestBuild_CreatedDate(t *testing.T) {
	now := time.Date(2017, 6, 1, 13, 0, 0, 500, time.UTC)
	n := 0
	node := func() quad.BNode {
		n++
		return quad.BNode("n" + string(rune('a'+n)))
	}

	cs := build(nil, nil, quad.IRI(graphURI), now, node)

	assert.True(t, cs.Empty())
	assert.Equal(t, now, cs.CreatedDate())
	assert.True(t, cs.Graph().Has(quad.Quad{
		Subject:   quad.BNode("nb"),
		Predicate: CreatedDate,
		Object:    quad.String("2017-06-01T13:00:00.0000005Z"),
	}))
	assert.Equal(t, 3, cs.Graph().Len())
}

func TestBuild_Timestamp(t *testing.T) {
	before := time.Now().UTC()
	cs := Build(graph.New(nil), graph.New(nil), graphURI)
	after := time.Now().UTC()

	assert.False(t, cs.CreatedDate().Before(before))
	assert.False(t, cs.CreatedDate().After(after))
	assert.Equal(t, time.UTC, cs.CreatedDate().Location())
}

func TestChangeset_IsReadOnly(t *testing.T) {
	a, b := fixtureGraphs()
	cs := Build(a, b, graphURI)

	cs.Graph().Add(exConcept, prefLabel, quad.String("tampered"))
	removals := cs.Removals()
	removals[0] = quad.Quad{}

	assert.False(t, cs.Graph().Has(quad.Quad{Subject: exConcept, Predicate: prefLabel, Object: quad.String("tampered")}))
	assert.NotEqual(t, quad.Quad{}, cs.Removals()[0])
}

func TestChangeset_WriteRDFXML(t *testing.T) {
	a, b := fixtureGraphs()
	cs := Build(a, b, graphURI)

	var buf bytes.Buffer
	require.NoError(t, cs.WriteRDFXML(&buf))

	out := buf.String()
	assert.Contains(t, out, `xmlns:cs="http://purl.org/vocab/changeset/schema#"`)
	assert.Contains(t, out, `<rdf:type rdf:resource="http://purl.org/vocab/changeset/schema#ChangeSet"/>`)
	assert.Contains(t, out, `<cs:subjectOfChange rdf:resource="`+graphURI+`"/>`)
	assert.Equal(t, 2, strings.Count(out, "<cs:removal "))
	assert.Equal(t, 3, strings.Count(out, "<cs:addition "))

	back, err := graph.Parse(&buf, graph.RDFXML, nil)
	require.NoError(t, err)
	assert.Equal(t, cs.Graph().Len(), back.Len())
}

func TestChangeset_TypedLiterals(t *testing.T) {
	nt := `<http://example.com/thing/1> <http://purl.org/dc/terms/modified> "2020-01-01T00:00:00+01:00"^^<http://www.w3.org/2001/XMLSchema#dateTime> .
<http://example.com/thing/1> <http://example.com/vocab#rank> "42"^^<http://www.w3.org/2001/XMLSchema#integer> .
`
	ttl := `@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
<http://example.com/thing/1> <http://purl.org/dc/terms/modified> "2020-01-01T00:00:00+01:00"^^xsd:dateTime ;
    <http://example.com/vocab#rank> "42"^^xsd:integer .
`
	fromNT, err := graph.Parse(strings.NewReader(nt), graph.NTriples, nil)
	require.NoError(t, err)
	fromTTL, err := graph.Parse(strings.NewReader(ttl), graph.Turtle, nil)
	require.NoError(t, err)

	removals, additions := Differences(fromNT, fromTTL)
	assert.Empty(t, removals)
	assert.Empty(t, additions)

	cs := Build(graph.New(nil), fromNT, graphURI)
	require.Len(t, cs.Additions(), 2)

	var buf bytes.Buffer
	require.NoError(t, cs.WriteRDFXML(&buf))
	assert.Contains(t, buf.String(), `rdf:datatype="http://www.w3.org/2001/XMLSchema#integer">42<`)
	assert.Contains(t, buf.String(), `rdf:datatype="http://www.w3.org/2001/XMLSchema#dateTime">2020-01-01T00:00:00+01:00<`)

	back, err := graph.Parse(&buf, graph.RDFXML, nil)
	require.NoError(t, err)
	assert.Equal(t, cs.Graph().Len(), back.Len())
	var objects []quad.Value
	back.Each(func(q quad.Quad) {
		if q.Predicate == rdfObject {
			objects = append(objects, q.Object)
		}
	})
	require.Len(t, objects, 2)
	assert.Contains(t, objects, cs.Additions()[0].Object)
	assert.Contains(t, objects, cs.Additions()[1].Object)
}
