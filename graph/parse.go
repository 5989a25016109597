package graph

import (
	"io"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"
	"github.com/knakk/rdf"
	"github.com/pkg/errors"
)

const rdfLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"

// Parse reads statements in the given format from r into a new graph
// identified by publicID. The reader is consumed as a stream.
func Parse(r io.Reader, format Format, publicID quad.Value) (*Graph, error) {
	g := New(publicID)
	var err error
	switch format {
	case NTriples:
		err = g.readNTriples(r)
	case Turtle, N3:
		// N3 documents without formulae or rules are Turtle.
		err = g.readTriples(r, rdf.Turtle)
	case RDFXML:
		err = g.readTriples(r, rdf.RDFXML)
	default:
		return nil, errors.Errorf("unsupported RDF format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) readNTriples(r io.Reader) error {
	// Raw mode keeps typed literals as lexical form plus datatype IRI, the
	// same shape the Turtle and RDF/XML decoders produce.
	qr := nquads.NewReader(r, true)
	for {
		q, err := qr.ReadQuad()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading N-Triples")
		}
		g.AddQuad(q)
	}
}

func (g *Graph) readTriples(r io.Reader, format rdf.Format) error {
	dec := rdf.NewTripleDecoder(r, format)
	for {
		t, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "decoding %s", formatName(format))
		}
		g.Add(fromTerm(t.Subj), fromTerm(t.Pred), fromTerm(t.Obj))
	}
}

func fromTerm(t rdf.Term) quad.Value {
	switch v := t.(type) {
	case rdf.IRI:
		return quad.IRI(v.String())
	case rdf.Blank:
		return quad.BNode(strings.TrimPrefix(v.String(), "_:"))
	case rdf.Literal:
		if lang := v.Lang(); lang != "" {
			return quad.LangString{Value: quad.String(v.String()), Lang: lang}
		}
		switch dt := v.DataType.String(); dt {
		case "", string(xsdString), rdfLangString:
			return quad.String(v.String())
		default:
			return quad.TypedString{Value: quad.String(v.String()), Type: quad.IRI(dt)}
		}
	}
	return quad.String(t.String())
}

func formatName(f rdf.Format) string {
	switch f {
	case rdf.Turtle:
		return "Turtle"
	case rdf.RDFXML:
		return "RDF/XML"
	}
	return "RDF"
}
