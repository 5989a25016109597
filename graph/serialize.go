package graph

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"
	"github.com/cayleygraph/quad/voc/rdf"
	"github.com/pkg/errors"
)

// WriteNTriples serializes the graph as N-Triples, one statement per line.
func (g *Graph) WriteNTriples(w io.Writer) error {
	qw := nquads.NewWriter(w)
	for _, t := range g.triples {
		if err := qw.WriteQuad(t); err != nil {
			qw.Close()
			return errors.Wrap(err, "writing N-Triples")
		}
	}
	// Close flushes the writer's buffer.
	return errors.Wrap(qw.Close(), "writing N-Triples")
}

// NTriples returns the graph serialized as N-Triples.
func (g *Graph) NTriples() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.WriteNTriples(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRDFXML serializes the graph as UTF-8 RDF/XML. Statements are grouped
// into one rdf:Description per subject, in order of first appearance.
// prefixes maps namespace prefixes to namespace IRIs; predicates outside them
// get generated prefixes.
func (g *Graph) WriteRDFXML(w io.Writer, prefixes map[string]string) error {
	ns := newNamespaces(prefixes)
	var subjects []quad.Value
	bySubject := map[quad.Value][]quad.Quad{}
	for _, t := range g.triples {
		if _, err := ns.qname(t.Predicate); err != nil {
			return err
		}
		if _, ok := bySubject[t.Subject]; !ok {
			subjects = append(subjects, t.Subject)
		}
		bySubject[t.Subject] = append(bySubject[t.Subject], t)
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	bw.WriteString("<rdf:RDF")
	for _, p := range ns.sortedPrefixes() {
		fmt.Fprintf(bw, "\n   xmlns:%s=\"%s\"", p, escape(ns.byPrefix[p]))
	}
	bw.WriteString(">\n")

	for _, s := range subjects {
		subj, err := nodeAttr(s, "rdf:about")
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "  <rdf:Description %s>\n", subj)
		for _, t := range bySubject[s] {
			name, _ := ns.qname(t.Predicate)
			if err := writeProperty(bw, name, t.Object); err != nil {
				return err
			}
		}
		bw.WriteString("  </rdf:Description>\n")
	}
	bw.WriteString("</rdf:RDF>\n")
	return bw.Flush()
}

func writeProperty(w *bufio.Writer, name string, o quad.Value) error {
	switch v := o.(type) {
	case quad.IRI, quad.BNode:
		attr, err := nodeAttr(v, "rdf:resource")
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "    <%s %s/>\n", name, attr)
	case quad.String:
		fmt.Fprintf(w, "    <%s>%s</%s>\n", name, escape(string(v)), name)
	case quad.LangString:
		fmt.Fprintf(w, "    <%s xml:lang=\"%s\">%s</%s>\n", name, escape(v.Lang), escape(string(v.Value)), name)
	case quad.TypedString:
		fmt.Fprintf(w, "    <%s rdf:datatype=\"%s\">%s</%s>\n", name, escape(string(v.Type)), escape(string(v.Value)), name)
	default:
		return errors.Errorf("cannot serialize object %v as RDF/XML", o)
	}
	return nil
}

func nodeAttr(v quad.Value, iriAttr string) (string, error) {
	switch n := v.(type) {
	case quad.IRI:
		return fmt.Sprintf("%s=\"%s\"", iriAttr, escape(string(n))), nil
	case quad.BNode:
		return fmt.Sprintf("rdf:nodeID=\"%s\"", escape(string(n))), nil
	}
	return "", errors.Errorf("cannot serialize node %v as RDF/XML", v)
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

type namespaces struct {
	byPrefix map[string]string
	byNS     map[string]string
	next     int
}

func newNamespaces(prefixes map[string]string) *namespaces {
	ns := &namespaces{byPrefix: map[string]string{}, byNS: map[string]string{}}
	ns.bind("rdf", rdf.NS)
	for p, iri := range prefixes {
		ns.bind(p, iri)
	}
	return ns
}

func (ns *namespaces) bind(prefix, iri string) {
	if _, ok := ns.byNS[iri]; ok {
		return
	}
	if _, ok := ns.byPrefix[prefix]; ok {
		return
	}
	ns.byPrefix[prefix] = iri
	ns.byNS[iri] = prefix
}

// qname splits a predicate IRI into a namespace and an XML local name,
// binding a generated prefix for unseen namespaces.
func (ns *namespaces) qname(p quad.Value) (string, error) {
	iri, ok := p.(quad.IRI)
	if !ok {
		return "", errors.Errorf("predicate %v is not an IRI", p)
	}
	s := string(iri)
	i := len(s)
	for i > 0 {
		r := rune(s[i-1])
		if !isNameChar(r) {
			break
		}
		i--
	}
	for i < len(s) && !isNameStart(rune(s[i])) {
		i++
	}
	if i == len(s) {
		return "", errors.Errorf("predicate %s has no XML local name", s)
	}
	namespace, local := s[:i], s[i:]
	prefix, ok := ns.byNS[namespace]
	if !ok {
		for {
			ns.next++
			prefix = fmt.Sprintf("ns%d", ns.next)
			if _, taken := ns.byPrefix[prefix]; !taken {
				break
			}
		}
		ns.bind(prefix, namespace)
	}
	return prefix + ":" + local, nil
}

func (ns *namespaces) sortedPrefixes() []string {
	out := make([]string, 0, len(ns.byPrefix))
	for p := range ns.byPrefix {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Only ASCII is considered so IRIs are never split inside a multi-byte rune.
func isNameStart(r rune) bool {
	return r < utf8.RuneSelf && (r == '_' || unicode.IsLetter(r))
}

func isNameChar(r rune) bool {
	return isNameStart(r) || r == '-' || r == '.' || (r < utf8.RuneSelf && unicode.IsDigit(r))
}
