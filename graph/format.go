package graph

import (
	"strings"
)

// Format is an RDF serialization the clients know how to read or write.
type Format string

const (
	NTriples Format = "nt"
	Turtle   Format = "turtle"
	N3       Format = "n3"
	RDFXML   Format = "xml"
)

// MediaType returns the media type a Graph Store exchanges the format as.
func (f Format) MediaType() string {
	switch f {
	case NTriples:
		return "text/plain"
	case Turtle:
		return "text/turtle"
	case N3:
		return "text/rdf+n3"
	case RDFXML:
		return "application/rdf+xml"
	}
	return ""
}

// GraphFormats lists the formats a graph can be fetched in, in the order they
// are advertised to the server.
var GraphFormats = []Format{NTriples, RDFXML, Turtle, N3}

// FormatForContentType matches a Content-Type header against GraphFormats by
// prefix, so charset and other parameters are ignored.
func FormatForContentType(contentType string) (Format, bool) {
	for _, f := range GraphFormats {
		if strings.HasPrefix(contentType, f.MediaType()) {
			return f, true
		}
	}
	return "", false
}

// FormatForPath guesses a format from a file extension.
func FormatForPath(path string) (Format, bool) {
	switch {
	case strings.HasSuffix(path, ".nt"):
		return NTriples, true
	case strings.HasSuffix(path, ".ttl"):
		return Turtle, true
	case strings.HasSuffix(path, ".n3"):
		return N3, true
	case strings.HasSuffix(path, ".rdf"), strings.HasSuffix(path, ".xml"):
		return RDFXML, true
	}
	return "", false
}
