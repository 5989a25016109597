package sparql

import (
	"github.com/Financial-Times/sparql-client/graph"
	"github.com/beevik/etree"
)

// ResultKind tags which field of a Result is populated.
type ResultKind int

const (
	// GraphResult comes from an application/rdf+xml response.
	GraphResult ResultKind = iota + 1
	// JSONResult comes from an application/sparql-results+json response.
	JSONResult
	// XMLResult comes from an application/sparql-results+xml response.
	XMLResult
	// SuccessResult comes from a 204 No Content response, usually to an update.
	SuccessResult
)

func (k ResultKind) String() string {
	switch k {
	case GraphResult:
		return "graph"
	case JSONResult:
		return "json"
	case XMLResult:
		return "xml"
	case SuccessResult:
		return "success"
	}
	return "unknown"
}

// Result is the outcome of a query. Kind is decided by the response status
// and Content-Type only, never by the query text.
type Result struct {
	Kind    ResultKind
	Graph   *graph.Graph
	JSON    map[string]interface{}
	XML     *etree.Document
	Success bool
}

// Bindings returns results.bindings of a JSON result, or nil for any other
// shape.
func (r *Result) Bindings() []map[string]interface{} {
	if r.Kind != JSONResult {
		return nil
	}
	results, ok := r.JSON["results"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := results["bindings"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// Boolean returns the answer of an ASK query in either results format.
func (r *Result) Boolean() (answer bool, ok bool) {
	switch r.Kind {
	case JSONResult:
		answer, ok = r.JSON["boolean"].(bool)
		return answer, ok
	case XMLResult:
		el := r.XML.FindElement("//boolean")
		if el == nil {
			return false, false
		}
		return el.Text() == "true", true
	}
	return false, false
}
