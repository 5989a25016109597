package sparql

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Financial-Times/sparql-client/graph"
	"github.com/beevik/etree"
	"github.com/cayleygraph/quad"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const (
	rdfXMLType     = "application/rdf+xml"
	sparqlJSONType = "application/sparql-results+json"
	sparqlXMLType  = "application/sparql-results+xml"

	// DefaultOutput is sent as the output parameter when none is given.
	DefaultOutput = "json"
)

var acceptableQueryResponses = []string{
	rdfXMLType,
	sparqlJSONType,
	sparqlXMLType,
}

// QueryClient runs SPARQL queries and updates against one endpoint.
type QueryClient struct {
	*Session
	queryURL    string
	postQueries bool
}

// NewQueryClient sends queries to queryURL as a form-encoded POST when
// postQueries is set, and as a GET with query string parameters otherwise.
func NewQueryClient(session *Session, queryURL string, postQueries bool) (*QueryClient, error) {
	if _, err := url.Parse(queryURL); err != nil {
		return nil, err
	}
	return &QueryClient{
		Session:     session,
		queryURL:    queryURL,
		postQueries: postQueries,
	}, nil
}

func (c *QueryClient) QueryURL() string {
	return c.queryURL
}

// Query executes sparql. The result kind follows the response:
//
//   - 204 No Content: SuccessResult
//   - application/rdf+xml: GraphResult, parsed with the query URL as publicID
//   - application/sparql-results+json: JSONResult
//   - application/sparql-results+xml: XMLResult
//
// Any status other than 200 or 204 gives a *QueryError and any other
// Content-Type an *UnknownResponseTypeError.
func (c *QueryClient) Query(sparql, output string) (*Result, error) {
	if output == "" {
		output = DefaultOutput
	}
	c.log.WithField("url", c.queryURL).Debugf("Querying with: %q", sparql)

	params := url.Values{}
	params.Set("query", sparql)
	params.Set("output", output)
	header := http.Header{}
	header.Set("Accept", strings.Join(acceptableQueryResponses, ","))

	var resp *http.Response
	var err error
	if c.postQueries {
		header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err = c.makeRequest("query", "POST", c.queryURL, strings.NewReader(params.Encode()), header)
	} else {
		resp, err = c.makeRequest("query", "GET", c.getURL(params), nil, header)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return &Result{Kind: SuccessResult, Success: true}, nil
	case http.StatusOK:
		return c.decodeResult(resp)
	}
	c.failed("query")
	qErr := &QueryError{StatusCode: resp.StatusCode, Body: readBody(resp)}
	c.log.WithField("status", resp.StatusCode).WithField("url", c.queryURL).Error("SPARQL endpoint rejected the query")
	return nil, qErr
}

// Ask runs an ASK query and returns its boolean answer.
func (c *QueryClient) Ask(sparql string) (bool, error) {
	result, err := c.Query(sparql, DefaultOutput)
	if err != nil {
		return false, err
	}
	answer, ok := result.Boolean()
	if !ok {
		return false, errors.Errorf("query returned a %s result instead of a boolean", result.Kind)
	}
	return answer, nil
}

// getURL merges the query parameters into any already on the endpoint URL.
func (c *QueryClient) getURL(params url.Values) string {
	u, _ := url.Parse(c.queryURL)
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *QueryClient) decodeResult(resp *http.Response) (*Result, error) {
	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, rdfXMLType):
		g, err := graph.Parse(resp.Body, graph.RDFXML, quad.IRI(c.queryURL))
		if err != nil {
			return nil, errors.Wrap(err, "parsing RDF/XML query result")
		}
		return &Result{Kind: GraphResult, Graph: g}, nil

	case strings.HasPrefix(contentType, sparqlJSONType):
		var doc map[string]interface{}
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding SPARQL JSON results")
		}
		return &Result{Kind: JSONResult, JSON: doc}, nil

	case strings.HasPrefix(contentType, sparqlXMLType):
		doc := etree.NewDocument()
		if _, err := doc.ReadFrom(resp.Body); err != nil {
			return nil, errors.Wrap(err, "reading SPARQL XML results")
		}
		return &Result{Kind: XMLResult, XML: doc}, nil
	}

	c.failed("query")
	c.log.WithField("content_type", contentType).Error("Unknown SPARQL response type")
	return nil, &UnknownResponseTypeError{ContentType: contentType}
}
