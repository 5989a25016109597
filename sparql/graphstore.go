package sparql

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/Financial-Times/sparql-client/graph"
	"github.com/cayleygraph/quad"
	"github.com/pkg/errors"
)

// GraphStore speaks the SPARQL 1.1 Graph Store HTTP protocol against one
// dataset.
type GraphStore struct {
	*Session
	datasetURL string
	dataset    *url.URL
	paramStyle bool
}

// NewGraphStore addresses graphs as datasetURL?graph=<uri> when paramStyle is
// set, and as an escaped path segment under datasetURL otherwise.
func NewGraphStore(session *Session, datasetURL string, paramStyle bool) (*GraphStore, error) {
	u, err := url.Parse(datasetURL)
	if err != nil {
		return nil, err
	}
	return &GraphStore{
		Session:    session,
		datasetURL: datasetURL,
		dataset:    u,
		paramStyle: paramStyle,
	}, nil
}

func (gs *GraphStore) DatasetURL() string {
	return gs.datasetURL
}

// ResourceURL returns the URL of the graph named graphURI.
func (gs *GraphStore) ResourceURL(graphURI string) string {
	if gs.paramStyle {
		return gs.datasetURL + "?" + url.Values{"graph": {graphURI}}.Encode()
	}
	escaped := url.QueryEscape(graphURI)
	path, _ := url.PathUnescape(escaped)
	return gs.dataset.ResolveReference(&url.URL{Path: path, RawPath: escaped}).String()
}

func acceptableGraphResponses() string {
	types := make([]string, 0, len(graph.GraphFormats))
	for _, f := range graph.GraphFormats {
		types = append(types, f.MediaType())
	}
	return strings.Join(types, ",")
}

// Get fetches a graph. The response is parsed in the format named by its
// Content-Type, with graphURI as the publicID.
func (gs *GraphStore) Get(graphURI string) (*graph.Graph, error) {
	reqURL := gs.ResourceURL(graphURI)
	header := http.Header{}
	header.Set("Accept", acceptableGraphResponses())

	resp, err := gs.makeRequest("get", "GET", reqURL, nil, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := gs.expect("get", "GET", resp, reqURL, http.StatusOK); err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	format, ok := graph.FormatForContentType(contentType)
	if !ok {
		gs.failed("get")
		gs.log.WithField("content_type", contentType).WithField("url", reqURL).Error("Unknown Graph Store response type")
		return nil, &UnknownResponseTypeError{ContentType: contentType}
	}
	g, err := graph.Parse(resp.Body, format, quad.IRI(graphURI))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing graph %s", graphURI)
	}
	return g, nil
}

// Delete removes a graph. The store must answer 200 or 202.
func (gs *GraphStore) Delete(graphURI string) error {
	reqURL := gs.ResourceURL(graphURI)
	resp, err := gs.makeRequest("delete", "DELETE", reqURL, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return gs.expect("delete", "DELETE", resp, reqURL, http.StatusOK, http.StatusAccepted)
}

// Put replaces the content of a graph with g.
func (gs *GraphStore) Put(graphURI string, g *graph.Graph) error {
	return gs.send("put", "PUT", gs.ResourceURL(graphURI), g, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// Post merges g into the graph named graphURI. With an empty graphURI the
// statements are posted to the dataset itself, asking the store to create a
// new graph, which must be answered with 201 Created.
func (gs *GraphStore) Post(graphURI string, g *graph.Graph) error {
	if graphURI == "" {
		return gs.send("post", "POST", gs.datasetURL, g, http.StatusCreated)
	}
	return gs.send("post", "POST", gs.ResourceURL(graphURI), g, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

func (gs *GraphStore) send(operation, method, reqURL string, g *graph.Graph, codes ...int) error {
	data, err := g.NTriples()
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Content-Type", graph.NTriples.MediaType())

	resp, err := gs.makeRequest(operation, method, reqURL, bytes.NewReader(data), header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return gs.expect(operation, method, resp, reqURL, codes...)
}

func (gs *GraphStore) expect(operation, method string, resp *http.Response, reqURL string, codes ...int) error {
	if hasStatus(resp, codes...) {
		return nil
	}
	gs.failed(operation)
	err := &GraphStoreError{
		Method:     method,
		URL:        reqURL,
		StatusCode: resp.StatusCode,
		Body:       readBody(resp),
	}
	gs.log.WithField("operation", operation).WithField("url", reqURL).WithField("status", resp.StatusCode).Error("Error from Graph Store")
	return err
}
