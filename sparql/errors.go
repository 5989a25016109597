package sparql

import "fmt"

// QueryError is returned when a query endpoint answers with a status other
// than 200 OK or 204 No Content.
type QueryError struct {
	StatusCode int
	Body       string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("SPARQL query failed (%d): %s", e.StatusCode, e.Body)
}

// UnknownResponseTypeError is returned for a successful response whose
// Content-Type the client cannot interpret.
type UnknownResponseTypeError struct {
	ContentType string
}

func (e *UnknownResponseTypeError) Error() string {
	return fmt.Sprintf("got content of type: %s", e.ContentType)
}

// GraphStoreError is returned when a Graph Store operation gets a status
// outside the set that operation accepts.
type GraphStoreError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *GraphStoreError) Error() string {
	return fmt.Sprintf("error from Graph Store on %s %s (%d): %s", e.Method, e.URL, e.StatusCode, e.Body)
}
