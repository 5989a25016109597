package sparql

import (
	"bytes"
	"io/ioutil"
	"net/http"
)

type mockHttpClient struct {
	resp        string
	statusCode  int
	contentType string
	err         error

	requests []*http.Request
	bodies   []string
}

func (c *mockHttpClient) Do(req *http.Request) (resp *http.Response, err error) {
	c.requests = append(c.requests, req)
	body := ""
	if req.Body != nil {
		b, _ := ioutil.ReadAll(req.Body)
		body = string(b)
	}
	c.bodies = append(c.bodies, body)
	if c.err != nil {
		return nil, c.err
	}

	cb := ioutil.NopCloser(bytes.NewReader([]byte(c.resp)))
	header := http.Header{}
	if c.contentType != "" {
		header.Set("Content-Type", c.contentType)
	}
	return &http.Response{Body: cb, StatusCode: c.statusCode, Header: header}, nil
}

func (c *mockHttpClient) lastRequest() *http.Request {
	return c.requests[len(c.requests)-1]
}

func (c *mockHttpClient) lastBody() string {
	return c.bodies[len(c.bodies)-1]
}
