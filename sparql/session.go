package sparql

import (
	"io"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"time"

	transactionidutils "github.com/Financial-Times/transactionid-utils-go"
	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
)

const metricsPrefix = "sparql."

type httpClient interface {
	Do(req *http.Request) (resp *http.Response, err error)
}

// Session is the HTTP state shared by the query and Graph Store clients built
// on it. Cookies and authentication set up on the underlying client persist
// across calls. A Session is not safe for concurrent use.
type Session struct {
	httpClient httpClient
	log        log.FieldLogger
	registry   metrics.Registry
}

// NewSession wraps httpClient. A nil httpClient gets NewHTTPClient().
func NewSession(httpClient httpClient, opts ...func(*Session)) *Session {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	s := &Session{
		httpClient: httpClient,
		log:        log.StandardLogger(),
		registry:   metrics.DefaultRegistry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHTTPClient returns an http.Client with a cookie jar, so session cookies
// issued by the endpoint are sent back on later requests.
func NewHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar}
}

func WithLogger(logger log.FieldLogger) func(*Session) {
	return func(s *Session) {
		s.log = logger
	}
}

// WithMetricsRegistry records request timers and error counters in registry
// instead of metrics.DefaultRegistry.
func WithMetricsRegistry(registry metrics.Registry) func(*Session) {
	return func(s *Session) {
		s.registry = registry
	}
}

// makeRequest sends one request tagged with a fresh transaction id. Transport
// errors are returned as they come from the HTTP client.
func (s *Session) makeRequest(operation, method, url string, body io.Reader, header http.Header) (*http.Response, error) {
	logger := s.log.WithField("operation", operation).WithField("method", method).WithField("url", url)

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		logger.WithError(err).Error("Error creating the request")
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	tid := transactionidutils.NewTransactionID()
	req.Header.Set(transactionidutils.TransactionIDHeader, tid)
	logger = logger.WithField(transactionidutils.TransactionIDKey, tid)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	metrics.GetOrRegisterTimer(metricsPrefix+operation, s.registry).UpdateSince(start)
	if err != nil {
		s.failed(operation)
		logger.WithError(err).Error("Error making the request")
		return nil, err
	}
	logger.WithField("status", resp.StatusCode).Debug("Received response")
	return resp, nil
}

func (s *Session) failed(operation string) {
	metrics.GetOrRegisterCounter(metricsPrefix+operation+".errors", s.registry).Inc(1)
}

func readBody(resp *http.Response) string {
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

func hasStatus(resp *http.Response, codes ...int) bool {
	for _, code := range codes {
		if resp.StatusCode == code {
			return true
		}
	}
	return false
}
