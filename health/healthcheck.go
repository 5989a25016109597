package health

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	"github.com/Financial-Times/http-handlers-go/httphandlers"
	"github.com/Financial-Times/service-status-go/gtg"
	status "github.com/Financial-Times/service-status-go/httphandlers"
	"github.com/Financial-Times/sparql-client/graph"
	"github.com/gorilla/mux"
	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
)

const (
	businessImpact    = "Reads and writes of RDF data through this client will fail"
	connectivityQuery = "ASK {}"
)

// Querier is the part of a query client the health checks use.
type Querier interface {
	Ask(sparql string) (bool, error)
	QueryURL() string
}

// GraphGetter is the part of a Graph Store client the health checks use.
type GraphGetter interface {
	Get(graphURI string) (*graph.Graph, error)
	DatasetURL() string
}

// HealthService is responsible for gtg and health checks.
type HealthService struct {
	sync.RWMutex
	config            *Config
	querier           Querier
	store             GraphGetter
	Checks            []fthealth.Check
	checkSuccessCache bool
	checkError        error
	log               log.FieldLogger
}

type Config struct {
	AppSystemCode string
	AppName       string
	Description   string
	PanicGuide    string
	// HealthGraph, when set, is fetched from the Graph Store as a check.
	HealthGraph      string
	SuccessCacheTime time.Duration
	// Logger defaults to the logrus standard logger.
	Logger log.FieldLogger
}

func (c *Config) Validate() error {
	if c.AppSystemCode == "" {
		return errors.New("property AppSystemCode is required")
	}
	if c.AppName == "" {
		return errors.New("property AppName is required")
	}
	if c.Description == "" {
		return errors.New("property Description is required")
	}
	if c.HealthGraph != "" && c.SuccessCacheTime.Nanoseconds() <= 0 {
		return errors.New("property SuccessCacheTime is required with HealthGraph")
	}
	return nil
}

// NewHealthService builds the checks but doesn't start refreshing the cached
// Graph Store result. A nil store skips the Graph Store check.
func NewHealthService(querier Querier, store GraphGetter, config *Config) (*HealthService, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	hs := &HealthService{
		config:  config,
		querier: querier,
		store:   store,
		log:     config.Logger,
	}
	if hs.log == nil {
		hs.log = log.StandardLogger()
	}
	hs.Checks = []fthealth.Check{hs.queryEndpointCheck()}
	if store != nil && config.HealthGraph != "" {
		hs.Checks = append(hs.Checks, hs.graphStoreCheck())
	}
	return hs, nil
}

// Start refreshes the cached Graph Store result every SuccessCacheTime until
// stop is closed.
func (hs *HealthService) Start(stop <-chan struct{}) {
	if hs.store == nil || hs.config.HealthGraph == "" {
		return
	}
	go func() {
		hs.UpdateGraphStoreCache()
		ticker := time.NewTicker(hs.config.SuccessCacheTime)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hs.UpdateGraphStoreCache()
			case <-stop:
				return
			}
		}
	}()
}

// UpdateGraphStoreCache fetches the configured health graph and records
// whether that worked.
func (hs *HealthService) UpdateGraphStoreCache() error {
	_, err := hs.store.Get(hs.config.HealthGraph)
	if err != nil {
		hs.log.WithError(err).Errorf("health check graph %s couldn't be retrieved", hs.config.HealthGraph)
	}
	hs.setCheckSuccessCache(err)
	return err
}

// RegisterAdminEndpoints adds the admin endpoints to the given router
func (hs *HealthService) RegisterAdminEndpoints(router *mux.Router) http.Handler {
	router.HandleFunc("/__health", fthealth.Handler(hs.HealthcheckHandler()))
	router.HandleFunc(status.GTGPath, status.NewGoodToGoHandler(hs.GtgCheck()))
	router.HandleFunc(status.BuildInfoPath, status.BuildInfoHandler)

	var monitoringRouter http.Handler = router
	monitoringRouter = httphandlers.TransactionAwareRequestLoggingHandler(hs.requestLogger(), monitoringRouter)
	monitoringRouter = httphandlers.HTTPMetricsHandler(metrics.DefaultRegistry, monitoringRouter)

	return monitoringRouter
}

// requestLogger is the logger behind the request logging middleware, which
// needs a *log.Logger rather than any FieldLogger.
func (hs *HealthService) requestLogger() *log.Logger {
	if l, ok := hs.log.(*log.Logger); ok {
		return l
	}
	return log.StandardLogger()
}

// HealthcheckHandler is resposible for __health endpoint.
func (hs *HealthService) HealthcheckHandler() fthealth.TimedHealthCheck {
	return fthealth.TimedHealthCheck{
		HealthCheck: fthealth.HealthCheck{
			SystemCode:  hs.config.AppSystemCode,
			Name:        hs.config.AppName,
			Description: hs.config.Description,
			Checks:      hs.Checks,
		},
		Timeout: 10 * time.Second,
	}
}

func (hs *HealthService) queryEndpointCheck() fthealth.Check {
	return fthealth.Check{
		BusinessImpact:   businessImpact,
		Name:             fmt.Sprintf("Check connectivity to SPARQL endpoint %s", hs.querier.QueryURL()),
		PanicGuide:       hs.config.PanicGuide,
		Severity:         2,
		TechnicalSummary: `Cannot run an ASK query against the SPARQL endpoint. Check that the triple store is up and the query URL is correct.`,
		Checker:          hs.checkQueryEndpoint,
	}
}

func (hs *HealthService) graphStoreCheck() fthealth.Check {
	return fthealth.Check{
		BusinessImpact:   businessImpact,
		Name:             fmt.Sprintf("Check graph %s can be read from %s", hs.config.HealthGraph, hs.store.DatasetURL()),
		PanicGuide:       hs.config.PanicGuide,
		Severity:         3,
		TechnicalSummary: `The latest read of the health graph from the Graph Store failed. Check the dataset URL and that the graph exists.`,
		Checker:          hs.graphStoreConnectivityCheck,
	}
}

func (hs *HealthService) checkQueryEndpoint() (string, error) {
	if _, err := hs.querier.Ask(connectivityQuery); err != nil {
		hs.log.WithError(err).Error("Error running ASK query against the SPARQL endpoint")
		return "Error connecting to the SPARQL endpoint", err
	}
	return "SPARQL endpoint answered", nil
}

// graphStoreConnectivityCheck always returns the cached result.
func (hs *HealthService) graphStoreConnectivityCheck() (string, error) {
	ok, err := hs.getCheckSuccessCache()
	if !ok {
		msg := "latest Graph Store connectivity check is unsuccessful"
		if err != nil {
			return msg, fmt.Errorf("%s: %w", msg, err)
		}
		return msg, errors.New(msg)
	}
	return "Graph Store answered", nil
}

// GtgCheck is responsible for __gtg endpoint.
func (hs *HealthService) GtgCheck() gtg.StatusChecker {
	var sc []gtg.StatusChecker
	for _, c := range hs.Checks {
		sc = append(sc, gtgCheck(c.Checker))
	}
	return gtg.FailFastParallelCheck(sc)
}

func (hs *HealthService) getCheckSuccessCache() (bool, error) {
	hs.RLock()
	defer hs.RUnlock()
	return hs.checkSuccessCache, hs.checkError
}

func (hs *HealthService) setCheckSuccessCache(err error) {
	hs.Lock()
	defer hs.Unlock()
	hs.checkSuccessCache = err == nil
	hs.checkError = err
}

func gtgCheck(handler func() (string, error)) gtg.StatusChecker {
	return func() gtg.Status {
		if _, err := handler(); err != nil {
			return gtg.Status{GoodToGo: false, Message: err.Error()}
		}
		return gtg.Status{GoodToGo: true}
	}
}
