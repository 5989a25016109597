package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Financial-Times/sparql-client/changeset"
	"github.com/Financial-Times/sparql-client/graph"
	"github.com/Financial-Times/sparql-client/health"
	"github.com/Financial-Times/sparql-client/sparql"
	"github.com/gorilla/mux"
	"github.com/jawher/mow.cli"
	_ "github.com/joho/godotenv/autoload"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
)

const appDescription = "Client for SPARQL endpoints and SPARQL 1.1 Graph Store servers"

func main() {
	app := cli.App("sparql-client", appDescription)

	queryURL := app.String(cli.StringOpt{
		Name:   "query-url",
		Desc:   "URL of the SPARQL query endpoint",
		EnvVar: "SPARQL_QUERY_URL",
	})

	datasetURL := app.String(cli.StringOpt{
		Name:   "dataset-url",
		Desc:   "URL of the Graph Store dataset",
		EnvVar: "SPARQL_DATASET_URL",
	})

	paramStyle := app.Bool(cli.BoolOpt{
		Name:   "param-style",
		Value:  false,
		Desc:   "Address graphs as ?graph=<uri> instead of an escaped path segment",
		EnvVar: "SPARQL_PARAM_STYLE",
	})

	postQueries := app.Bool(cli.BoolOpt{
		Name:   "post-queries",
		Value:  true,
		Desc:   "Send queries as form-encoded POST requests instead of GET",
		EnvVar: "SPARQL_POST_QUERIES",
	})

	retries := app.Int(cli.IntOpt{
		Name:   "retries",
		Value:  0,
		Desc:   "Number of times a failed request is retried",
		EnvVar: "SPARQL_RETRIES",
	})

	timeout := app.String(cli.StringOpt{
		Name:   "timeout",
		Value:  "30s",
		Desc:   "Timeout of a single HTTP request",
		EnvVar: "SPARQL_TIMEOUT",
	})

	dumpMetrics := app.Bool(cli.BoolOpt{
		Name:   "metrics",
		Value:  false,
		Desc:   "Write request metrics to stderr when the command ends",
		EnvVar: "SPARQL_METRICS",
	})

	logLevel := app.String(cli.StringOpt{
		Name:   "logLevel",
		Value:  "info",
		Desc:   "Level of logging to be shown",
		EnvVar: "LOG_LEVEL",
	})

	app.Before = func() {
		lvl, err := log.ParseLevel(*logLevel)
		if err != nil {
			log.Warnf("Log level %s could not be parsed, defaulting to info", *logLevel)
			lvl = log.InfoLevel
		}
		log.SetLevel(lvl)
	}

	newClient := func() *sparql.Client {
		d, err := time.ParseDuration(*timeout)
		if err != nil {
			log.WithError(err).Fatalf("Invalid timeout %s", *timeout)
		}
		httpClient := pester.New()
		httpClient.Jar = sparql.NewHTTPClient().Jar
		httpClient.Timeout = d
		httpClient.MaxRetries = *retries + 1
		httpClient.Backoff = pester.ExponentialBackoff

		session := sparql.NewSession(httpClient, sparql.WithLogger(log.StandardLogger()))
		c, err := sparql.NewClient(session, &sparql.Config{
			QueryURL:    *queryURL,
			DatasetURL:  *datasetURL,
			ParamStyle:  *paramStyle,
			PostQueries: *postQueries,
		})
		if err != nil {
			log.WithError(err).Fatal("Error creating the SPARQL client")
		}
		return c
	}

	run := func(action func() error) {
		err := action()
		if *dumpMetrics {
			metrics.WriteOnce(metrics.DefaultRegistry, os.Stderr)
		}
		if err != nil {
			log.WithError(err).Error("Command failed")
			os.Exit(1)
		}
	}

	app.Command("query", "Run a SPARQL query or update", func(cmd *cli.Cmd) {
		cmd.Spec = "[--output] SPARQL"
		output := cmd.String(cli.StringOpt{Name: "output", Value: sparql.DefaultOutput, Desc: "Value of the output parameter"})
		query := cmd.String(cli.StringArg{Name: "SPARQL", Desc: "Query text, or @file to read it from a file"})
		cmd.Action = func() {
			run(func() error {
				text, err := readQuery(*query)
				if err != nil {
					return err
				}
				result, err := newClient().Query(text, *output)
				if err != nil {
					return err
				}
				return printResult(os.Stdout, result)
			})
		}
	})

	app.Command("get", "Fetch a graph and print it as N-Triples", func(cmd *cli.Cmd) {
		graphURI := cmd.String(cli.StringArg{Name: "GRAPH", Desc: "Graph URI"})
		cmd.Action = func() {
			run(func() error {
				g, err := newClient().Get(*graphURI)
				if err != nil {
					return err
				}
				return g.WriteNTriples(os.Stdout)
			})
		}
	})

	app.Command("put", "Replace a graph with the statements in a file", func(cmd *cli.Cmd) {
		graphURI := cmd.String(cli.StringArg{Name: "GRAPH", Desc: "Graph URI"})
		file := cmd.String(cli.StringArg{Name: "FILE", Desc: "RDF file (.nt, .ttl, .n3, .rdf)"})
		cmd.Action = func() {
			run(func() error {
				g, err := loadGraph(*file)
				if err != nil {
					return err
				}
				return newClient().Put(*graphURI, g)
			})
		}
	})

	app.Command("post", "Merge the statements in a file into a graph, or into a new graph", func(cmd *cli.Cmd) {
		cmd.Spec = "[GRAPH] FILE"
		graphURI := cmd.String(cli.StringArg{Name: "GRAPH", Desc: "Graph URI, omitted to let the store create a graph"})
		file := cmd.String(cli.StringArg{Name: "FILE", Desc: "RDF file (.nt, .ttl, .n3, .rdf)"})
		cmd.Action = func() {
			run(func() error {
				g, err := loadGraph(*file)
				if err != nil {
					return err
				}
				return newClient().Post(*graphURI, g)
			})
		}
	})

	app.Command("delete", "Delete a graph", func(cmd *cli.Cmd) {
		graphURI := cmd.String(cli.StringArg{Name: "GRAPH", Desc: "Graph URI"})
		cmd.Action = func() {
			run(func() error {
				return newClient().Delete(*graphURI)
			})
		}
	})

	app.Command("diff", "Print the changeset turning one RDF file into another", func(cmd *cli.Cmd) {
		cmd.Spec = "[--exclude...] OLD NEW GRAPH"
		exclude := cmd.Strings(cli.StringsOpt{Name: "exclude", Desc: "Predicate URI to leave out of the comparison"})
		oldFile := cmd.String(cli.StringArg{Name: "OLD", Desc: "RDF file with the current statements"})
		newFile := cmd.String(cli.StringArg{Name: "NEW", Desc: "RDF file with the wanted statements"})
		graphURI := cmd.String(cli.StringArg{Name: "GRAPH", Desc: "Graph URI the changeset applies to"})
		cmd.Action = func() {
			run(func() error {
				cs, err := buildChangeset(*oldFile, *newFile, *graphURI, *exclude)
				if err != nil {
					return err
				}
				return cs.WriteRDFXML(os.Stdout)
			})
		}
	})

	app.Command("patch", "Send the changeset turning one RDF file into another to a graph", func(cmd *cli.Cmd) {
		cmd.Spec = "[--exclude...] GRAPH OLD NEW"
		exclude := cmd.Strings(cli.StringsOpt{Name: "exclude", Desc: "Predicate URI to leave out of the comparison"})
		graphURI := cmd.String(cli.StringArg{Name: "GRAPH", Desc: "Graph URI"})
		oldFile := cmd.String(cli.StringArg{Name: "OLD", Desc: "RDF file with the current statements"})
		newFile := cmd.String(cli.StringArg{Name: "NEW", Desc: "RDF file with the wanted statements"})
		cmd.Action = func() {
			run(func() error {
				cs, err := buildChangeset(*oldFile, *newFile, *graphURI, *exclude)
				if err != nil {
					return err
				}
				if cs.Empty() {
					log.WithField("graph", *graphURI).Info("No differences, nothing to patch")
					return nil
				}
				log.WithField("graph", *graphURI).
					WithField("removals", len(cs.Removals())).
					WithField("additions", len(cs.Additions())).
					Info("Patching graph")
				return newClient().Patch(*graphURI, cs)
			})
		}
	})

	app.Command("check", "Run the connectivity checks once", func(cmd *cli.Cmd) {
		healthGraph := cmd.String(cli.StringOpt{Name: "health-graph", Desc: "Graph fetched to check the Graph Store", EnvVar: "HEALTH_GRAPH"})
		cmd.Action = func() {
			run(func() error {
				c := newClient()
				hs, err := health.NewHealthService(c, c, &health.Config{
					AppSystemCode:    "sparql-client",
					AppName:          "sparql-client",
					Description:      appDescription,
					HealthGraph:      *healthGraph,
					SuccessCacheTime: time.Minute,
					Logger:           log.StandardLogger(),
				})
				if err != nil {
					return err
				}
				if *healthGraph != "" {
					hs.UpdateGraphStoreCache()
				}
				failed := 0
				for _, check := range hs.Checks {
					output, err := check.Checker()
					entry := log.WithField("check", check.Name).WithField("output", output)
					if err != nil {
						failed++
						entry.WithError(err).Error("Check failed")
						continue
					}
					entry.Info("Check passed")
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d checks failed", failed, len(hs.Checks))
				}
				return nil
			})
		}
	})

	app.Command("monitor", "Serve health and gtg endpoints for the configured stores", func(cmd *cli.Cmd) {
		appSystemCode := cmd.String(cli.StringOpt{Name: "app-system-code", Value: "sparql-client", Desc: "System Code of the application", EnvVar: "APP_SYSTEM_CODE"})
		appName := cmd.String(cli.StringOpt{Name: "app-name", Value: "SPARQL Client", Desc: "Application name", EnvVar: "APP_NAME"})
		port := cmd.String(cli.StringOpt{Name: "port", Value: "8080", Desc: "Port to listen on", EnvVar: "APP_PORT"})
		healthGraph := cmd.String(cli.StringOpt{Name: "health-graph", Desc: "Graph fetched to check the Graph Store", EnvVar: "HEALTH_GRAPH"})
		cacheTime := cmd.String(cli.StringOpt{Name: "cache-time", Value: "1m", Desc: "How often the Graph Store check is refreshed", EnvVar: "HEALTH_CACHE_TIME"})
		cmd.Action = func() {
			successCacheTime, err := time.ParseDuration(*cacheTime)
			if err != nil {
				log.WithError(err).Fatalf("Invalid cache time %s", *cacheTime)
			}
			c := newClient()
			hs, err := health.NewHealthService(c, c, &health.Config{
				AppSystemCode:    *appSystemCode,
				AppName:          *appName,
				Description:      appDescription,
				HealthGraph:      *healthGraph,
				SuccessCacheTime: successCacheTime,
				Logger:           log.StandardLogger(),
			})
			if err != nil {
				log.WithError(err).Fatal("Error creating the health service")
			}
			stop := make(chan struct{})
			hs.Start(stop)

			router := mux.NewRouter()
			handler := hs.RegisterAdminEndpoints(router)
			log.Infof("System code: %s, App Name: %s, Port: %s", *appSystemCode, *appName, *port)
			go func() {
				if err := http.ListenAndServe(":"+*port, handler); err != nil {
					log.Fatalf("Unable to start: %v", err)
				}
			}()

			waitForSignal()
			close(stop)
		}
	})

	if err := app.Run(os.Args); err != nil {
		log.Errorf("App could not start, error=[%s]\n", err)
		return
	}
}

func readQuery(arg string) (string, error) {
	if len(arg) > 1 && arg[0] == '@' {
		data, err := ioutil.ReadFile(arg[1:])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return arg, nil
}

func loadGraph(path string) (*graph.Graph, error) {
	format, ok := graph.FormatForPath(path)
	if !ok {
		return nil, fmt.Errorf("cannot tell the RDF format of %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return graph.Parse(f, format, nil)
}

func buildChangeset(oldFile, newFile, graphURI string, exclude []string) (*changeset.Changeset, error) {
	a, err := loadGraph(oldFile)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", oldFile)
	}
	b, err := loadGraph(newFile)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", newFile)
	}
	return changeset.BuildExcluding(a, b, graphURI, exclude...), nil
}

func printResult(w io.Writer, result *sparql.Result) error {
	switch result.Kind {
	case sparql.GraphResult:
		return result.Graph.WriteNTriples(w)
	case sparql.JSONResult:
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(result.JSON, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case sparql.XMLResult:
		result.XML.Indent(2)
		_, err := result.XML.WriteTo(w)
		return err
	}
	_, err := fmt.Fprintln(w, "OK")
	return err
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
