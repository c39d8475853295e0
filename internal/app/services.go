package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"horse.fit/nycpedia/internal/cli"
	"horse.fit/nycpedia/internal/config"
	"horse.fit/nycpedia/internal/httpx"
	"horse.fit/nycpedia/internal/logging"
	"horse.fit/nycpedia/internal/metrics"
	"horse.fit/nycpedia/internal/render"
	"horse.fit/nycpedia/internal/resolver"
	"horse.fit/nycpedia/internal/wikidata"
	"horse.fit/nycpedia/internal/wikipedia"
)

// services is the wired object graph shared by every command.
type services struct {
	cfg       *config.Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	wikipedia *wikipedia.Client
	wikidata  *wikidata.Client
	resolver  *resolver.Resolver
	sessions  *resolver.Sessions
	renderer  *render.Renderer
}

func loadServices(envLoader *cli.EnvLoader) (*services, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return newServices(cfg, logger), nil
}

func newServices(cfg *config.Config, logger zerolog.Logger) *services {
	m := metrics.NewMetrics(nil)

	upstream := func(name string) *httpx.Client {
		return httpx.New(httpx.Options{
			Name:              name,
			UserAgent:         cfg.UserAgent,
			Timeout:           cfg.HTTPTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.RequestBurst,
			Observe:           m.ObserveUpstream,
		})
	}

	wp := wikipedia.NewClient(cfg.WikipediaURL, upstream("wikipedia"))
	wd := wikidata.NewClient(cfg.WikidataURL, cfg.SPARQLURL, upstream("wikidata"), upstream("sparql"))

	res := resolver.New(wp, wd, resolver.Options{
		FastTimeout:   cfg.FastTimeout,
		DeepTimeout:   cfg.DeepTimeout,
		PersonTimeout: cfg.PersonTimeout,
		EventTimeout:  cfg.EventTimeout,
		CandidateCap:  cfg.CandidateCap,
		Logger:        &logger,
		Observer:      m,
	})

	return &services{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		wikipedia: wp,
		wikidata:  wd,
		resolver:  res,
		sessions:  resolver.NewSessions(res),
		renderer:  render.NewRenderer(wp, res, &logger),
	}
}
