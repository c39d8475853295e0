package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	UserAgent    string `envconfig:"NYCPEDIA_USER_AGENT" default:"nycpedia/1.0 (+https://horse.fit/nycpedia)"`
	WikipediaURL string `envconfig:"NYCPEDIA_WIKIPEDIA_URL" default:"https://{lang}.wikipedia.org"`
	WikidataURL  string `envconfig:"NYCPEDIA_WIKIDATA_URL" default:"https://www.wikidata.org"`
	SPARQLURL    string `envconfig:"NYCPEDIA_SPARQL_URL" default:"https://query.wikidata.org/sparql"`

	HTTPTimeout       time.Duration `envconfig:"NYCPEDIA_HTTP_TIMEOUT" default:"10s"`
	RequestsPerSecond float64       `envconfig:"NYCPEDIA_REQUESTS_PER_SECOND" default:"20"`
	RequestBurst      int           `envconfig:"NYCPEDIA_REQUEST_BURST" default:"40"`

	FastTimeout   time.Duration `envconfig:"NYCPEDIA_FAST_TIMEOUT" default:"1200ms"`
	DeepTimeout   time.Duration `envconfig:"NYCPEDIA_DEEP_TIMEOUT" default:"2500ms"`
	PersonTimeout time.Duration `envconfig:"NYCPEDIA_PERSON_TIMEOUT" default:"1200ms"`
	EventTimeout  time.Duration `envconfig:"NYCPEDIA_EVENT_TIMEOUT" default:"2s"`
	CandidateCap  int           `envconfig:"NYCPEDIA_CANDIDATE_CAP" default:"24"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserAgent) == "" {
		return fmt.Errorf("NYCPEDIA_USER_AGENT is required")
	}
	if !strings.Contains(c.WikipediaURL, "{lang}") {
		return fmt.Errorf("NYCPEDIA_WIKIPEDIA_URL must contain the {lang} placeholder")
	}
	for name, raw := range map[string]string{
		"NYCPEDIA_WIKIPEDIA_URL": strings.ReplaceAll(c.WikipediaURL, "{lang}", "en"),
		"NYCPEDIA_WIKIDATA_URL":  c.WikidataURL,
		"NYCPEDIA_SPARQL_URL":    c.SPARQLURL,
	} {
		if err := validateHTTPURL(name, raw); err != nil {
			return err
		}
	}

	for name, d := range map[string]time.Duration{
		"NYCPEDIA_HTTP_TIMEOUT":   c.HTTPTimeout,
		"NYCPEDIA_FAST_TIMEOUT":   c.FastTimeout,
		"NYCPEDIA_DEEP_TIMEOUT":   c.DeepTimeout,
		"NYCPEDIA_PERSON_TIMEOUT": c.PersonTimeout,
		"NYCPEDIA_EVENT_TIMEOUT":  c.EventTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("NYCPEDIA_REQUESTS_PER_SECOND must be >= 0")
	}
	if c.RequestBurst < 1 {
		return fmt.Errorf("NYCPEDIA_REQUEST_BURST must be >= 1")
	}
	if c.CandidateCap < 1 {
		return fmt.Errorf("NYCPEDIA_CANDIDATE_CAP must be >= 1")
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
