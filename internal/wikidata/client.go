// Package wikidata reads entities, label search hits and SPARQL results from Wikidata.
package wikidata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"horse.fit/nycpedia/internal/httpx"
	"horse.fit/nycpedia/internal/language"
	"horse.fit/nycpedia/internal/wiki"
)

const (
	DefaultBaseURL   = "https://www.wikidata.org"
	DefaultSPARQLURL = "https://query.wikidata.org/sparql"

	sparqlAccept = "application/sparql-results+json"
)

// Client reads the Wikidata entity API and the query service.
type Client struct {
	baseURL   string
	sparqlURL string
	http      *httpx.Client
	sparql    *httpx.Client
}

// NewClient builds a client. sparqlHTTP may be nil to share httpClient for both endpoints.
func NewClient(baseURL, sparqlURL string, httpClient, sparqlHTTP *httpx.Client) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	query := strings.TrimSpace(sparqlURL)
	if query == "" {
		query = DefaultSPARQLURL
	}
	if httpClient == nil {
		httpClient = httpx.New(httpx.Options{Name: "wikidata"})
	}
	if sparqlHTTP == nil {
		sparqlHTTP = httpClient
	}
	return &Client{baseURL: base, sparqlURL: query, http: httpClient, sparql: sparqlHTTP}
}

type rawEntity struct {
	ID     string `json:"id"`
	Labels map[string]struct {
		Value string `json:"value"`
	} `json:"labels"`
	Claims map[string][]struct {
		Mainsnak struct {
			Snaktype  string `json:"snaktype"`
			Datavalue struct {
				Type  string          `json:"type"`
				Value json.RawMessage `json:"value"`
			} `json:"datavalue"`
		} `json:"mainsnak"`
	} `json:"claims"`
}

// Entity returns the flattened entity, or (nil, nil) when the id does not exist.
func (c *Client) Entity(ctx context.Context, id string) (*wiki.Entity, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !validEntityID(id) {
		return nil, fmt.Errorf("invalid entity id %q", id)
	}

	endpoint := c.baseURL + "/wiki/Special:EntityData/" + url.PathEscape(id) + ".json"
	var raw struct {
		Entities map[string]rawEntity `json:"entities"`
	}
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch entity %s: %w", id, err)
	}

	entry, ok := raw.Entities[id]
	if !ok {
		// Redirected ids come back keyed by the target.
		for _, candidate := range raw.Entities {
			entry = candidate
			ok = true
			break
		}
	}
	if !ok {
		return nil, nil
	}
	return flatten(entry), nil
}

func flatten(raw rawEntity) *wiki.Entity {
	entity := &wiki.Entity{
		ID:      raw.ID,
		Labels:  make(map[string]string, len(raw.Labels)),
		Claims:  make(map[string][]string),
		Strings: make(map[string][]string),
	}
	for lang, label := range raw.Labels {
		entity.Labels[lang] = label.Value
	}
	for prop, statements := range raw.Claims {
		for _, st := range statements {
			if st.Mainsnak.Snaktype != "" && st.Mainsnak.Snaktype != "value" {
				continue
			}
			dv := st.Mainsnak.Datavalue
			switch dv.Type {
			case "wikibase-entityid":
				var ref struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal(dv.Value, &ref); err == nil && ref.ID != "" {
					entity.Claims[prop] = append(entity.Claims[prop], ref.ID)
				}
			case "string":
				var s string
				if err := json.Unmarshal(dv.Value, &s); err == nil && s != "" {
					entity.Strings[prop] = append(entity.Strings[prop], s)
				}
			}
		}
	}
	return entity
}

// SearchByLabel returns entity ids whose label or alias matches text in lang.
func (c *Client) SearchByLabel(ctx context.Context, text, lang string, limit int) ([]string, error) {
	code := language.NormalizeCode(lang)
	if code == "" {
		return nil, fmt.Errorf("invalid language %q", lang)
	}
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{
		"action":   {"wbsearchentities"},
		"search":   {text},
		"language": {code},
		"uselang":  {code},
		"type":     {"item"},
		"limit":    {strconv.Itoa(limit)},
		"format":   {"json"},
	}
	var raw struct {
		Search []struct {
			ID string `json:"id"`
		} `json:"search"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/w/api.php?"+params.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("search entities %s %q: %w", code, text, err)
	}
	ids := make([]string, 0, len(raw.Search))
	for _, hit := range raw.Search {
		if hit.ID != "" {
			ids = append(ids, hit.ID)
		}
	}
	return ids, nil
}

// Query runs a SPARQL SELECT and returns each binding row as variable -> value.
func (c *Client) Query(ctx context.Context, sparql string) ([]map[string]string, error) {
	params := url.Values{"query": {sparql}, "format": {"json"}}
	body, err := c.sparql.Get(ctx, c.sparqlURL+"?"+params.Encode(), sparqlAccept)
	if err != nil {
		return nil, fmt.Errorf("sparql query: %w", err)
	}

	var raw struct {
		Results struct {
			Bindings []map[string]struct {
				Value string `json:"value"`
			} `json:"bindings"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode sparql results: %w", err)
	}

	rows := make([]map[string]string, 0, len(raw.Results.Bindings))
	for _, binding := range raw.Results.Bindings {
		row := make(map[string]string, len(binding))
		for name, cell := range binding {
			row[name] = cell.Value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Ping checks that the entity API answers.
func (c *Client) Ping(ctx context.Context) error {
	var raw map[string]any
	return c.http.GetJSON(ctx, c.baseURL+"/w/api.php?action=query&meta=siteinfo&format=json", &raw)
}

// EntityIDFromURI extracts "Q42" from "http://www.wikidata.org/entity/Q42".
func EntityIDFromURI(uri string) string {
	trimmed := strings.TrimSpace(uri)
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if !validEntityID(trimmed) {
		return ""
	}
	return trimmed
}

func validEntityID(id string) bool {
	if len(id) < 2 || (id[0] != 'Q' && id[0] != 'P') {
		return false
	}
	for _, r := range id[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
