package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/nycpedia/internal/render"
	"horse.fit/nycpedia/internal/resolver"
	"horse.fit/nycpedia/internal/wiki"
)

type resolveCall struct {
	session string
	query   string
}

type fakeResolver struct {
	mu      sync.Mutex
	calls   []resolveCall
	resolve func(session, query string) (*resolver.Match, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, session, query string, settle resolver.SettleFunc) (*resolver.Match, error) {
	f.mu.Lock()
	f.calls = append(f.calls, resolveCall{session: session, query: query})
	f.mu.Unlock()
	match, err := f.resolve(session, query)
	if err != nil || settle == nil || !match.Found() {
		return match, err
	}
	if err := settle(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

type fakeRenderer struct {
	article *render.Article
	err     error
	calls   int
}

func (f *fakeRenderer) Render(_ context.Context, lang string, summary *wiki.ArticleSummary) (*render.Article, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	article := *f.article
	article.Language = lang
	article.Title = summary.Title
	return &article, nil
}

func metMatch(_, query string) (*resolver.Match, error) {
	return &resolver.Match{
		Query:    query,
		Language: "en",
		Score:    13,
		Phase:    resolver.PhaseFast,
		Origin:   wiki.OriginDirectSearch,
		Summary: &wiki.ArticleSummary{
			Title:    "Metropolitan Museum of Art",
			Language: "en",
		},
	}, nil
}

func newTestServer(res *fakeResolver, renderer Renderer) *Server {
	return NewServer(res, renderer, nil, zerolog.Nop(), Options{})
}

func serve(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(&fakeResolver{}, nil), http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeEnvelope(t, rec)
	data, _ := payload["data"].(map[string]any)
	if payload["status"] != "success" || data["service"] != "nycpedia" {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}

func TestResolveQueryReturnsMatch(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{resolve: metMatch}
	rec := serve(t, newTestServer(res, nil), http.MethodGet, "/api/v1/resolve?q=+met+&session=tab-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(res.calls) != 1 || res.calls[0] != (resolveCall{session: "tab-1", query: "met"}) {
		t.Fatalf("unexpected resolver calls: %+v", res.calls)
	}

	payload := decodeEnvelope(t, rec)
	data, _ := payload["data"].(map[string]any)
	match, _ := data["match"].(map[string]any)
	summary, _ := match["summary"].(map[string]any)
	if summary["title"] != "Metropolitan Museum of Art" {
		t.Fatalf("unexpected match payload: %v", data)
	}
	if _, hasArticle := data["article"]; hasArticle {
		t.Fatalf("article must be omitted unless render=true")
	}
}

func TestResolveQueryRendersArticle(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{article: &render.Article{Text: "The Met is an art museum."}}
	rec := serve(t, newTestServer(&fakeResolver{resolve: metMatch}, renderer), http.MethodGet, "/api/v1/resolve?q=met&render=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if renderer.calls != 1 {
		t.Fatalf("expected one render call, got %d", renderer.calls)
	}
	data, _ := decodeEnvelope(t, rec)["data"].(map[string]any)
	article, _ := data["article"].(map[string]any)
	if article["text"] != "The Met is an art museum." || article["language"] != "en" {
		t.Fatalf("unexpected article payload: %v", article)
	}
}

func TestResolveQueryValidation(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{resolve: metMatch}
	s := newTestServer(res, nil)

	cases := map[string]string{
		"/api/v1/resolve?q=m":                    "q",
		"/api/v1/resolve?q=met&render=maybe":     "render",
		"/api/v1/resolve?q=met&session=bad%20id": "request",
	}
	for target, field := range cases {
		rec := serve(t, s, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
		data, _ := decodeEnvelope(t, rec)["data"].(map[string]any)
		fields, _ := data["validation_errors"].(map[string]any)
		if _, ok := fields[field]; !ok {
			t.Fatalf("%s: expected validation error for %q, got %v", target, field, fields)
		}
	}
	if len(res.calls) != 0 {
		t.Fatalf("invalid requests must not reach the resolver, got %d calls", len(res.calls))
	}

	rec := serve(t, s, http.MethodGet, "/api/v1/resolve?q=m", "")
	data, _ := decodeEnvelope(t, rec)["data"].(map[string]any)
	fields, _ := data["validation_errors"].(map[string]any)
	if fields["q"] != "type at least 2 letters" {
		t.Fatalf("unexpected hint: %v", fields["q"])
	}
}

func TestResolveNoMatchCarriesSuggestions(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{resolve: func(_, query string) (*resolver.Match, error) {
		return &resolver.Match{Query: query, Score: 2, Suggestions: resolver.Suggestions}, nil
	}}
	rec := serve(t, newTestServer(res, nil), http.MethodGet, "/api/v1/resolve?q=zzzz", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	payload := decodeEnvelope(t, rec)
	data, _ := payload["data"].(map[string]any)
	suggestions, _ := data["suggestions"].([]any)
	if payload["status"] != "fail" || len(suggestions) != len(resolver.Suggestions) {
		t.Fatalf("unexpected no-match payload: %v", payload)
	}
}

func TestResolveErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{err: resolver.ErrSuperseded, want: http.StatusNoContent},
		{err: context.Canceled, want: http.StatusNoContent},
		{err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{err: resolver.ErrNotConfigured, want: http.StatusInternalServerError},
		{err: resolver.ErrEmptyQuery, want: http.StatusBadRequest},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		res := &fakeResolver{resolve: func(_, _ string) (*resolver.Match, error) { return nil, tc.err }}
		rec := serve(t, newTestServer(res, nil), http.MethodGet, "/api/v1/resolve?q=met", "")
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
		if tc.want == http.StatusNoContent && rec.Body.Len() != 0 {
			t.Fatalf("%v: expected an empty body, got %q", tc.err, rec.Body.String())
		}
	}
}

func TestResolveBody(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{resolve: metMatch}
	s := newTestServer(res, &fakeRenderer{article: &render.Article{}})

	rec := serve(t, s, http.MethodPost, "/api/v1/resolve", `{"query":"met","session":"tab-2","render":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(res.calls) != 1 || res.calls[0].session != "tab-2" {
		t.Fatalf("unexpected resolver calls: %+v", res.calls)
	}

	for _, body := range []string{`{"query":"met","extra":1}`, `{"session":"x"}`, `not json`} {
		rec := serve(t, s, http.MethodPost, "/api/v1/resolve", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestPreviewTruncatesText(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{article: &render.Article{
		PageURL: "https://en.wikipedia.org/wiki/Metropolitan_Museum_of_Art",
		Text:    strings.Repeat("a", 450),
	}}
	rec := serve(t, newTestServer(&fakeResolver{resolve: metMatch}, renderer), http.MethodGet, "/api/v1/preview?q=met&max_chars=200", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data, _ := decodeEnvelope(t, rec)["data"].(map[string]any)
	if data["truncated"] != true || data["char_count"] != float64(200) {
		t.Fatalf("unexpected preview payload: %v", data)
	}
	if data["title"] != "Metropolitan Museum of Art" {
		t.Fatalf("unexpected title: %v", data["title"])
	}

	rec = serve(t, newTestServer(&fakeResolver{resolve: metMatch}, renderer), http.MethodGet, "/api/v1/preview?q=met&max_chars=5", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range max_chars, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "nycpedia_up 1\n")
	})
	s := NewServer(&fakeResolver{}, nil, metrics, zerolog.Nop(), Options{})
	rec := serve(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "nycpedia_up 1") {
		t.Fatalf("unexpected metrics response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestUnknownAPIRouteIsJSend(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(&fakeResolver{}, nil), http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if decodeEnvelope(t, rec)["status"] != "fail" {
		t.Fatalf("expected jsend fail envelope, got %s", rec.Body.String())
	}
}
