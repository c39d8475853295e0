package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"horse.fit/nycpedia/internal/reader"
	"horse.fit/nycpedia/internal/render"
	"horse.fit/nycpedia/internal/resolver"
	payloadschema "horse.fit/nycpedia/internal/schema"
)

const (
	maxRequestBodyBytes = 64 * 1024

	defaultPreviewMaxChars = 1000
	minPreviewMaxChars     = 200
	maxPreviewMaxChars     = 4000
)

type resolveResponse struct {
	Match   *resolver.Match `json:"match"`
	Article *render.Article `json:"article,omitempty"`
}

type noMatchData struct {
	Query       string   `json:"query"`
	Score       int      `json:"score"`
	Suggestions []string `json:"suggestions"`
}

type articlePreview struct {
	Query       string `json:"query"`
	Title       string `json:"title"`
	Language    string `json:"language"`
	PageURL     string `json:"page_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	PreviewText string `json:"preview_text"`
	CharCount   int    `json:"char_count"`
	Truncated   bool   `json:"truncated"`
}

func (s *Server) handleResolveQuery(c echo.Context) error {
	withArticle, err := parseBool(c.QueryParam("render"))
	if err != nil {
		return failValidation(c, map[string]string{"render": err.Error()})
	}
	req, fieldErrors := requestFromQuery(c.QueryParam("q"), c.QueryParam("session"), withArticle)
	if fieldErrors != nil {
		return failValidation(c, fieldErrors)
	}
	return s.resolve(c, req)
}

func (s *Server) handleResolveBody(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRequestBodyBytes+1))
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}
	if len(body) > maxRequestBodyBytes {
		return fail(c, http.StatusRequestEntityTooLarge, "Request body too large", nil)
	}

	req, err := payloadschema.ValidateResolveRequest(body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	return s.resolve(c, req)
}

func (s *Server) handlePreview(c echo.Context) error {
	maxChars, err := parsePositiveInt(
		c.QueryParam("max_chars"),
		defaultPreviewMaxChars,
		minPreviewMaxChars,
		maxPreviewMaxChars,
	)
	if err != nil {
		return failValidation(c, map[string]string{"max_chars": err.Error()})
	}
	req, fieldErrors := requestFromQuery(c.QueryParam("q"), c.QueryParam("session"), true)
	if fieldErrors != nil {
		return failValidation(c, fieldErrors)
	}
	if s.renderer == nil {
		return internalError(c, "Article rendering is not configured")
	}

	var article *render.Article
	match, err := s.resolver.Resolve(c.Request().Context(), req.Session, req.Query, s.renderInto(&article))
	if err != nil {
		return s.resolveError(c, req, err)
	}
	if !match.Found() {
		return noMatch(c, match)
	}

	text, truncated := reader.TruncateText(article.Text, maxChars)
	return success(c, articlePreview{
		Query:       match.Query,
		Title:       article.Title,
		Language:    article.Language,
		PageURL:     article.PageURL,
		ImageURL:    article.ImageURL,
		PreviewText: text,
		CharCount:   utf8.RuneCountInString(text),
		Truncated:   truncated,
	})
}

func (s *Server) resolve(c echo.Context, req *payloadschema.ResolveRequest) error {
	var article *render.Article
	var settle resolver.SettleFunc
	if req.Render && s.renderer != nil {
		settle = s.renderInto(&article)
	}

	match, err := s.resolver.Resolve(c.Request().Context(), req.Session, req.Query, settle)
	if err != nil {
		return s.resolveError(c, req, err)
	}
	if !match.Found() {
		return noMatch(c, match)
	}
	return success(c, resolveResponse{Match: match, Article: article})
}

// renderInto renders the match inside the resolution call, so a superseded
// call stops rendering and never answers with its article.
func (s *Server) renderInto(dst **render.Article) resolver.SettleFunc {
	return func(ctx context.Context, match *resolver.Match) error {
		article, err := s.renderer.Render(ctx, match.Language, match.Summary)
		if err != nil {
			return err
		}
		*dst = article
		return nil
	}
}

// resolveError maps resolution failures to responses. A superseded or
// abandoned call gets an empty 204 so clients can drop it silently.
func (s *Server) resolveError(c echo.Context, req *payloadschema.ResolveRequest, err error) error {
	switch {
	case errors.Is(err, resolver.ErrEmptyQuery):
		return failValidation(c, map[string]string{"query": err.Error()})
	case errors.Is(err, context.Canceled):
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, context.DeadlineExceeded):
		return errorWithStatus(c, http.StatusGatewayTimeout, "Resolution timed out")
	case errors.Is(err, resolver.ErrNotConfigured):
		s.logger.Error().Err(err).Msg("resolver is not configured")
		return internalError(c, "Resolver is not configured")
	default:
		s.logger.Error().Err(err).Str("query", req.Query).Msg("resolve query failed")
		return internalError(c, "Failed to resolve query")
	}
}

func noMatch(c echo.Context, match *resolver.Match) error {
	suggestions := match.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return failNotFound(c, "No New York City article matched the query", noMatchData{
		Query:       match.Query,
		Score:       match.Score,
		Suggestions: suggestions,
	})
}

// requestFromQuery runs query-string input through the same schema as
// POST bodies.
func requestFromQuery(query, session string, withArticle bool) (*payloadschema.ResolveRequest, map[string]string) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < resolver.MinQueryRunes {
		return nil, map[string]string{"q": resolver.ErrEmptyQuery.Error()}
	}

	payload, err := json.Marshal(payloadschema.ResolveRequest{
		Query:   query,
		Session: strings.TrimSpace(session),
		Render:  withArticle,
	})
	if err != nil {
		return nil, map[string]string{"q": err.Error()}
	}
	req, err := payloadschema.ValidateResolveRequest(payload)
	if err != nil {
		return nil, map[string]string{"request": err.Error()}
	}
	return req, nil
}
