// Package resolver turns a free-text query into the Wikipedia article that
// best represents a New York City place, institution or event.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/nycpedia/internal/wiki"
)

var (
	// ErrNotConfigured means a required collaborator is missing.
	ErrNotConfigured = errors.New("resolver collaborators are not configured")
	// ErrEmptyQuery is returned for queries shorter than MinQueryRunes.
	ErrEmptyQuery = errors.New("type at least 2 letters")
	// ErrSuperseded is returned by Session.Resolve when a newer call replaced this one.
	ErrSuperseded = fmt.Errorf("resolution superseded: %w", context.Canceled)
)

// ArticleSource is the Wikipedia side of the resolver.
type ArticleSource interface {
	Summary(ctx context.Context, lang, title string) (*wiki.ArticleSummary, error)
	Categories(ctx context.Context, lang, title string) ([]string, error)
	Search(ctx context.Context, lang, query string, limit int) ([]string, error)
	QuickGuess(ctx context.Context, lang, query string) (string, error)
}

// KnowledgeGraph is the Wikidata side of the resolver.
type KnowledgeGraph interface {
	Entity(ctx context.Context, id string) (*wiki.Entity, error)
	SearchByLabel(ctx context.Context, text, lang string, limit int) ([]string, error)
	Query(ctx context.Context, sparql string) ([]map[string]string, error)
}

// Observer receives resolution and cache events. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveResolution(outcome, phase string, elapsed time.Duration)
	ObservePhase(phase string, candidates int, elapsed time.Duration)
	ObserveCache(table string, hit bool)
}

const (
	PhaseFast = "fast"
	PhaseDeep = "deep"
)

const (
	DefaultFastTimeout   = 1200 * time.Millisecond
	DefaultDeepTimeout   = 2500 * time.Millisecond
	DefaultPersonTimeout = 1200 * time.Millisecond
	DefaultEventTimeout  = 2 * time.Second
	DefaultCandidateCap  = 24
)

// Options configures a Resolver. Zero durations and caps fall back to defaults.
type Options struct {
	FastTimeout   time.Duration
	DeepTimeout   time.Duration
	PersonTimeout time.Duration
	EventTimeout  time.Duration
	CandidateCap  int

	Cache    *Cache
	Logger   *zerolog.Logger
	Observer Observer
}

// Resolver runs the two-phase candidate search. It is safe for concurrent use;
// all per-call state lives on the stack of Resolve.
type Resolver struct {
	articles ArticleSource
	graph    KnowledgeGraph
	cache    *Cache
	logger   zerolog.Logger
	observer Observer

	fastTimeout   time.Duration
	deepTimeout   time.Duration
	personTimeout time.Duration
	eventTimeout  time.Duration
	candidateCap  int
}

func New(articles ArticleSource, graph KnowledgeGraph, opts Options) *Resolver {
	r := &Resolver{
		articles:      articles,
		graph:         graph,
		cache:         opts.Cache,
		observer:      opts.Observer,
		fastTimeout:   positiveOr(opts.FastTimeout, DefaultFastTimeout),
		deepTimeout:   positiveOr(opts.DeepTimeout, DefaultDeepTimeout),
		personTimeout: positiveOr(opts.PersonTimeout, DefaultPersonTimeout),
		eventTimeout:  positiveOr(opts.EventTimeout, DefaultEventTimeout),
		candidateCap:  opts.CandidateCap,
	}
	if r.candidateCap <= 0 {
		r.candidateCap = DefaultCandidateCap
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if opts.Logger != nil {
		r.logger = opts.Logger.With().Str("component", "resolver").Logger()
	} else {
		r.logger = zerolog.Nop()
	}
	if r.observer != nil {
		r.cache.setObserver(r.observer.ObserveCache)
	}
	return r
}

// Cache exposes the memo tables, mostly for stats.
func (r *Resolver) Cache() *Cache {
	if r == nil {
		return nil
	}
	return r.cache
}

// Match is the outcome of one resolution. A nil Summary means no match.
type Match struct {
	Query       string               `json:"query"`
	Summary     *wiki.ArticleSummary `json:"summary"`
	Language    string               `json:"language,omitempty"`
	Score       int                  `json:"score"`
	Phase       string               `json:"phase,omitempty"`
	Origin      wiki.Origin          `json:"origin,omitempty"`
	Suggestions []string             `json:"suggestions,omitempty"`
}

// Found reports whether the match carries an article.
func (m *Match) Found() bool {
	return m != nil && m.Summary != nil
}

// scored is one evaluated candidate.
type scored struct {
	candidate wiki.Candidate
	summary   *wiki.ArticleSummary
	score     int
	phase     string
}

// better reports whether next replaces best. Ties keep the earlier candidate.
func better(next, best scored) bool {
	return next.score > best.score
}

// Resolve returns the best match for query, or a Match without Summary when
// nothing clears the acceptance threshold. The only errors are configuration,
// query validation and cancellation of ctx.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Match, error) {
	if r == nil || r.articles == nil || r.graph == nil || r.cache == nil {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryRunes {
		return nil, ErrEmptyQuery
	}

	started := time.Now()
	logger := r.logger.With().Str("query", query).Logger()
	best := scored{score: scoreMissing}
	seen := make(map[string]struct{})

	phaseStarted := time.Now()
	fast := r.fastCandidates(ctx, query)
	best = r.fold(ctx, fast, best, seen, fastEarlyExit, PhaseFast)
	r.observePhase(PhaseFast, len(fast), time.Since(phaseStarted))
	if err := ctx.Err(); err != nil {
		r.observeResolution("canceled", PhaseFast, started)
		return nil, err
	}
	logger.Debug().Int("candidates", len(fast)).Int("best_score", best.score).Msg("fast phase finished")

	if best.score >= fastAccept {
		r.observeResolution("match", PhaseFast, started)
		return r.matchFrom(query, best), nil
	}

	phaseStarted = time.Now()
	deep := r.deepCandidates(ctx, query)
	best = r.fold(ctx, deep, best, seen, deepEarlyExit, PhaseDeep)
	r.observePhase(PhaseDeep, len(deep), time.Since(phaseStarted))
	if err := ctx.Err(); err != nil {
		r.observeResolution("canceled", PhaseDeep, started)
		return nil, err
	}
	logger.Debug().Int("candidates", len(deep)).Int("best_score", best.score).Msg("deep phase finished")

	if best.summary == nil || best.score < minAccept {
		r.observeResolution("no_match", PhaseDeep, started)
		return &Match{Query: query, Score: best.score, Suggestions: append([]string(nil), Suggestions...)}, nil
	}
	r.observeResolution("match", best.phase, started)
	return r.matchFrom(query, best), nil
}

func (r *Resolver) matchFrom(query string, best scored) *Match {
	return &Match{
		Query:    query,
		Summary:  best.summary,
		Language: best.candidate.Language,
		Score:    best.score,
		Phase:    best.phase,
		Origin:   best.candidate.Origin,
	}
}

// fold scores candidates in order and keeps the best one, stopping once the
// best score reaches earlyExit. Candidates already in seen are skipped.
func (r *Resolver) fold(ctx context.Context, candidates []wiki.Candidate, best scored, seen map[string]struct{}, earlyExit int, phase string) scored {
	for _, cand := range candidates {
		if ctx.Err() != nil || best.score >= earlyExit {
			break
		}
		key := cand.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		next := r.evaluate(ctx, cand, earlyExit)
		next.phase = phase
		if better(next, best) {
			best = next
		}
	}
	return best
}

// evaluate fetches the candidate summary and scores it in places mode, then in
// facts mode when places alone does not reach earlyExit.
func (r *Resolver) evaluate(ctx context.Context, cand wiki.Candidate, earlyExit int) scored {
	out := scored{candidate: cand, score: scoreMissing}
	summary, err := r.summary(ctx, cand.Language, cand.Title)
	if err != nil {
		r.logger.Debug().Err(err).Str("language", cand.Language).Str("title", cand.Title).Msg("summary lookup failed")
		return out
	}
	if summary == nil {
		return out
	}
	out.summary = summary

	total := r.Score(ctx, summary, cand.Language, ModePlaces)
	if total <= scoreDisambiguation {
		out.score = total
		return out
	}
	if total < earlyExit {
		if facts := r.Score(ctx, summary, cand.Language, ModeFacts); facts > total {
			total = facts
		}
	}
	if cand.Origin == wiki.OriginGraphEvent {
		total += bonusGraphEvent
	}
	out.score = total
	return out
}

func (r *Resolver) summary(ctx context.Context, lang, title string) (*wiki.ArticleSummary, error) {
	return r.cache.summaries.do(ctx, wiki.ArticleKey(lang, title), func(ctx context.Context) (*wiki.ArticleSummary, error) {
		return r.articles.Summary(ctx, lang, title)
	})
}

func (r *Resolver) observePhase(phase string, candidates int, elapsed time.Duration) {
	if r.observer != nil {
		r.observer.ObservePhase(phase, candidates, elapsed)
	}
}

func (r *Resolver) observeResolution(outcome, phase string, started time.Time) {
	if r.observer != nil {
		r.observer.ObserveResolution(outcome, phase, time.Since(started))
	}
}

func positiveOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
