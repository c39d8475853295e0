package resolver

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"horse.fit/nycpedia/internal/language"
	"horse.fit/nycpedia/internal/wiki"
)

const searchLimit = 10

// Mandatory disjunction appended to constrained searches.
const cityClause = `("New York" OR NYC OR Manhattan OR Brooklyn OR Queens OR Bronx OR "Staten Island")`

var cityCategory = map[string]string{
	language.English: "New_York_City",
	language.Spanish: "Nueva_York",
}

var thematicSearchCategories = map[string][]string{
	language.English: {
		"History_of_New_York_City",
		"Culture_of_New_York_City",
		"Events_in_New_York_City",
		"Festivals_in_New_York_City",
	},
	language.Spanish: {
		"Historia_de_Nueva_York",
		"Cultura_de_Nueva_York",
		"Eventos_en_Nueva_York",
		"Festivales_de_Nueva_York",
	},
}

var guessSuffixes = map[string][]string{
	language.English: {"", " New York", " (New York)"},
	language.Spanish: {"", " Nueva York", " (Nueva York)"},
}

type plannedSearch struct {
	lang   string
	text   string
	origin wiki.Origin
}

// errIncomplete marks a candidate list cut short by a stage timeout or a
// failed search. The list is usable for the current call but is not cached.
var errIncomplete = errors.New("candidate list incomplete")

// fastCandidates returns the bounded, deduplicated fast-path candidate list.
func (r *Resolver) fastCandidates(ctx context.Context, query string) []wiki.Candidate {
	key := "fast:" + strings.ToLower(query)
	list, err := r.cache.candidates.do(ctx, key, func(ctx context.Context) ([]wiki.Candidate, error) {
		return r.generateFast(ctx, query)
	})
	return usableCandidates(list, err)
}

func usableCandidates(list []wiki.Candidate, err error) []wiki.Candidate {
	if err != nil && !errors.Is(err, errIncomplete) {
		return nil
	}
	return list
}

// settleCandidates reports the call's own cancellation ahead of any list so
// that callers sharing the computation run it again.
func settleCandidates(callCtx, stageCtx context.Context, list []wiki.Candidate, failures int) ([]wiki.Candidate, error) {
	if err := callCtx.Err(); err != nil {
		return nil, err
	}
	if stageCtx.Err() != nil || failures > 0 {
		return list, errIncomplete
	}
	return list, nil
}

// generateFast issues every search in parallel and merges the results in
// discovery order: quick guesses first, then constrained searches, primary
// language before secondary.
func (r *Resolver) generateFast(ctx context.Context, query string) ([]wiki.Candidate, error) {
	stageCtx, cancel := context.WithTimeout(ctx, r.fastTimeout)
	defer cancel()

	primary, secondary := language.Pair(query)
	plans := fastSearches(query, primary, secondary)
	slots := make([][]wiki.Candidate, len(plans))
	failed := make([]bool, len(plans))

	g, gctx := errgroup.WithContext(stageCtx)
	for i, plan := range plans {
		g.Go(func() error {
			var err error
			slots[i], err = r.runSearch(gctx, plan)
			failed[i] = err != nil
			return nil
		})
	}
	_ = g.Wait()

	return settleCandidates(ctx, stageCtx, mergeCandidates(r.candidateCap, slots...), countTrue(failed))
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func fastSearches(query, primary, secondary string) []plannedSearch {
	var plans []plannedSearch
	for _, lang := range []string{primary, secondary} {
		for _, suffix := range guessSuffixes[lang] {
			plans = append(plans, plannedSearch{lang: lang, text: query + suffix, origin: wiki.OriginDirectSearch})
		}
	}
	for _, lang := range []string{primary, secondary} {
		texts := []string{
			query + " " + cityClause,
			`intitle:"` + strings.ReplaceAll(query, `"`, "") + `" ` + cityClause,
			query + " haswbstatement:" + wiki.PropLocatedIn + "=" + cityID,
			query + " haswbstatement:" + wiki.PropLocation + "=" + cityID,
			query + " incategory:" + cityCategory[lang],
		}
		for _, cat := range thematicSearchCategories[lang] {
			texts = append(texts, query+" incategory:"+cat)
		}
		for _, text := range texts {
			plans = append(plans, plannedSearch{lang: lang, text: text, origin: wiki.OriginConstrainedSearch})
		}
	}
	return plans
}

// runSearch logs a failed search and reports it so the list is not cached.
func (r *Resolver) runSearch(ctx context.Context, plan plannedSearch) ([]wiki.Candidate, error) {
	if plan.origin == wiki.OriginDirectSearch {
		title, err := r.articles.QuickGuess(ctx, plan.lang, plan.text)
		if err != nil {
			r.logger.Debug().Err(err).Str("language", plan.lang).Str("search", plan.text).Msg("quick guess failed")
			return nil, err
		}
		if title == "" {
			return nil, nil
		}
		return []wiki.Candidate{{Language: plan.lang, Title: title, Origin: plan.origin}}, nil
	}

	titles, err := r.articles.Search(ctx, plan.lang, plan.text, searchLimit)
	if err != nil {
		r.logger.Debug().Err(err).Str("language", plan.lang).Str("search", plan.text).Msg("search failed")
		return nil, err
	}
	out := make([]wiki.Candidate, 0, len(titles))
	for _, title := range titles {
		out = append(out, wiki.Candidate{Language: plan.lang, Title: title, Origin: plan.origin})
	}
	return out, nil
}

// mergeCandidates flattens groups in order, dropping blank titles and repeated
// (language, title) pairs, and stops at limit.
func mergeCandidates(limit int, groups ...[]wiki.Candidate) []wiki.Candidate {
	seen := make(map[string]struct{})
	var out []wiki.Candidate
	for _, group := range groups {
		for _, cand := range group {
			if limit > 0 && len(out) >= limit {
				return out
			}
			cand.Title = strings.TrimSpace(cand.Title)
			if cand.Title == "" {
				continue
			}
			key := cand.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, cand)
		}
	}
	return out
}
