package resolver

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"horse.fit/nycpedia/internal/language"
	"horse.fit/nycpedia/internal/wiki"
)

const (
	personSearchLimit = 5
	eventRowLimit     = 10
)

var itemIDPattern = regexp.MustCompile(`^Q[0-9]+$`)

// deepCandidates returns event articles linked to people named by query.
func (r *Resolver) deepCandidates(ctx context.Context, query string) []wiki.Candidate {
	key := "deep:" + strings.ToLower(query)
	list, err := r.cache.candidates.do(ctx, key, func(ctx context.Context) ([]wiki.Candidate, error) {
		return r.generateDeep(ctx, query)
	})
	return usableCandidates(list, err)
}

func (r *Resolver) generateDeep(ctx context.Context, query string) ([]wiki.Candidate, error) {
	stageCtx, cancel := context.WithTimeout(ctx, r.deepTimeout)
	defer cancel()

	primary, secondary := language.Pair(query)
	persons, failures := r.detectPersons(stageCtx, query, primary, secondary)
	if len(persons) == 0 {
		return settleCandidates(ctx, stageCtx, nil, failures)
	}
	r.logger.Debug().Strs("persons", persons).Msg("query names people")

	slots := make([][]wiki.Candidate, len(persons))
	failed := make([]bool, len(persons))
	g, gctx := errgroup.WithContext(stageCtx)
	for i, personID := range persons {
		g.Go(func() error {
			var err error
			slots[i], err = r.personEvents(gctx, personID, primary)
			failed[i] = err != nil
			return nil
		})
	}
	_ = g.Wait()

	return settleCandidates(ctx, stageCtx, mergeCandidates(r.candidateCap, slots...), failures+countTrue(failed))
}

// detectPersons searches entity labels in both languages and keeps the hits
// that are humans, primary-language hits first. It also reports how many label
// searches failed or ran out of time.
func (r *Resolver) detectPersons(ctx context.Context, query, primary, secondary string) ([]string, int) {
	ctx, cancel := context.WithTimeout(ctx, r.personTimeout)
	defer cancel()

	langs := []string{primary, secondary}
	hits := make([][]string, len(langs))
	failed := make([]bool, len(langs))
	g, gctx := errgroup.WithContext(ctx)
	for i, lang := range langs {
		g.Go(func() error {
			ids, err := r.graph.SearchByLabel(gctx, query, lang, personSearchLimit)
			if err != nil {
				r.logger.Debug().Err(err).Str("language", lang).Msg("label search failed")
				failed[i] = true
				return nil
			}
			hits[i] = ids
			return nil
		})
	}
	_ = g.Wait()

	var ids []string
	seen := make(map[string]struct{})
	for _, group := range hits {
		for _, id := range group {
			if _, dup := seen[id]; dup || !itemIDPattern.MatchString(id) {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	human := make([]bool, len(ids))
	g, gctx = errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			human[i] = r.isHuman(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	persons := make([]string, 0, len(ids))
	for i, id := range ids {
		if human[i] {
			persons = append(persons, id)
		}
	}
	return persons, countTrue(failed)
}

// personEvents runs the event query for one person. A failed or timed out
// query yields no candidates and its error.
func (r *Resolver) personEvents(ctx context.Context, personID, primary string) ([]wiki.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.eventTimeout)
	defer cancel()

	rows, err := r.graph.Query(ctx, eventQuery(personID))
	if err != nil {
		r.logger.Debug().Err(err).Str("person", personID).Msg("event query failed")
		return nil, err
	}

	order := []string{primary, language.Other(primary)}
	out := make([]wiki.Candidate, 0, len(rows))
	for _, row := range rows {
		for _, lang := range order {
			if title := strings.TrimSpace(row[lang+"Title"]); title != "" {
				out = append(out, wiki.Candidate{Language: lang, Title: title, Origin: wiki.OriginGraphEvent})
				break
			}
		}
	}
	return out, nil
}

// eventQuery selects events the person took part in or organized that took
// place in the city, directly or one territory below it.
func eventQuery(personID string) string {
	anchors := make([]string, 0, len(nycAnchors))
	for id := range nycAnchors {
		anchors = append(anchors, "wd:"+id)
	}
	sort.Strings(anchors)

	return fmt.Sprintf(`SELECT DISTINCT ?event ?enTitle ?esTitle WHERE {
  VALUES ?anchor { %[1]s }
  { ?event wdt:%[3]s wd:%[2]s . } UNION { wd:%[2]s wdt:%[4]s ?event . } UNION { ?event wdt:%[5]s wd:%[2]s . }
  { ?event wdt:%[6]s|wdt:%[7]s ?anchor . } UNION { ?event wdt:%[6]s|wdt:%[7]s ?place . ?place wdt:%[7]s ?anchor . }
  OPTIONAL { ?enArticle schema:about ?event ; schema:isPartOf <https://en.wikipedia.org/> ; schema:name ?enTitle . }
  OPTIONAL { ?esArticle schema:about ?event ; schema:isPartOf <https://es.wikipedia.org/> ; schema:name ?esTitle . }
}
LIMIT %[8]d`,
		strings.Join(anchors, " "),
		personID,
		wiki.PropParticipant,
		wiki.PropParticipantIn,
		wiki.PropOrganizer,
		wiki.PropLocation,
		wiki.PropLocatedIn,
		eventRowLimit,
	)
}
