package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"horse.fit/nycpedia/internal/wiki"
)

// Mode selects the scoring variant.
type Mode int

const (
	// ModePlaces scores physical places and institutions.
	ModePlaces Mode = iota
	// ModeFacts also rewards event-like entities and penalizes everything else.
	ModeFacts
)

func (m Mode) String() string {
	if m == ModeFacts {
		return "facts"
	}
	return "places"
}

// Score rates how strongly summary is about New York City. A nil summary
// scores -999 and a disambiguation page -100; otherwise the independent
// signals are added up.
func (r *Resolver) Score(ctx context.Context, summary *wiki.ArticleSummary, lang string, mode Mode) int {
	if summary == nil {
		return scoreMissing
	}
	if isDisambiguation(summary) {
		return scoreDisambiguation
	}

	var category, located, held, event bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		category = r.hasLocalCategorySignal(gctx, summary.Title, lang)
		return nil
	})
	if id := summary.WikibaseItem; id != "" {
		g.Go(func() error {
			located = r.locatedInTarget(gctx, id)
			return nil
		})
		g.Go(func() error {
			held = r.heldAtTarget(gctx, id)
			return nil
		})
		if mode == ModeFacts {
			g.Go(func() error {
				event = r.isEventLike(gctx, id)
				return nil
			})
		}
	}
	_ = g.Wait()

	total := 0
	if inBoundingBox(summary.Coordinates) {
		total += weightBBox
	}
	if category {
		total += weightCategory
	}
	if located {
		total += weightLocatedIn
	}
	if held {
		total += weightHeldAt
	}
	if mode == ModeFacts {
		if event {
			total += weightEvent
		} else {
			total += penaltyNotEvent
		}
	}
	return total
}

func isDisambiguation(summary *wiki.ArticleSummary) bool {
	return disambiguationPattern.MatchString(summary.Description + " " + summary.Type)
}

func inBoundingBox(c *wiki.Coordinates) bool {
	if c == nil {
		return false
	}
	return c.Lat > minLat && c.Lat < maxLat && c.Lon > minLon && c.Lon < maxLon
}
