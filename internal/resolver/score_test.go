package resolver

import (
	"context"
	"errors"
	"testing"

	"horse.fit/nycpedia/internal/wiki"
)

func TestScoreNilSummary(t *testing.T) {
	t.Parallel()

	r := newTestResolver(newFakeArticles(), newFakeGraph())
	for _, mode := range []Mode{ModePlaces, ModeFacts} {
		if got := r.Score(context.Background(), nil, "en", mode); got != -999 {
			t.Fatalf("Score(nil, %s) = %d, want -999", mode, got)
		}
	}
}

func TestScoreDisambiguationOverridesEverySignal(t *testing.T) {
	t.Parallel()

	articles := newFakeArticles()
	graph := newFakeGraph()
	graph.add("Q1", map[string][]string{
		wiki.PropLocatedIn:  {"Q60"},
		wiki.PropLocation:   {"Q60"},
		wiki.PropInstanceOf: {"Q1656682"},
	})

	cases := []*wiki.ArticleSummary{
		{Title: "Met", Language: "en", Description: "Topics referred to by the same term", Type: "disambiguation"},
		{Title: "Met (desambiguación)", Language: "es", Description: "página de desambiguación"},
		{Title: "Queens", Language: "en", Description: "DISAMBIGUATION page"},
		{Title: "Brooklyn", Language: "es", Description: "Desambiguacion"},
	}
	for _, summary := range cases {
		summary.WikibaseItem = "Q1"
		summary.Coordinates = &wiki.Coordinates{Lat: 40.7, Lon: -73.9}
		articles.addSummary(summary, "Category:Museums in Manhattan")
	}

	r := newTestResolver(articles, graph)
	for _, summary := range cases {
		for _, mode := range []Mode{ModePlaces, ModeFacts} {
			if got := r.Score(context.Background(), summary, summary.Language, mode); got != -100 {
				t.Fatalf("Score(%q, %s) = %d, want -100", summary.Title, mode, got)
			}
		}
	}
	if n := articles.total(); n != 0 {
		t.Fatalf("disambiguation pages must not trigger lookups, got %d", n)
	}
}

func TestScoreBoundingBoxIsStrict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		lat  float64
		lon  float64
		want int
	}{
		{name: "inside", lat: 40.7128, lon: -74.0060, want: 3},
		{name: "south edge", lat: 40.40, lon: -74.0, want: 0},
		{name: "north edge", lat: 41.05, lon: -74.0, want: 0},
		{name: "west edge", lat: 40.7, lon: -74.30, want: 0},
		{name: "east edge", lat: 40.7, lon: -73.60, want: 0},
		{name: "outside", lat: 34.05, lon: -118.24, want: 0},
	}

	r := newTestResolver(newFakeArticles(), newFakeGraph())
	for _, tc := range cases {
		summary := &wiki.ArticleSummary{Title: "Place", Language: "en", Coordinates: &wiki.Coordinates{Lat: tc.lat, Lon: tc.lon}}
		if got := r.Score(context.Background(), summary, "en", ModePlaces); got != tc.want {
			t.Fatalf("%s: Score = %d, want %d", tc.name, got, tc.want)
		}
	}

	noCoords := &wiki.ArticleSummary{Title: "Place", Language: "en"}
	if got := r.Score(context.Background(), noCoords, "en", ModePlaces); got != 0 {
		t.Fatalf("expected 0 without coordinates, got %d", got)
	}
}

func TestScoreAddsIndependentSignals(t *testing.T) {
	t.Parallel()

	articles := newFakeArticles()
	graph := newFakeGraph()
	graph.add("Q160236", map[string][]string{wiki.PropLocatedIn: {"Q11299"}})
	graph.add("Q2", map[string][]string{wiki.PropLocatedIn: {"Q18419"}, wiki.PropLocation: {"Q60"}})

	met := &wiki.ArticleSummary{
		Title:        "Metropolitan Museum of Art",
		Language:     "en",
		WikibaseItem: "Q160236",
		Coordinates:  &wiki.Coordinates{Lat: 40.779, Lon: -73.963},
	}
	articles.addSummary(met, "Category:Museums in Manhattan")
	heldToo := &wiki.ArticleSummary{Title: "Fair", Language: "en", WikibaseItem: "Q2"}
	articles.addSummary(heldToo)

	r := newTestResolver(articles, graph)
	if got := r.Score(context.Background(), met, "en", ModePlaces); got != 13 {
		t.Fatalf("Score(met) = %d, want 13", got)
	}
	if got := r.Score(context.Background(), met, "en", ModeFacts); got != 10 {
		t.Fatalf("Score(met, facts) = %d, want 10", got)
	}
	if got := r.Score(context.Background(), heldToo, "en", ModePlaces); got != 10 {
		t.Fatalf("Score(fair) = %d, want 10", got)
	}
}

func TestLocatedInFollowsExactlyOneHop(t *testing.T) {
	t.Parallel()

	graph := newFakeGraph()
	graph.add("Q1", map[string][]string{wiki.PropLocatedIn: {"Q2"}})
	graph.add("Q2", map[string][]string{wiki.PropLocatedIn: {"Q11299"}})
	graph.add("Q3", map[string][]string{wiki.PropLocatedIn: {"Q4"}})
	graph.add("Q4", map[string][]string{wiki.PropLocatedIn: {"Q5x"}})
	graph.add("Q5x", map[string][]string{wiki.PropLocatedIn: {"Q60"}})
	graph.add("Q6", map[string][]string{wiki.PropLocatedIn: {"Q1384"}})

	r := newTestResolver(newFakeArticles(), graph)
	ctx := context.Background()
	if !r.locatedInTarget(ctx, "Q1") {
		t.Fatalf("expected one-hop location to match")
	}
	if r.locatedInTarget(ctx, "Q3") {
		t.Fatalf("two hops must not match")
	}
	if r.locatedInTarget(ctx, "Q6") {
		t.Fatalf("New York State is not an anchor")
	}
	if r.locatedInTarget(ctx, "Q404") {
		t.Fatalf("missing entity must not match")
	}
}

func TestHeldAtHasNoHop(t *testing.T) {
	t.Parallel()

	graph := newFakeGraph()
	graph.add("Q1", map[string][]string{wiki.PropLocation: {"Q18432"}})
	graph.add("Q2", map[string][]string{wiki.PropLocation: {"Q3"}})
	graph.add("Q3", map[string][]string{wiki.PropLocation: {"Q60"}, wiki.PropLocatedIn: {"Q60"}})

	r := newTestResolver(newFakeArticles(), graph)
	if !r.heldAtTarget(context.Background(), "Q1") {
		t.Fatalf("expected direct location to match")
	}
	if r.heldAtTarget(context.Background(), "Q2") {
		t.Fatalf("held-at must not follow references")
	}
}

func TestIsEventLikeThroughSubclass(t *testing.T) {
	t.Parallel()

	graph := newFakeGraph()
	graph.add("Q10", map[string][]string{wiki.PropInstanceOf: {"Q132241"}})
	graph.add("Q11", map[string][]string{wiki.PropInstanceOf: {"Q500"}})
	graph.add("Q500", map[string][]string{wiki.PropSubclassOf: {"Q1656682"}})
	graph.add("Q12", map[string][]string{wiki.PropInstanceOf: {"Q33506"}})
	graph.add("Q33506", map[string][]string{wiki.PropSubclassOf: {"Q207694"}})

	r := newTestResolver(newFakeArticles(), graph)
	ctx := context.Background()
	if !r.isEventLike(ctx, "Q10") {
		t.Fatalf("expected direct event type to match")
	}
	if !r.isEventLike(ctx, "Q11") {
		t.Fatalf("expected subclass of event to match")
	}
	if r.isEventLike(ctx, "Q12") {
		t.Fatalf("museum must not be event-like")
	}
}

func TestFactsModeRewardsEventsAndPenalizesOthers(t *testing.T) {
	t.Parallel()

	graph := newFakeGraph()
	graph.add("Q10", map[string][]string{wiki.PropInstanceOf: {"Q13418847"}})
	graph.add("Q11", map[string][]string{wiki.PropInstanceOf: {"Q33506"}})

	r := newTestResolver(newFakeArticles(), graph)
	event := &wiki.ArticleSummary{Title: "Stonewall riots", Language: "en", WikibaseItem: "Q10"}
	museum := &wiki.ArticleSummary{Title: "MoMA", Language: "en", WikibaseItem: "Q11"}
	unknown := &wiki.ArticleSummary{Title: "Somewhere", Language: "en"}

	if got := r.Score(context.Background(), event, "en", ModeFacts); got != 4 {
		t.Fatalf("Score(event, facts) = %d, want 4", got)
	}
	if got := r.Score(context.Background(), museum, "en", ModeFacts); got != -3 {
		t.Fatalf("Score(museum, facts) = %d, want -3", got)
	}
	if got := r.Score(context.Background(), unknown, "en", ModeFacts); got != -3 {
		t.Fatalf("Score(no entity, facts) = %d, want -3", got)
	}
	if got := r.Score(context.Background(), event, "en", ModePlaces); got != 0 {
		t.Fatalf("Score(event, places) = %d, want 0", got)
	}
}

func TestScoreTreatsFailuresAsMissingSignals(t *testing.T) {
	t.Parallel()

	articles := newFakeArticles()
	graph := newFakeGraph()
	summary := &wiki.ArticleSummary{
		Title:        "Flaky",
		Language:     "en",
		WikibaseItem: "Q7",
		Coordinates:  &wiki.Coordinates{Lat: 40.7, Lon: -73.9},
	}
	articles.addSummary(summary, "Category:Parks in Brooklyn")
	articles.failing["categories:"+wiki.ArticleKey("en", "Flaky")] = errors.New("503")
	graph.add("Q7", map[string][]string{wiki.PropLocatedIn: {"Q60"}})
	graph.failing["entity:Q7"] = errors.New("timeout talking to wikidata")

	r := newTestResolver(articles, graph)
	if got := r.Score(context.Background(), summary, "en", ModePlaces); got != 3 {
		t.Fatalf("Score = %d, want only the bounding box contribution 3", got)
	}
}
