package resolver

import (
	"context"
	"errors"
	"testing"

	"horse.fit/nycpedia/internal/wiki"
)

func TestIsLocalCategory(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"Category:Museums in Manhattan":                true,
		"Categoría:Museos de Nueva York":               true,
		"Category:Buildings and structures in Queens":  true,
		"Category:The Bronx":                           true,
		"Category:NYC Landmarks":                       true,
		"Category:Staten Island Railway":               true,
		"Categoría:Economía de Nueva York":             true,
		"Category:Festivals in New York City":          true,
		"Category:Art museums and galleries in Paris":  false,
		"Category:Articles with short description":     false,
		"Category:Brooklyn Nine-Nine":                  true,
		"":                                             false,
		"Category:Rock music groups from Los Angeles":  false,
		"Categoría:Historia_de_Nueva_York":             true,
		"Category:1969 riots (in New York City)":       true,
		"Category:Exhibitions in the Metropolitan Era": false,
	}
	for name, want := range cases {
		if got := isLocalCategory(name); got != want {
			t.Fatalf("isLocalCategory(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	t.Parallel()

	if got := normalizeCategory("Categoría:Economía_de_Nueva_York"); got != "economia de nueva york" {
		t.Fatalf("unexpected normalized category: %q", got)
	}
	if got := normalizeCategory("Category:History of New York City"); got != "history of new york city" {
		t.Fatalf("unexpected normalized category: %q", got)
	}
}

func TestCategorySignalIsMemoized(t *testing.T) {
	t.Parallel()

	articles := newFakeArticles()
	articles.addSummary(&wiki.ArticleSummary{Title: "Central Park", Language: "en"}, "Category:Parks in Manhattan")
	articles.addSummary(&wiki.ArticleSummary{Title: "Louvre", Language: "en"}, "Category:Museums in Paris")
	articles.failing["categories:"+wiki.ArticleKey("es", "Roto")] = errors.New("boom")

	r := newTestResolver(articles, newFakeGraph())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !r.hasLocalCategorySignal(ctx, "Central Park", "en") {
			t.Fatalf("expected category signal for Central Park")
		}
		if r.hasLocalCategorySignal(ctx, "Louvre", "en") {
			t.Fatalf("unexpected category signal for Louvre")
		}
		if r.hasLocalCategorySignal(ctx, "Roto", "es") {
			t.Fatalf("failed lookup must count as no signal")
		}
	}

	for _, key := range []string{"en:Central Park", "en:Louvre", "es:Roto"} {
		if got := articles.calls["categories:"+key]; got != 1 {
			t.Fatalf("expected one category fetch for %s, got %d", key, got)
		}
	}
}
