package wiki

import "testing"

func TestArticleKeyNormalizesLanguageOnly(t *testing.T) {
	t.Parallel()

	if got := ArticleKey(" EN ", " Central Park "); got != "en:Central Park" {
		t.Fatalf("unexpected key: %q", got)
	}
	a := Candidate{Language: "en", Title: "Central Park", Origin: OriginDirectSearch}
	b := Candidate{Language: "en", Title: "Central Park", Origin: OriginConstrainedSearch}
	if a.Key() != b.Key() {
		t.Fatalf("origin must not affect the key: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == ArticleKey("es", "Central Park") {
		t.Fatalf("language must be part of the key")
	}
}

func TestNilEntityHasNoPredicates(t *testing.T) {
	t.Parallel()

	var e *Entity
	if refs := e.Refs(PropLocatedIn); refs != nil {
		t.Fatalf("expected nil refs, got %v", refs)
	}
	if e.HasAny(PropLocatedIn, map[string]struct{}{"Q60": {}}) {
		t.Fatalf("nil entity must not match")
	}
	if got := e.FirstString(PropImage); got != "" {
		t.Fatalf("expected empty image, got %q", got)
	}
}

func TestEntityHasAny(t *testing.T) {
	t.Parallel()

	e := &Entity{
		ID:     "Q160236",
		Claims: map[string][]string{PropLocatedIn: {"Q11299"}},
		Labels: map[string]string{"en": "Metropolitan Museum of Art"},
	}
	if !e.HasAny(PropLocatedIn, map[string]struct{}{"Q11299": {}}) {
		t.Fatalf("expected match on Q11299")
	}
	if e.HasAny(PropLocation, map[string]struct{}{"Q11299": {}}) {
		t.Fatalf("unexpected match on a different predicate")
	}
	if got := e.Label("es"); got != "Metropolitan Museum of Art" {
		t.Fatalf("expected english fallback label, got %q", got)
	}
}
