package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"horse.fit/nycpedia/internal/language"
	"horse.fit/nycpedia/internal/wiki"
)

// Place names that mark a category as local. Matched on folded, lowercased names.
var citySubstrings = []string{
	"new york",
	"nueva york",
	"manhattan",
	"brooklyn",
	"queens",
	"bronx",
	"staten island",
	"nyc",
}

// Thematic categories in both languages, compared after folding.
var thematicCategories = idSet(
	"history of new york city",
	"cultural history of new york city",
	"events in new york city",
	"festivals in new york city",
	"urban planning in new york city",
	"economy of new york city",
	"government of new york city",
	"historia de nueva york",
	"eventos en nueva york",
	"festivales de nueva york",
	"urbanismo de nueva york",
	"economia de nueva york",
	"gobierno de nueva york",
)

var citySuffixPattern = regexp.MustCompile(`(?i) in new york city\)?$`)

var cityMatcher = ahocorasick.NewStringMatcher(citySubstrings)

var categoryPrefixes = []string{"category:", "categoría:", "categoria:"}

// hasLocalCategorySignal reports whether the article carries a category tied
// to the city. Failures count as no signal.
func (r *Resolver) hasLocalCategorySignal(ctx context.Context, title, lang string) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	ok, err := r.cache.categories.do(ctx, wiki.ArticleKey(lang, title), func(ctx context.Context) (bool, error) {
		cats, err := r.articles.Categories(ctx, lang, title)
		if err != nil {
			return false, err
		}
		for _, cat := range cats {
			if isLocalCategory(cat) {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		r.logger.Debug().Err(err).Str("language", lang).Str("title", title).Msg("category lookup failed")
		return false
	}
	return ok
}

func isLocalCategory(name string) bool {
	normalized := normalizeCategory(name)
	if normalized == "" {
		return false
	}
	if len(cityMatcher.MatchThreadSafe([]byte(normalized))) > 0 {
		return true
	}
	if _, ok := thematicCategories[normalized]; ok {
		return true
	}
	return citySuffixPattern.MatchString(normalized)
}

func normalizeCategory(name string) string {
	folded := strings.TrimSpace(strings.ToLower(name))
	for _, prefix := range categoryPrefixes {
		if strings.HasPrefix(folded, prefix) {
			folded = folded[len(prefix):]
			break
		}
	}
	folded = strings.ReplaceAll(folded, "_", " ")
	return strings.TrimSpace(language.FoldAccents(folded))
}
