// Package wiki holds the article and knowledge-graph records shared by the
// resolver, the upstream clients and the renderer.
package wiki

import "strings"

// Coordinates is a WGS84 point attached to an article summary.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Image is an image reference carried by a summary or a page-images lookup.
type Image struct {
	Source string `json:"source"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ArticleSummary is the result of an article-metadata lookup. It is never
// mutated after it has been fetched.
type ArticleSummary struct {
	Title         string       `json:"title"`
	Language      string       `json:"language"`
	Description   string       `json:"description,omitempty"`
	Extract       string       `json:"extract,omitempty"`
	Type          string       `json:"type,omitempty"`
	WikibaseItem  string       `json:"wikibase_item,omitempty"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	PageURL       string       `json:"page_url,omitempty"`
	Thumbnail     *Image       `json:"thumbnail,omitempty"`
	OriginalImage *Image       `json:"original_image,omitempty"`
}

// Origin tags where a candidate came from.
type Origin string

const (
	OriginDirectSearch      Origin = "direct-search"
	OriginConstrainedSearch Origin = "constrained-search"
	OriginGraphEvent        Origin = "knowledge-graph-event"
)

// Candidate is one proposed article to evaluate.
type Candidate struct {
	Language string `json:"language"`
	Title    string `json:"title"`
	Origin   Origin `json:"origin"`
}

// Key identifies a candidate by language and title.
func (c Candidate) Key() string {
	return ArticleKey(c.Language, c.Title)
}

// ArticleKey builds the (language, title) key used for deduplication and caching.
func ArticleKey(lang, title string) string {
	return strings.ToLower(strings.TrimSpace(lang)) + ":" + strings.TrimSpace(title)
}

// Predicates used by the resolver.
const (
	PropInstanceOf    = "P31"
	PropSubclassOf    = "P279"
	PropLocatedIn     = "P131"
	PropLocation      = "P276"
	PropDepicts       = "P180"
	PropImage         = "P18"
	PropParticipant   = "P710"
	PropParticipantIn = "P1344"
	PropOrganizer     = "P664"
)

// Entity is a knowledge-graph record: predicate -> referenced entity ids.
// A nil *Entity behaves like an entity with no predicates.
type Entity struct {
	ID      string              `json:"id"`
	Labels  map[string]string   `json:"labels,omitempty"`
	Claims  map[string][]string `json:"claims,omitempty"`
	Strings map[string][]string `json:"strings,omitempty"` // non-item values such as the P18 file name
}

// Refs returns the entity ids referenced by predicate.
func (e *Entity) Refs(predicate string) []string {
	if e == nil || e.Claims == nil {
		return nil
	}
	return e.Claims[predicate]
}

// HasAny reports whether any id referenced by predicate is in set.
func (e *Entity) HasAny(predicate string, set map[string]struct{}) bool {
	for _, id := range e.Refs(predicate) {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// FirstString returns the first string value stored for predicate.
func (e *Entity) FirstString(predicate string) string {
	if e == nil || e.Strings == nil {
		return ""
	}
	values := e.Strings[predicate]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Label returns the label in lang, falling back to English.
func (e *Entity) Label(lang string) string {
	if e == nil || e.Labels == nil {
		return ""
	}
	if label := e.Labels[lang]; label != "" {
		return label
	}
	return e.Labels["en"]
}

// MediaItem is one entry of an article media list.
type MediaItem struct {
	Title    string      `json:"title"`
	Type     string      `json:"type"`
	Section  string      `json:"section,omitempty"`
	Src      string      `json:"src,omitempty"`
	Srcset   []SrcsetRef `json:"srcset,omitempty"`
	Artist   string      `json:"artist,omitempty"`
	License  string      `json:"license,omitempty"`
	FilePage string      `json:"file_page,omitempty"`
}

// SrcsetRef is one sized rendition of a media item.
type SrcsetRef struct {
	Src   string `json:"src"`
	Width int    `json:"width,omitempty"`
	Scale string `json:"scale,omitempty"`
}

// PageImage holds the original and thumbnail images of a page.
type PageImage struct {
	Original  *Image `json:"original,omitempty"`
	Thumbnail *Image `json:"thumbnail,omitempty"`
}
