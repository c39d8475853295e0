// Package render turns a resolved article summary into a displayable article:
// best image, attribution, sanitized HTML and plain text.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/nycpedia/internal/reader"
	"horse.fit/nycpedia/internal/wiki"
)

const (
	targetImageWidth = 800
	commonsFilePath  = "https://commons.wikimedia.org/wiki/Special:FilePath/"
)

// ArticleSource provides the article body and its media.
type ArticleSource interface {
	MediaList(ctx context.Context, lang, title string) ([]wiki.MediaItem, error)
	PageImage(ctx context.Context, lang, title string) (*wiki.PageImage, error)
	ArticleHTML(ctx context.Context, lang, title string) (string, error)
}

// EntitySource provides the knowledge-graph image fallback.
type EntitySource interface {
	Entity(ctx context.Context, id string) (*wiki.Entity, error)
}

// Attribution credits the chosen media item.
type Attribution struct {
	Artist  string `json:"artist,omitempty"`
	License string `json:"license,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Article is the rendered result.
type Article struct {
	Title        string       `json:"title"`
	Language     string       `json:"language"`
	Description  string       `json:"description,omitempty"`
	Extract      string       `json:"extract,omitempty"`
	PageURL      string       `json:"page_url,omitempty"`
	WikibaseItem string       `json:"wikibase_item,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	Attribution  *Attribution `json:"attribution,omitempty"`
	HTML         string       `json:"html,omitempty"`
	Text         string       `json:"text,omitempty"`
}

// Renderer fetches the pieces of an article and assembles them.
type Renderer struct {
	articles ArticleSource
	graph    EntitySource
	logger   zerolog.Logger
}

func NewRenderer(articles ArticleSource, graph EntitySource, logger *zerolog.Logger) *Renderer {
	r := &Renderer{articles: articles, graph: graph, logger: zerolog.Nop()}
	if logger != nil {
		r.logger = logger.With().Str("component", "render").Logger()
	}
	return r
}

// Render builds the article for summary. Missing media or body are not
// errors; only cancellation and a missing summary are.
func (r *Renderer) Render(ctx context.Context, lang string, summary *wiki.ArticleSummary) (*Article, error) {
	if r == nil || r.articles == nil {
		return nil, fmt.Errorf("renderer is not initialized")
	}
	if summary == nil {
		return nil, fmt.Errorf("summary is required")
	}

	var (
		media     []wiki.MediaItem
		pageImage *wiki.PageImage
		rawHTML   string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := r.articles.MediaList(gctx, lang, summary.Title)
		media = items
		return r.swallow(err, "media list")
	})
	g.Go(func() error {
		img, err := r.articles.PageImage(gctx, lang, summary.Title)
		pageImage = img
		return r.swallow(err, "page image")
	})
	g.Go(func() error {
		body, err := r.articles.ArticleHTML(gctx, lang, summary.Title)
		rawHTML = body
		return r.swallow(err, "article html")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	article := &Article{
		Title:        summary.Title,
		Language:     lang,
		Description:  summary.Description,
		Extract:      summary.Extract,
		PageURL:      summary.PageURL,
		WikibaseItem: summary.WikibaseItem,
	}

	item := pickMediaImage(media)
	article.ImageURL = bestImage(item, summary, pageImage)
	if article.ImageURL == "" {
		imageURL, err := r.entityImage(ctx, summary.WikibaseItem)
		if err != nil {
			return nil, err
		}
		article.ImageURL = imageURL
	}
	if item != nil {
		article.Attribution = &Attribution{Artist: item.Artist, License: item.License, Source: item.FilePage}
	}

	if rawHTML != "" {
		clean, err := reader.Sanitize(rawHTML, siteOf(summary.PageURL))
		if err != nil {
			r.logger.Debug().Err(err).Str("title", summary.Title).Msg("sanitize failed")
		} else {
			article.HTML = clean
		}
	}
	text, err := reader.PlainText(article.HTML, summary.PageURL, summary.Extract)
	if err != nil {
		r.logger.Debug().Err(err).Str("title", summary.Title).Msg("plain text extraction failed")
	}
	article.Text = text

	return article, nil
}

// swallow keeps cancellation fatal and logs everything else.
func (r *Renderer) swallow(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	r.logger.Debug().Err(err).Str("part", what).Msg("render lookup failed")
	return nil
}

func (r *Renderer) entityImage(ctx context.Context, id string) (string, error) {
	if r.graph == nil || strings.TrimSpace(id) == "" {
		return "", nil
	}
	entity, err := r.graph.Entity(ctx, id)
	if err != nil {
		return "", r.swallow(err, "entity image")
	}
	return CommonsImageURL(entity.FirstString(wiki.PropImage), targetImageWidth), nil
}

// pickMediaImage returns the lead image, or the first image of the list.
func pickMediaImage(items []wiki.MediaItem) *wiki.MediaItem {
	for i := range items {
		if items[i].Type == "image" && items[i].Section == "lead" {
			return &items[i]
		}
	}
	for i := range items {
		if items[i].Type == "image" {
			return &items[i]
		}
	}
	return nil
}

// bestImage walks the media item, summary and page-image fallbacks in order.
func bestImage(item *wiki.MediaItem, summary *wiki.ArticleSummary, pageImage *wiki.PageImage) string {
	if item != nil {
		if src := pickFromSrcset(item.Srcset, targetImageWidth); src != "" {
			return src
		}
		if item.Src != "" {
			return item.Src
		}
	}
	for _, img := range []*wiki.Image{summary.OriginalImage, summary.Thumbnail} {
		if img != nil && img.Source != "" {
			return img.Source
		}
	}
	if pageImage != nil {
		for _, img := range []*wiki.Image{pageImage.Original, pageImage.Thumbnail} {
			if img != nil && img.Source != "" {
				return img.Source
			}
		}
	}
	return ""
}

// pickFromSrcset returns the narrowest rendition at least target wide, or the
// widest one when none is.
func pickFromSrcset(srcset []wiki.SrcsetRef, target int) string {
	if len(srcset) == 0 {
		return ""
	}
	ordered := append([]wiki.SrcsetRef(nil), srcset...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Width < ordered[j].Width })
	for _, ref := range ordered {
		if ref.Width >= target && ref.Src != "" {
			return ref.Src
		}
	}
	return ordered[len(ordered)-1].Src
}

// CommonsImageURL builds a resized Special:FilePath URL for a Commons file name.
func CommonsImageURL(fileName string, width int) string {
	name := strings.TrimSpace(fileName)
	if name == "" {
		return ""
	}
	out := commonsFilePath + url.PathEscape(name)
	if width > 0 {
		out += fmt.Sprintf("?width=%d", width)
	}
	return out
}

func siteOf(pageURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
