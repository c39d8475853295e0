// Package wikipedia talks to the per-language Wikipedia REST and action APIs.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"horse.fit/nycpedia/internal/httpx"
	"horse.fit/nycpedia/internal/language"
	"horse.fit/nycpedia/internal/wiki"
)

// DefaultBaseURL is expanded per language by replacing {lang}.
const DefaultBaseURL = "https://{lang}.wikipedia.org"

// Client fetches summaries, categories, search results and article bodies.
type Client struct {
	baseURL string
	http    *httpx.Client
}

func NewClient(baseURL string, httpClient *httpx.Client) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = httpx.New(httpx.Options{Name: "wikipedia"})
	}
	return &Client{baseURL: trimmed, http: httpClient}
}

func (c *Client) site(lang string) (string, error) {
	code := language.NormalizeCode(lang)
	if code == "" {
		return "", fmt.Errorf("invalid language %q", lang)
	}
	return strings.ReplaceAll(c.baseURL, "{lang}", code), nil
}

func (c *Client) restURL(lang, endpoint, title string) (string, error) {
	site, err := c.site(lang)
	if err != nil {
		return "", err
	}
	return site + "/api/rest_v1/page/" + endpoint + "/" + url.PathEscape(strings.ReplaceAll(title, " ", "_")), nil
}

func (c *Client) actionURL(lang string, params url.Values) (string, error) {
	site, err := c.site(lang)
	if err != nil {
		return "", err
	}
	params.Set("format", "json")
	return site + "/w/api.php?" + params.Encode(), nil
}

type restSummary struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Extract      string `json:"extract"`
	WikibaseItem string `json:"wikibase_item"`
	Coordinates  *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coordinates"`
	Thumbnail     *wiki.Image `json:"thumbnail"`
	OriginalImage *wiki.Image `json:"originalimage"`
	ContentURLs   struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Summary returns the article summary, or (nil, nil) when the title does not exist.
func (c *Client) Summary(ctx context.Context, lang, title string) (*wiki.ArticleSummary, error) {
	endpoint, err := c.restURL(lang, "summary", title)
	if err != nil {
		return nil, err
	}

	var raw restSummary
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch summary %s:%s: %w", lang, title, err)
	}
	if strings.TrimSpace(raw.Title) == "" {
		return nil, nil
	}

	summary := &wiki.ArticleSummary{
		Title:         raw.Title,
		Language:      language.NormalizeCode(lang),
		Description:   raw.Description,
		Extract:       raw.Extract,
		Type:          raw.Type,
		WikibaseItem:  raw.WikibaseItem,
		PageURL:       raw.ContentURLs.Desktop.Page,
		Thumbnail:     raw.Thumbnail,
		OriginalImage: raw.OriginalImage,
	}
	if raw.Coordinates != nil {
		summary.Coordinates = &wiki.Coordinates{Lat: raw.Coordinates.Lat, Lon: raw.Coordinates.Lon}
	}
	return summary, nil
}

// Categories lists the non-hidden categories of an article.
func (c *Client) Categories(ctx context.Context, lang, title string) ([]string, error) {
	endpoint, err := c.actionURL(lang, url.Values{
		"action":  {"query"},
		"prop":    {"categories"},
		"cllimit": {"500"},
		"clshow":  {"!hidden"},
		"titles":  {title},
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Query struct {
			Pages map[string]struct {
				Categories []struct {
					Title string `json:"title"`
				} `json:"categories"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("fetch categories %s:%s: %w", lang, title, err)
	}

	var out []string
	for _, page := range raw.Query.Pages {
		for _, cat := range page.Categories {
			if name := strings.TrimSpace(cat.Title); name != "" {
				out = append(out, name)
			}
		}
	}
	return out, nil
}

// Search runs a full-text (CirrusSearch) query and returns matching titles in rank order.
func (c *Client) Search(ctx context.Context, lang, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	endpoint, err := c.actionURL(lang, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"srprop":   {""},
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("search %s %q: %w", lang, query, err)
	}

	titles := make([]string, 0, len(raw.Query.Search))
	for _, hit := range raw.Query.Search {
		if title := strings.TrimSpace(hit.Title); title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

// QuickGuess returns the best prefix-search title for query, or "" when there is none.
func (c *Client) QuickGuess(ctx context.Context, lang, query string) (string, error) {
	endpoint, err := c.actionURL(lang, url.Values{
		"action":    {"opensearch"},
		"search":    {query},
		"limit":     {"1"},
		"namespace": {"0"},
	})
	if err != nil {
		return "", err
	}

	// opensearch answers [query, [titles], [descriptions], [urls]].
	var raw []json.RawMessage
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		return "", fmt.Errorf("opensearch %s %q: %w", lang, query, err)
	}
	if len(raw) < 2 {
		return "", nil
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return "", fmt.Errorf("decode opensearch titles: %w", err)
	}
	if len(titles) == 0 {
		return "", nil
	}
	return strings.TrimSpace(titles[0]), nil
}

type restMediaList struct {
	Items []struct {
		Title     string `json:"title"`
		Type      string `json:"type"`
		Section   string `json:"section_id_string"`
		SectionID int    `json:"section_id"`
		LeadImage bool   `json:"leadImage"`
		Srcset    []struct {
			Src   string `json:"src"`
			Scale string `json:"scale"`
			Width int    `json:"width"`
		} `json:"srcset"`
		Original *struct {
			Source string `json:"source"`
		} `json:"original"`
		Artist *struct {
			HTML string `json:"html"`
			Text string `json:"text"`
		} `json:"artist"`
		License *struct {
			Type string `json:"type"`
		} `json:"license"`
		FilePage string `json:"file_page"`
	} `json:"items"`
}

// MediaList returns the images and other media embedded in an article.
func (c *Client) MediaList(ctx context.Context, lang, title string) ([]wiki.MediaItem, error) {
	endpoint, err := c.restURL(lang, "media-list", title)
	if err != nil {
		return nil, err
	}

	var raw restMediaList
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("fetch media list %s:%s: %w", lang, title, err)
	}

	items := make([]wiki.MediaItem, 0, len(raw.Items))
	for _, it := range raw.Items {
		item := wiki.MediaItem{
			Title:    it.Title,
			Type:     it.Type,
			FilePage: it.FilePage,
		}
		if it.LeadImage || it.SectionID == 0 {
			item.Section = "lead"
		}
		for _, s := range it.Srcset {
			item.Srcset = append(item.Srcset, wiki.SrcsetRef{Src: absoluteURL(s.Src), Width: s.Width, Scale: s.Scale})
		}
		if it.Original != nil {
			item.Src = absoluteURL(it.Original.Source)
		} else if len(item.Srcset) > 0 {
			item.Src = item.Srcset[0].Src
		}
		if it.Artist != nil {
			item.Artist = strings.TrimSpace(it.Artist.Text)
			if item.Artist == "" {
				item.Artist = strings.TrimSpace(it.Artist.HTML)
			}
		}
		if it.License != nil {
			item.License = it.License.Type
		}
		items = append(items, item)
	}
	return items, nil
}

// PageImage returns the page-images original and thumbnail (800px) for an article.
func (c *Client) PageImage(ctx context.Context, lang, title string) (*wiki.PageImage, error) {
	endpoint, err := c.actionURL(lang, url.Values{
		"action":      {"query"},
		"prop":        {"pageimages"},
		"titles":      {title},
		"piprop":      {"thumbnail|original"},
		"pithumbsize": {"800"},
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Query struct {
			Pages map[string]struct {
				Original  *wiki.Image `json:"original"`
				Thumbnail *wiki.Image `json:"thumbnail"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("fetch page image %s:%s: %w", lang, title, err)
	}
	for _, page := range raw.Query.Pages {
		if page.Original == nil && page.Thumbnail == nil {
			continue
		}
		return &wiki.PageImage{Original: page.Original, Thumbnail: page.Thumbnail}, nil
	}
	return nil, nil
}

// ArticleHTML returns the parsed (unsanitized) HTML body of an article.
func (c *Client) ArticleHTML(ctx context.Context, lang, title string) (string, error) {
	endpoint, err := c.actionURL(lang, url.Values{
		"action":        {"parse"},
		"page":          {title},
		"prop":          {"text"},
		"formatversion": {"2"},
	})
	if err != nil {
		return "", err
	}

	var raw struct {
		Parse struct {
			Text string `json:"text"`
		} `json:"parse"`
	}
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		return "", fmt.Errorf("fetch article html %s:%s: %w", lang, title, err)
	}
	return raw.Parse.Text, nil
}

// Ping checks that the language site answers.
func (c *Client) Ping(ctx context.Context, lang string) error {
	endpoint, err := c.actionURL(lang, url.Values{
		"action": {"query"},
		"meta":   {"siteinfo"},
	})
	if err != nil {
		return err
	}
	var raw map[string]any
	return c.http.GetJSON(ctx, endpoint, &raw)
}

func absoluteURL(src string) string {
	trimmed := strings.TrimSpace(src)
	if strings.HasPrefix(trimmed, "//") {
		return "https:" + trimmed
	}
	return trimmed
}
