package reader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const imageStyle = "max-width:100%;height:auto"

var unsafeStylePattern = regexp.MustCompile(`(?i)expression|url\s*\(`)

// Sanitize strips active content from parsed article HTML: script-like
// elements, event handler attributes and styles that can load resources.
// Images are made lazy, referrer-less and fluid. Protocol-relative URLs get
// https and root-relative links are resolved against siteURL when given.
func Sanitize(rawHTML, siteURL string) (string, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}

	doc.Find("script, style, iframe, noscript, link").Remove()

	site := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		var drop []string
		for _, attr := range s.Nodes[0].Attr {
			name := strings.ToLower(attr.Key)
			switch {
			case strings.HasPrefix(name, "on"):
				drop = append(drop, attr.Key)
			case name == "style" && unsafeStylePattern.MatchString(attr.Val):
				drop = append(drop, attr.Key)
			}
		}
		for _, key := range drop {
			s.RemoveAttr(key)
		}

		for _, name := range []string{"src", "href"} {
			if value, ok := s.Attr(name); ok {
				s.SetAttr(name, absolutize(value, site))
			}
		}
	})

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		img.SetAttr("loading", "lazy")
		img.SetAttr("referrerpolicy", "no-referrer")
		style := strings.TrimSpace(img.AttrOr("style", ""))
		if style != "" && !strings.HasSuffix(style, ";") {
			style += ";"
		}
		img.SetAttr("style", style+imageStyle)
		img.RemoveAttr("srcset")
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render sanitized html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func absolutize(value, site string) string {
	trimmed := strings.TrimSpace(value)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "javascript:"):
		return "#"
	case strings.HasPrefix(trimmed, "//"):
		return "https:" + trimmed
	case site != "" && strings.HasPrefix(trimmed, "/"):
		return site + trimmed
	default:
		return trimmed
	}
}
