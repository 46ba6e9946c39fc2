package metadata

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is the best-effort description of a page used to seed a saved link.
type Metadata struct {
	Title    string
	ImageURL string
}

// coverKeys lists meta keys in priority order.
var coverKeys = []string{"og:image", "twitter:image"}

// Extract returns the page title and cover image found in markup. It never fails:
// missing or malformed markup yields the fallback title and no image.
func Extract(markup, fallbackTitle string) Metadata {
	result := Metadata{Title: fallbackTitle}
	if strings.TrimSpace(markup) == "" {
		return result
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return result
	}

	if title, ok := extractTitle(doc); ok {
		result.Title = title
	}
	result.ImageURL = extractCover(doc)

	return result
}

func extractTitle(doc *goquery.Document) (string, bool) {
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return "", false
	}

	title := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(sel.Text())
	title = strings.TrimSpace(title)
	if title == "" {
		return "", false
	}
	return title, true
}

// extractCover checks og:image before twitter:image. A key may be declared through
// either the property or the name attribute, in any attribute order.
func extractCover(doc *goquery.Document) string {
	metas := doc.Find("meta")
	for _, key := range coverKeys {
		var found string
		metas.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !declares(s, key) {
				return true
			}
			content, _ := s.Attr("content")
			content = strings.TrimSpace(content)
			if content == "" {
				return true
			}
			found = content
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func declares(s *goquery.Selection, key string) bool {
	for _, attr := range []string{"property", "name"} {
		if value, ok := s.Attr(attr); ok && strings.EqualFold(strings.TrimSpace(value), key) {
			return true
		}
	}
	return false
}
