package crawler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageMeta is the document-level metadata pulled from a crawled page. It
// enriches the chunks built from the page content.
type PageMeta struct {
	Title       string
	Description string
	Keywords    []string
	Author      string
	PublishedAt *time.Time
	Language    string
}

// ExtractPageMeta pulls metadata from standard tags, Open Graph and JSON-LD.
func ExtractPageMeta(doc *goquery.Selection, pageURL string) *PageMeta {
	meta := &PageMeta{}

	// Title: <title>, falling back to og:title and the first h1
	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if meta.Title == "" {
		if og, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
			meta.Title = strings.TrimSpace(og)
		}
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	// Description
	descSelectors := []string{
		"meta[name='description']",
		"meta[property='og:description']",
	}
	for _, selector := range descSelectors {
		if desc, exists := doc.Find(selector).Attr("content"); exists {
			desc = strings.TrimSpace(desc)
			if desc != "" {
				meta.Description = desc
				break
			}
		}
	}

	// Keywords
	if kw, exists := doc.Find("meta[name='keywords']").Attr("content"); exists {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(strings.ToLower(k)); k != "" {
				meta.Keywords = append(meta.Keywords, k)
			}
		}
	}

	// Author
	if author, exists := doc.Find("meta[name='author']").Attr("content"); exists {
		meta.Author = strings.TrimSpace(author)
	}

	// Language
	if lang, exists := doc.Find("html").Attr("lang"); exists {
		meta.Language = strings.TrimSpace(lang)
	}

	// JSON-LD structured data fills the gaps
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}

		if meta.Title == "" {
			if name, ok := data["headline"].(string); ok {
				meta.Title = name
			} else if name, ok := data["name"].(string); ok {
				meta.Title = name
			}
		}
		if meta.Description == "" {
			if desc, ok := data["description"].(string); ok {
				meta.Description = desc
			}
		}
		if meta.Author == "" {
			meta.Author = extractAuthorFromJSON(data)
		}
		if meta.PublishedAt == nil {
			if published, ok := data["datePublished"].(string); ok {
				if t, err := time.Parse(time.RFC3339, published); err == nil {
					meta.PublishedAt = &t
				}
			}
		}
	})

	// article:published_time as a last resort for the publish date
	if meta.PublishedAt == nil {
		if published, exists := doc.Find("meta[property='article:published_time']").Attr("content"); exists {
			if t, err := time.Parse(time.RFC3339, published); err == nil {
				meta.PublishedAt = &t
			}
		}
	}

	if meta.Title == "" {
		meta.Title = pageURL
	}

	meta.Title = strings.TrimSpace(meta.Title)
	meta.Description = strings.TrimSpace(meta.Description)
	return meta
}

func extractAuthorFromJSON(data map[string]interface{}) string {
	switch author := data["author"].(type) {
	case string:
		return strings.TrimSpace(author)
	case map[string]interface{}:
		if name, ok := author["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	case []interface{}:
		if len(author) > 0 {
			if first, ok := author[0].(map[string]interface{}); ok {
				if name, ok := first["name"].(string); ok {
					return strings.TrimSpace(name)
				}
			}
		}
	}
	return ""
}
