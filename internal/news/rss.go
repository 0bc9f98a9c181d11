// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package news

import (
	"cmp"
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"go.astrophena.name/openclaw/internal/request"
)

// RSS is an RSS or Atom feed.
type RSS struct {
	Label      string
	URL        string
	Limit      int
	HTTPClient *http.Client
}

// Name implements [Source].
func (s *RSS) Name() string { return s.Label }

// Fetch implements [Source].
func (s *RSS) Fetch(ctx context.Context) ([]Item, error) {
	body, err := request.Make[request.Raw](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        s.URL,
		HTTPClient: s.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return ParseFeed(body, s.Label, s.Limit)
}

var (
	entryRe = regexp.MustCompile(`(?s)<(?:item|entry)(?:\s[^>]*)?>(.*?)</(?:item|entry)>`)
	titleRe = regexp.MustCompile(`(?s)<title[^>]*>(.*?)</title>`)
	linkRe  = regexp.MustCompile(`(?s)<link>(.*?)</link>`)
	hrefRe  = regexp.MustCompile(`<link[^>]+href=["'](.*?)["']`)
	dateRe  = regexp.MustCompile(`(?s)<(?:pubDate|updated)>(.*?)</(?:pubDate|updated)>`)
	cdataRe = regexp.MustCompile(`<!\[CDATA\[|\]\]>`)
)

// ParseFeed extracts up to limit items from an RSS or Atom document.
//
// Extraction is tolerant pattern matching: every field is optional except
// the title, and entries without one are skipped. When the patterns find
// nothing, the document is given to a full feed parser, which understands
// shapes like RDF or namespaced elements. It returns an error only when
// neither approach recognizes the document.
func ParseFeed(body []byte, source string, limit int) ([]Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	if items := extractItems(string(body), source, limit); len(items) > 0 {
		return items, nil
	}
	return parseStrict(body, source, limit)
}

func extractItems(doc, source string, limit int) []Item {
	var items []Item
	for _, m := range entryRe.FindAllStringSubmatch(doc, -1) {
		if len(items) >= limit {
			break
		}
		content := m[1]

		tm := titleRe.FindStringSubmatch(content)
		if tm == nil {
			continue
		}
		title := clean(tm[1])
		if title == "" {
			continue
		}

		var link string
		if lm := linkRe.FindStringSubmatch(content); lm != nil {
			link = clean(lm[1])
		} else if hm := hrefRe.FindStringSubmatch(content); hm != nil {
			link = html.UnescapeString(hm[1])
		}

		var date string
		if dm := dateRe.FindStringSubmatch(content); dm != nil {
			date = strings.TrimSpace(dm[1])
		}

		items = append(items, Item{Title: title, Link: link, Source: source, Date: date})
	}
	return items
}

func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(cdataRe.ReplaceAllString(s, "")))
}

func parseStrict(body []byte, source string, limit int) ([]Item, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	var items []Item
	for _, fi := range feed.Items {
		if len(items) >= limit {
			break
		}
		title := strings.TrimSpace(fi.Title)
		if title == "" {
			continue
		}
		items = append(items, Item{
			Title:  title,
			Link:   fi.Link,
			Source: source,
			Date:   cmp.Or(fi.Published, fi.Updated),
		})
	}
	return items, nil
}
