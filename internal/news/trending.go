// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package news

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"go.astrophena.name/openclaw/internal/request"
)

// GitHubTrending scrapes the GitHub trending repositories page.
type GitHubTrending struct {
	Label      string
	URL        string
	Limit      int
	HTTPClient *http.Client
}

// Name implements [Source].
func (s *GitHubTrending) Name() string { return s.Label }

// Fetch implements [Source].
func (s *GitHubTrending) Fetch(ctx context.Context) ([]Item, error) {
	body, err := request.Make[request.Raw](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        s.URL,
		HTTPClient: s.HTTPClient,
		Headers:    map[string]string{"Accept": "text/html"},
	})
	if err != nil {
		return nil, err
	}
	return parseTrending(body, s.URL, s.Label, s.Limit)
}

func parseTrending(body []byte, pageURL, source string, limit int) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var items []Item
	doc.Find("article.Box-row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(items) >= limit {
			return false
		}
		a := row.Find("h2 a").First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		name := strings.Join(strings.Fields(a.Text()), "")
		if name == "" {
			return true
		}
		title := name
		if desc := strings.Join(strings.Fields(row.Find("p").First().Text()), " "); desc != "" {
			title += ": " + desc
		}
		if stars := strings.TrimSpace(row.Find(`a[href$="/stargazers"]`).First().Text()); stars != "" {
			title += " (" + stars + " stars)"
		}
		link, err := base.Parse(href)
		if err != nil {
			return true
		}
		items = append(items, Item{Title: title, Link: link.String(), Source: source})
		return true
	})
	return items, nil
}
