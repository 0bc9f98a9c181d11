// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package news

import (
	"cmp"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/request"
)

// HackerNewsAPI is the root of the official Hacker News API.
const HackerNewsAPI = "https://hacker-news.firebaseio.com/v0"

// DefaultScan is the number of top stories examined when Scan is zero.
const DefaultScan = 30

// HackerNews takes top stories whose titles mention one of the keywords.
type HackerNews struct {
	Label string
	Limit int
	// Scan is the number of top stories to examine.
	Scan int
	// Keywords are matched case-insensitively against titles. With no
	// keywords every story matches.
	Keywords   []string
	HTTPClient *http.Client
	// BaseURL overrides HackerNewsAPI.
	BaseURL string
}

// Name implements [Source].
func (s *HackerNews) Name() string { return s.Label }

type hnItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Time  int64  `json:"time"`
}

// Fetch implements [Source]. Stories that fail to load are skipped.
func (s *HackerNews) Fetch(ctx context.Context) ([]Item, error) {
	base := cmp.Or(s.BaseURL, HackerNewsAPI)
	ids, err := request.Make[[]int64](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        base + "/topstories.json",
		HTTPClient: s.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	ids = ids[:min(len(ids), cmp.Or(s.Scan, DefaultScan))]

	stories := make([]*hnItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			it, err := request.Make[*hnItem](gctx, request.Params{
				Method:     http.MethodGet,
				URL:        base + "/item/" + strconv.FormatInt(id, 10) + ".json",
				HTTPClient: s.HTTPClient,
			})
			if err != nil {
				logger.Get(ctx).Debug("skipping story", "id", id, "error", err)
				return nil
			}
			stories[i] = it
			return nil
		})
	}
	g.Wait()

	var items []Item
	for _, st := range stories {
		if len(items) >= s.Limit {
			break
		}
		if st == nil || st.Title == "" || !matchesAny(st.Title, s.Keywords) {
			continue
		}
		link := st.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + strconv.FormatInt(st.ID, 10)
		}
		var date string
		if st.Time > 0 {
			date = time.Unix(st.Time, 0).UTC().Format(time.RFC3339)
		}
		items = append(items, Item{Title: st.Title, Link: link, Source: s.Label, Date: date})
	}
	return items, nil
}

func matchesAny(title string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	title = strings.ToLower(title)
	for _, k := range keywords {
		if strings.Contains(title, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
