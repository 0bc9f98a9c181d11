// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package news

import (
	"cmp"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/request"
)

// Default API roots of [Intel].
const (
	GitHubAPI  = "https://api.github.com"
	AlgoliaAPI = "https://hn.algolia.com/api/v1"
)

// NoDescription replaces empty repository descriptions.
const NoDescription = "暂无描述"

// Repo is a GitHub repository found by [Intel].
type Repo struct {
	FullName    string `json:"full_name"`
	URL         string `json:"html_url"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
}

// Story is a Hacker News story found by [Intel].
type Story struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Points    int    `json:"points"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

// Report is the raw material of an intel summary.
type Report struct {
	Repos   []Repo
	Stories []Story
}

// Intel searches GitHub and Hacker News for recent activity around a topic.
type Intel struct {
	// RepoQuery is the GitHub repository search query, e.g. "claude-code".
	RepoQuery string
	// StoryQuery is the Hacker News search query, e.g. "Claude Code".
	StoryQuery string
	// Window is how far back stories are searched.
	Window time.Duration
	// Limit caps both lists.
	Limit int
	// GitHubToken is optional and raises the GitHub rate limit.
	GitHubToken string
	HTTPClient  *http.Client
	Scrubber    *strings.Replacer

	// Overrides for tests.
	GitHubURL  string
	AlgoliaURL string
	Now        func() time.Time
}

// Gather runs both searches concurrently. A failed search yields an empty
// list and is only logged.
func (in *Intel) Gather(ctx context.Context) Report {
	var (
		r Report
		g errgroup.Group
	)
	g.Go(func() error {
		repos, err := in.Repos(ctx)
		if err != nil {
			logger.Get(ctx).Warn("GitHub search failed", "error", in.scrub(err))
		}
		r.Repos = repos
		return nil
	})
	g.Go(func() error {
		stories, err := in.Stories(ctx)
		if err != nil {
			logger.Get(ctx).Warn("Hacker News search failed", "error", in.scrub(err))
		}
		r.Stories = stories
		return nil
	})
	g.Wait()
	if r.Repos == nil {
		r.Repos = []Repo{}
	}
	if r.Stories == nil {
		r.Stories = []Story{}
	}
	return r
}

func (in *Intel) scrub(err error) string {
	if in.Scrubber == nil {
		return err.Error()
	}
	return in.Scrubber.Replace(err.Error())
}

// Repos returns the most recently updated repositories matching RepoQuery.
func (in *Intel) Repos(ctx context.Context) ([]Repo, error) {
	q := url.Values{
		"q":     {in.RepoQuery},
		"sort":  {"updated"},
		"order": {"desc"},
	}
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if in.GitHubToken != "" {
		headers["Authorization"] = "Bearer " + in.GitHubToken
	}
	resp, err := request.Make[struct {
		Items []Repo `json:"items"`
	}](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        cmp.Or(in.GitHubURL, GitHubAPI) + "/search/repositories?" + q.Encode(),
		Headers:    headers,
		HTTPClient: in.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	repos := resp.Items[:min(len(resp.Items), in.limit())]
	for i := range repos {
		if repos[i].Description == "" {
			repos[i].Description = NoDescription
		}
	}
	return repos, nil
}

// Stories returns the newest stories matching StoryQuery within Window.
func (in *Intel) Stories(ctx context.Context) ([]Story, error) {
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	since := now().Add(-cmp.Or(in.Window, 7*24*time.Hour)).Unix()
	q := url.Values{
		"query":          {in.StoryQuery},
		"tags":           {"story"},
		"numericFilters": {"created_at_i>" + strconv.FormatInt(since, 10)},
		"hitsPerPage":    {strconv.Itoa(in.limit())},
	}
	resp, err := request.Make[struct {
		Hits []struct {
			ObjectID  string `json:"objectID"`
			Title     string `json:"title"`
			Points    int    `json:"points"`
			Author    string `json:"author"`
			CreatedAt string `json:"created_at"`
		} `json:"hits"`
	}](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        cmp.Or(in.AlgoliaURL, AlgoliaAPI) + "/search_by_date?" + q.Encode(),
		HTTPClient: in.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	stories := make([]Story, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		stories = append(stories, Story{
			Title:     h.Title,
			URL:       "https://news.ycombinator.com/item?id=" + h.ObjectID,
			Points:    h.Points,
			Author:    h.Author,
			CreatedAt: h.CreatedAt,
		})
	}
	return stories, nil
}

func (in *Intel) limit() int { return cmp.Or(in.Limit, 5) }
