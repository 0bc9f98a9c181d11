// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"time"

	"go.astrophena.name/openclaw/internal/ai"
	"go.astrophena.name/openclaw/internal/ai/gemini"
	"go.astrophena.name/openclaw/internal/ai/openai"
	"go.astrophena.name/openclaw/internal/config"
	"go.astrophena.name/openclaw/internal/news"
)

const defaultTemperature = 0.7

// providers builds the failover chain. Providers without a key stay in the
// chain and are skipped by the engine.
func (e *engine) providers() []ai.Provider {
	var ps []ai.Provider
	for _, p := range e.cfg.Chain() {
		var (
			key         = e.getenv(p.KeyEnv)
			model       = cmp.Or(e.getenv(p.ModelEnv), p.Model)
			baseURL     = cmp.Or(e.getenv(p.BaseURLEnv), p.BaseURL)
			temperature = defaultTemperature
		)
		if p.Temperature != nil {
			temperature = *p.Temperature
		}
		switch p.Kind {
		case config.KindGemini:
			ps = append(ps, &gemini.Provider{
				APIKey:        key,
				Model:         model,
				Temperature:   float32(temperature),
				DefaultSystem: p.System,
				Endpoint:      baseURL,
				HTTPClient:    e.httpc,
				Scrubber:      e.scrubber,
			})
		default:
			ps = append(ps, &openai.Provider{
				ProviderName:  p.Name,
				APIKey:        key,
				BaseURL:       baseURL,
				Model:         model,
				Temperature:   temperature,
				DefaultSystem: p.System,
				HTTPClient:    e.httpc,
				Scrubber:      e.scrubber,
			})
		}
	}
	return ps
}

func (e *engine) sources() []news.Source {
	var ss []news.Source
	for _, s := range e.cfg.Sources {
		switch s.Kind {
		case config.SourceRSS:
			ss = append(ss, &news.RSS{
				Label:      s.Name,
				URL:        s.URL,
				Limit:      s.Limit,
				HTTPClient: e.httpc,
			})
		case config.SourceHackerNews:
			ss = append(ss, &news.HackerNews{
				Label:      s.Name,
				Limit:      s.Limit,
				Scan:       s.Scan,
				Keywords:   s.Keywords,
				HTTPClient: e.httpc,
				BaseURL:    s.URL,
			})
		case config.SourceGitHubTrending:
			ss = append(ss, &news.GitHubTrending{
				Label:      s.Name,
				URL:        s.URL,
				Limit:      s.Limit,
				HTTPClient: e.httpc,
			})
		}
	}
	return ss
}

func (e *engine) intel() *news.Intel {
	return &news.Intel{
		RepoQuery:   "claude-code",
		StoryQuery:  "Claude Code",
		Window:      7 * 24 * time.Hour,
		Limit:       5,
		GitHubToken: e.ghToken,
		HTTPClient:  e.httpc,
		Scrubber:    e.scrubber,
	}
}
