// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package news collects recent AI news from feeds and public APIs and renders
// them as a plain text digest for an LLM prompt.
package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/util/syncx"
)

// Item is a single news entry.
type Item struct {
	Title  string
	Link   string
	Source string
	// Date is the publication date as found in the feed, if any.
	Date string
}

// Source is a news feed.
type Source interface {
	// Name is the label shown next to items of this source.
	Name() string
	// Fetch returns the latest items, at most the source limit.
	Fetch(ctx context.Context) ([]Item, error)
}

// Fixed digest texts.
const (
	DigestHeader = "Here are the latest AI updates:\n\n"
	NoUpdates    = "No updates found."
)

// maxConcurrentSources bounds the number of sources fetched at once.
const maxConcurrentSources = 4

// Aggregator fetches all sources concurrently.
type Aggregator struct {
	Sources []Source
	// Timeout limits each source fetch. Zero means no limit.
	Timeout time.Duration
}

// Collect fetches every source and returns their items in source order.
// A failing source contributes nothing; the failure is only logged.
func (a *Aggregator) Collect(ctx context.Context) []Item {
	log := logger.Get(ctx)

	results := make([][]Item, len(a.Sources))
	lwg := syncx.NewLimitedWaitGroup(maxConcurrentSources)
	for i, src := range a.Sources {
		lwg.Go(func() {
			fctx := ctx
			if a.Timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, a.Timeout)
				defer cancel()
			}
			start := time.Now()
			items, err := src.Fetch(fctx)
			if err != nil {
				log.Warn("news source failed", "source", src.Name(), "error", err)
				return
			}
			log.Debug("news source fetched", "source", src.Name(), "items", len(items), "duration", time.Since(start).Round(time.Millisecond))
			results[i] = items
		})
	}
	lwg.Wait()

	var all []Item
	for _, items := range results {
		all = append(all, items...)
	}
	return all
}

// Digest collects all sources and formats them with [Format].
func (a *Aggregator) Digest(ctx context.Context) string {
	return Format(a.Collect(ctx))
}

// Format renders items as a numbered list, or [NoUpdates] if there are none.
func Format(items []Item) string {
	if len(items) == 0 {
		return NoUpdates
	}
	var sb strings.Builder
	sb.WriteString(DigestHeader)
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. [%s] %s\n   Link: %s\n", i+1, item.Source, item.Title, item.Link)
	}
	return sb.String()
}
