// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package ai

import (
	"context"
	"errors"
	"time"

	"go.astrophena.name/openclaw/internal/logger"
)

// Fixed replies.
const (
	NoResponse  = "No response received."
	Unavailable = "AI service is temporarily unavailable"
)

var errNoProviders = errors.New("no AI provider is configured")

// Outcome is the final state of a run of the chain.
type Outcome int

// Outcomes.
const (
	Succeeded Outcome = iota
	TerminalFailure
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case TerminalFailure:
		return "terminal failure"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Attempt records one provider call.
type Attempt struct {
	Provider string
	Err      error
	Duration time.Duration
}

// Result is the outcome of [Engine.Run].
type Result struct {
	// Text is the reply, always non-empty.
	Text     string
	Outcome  Outcome
	Attempts []Attempt
}

// Engine tries providers strictly one after another in priority order.
type Engine struct {
	// Providers in priority order. Unavailable ones are skipped.
	Providers []Provider
}

// Respond returns the reply to p. It never fails: errors are turned into
// text that can be sent to the user.
func (e *Engine) Respond(ctx context.Context, p Prompt) string {
	return e.Run(ctx, p).Text
}

// Available returns the names of providers that can be attempted.
func (e *Engine) Available() []string {
	var names []string
	for _, prov := range e.Providers {
		if prov.Available() {
			names = append(names, prov.Name())
		}
	}
	return names
}

// Run is like [Engine.Respond], but reports every attempt.
func (e *Engine) Run(ctx context.Context, p Prompt) Result {
	log := logger.Get(ctx)

	var (
		res     Result
		lastErr error = errNoProviders
	)
	for _, prov := range e.Providers {
		if !prov.Available() {
			log.Debug("skipping provider without credentials", "provider", prov.Name())
			continue
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		start := time.Now()
		text, err := prov.Complete(ctx, p)
		res.Attempts = append(res.Attempts, Attempt{
			Provider: prov.Name(),
			Err:      err,
			Duration: time.Since(start),
		})

		if err == nil {
			log.Info("provider answered",
				"provider", prov.Name(),
				"attempt", len(res.Attempts),
				"duration", time.Since(start).Round(time.Millisecond),
			)
			res.Outcome = Succeeded
			res.Text = text
			if text == "" {
				res.Text = NoResponse
			}
			return res
		}

		retryable := Retryable(err)
		var pe *Error
		status := 0
		if errors.As(err, &pe) {
			status = pe.StatusCode
		}
		log.Warn("provider failed",
			"provider", prov.Name(),
			"attempt", len(res.Attempts),
			"status", status,
			"retryable", retryable,
			"error", err,
		)

		if !retryable {
			res.Outcome = TerminalFailure
			res.Text = prov.Name() + " error: " + message(err)
			return res
		}
		lastErr = err
	}

	res.Outcome = Exhausted
	res.Text = Unavailable + ": " + message(lastErr)
	log.Error("all providers failed", "attempts", len(res.Attempts), "error", lastErr)
	return res
}
