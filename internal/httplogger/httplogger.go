// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package httplogger provides a [http.RoundTripper] middleware that logs
// outgoing HTTP requests at the debug level.
package httplogger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// New returns a [http.RoundTripper] that logs each request made through t.
// Query strings are dropped from logged URLs and the path is passed through
// scrub, if set, to keep tokens out of the logs.
func New(t http.RoundTripper, log *slog.Logger, scrub *strings.Replacer) http.RoundTripper {
	if t == nil {
		t = http.DefaultTransport
	}
	return &loggingTransport{transport: t, log: log, scrub: scrub}
}

type loggingTransport struct {
	transport http.RoundTripper
	log       *slog.Logger
	scrub     *strings.Replacer
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.transport.RoundTrip(r)

	attrs := []any{
		"method", r.Method,
		"url", t.displayURL(r),
		"duration", time.Since(start).Round(time.Millisecond),
	}
	if resp != nil {
		attrs = append(attrs, "status", resp.StatusCode)
	}
	if err != nil {
		msg := err.Error()
		if t.scrub != nil {
			msg = t.scrub.Replace(msg)
		}
		attrs = append(attrs, "error", msg)
	}
	t.log.Debug("http request", attrs...)

	return resp, err
}

func (t *loggingTransport) displayURL(r *http.Request) string {
	u := r.URL.Scheme + "://" + r.URL.Host + r.URL.Path
	if t.scrub != nil {
		u = t.scrub.Replace(u)
	}
	return u
}
