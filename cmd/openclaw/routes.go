// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/web"
)

const (
	rootText          = "OpenClaw Bot is running! 🦞"
	configErrorText   = "Configuration Error"
	internalErrorText = "Internal Server Error"
)

func (e *engine) initRoutes() {
	e.mux = http.NewServeMux()

	e.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		web.RespondText(w, http.StatusOK, rootText)
	})
	e.mux.Handle("POST /webhook", recoverer(http.HandlerFunc(e.handleTelegram)))
	e.mux.Handle("POST /feishu", recoverer(http.HandlerFunc(e.handleFeishu)))

	health := web.Health(e.mux)
	health.RegisterFunc("telegram", func() (string, bool) {
		if e.tg == nil {
			return "not configured", true
		}
		return "configured", true
	})
	health.RegisterFunc("feishu", func() (string, bool) {
		if e.feishu == nil {
			return "not configured", true
		}
		return "configured", true
	})
	health.RegisterFunc("ai", func() (string, bool) {
		if missing := e.missingBaseline(); len(missing) > 0 {
			return "missing " + strings.Join(missing, ", "), false
		}
		return "available: " + strings.Join(e.ai.Available(), ", "), true
	})

	if e.debugToken != "" {
		e.mux.Handle("GET /debug/logs", e.debugAuth(e.logStream))
	}
}

// recoverer answers with a plain 500 when next panics.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Get(r.Context()).Error("handler panicked", "path", r.URL.Path, "panic", v)
				web.RespondText(w, http.StatusInternalServerError, internalErrorText)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (e *engine) debugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(e.debugToken)) != 1 {
			web.RespondError(w, r, web.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
