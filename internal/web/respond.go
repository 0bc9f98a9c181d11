// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.astrophena.name/openclaw/internal/logger"
)

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// RespondJSON marshals response as JSON and writes it to w with status 200.
func RespondJSON(w http.ResponseWriter, response any) {
	RespondJSONStatus(w, http.StatusOK, response)
}

// RespondJSONStatus is like [RespondJSON], but writes the given status code.
func RespondJSONStatus(w http.ResponseWriter, code int, response any) {
	b, err := json.MarshalIndent(response, "", "  ")
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		b, _ = json.Marshal(&errorResponse{Status: "error", Error: "JSON marshal error: " + err.Error()})
	} else {
		w.WriteHeader(code)
	}
	w.Write(b)
	w.Write([]byte("\n"))
}

// RespondJSONError writes err as a JSON error response.
//
// If err is or wraps a [StatusErr], its status code is used. Otherwise the
// status is 500 and err is logged with the logger from the request context.
// The error text of unknown errors is not exposed to the client.
//
//	web.RespondJSONError(w, r, fmt.Errorf("chat %d: %w", id, web.ErrNotFound))
func RespondJSONError(w http.ResponseWriter, r *http.Request, err error) {
	se := statusOf(err)
	msg := err.Error()
	if se == ErrInternalServerError {
		logger.Get(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		msg = http.StatusText(int(se))
	}
	RespondJSONStatus(w, int(se), &errorResponse{Status: "error", Error: msg})
}

// RespondError writes err as a plain text response using the same status
// rules as [RespondJSONError]. The body is only the status text.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	se := statusOf(err)
	if se == ErrInternalServerError {
		logger.Get(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	RespondText(w, int(se), http.StatusText(int(se)))
}

// RespondText writes text with the given status code.
func RespondText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprint(w, text)
}

func statusOf(err error) StatusErr {
	var se StatusErr
	if !errors.As(err, &se) {
		se = ErrInternalServerError
	}
	return se
}
