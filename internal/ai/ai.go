// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package ai answers prompts with a chain of LLM providers, falling back to
// the next provider when one is out of quota, unauthorized or down.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
)

// Prompt is a single request to a model.
type Prompt struct {
	// User is the user message.
	User string
	// System is an optional system instruction. Providers use their own
	// default instruction when it is empty.
	System string
}

// Provider is one LLM backend.
type Provider interface {
	// Name identifies the provider in logs and replies.
	Name() string
	// Available reports whether the provider has the credentials it needs.
	// Unavailable providers are skipped.
	Available() bool
	// Complete returns the model answer to p. An empty answer is not an
	// error. Failures should be returned as *Error so they can be
	// classified.
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Error is a failed provider call.
type Error struct {
	// Provider is the name of the provider that failed.
	Provider string
	// StatusCode is the HTTP status code, or zero if there is none.
	StatusCode int
	// Message is a human-readable description of the failure.
	Message string
	// Transport is set when the request did not get a response at all.
	Transport bool
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return e.Provider + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Status codes that let the chain move on to the next provider.
var retryableStatus = []int{
	http.StatusTooManyRequests,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Retryable reports whether err permits falling through to the next provider.
//
// Quota, authentication and server failures are retryable, as are transport
// failures. Everything else, including a response the provider rejected as
// malformed, is terminal: the next provider would reject the same prompt.
func Retryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Transport {
			return true
		}
		return slices.Contains(retryableStatus, pe.StatusCode)
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// message returns the text of err suitable for a chat reply.
func message(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Message != "" {
			return pe.Message
		}
		if pe.Err != nil {
			return pe.Err.Error()
		}
		if pe.StatusCode != 0 {
			return fmt.Sprintf("API error: %d", pe.StatusCode)
		}
	}
	return err.Error()
}
