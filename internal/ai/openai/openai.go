// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package openai implements [ai.Provider] for services exposing an
// OpenAI-compatible chat completions API, such as Moonshot, NVIDIA NIM and
// Zhipu GLM.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.astrophena.name/openclaw/internal/ai"
	"go.astrophena.name/openclaw/internal/request"
)

// Provider calls the chat completions endpoint under BaseURL.
type Provider struct {
	// ProviderName is returned by Name.
	ProviderName string
	APIKey       string
	// BaseURL is the API root, e.g. "https://api.moonshot.cn/v1".
	BaseURL     string
	Model       string
	Temperature float64
	// DefaultSystem is used when a prompt has no system instruction. If
	// empty, only the user message is sent.
	DefaultSystem string
	HTTPClient    *http.Client
	Scrubber      *strings.Replacer
}

var _ ai.Provider = (*Provider)(nil)

// Name implements [ai.Provider].
func (p *Provider) Name() string { return p.ProviderName }

// Available implements [ai.Provider].
func (p *Provider) Available() bool { return p.APIKey != "" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	// Code is a string for OpenAI and Moonshot and a number for others.
	Code json.RawMessage `json:"code,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

// messages returns the conversation sent for pr.
func (p *Provider) messages(pr ai.Prompt) []message {
	system := pr.System
	if system == "" {
		system = p.DefaultSystem
	}
	var msgs []message
	if system != "" {
		msgs = append(msgs, message{Role: "system", Content: system})
	}
	return append(msgs, message{Role: "user", Content: pr.User})
}

// Complete implements [ai.Provider].
func (p *Provider) Complete(ctx context.Context, pr ai.Prompt) (string, error) {
	resp, err := request.Make[completionResponse](ctx, request.Params{
		Method: http.MethodPost,
		URL:    strings.TrimSuffix(p.BaseURL, "/") + "/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + p.APIKey,
		},
		Body: &completionRequest{
			Model:       p.Model,
			Messages:    p.messages(pr),
			Temperature: p.Temperature,
		},
		HTTPClient: p.HTTPClient,
		Scrubber:   p.Scrubber,
	})
	if err != nil {
		return "", p.wrapErr(err)
	}
	if resp.Error != nil {
		return "", &ai.Error{Provider: p.Name(), Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// wrapErr converts a request failure to [ai.Error].
func (p *Provider) wrapErr(err error) error {
	var se *request.StatusError
	if errors.As(err, &se) {
		msg := "API error: " + strconv.Itoa(se.StatusCode)
		var body completionResponse
		if json.Unmarshal(se.Body, &body) == nil && body.Error != nil && body.Error.Message != "" {
			msg += ": " + body.Error.Message
		}
		return &ai.Error{
			Provider:   p.Name(),
			StatusCode: se.StatusCode,
			Message:    msg,
			Err:        err,
		}
	}
	// Cancellation is retryable: the engine ends the chain on its own
	// context check.
	if errors.Is(err, context.Canceled) {
		return &ai.Error{Provider: p.Name(), Transport: true, Message: "request canceled", Err: err}
	}
	var (
		ue *url.Error
		ne net.Error
	)
	if errors.As(err, &ue) || errors.As(err, &ne) {
		return &ai.Error{Provider: p.Name(), Transport: true, Message: err.Error(), Err: err}
	}
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ai.Error{Provider: p.Name(), Message: "malformed response", Err: err}
	}
	return &ai.Error{Provider: p.Name(), Message: err.Error(), Err: err}
}
