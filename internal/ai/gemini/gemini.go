// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package gemini implements [ai.Provider] for Google Gemini models.
package gemini

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"go.astrophena.name/openclaw/internal/ai"
)

// Provider calls the Gemini API with the official SDK.
type Provider struct {
	APIKey string
	// Model is the model name, e.g. "gemini-2.0-flash".
	Model       string
	Temperature float32
	// DefaultSystem is used when a prompt has no system instruction.
	DefaultSystem string
	// Endpoint overrides the API endpoint.
	Endpoint string
	// HTTPClient, if set, carries all API calls. The key is added to each
	// request by a wrapping transport.
	HTTPClient *http.Client
	Scrubber   *strings.Replacer
}

var _ ai.Provider = (*Provider)(nil)

// Name implements [ai.Provider].
func (p *Provider) Name() string { return "gemini" }

// Available implements [ai.Provider].
func (p *Provider) Available() bool { return p.APIKey != "" }

// Complete implements [ai.Provider].
func (p *Provider) Complete(ctx context.Context, pr ai.Prompt) (string, error) {
	opts := []option.ClientOption{option.WithAPIKey(p.APIKey)}
	if p.HTTPClient != nil {
		// The SDK ignores WithAPIKey when given its own HTTP client.
		opts = []option.ClientOption{option.WithHTTPClient(p.keyedClient())}
	}
	if p.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", p.wrapErr(fmt.Errorf("creating client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(p.Model)
	model.SetTemperature(p.Temperature)
	if system := cmp.Or(pr.System, p.DefaultSystem); system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(pr.User))
	if err != nil {
		return "", p.wrapErr(err)
	}
	return responseText(resp), nil
}

func (p *Provider) keyedClient() *http.Client {
	base := p.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c := *p.HTTPClient
	c.Transport = &keyTransport{key: p.APIKey, base: base}
	return &c
}

// keyTransport sets the Gemini API key header on every request.
type keyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *keyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("x-goog-api-key", t.key)
	return t.base.RoundTrip(r)
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

// statusCode extracts the HTTP status code from an SDK error, or returns zero.
func statusCode(err error) int {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if code := ae.HTTPCode(); code > 0 {
			return code
		}
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return 0
}

func (p *Provider) wrapErr(err error) error {
	msg := err.Error()
	if p.Scrubber != nil {
		msg = p.Scrubber.Replace(msg)
	}
	e := &ai.Error{Provider: p.Name(), Message: msg, Err: err}

	var (
		blocked *genai.BlockedError
		ue      *url.Error
		ne      net.Error
	)
	switch {
	case errors.As(err, &blocked):
		// Another provider may answer, but the prompt itself was refused.
	case statusCode(err) != 0:
		e.StatusCode = statusCode(err)
		e.Message = fmt.Sprintf("API error: %d", e.StatusCode)
		var ge *googleapi.Error
		if errors.As(err, &ge) && ge.Message != "" {
			e.Message += ": " + ge.Message
		}
	case errors.As(err, &ue), errors.As(err, &ne):
		e.Transport = true
	}
	return e
}
