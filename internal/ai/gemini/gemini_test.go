// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"

	"go.astrophena.name/openclaw/internal/ai"
	"go.astrophena.name/openclaw/internal/testutil"
)

func TestResponseText(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		resp *genai.GenerateContentResponse
		want string
	}{
		"nil":           {resp: nil, want: ""},
		"no candidates": {resp: &genai.GenerateContentResponse{}, want: ""},
		"nil content": {
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}},
			want: "",
		},
		"text parts are joined": {
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("hi "), genai.Text("there")}}},
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
			}},
			want: "hi there",
		},
		"non-text parts are skipped": {
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}, genai.Text("caption")}}},
			}},
			want: "caption",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, responseText(tc.resp), tc.want)
		})
	}
}

func apiErr(t *testing.T, code int, msg string) error {
	t.Helper()
	ae, ok := apierror.FromError(&googleapi.Error{Code: code, Message: msg})
	if !ok {
		t.Fatal("apierror.FromError failed")
	}
	return ae
}

func TestWrapErr(t *testing.T) {
	t.Parallel()

	p := &Provider{APIKey: "AIza-secret", Scrubber: strings.NewReplacer("AIza-secret", "[EXPUNGED]")}

	cases := map[string]struct {
		err           error
		wantStatus    int
		wantMessage   string
		wantTransport bool
		wantRetryable bool
	}{
		"quota": {
			err:           apiErr(t, 429, "Resource has been exhausted"),
			wantStatus:    429,
			wantMessage:   "API error: 429: Resource has been exhausted",
			wantRetryable: true,
		},
		"bare googleapi error": {
			err:           fmt.Errorf("generate: %w", &googleapi.Error{Code: 503}),
			wantStatus:    503,
			wantMessage:   "API error: 503",
			wantRetryable: true,
		},
		"invalid argument": {
			err:         apiErr(t, 400, "API key not valid"),
			wantStatus:  400,
			wantMessage: "API error: 400: API key not valid",
		},
		"transport": {
			err:           &url.Error{Op: "Post", URL: "https://generativelanguage.googleapis.com?key=AIza-secret", Err: errors.New("connection reset")},
			wantMessage:   `Post "https://generativelanguage.googleapis.com?key=[EXPUNGED]": connection reset`,
			wantTransport: true,
			wantRetryable: true,
		},
		"blocked": {
			err:         &genai.BlockedError{},
			wantMessage: (&genai.BlockedError{}).Error(),
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := p.wrapErr(tc.err)
			var pe *ai.Error
			if !errors.As(err, &pe) {
				t.Fatalf("want *ai.Error, got %T", err)
			}
			testutil.AssertEqual(t, pe.Provider, "gemini")
			testutil.AssertEqual(t, pe.StatusCode, tc.wantStatus)
			testutil.AssertEqual(t, pe.Message, tc.wantMessage)
			testutil.AssertEqual(t, pe.Transport, tc.wantTransport)
			testutil.AssertEqual(t, ai.Retryable(err), tc.wantRetryable)
		})
	}
}

func TestCompleteUsesHTTPClient(t *testing.T) {
	t.Parallel()

	var (
		gotKey  string
		gotPath string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST generativelanguage.googleapis.com/v1beta/models/{call}", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello from gemini"}]}}]}`)
	})

	p := &Provider{
		APIKey:     "AIza-secret",
		Model:      "gemini-2.0-flash",
		HTTPClient: testutil.MockHTTPClient(mux),
	}
	text, err := p.Complete(context.Background(), ai.Prompt{User: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, text, "hello from gemini")
	testutil.AssertEqual(t, gotKey, "AIza-secret")
	testutil.AssertEqual(t, gotPath, "/v1beta/models/gemini-2.0-flash:generateContent")
}

func TestAvailable(t *testing.T) {
	t.Parallel()
	testutil.AssertEqual(t, (&Provider{}).Available(), false)
	testutil.AssertEqual(t, (&Provider{APIKey: "k"}).Available(), true)
}
