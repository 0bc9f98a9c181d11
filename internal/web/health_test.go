// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.astrophena.name/openclaw/internal/testutil"
)

func send(t testing.TB, h http.Handler, method, path string, wantStatus int) []byte {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if wantStatus != rec.Code {
		t.Fatalf("want response code %d, got %d", wantStatus, rec.Code)
	}
	return rec.Body.Bytes()
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		checks       map[string]HealthFunc
		wantResponse HealthResponse
		wantStatus   int
	}{
		"no checks": {
			checks:       map[string]HealthFunc{},
			wantResponse: HealthResponse{OK: true, Checks: map[string]CheckResponse{}},
			wantStatus:   http.StatusOK,
		},
		"telegram configured": {
			checks: map[string]HealthFunc{
				"telegram": func() (string, bool) { return "configured", true },
			},
			wantResponse: HealthResponse{
				OK:     true,
				Checks: map[string]CheckResponse{"telegram": {Status: "configured", OK: true}},
			},
			wantStatus: http.StatusOK,
		},
		"one failing check": {
			checks: map[string]HealthFunc{
				"providers": func() (string, bool) { return "zhipu", true },
				"feishu":    func() (string, bool) { return "missing FEISHU_APP_ID", false },
			},
			wantResponse: HealthResponse{
				OK: false,
				Checks: map[string]CheckResponse{
					"providers": {Status: "zhipu", OK: true},
					"feishu":    {Status: "missing FEISHU_APP_ID", OK: false},
				},
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			mux := http.NewServeMux()
			h := Health(mux)
			for n, f := range tc.checks {
				h.RegisterFunc(n, f)
			}
			got := testutil.UnmarshalJSON[HealthResponse](t, send(t, mux, http.MethodGet, "/health", tc.wantStatus))
			testutil.AssertEqual(t, got, tc.wantResponse)
		})
	}
}

func TestHealthReusesHandler(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	if Health(mux) != Health(mux) {
		t.Fatal("Health must return the already registered handler")
	}
}

func TestHealthHandlerRegisterFuncDuplicate(t *testing.T) {
	t.Parallel()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("RegisterFunc did not panic when using an already existing name")
		}
	}()

	h := Health(http.NewServeMux())
	h.RegisterFunc("foo", func() (string, bool) { return "foo", true })
	h.RegisterFunc("foo", func() (string, bool) { return "not foo", true })
}
