// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.astrophena.name/openclaw/internal/bot"
	"go.astrophena.name/openclaw/internal/cli"
	"go.astrophena.name/openclaw/internal/cli/clitest"
	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/news"
	"go.astrophena.name/openclaw/internal/testutil"
	"go.astrophena.name/openclaw/internal/web"
)

// Typical Telegram Bot API token, copied from docs.
const tgToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

func TestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("TELEGRAM_TOKEN=from-file\nZAI_API_KEY=zai-from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("order: [zhipu]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	clitest.Run(t, func(t *testing.T) *engine {
		e := new(engine)
		e.httpc = testutil.MockHTTPClient(testMux(t, nil).mux)
		e.noServerStart = true
		return e
	}, map[string]clitest.Case[*engine]{
		"prints usage with help flag": {
			Args:         []string{"-h"},
			WantErr:      flag.ErrHelp,
			WantInStderr: "Available flags:",
		},
		"version": {
			Args:    []string{"-version"},
			WantErr: cli.ErrExitVersion,
		},
		"rejects arguments": {
			Args:    []string{"foo"},
			WantErr: cli.ErrInvalidArgs,
		},
		"sets telegram token passed by env": {
			Env: map[string]string{
				"TELEGRAM_TOKEN": tgToken,
			},
			CheckFunc: func(t *testing.T, e *engine) {
				testutil.AssertEqual(t, e.tgToken, tgToken)
				testutil.AssertEqual(t, e.tg != nil, true)
				testutil.AssertEqual(t, e.addr, ":3000")
			},
		},
		"port from env": {
			Env: map[string]string{"PORT": "8080"},
			CheckFunc: func(t *testing.T, e *engine) {
				testutil.AssertEqual(t, e.addr, ":8080")
			},
		},
		"reads env file": {
			Args: []string{"-env-file", envFile},
			CheckFunc: func(t *testing.T, e *engine) {
				testutil.AssertEqual(t, e.tgToken, "from-file")
				testutil.AssertEqual(t, e.missingBaseline(), []string(nil))
			},
		},
		"process env wins over env file": {
			Args: []string{"-env-file", envFile},
			Env:  map[string]string{"TELEGRAM_TOKEN": "from-env"},
			CheckFunc: func(t *testing.T, e *engine) {
				testutil.AssertEqual(t, e.tgToken, "from-env")
			},
		},
		"missing env file is fine": {
			Args: []string{"-env-file", filepath.Join(dir, "nope.env")},
		},
		"provider order from env": {
			Env: map[string]string{
				"AI_PROVIDERS":   "zhipu, kimi",
				"ZAI_API_KEY":    "zai",
				"NVIDIA_API_KEY": "nv",
			},
			CheckFunc: func(t *testing.T, e *engine) {
				testutil.AssertEqual(t, e.cfg.Order, []string{"zhipu", "kimi"})
				testutil.AssertEqual(t, e.ai.Available(), []string{"zhipu"})
			},
		},
		"unknown provider in order": {
			Env:             map[string]string{"AI_PROVIDERS": "zhipu,openai"},
			WantErrContains: `unknown provider "openai"`,
		},
		"config file": {
			Args: []string{"-config", configFile},
			CheckFunc: func(t *testing.T, e *engine) {
				testutil.AssertEqual(t, e.cfg.Order, []string{"zhipu"})
				testutil.AssertEqual(t, len(e.ai.Providers), 1)
			},
		},
		"digest without chats": {
			Env:             map[string]string{"DIGEST_SCHEDULE": "0 9 * * *"},
			WantErrContains: "no chats",
		},
		"digest without telegram token": {
			Env: map[string]string{
				"DIGEST_SCHEDULE":       "0 9 * * *",
				"DIGEST_TELEGRAM_CHATS": "123",
			},
			WantErrContains: "TELEGRAM_TOKEN is not",
		},
		"digest with bad schedule": {
			Env: map[string]string{
				"TELEGRAM_TOKEN":        tgToken,
				"DIGEST_SCHEDULE":       "every morning",
				"DIGEST_TELEGRAM_CHATS": "123",
			},
			WantErrContains: "DIGEST_SCHEDULE",
		},
		"digest with bad timezone": {
			Env: map[string]string{
				"TELEGRAM_TOKEN":        tgToken,
				"DIGEST_SCHEDULE":       "0 9 * * *",
				"DIGEST_TELEGRAM_CHATS": "123",
				"DIGEST_TIMEZONE":       "Mars/Olympus_Mons",
			},
			WantErrContains: "DIGEST_TIMEZONE",
		},
		"digest scheduled": {
			Env: map[string]string{
				"TELEGRAM_TOKEN":        tgToken,
				"DIGEST_SCHEDULE":       "0 9 * * *",
				"DIGEST_TELEGRAM_CHATS": "123, -100200",
				"DIGEST_TIMEZONE":       "Asia/Shanghai",
			},
			CheckFunc: func(t *testing.T, e *engine) {
				testutil.AssertEqual(t, len(e.cron.Entries()), 1)
			},
		},
	})
}

type mux struct {
	mux *http.ServeMux

	mu            sync.Mutex
	telegramCalls []call
	feishuSends   []map[string]any
	prompts       map[string][]map[string]any // by provider host
}

type call struct {
	Method string
	Args   map[string]any
}

const (
	postTelegram    = "POST api.telegram.org/{token}/{method}"
	postFeishuToken = "POST open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal"
	postFeishuSend  = "POST open.feishu.cn/open-apis/im/v1/messages"
	postZhipu       = "POST open.bigmodel.cn/api/paas/v4/chat/completions"
	postKimi        = "POST api.moonshot.cn/v1/chat/completions"
)

func testMux(t *testing.T, overrides map[string]http.HandlerFunc) *mux {
	m := &mux{
		mux:     http.NewServeMux(),
		prompts: make(map[string][]map[string]any),
	}
	m.mux.HandleFunc(postTelegram, orHandler(overrides[postTelegram], func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, strings.TrimPrefix(r.PathValue("token"), "bot"), tgToken)
		m.mu.Lock()
		defer m.mu.Unlock()
		m.telegramCalls = append(m.telegramCalls, call{
			Method: r.PathValue("method"),
			Args:   testutil.UnmarshalJSON[map[string]any](t, read(t, r.Body)),
		})
		web.RespondJSON(w, map[string]any{"ok": true})
	}))
	m.mux.HandleFunc(postFeishuToken, orHandler(overrides[postFeishuToken], func(w http.ResponseWriter, r *http.Request) {
		web.RespondJSON(w, map[string]any{"code": 0, "tenant_access_token": "t-test", "expire": 7200})
	}))
	m.mux.HandleFunc(postFeishuSend, orHandler(overrides[postFeishuSend], func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.Header.Get("Authorization"), "Bearer t-test")
		m.mu.Lock()
		defer m.mu.Unlock()
		m.feishuSends = append(m.feishuSends, testutil.UnmarshalJSON[map[string]any](t, read(t, r.Body)))
		web.RespondJSON(w, map[string]any{"code": 0, "msg": "success"})
	}))
	m.mux.HandleFunc(postZhipu, orHandler(overrides[postZhipu], m.completion(t, "hi there")))
	m.mux.HandleFunc(postKimi, orHandler(overrides[postKimi], func(w http.ResponseWriter, r *http.Request) {
		m.record(t, r)
		web.RespondJSONStatus(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]string{"message": "quota exceeded", "type": "rate_limit_reached_error"},
		})
	}))
	for pat, h := range overrides {
		switch pat {
		case postTelegram, postFeishuToken, postFeishuSend, postZhipu, postKimi:
			continue
		}
		m.mux.HandleFunc(pat, h)
	}
	return m
}

func (m *mux) completion(t *testing.T, answer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.record(t, r)
		web.RespondJSON(w, map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": answer}}},
		})
	}
}

func (m *mux) record(t *testing.T, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts[r.Host] = append(m.prompts[r.Host], testutil.UnmarshalJSON[map[string]any](t, read(t, r.Body)))
}

func (m *mux) sentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var texts []string
	for _, c := range m.telegramCalls {
		if c.Method == "sendMessage" {
			texts = append(texts, c.Args["text"].(string))
		}
	}
	return texts
}

func orHandler(hh ...http.HandlerFunc) http.HandlerFunc {
	for _, h := range hh {
		if h != nil {
			return h
		}
	}
	return nil
}

func read(t *testing.T, r io.Reader) []byte {
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func testEngine(t *testing.T, m *mux, env map[string]string) *engine {
	t.Helper()
	e := &engine{
		httpc:           testutil.MockHTTPClient(m.mux),
		stderr:          io.Discard,
		tgToken:         tgToken,
		tgSecret:        "tg-secret",
		feishuAppID:     "cli_test",
		feishuAppSecret: "feishu-secret",
		feishuToken:     "feishu-token",
		debugToken:      "debug-token",
		getenv: func(key string) string {
			return env[key]
		},
	}
	if err := e.init.Get(func() error {
		return e.doInit(t.Context())
	}); err != nil {
		t.Fatal(err)
	}
	return e
}

var baselineEnv = map[string]string{"ZAI_API_KEY": "zai-key"}

// serve handles r and waits for the background work it started.
func serve(e *engine, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r.WithContext(logger.Put(r.Context(), e.log)))
	e.tasks.Wait()
	return w
}

func telegramUpdate(text string) string {
	return `{"update_id":1,"message":{"message_id":1,"from":{"id":42,"first_name":"Ada","username":"ada"},"chat":{"id":42,"type":"private"},"date":0,"text":"` + text + `"}}`
}

func telegramRequest(body, secret string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if secret != "" {
		r.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	return r
}

func TestRoot(t *testing.T) {
	t.Parallel()

	e := testEngine(t, testMux(t, nil), baselineEnv)
	w := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertEqual(t, w.Code, http.StatusOK)
	testutil.AssertEqual(t, w.Body.String(), rootText)

	w = serve(e, httptest.NewRequest(http.MethodGet, "/nope", nil))
	testutil.AssertEqual(t, w.Code, http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		env    map[string]string
		wantOK bool
	}{
		"configured": {env: baselineEnv, wantOK: true},
		"no zai key": {env: nil, wantOK: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := testEngine(t, testMux(t, nil), tc.env)
			w := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))
			hr := testutil.UnmarshalJSON[web.HealthResponse](t, w.Body.Bytes())
			testutil.AssertEqual(t, hr.OK, tc.wantOK)
			testutil.AssertEqual(t, hr.Checks["telegram"].Status, "configured")
		})
	}
}

func TestTelegramWebhook(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		env       map[string]string
		body      string
		secret    string
		wantCode  int
		wantBody  string
		wantTexts []string
	}{
		"chat": {
			env:       baselineEnv,
			body:      telegramUpdate("hello"),
			secret:    "tg-secret",
			wantCode:  http.StatusOK,
			wantBody:  "OK",
			wantTexts: []string{"hi there"},
		},
		"help": {
			env:       baselineEnv,
			body:      telegramUpdate("/help@openclaw_bot"),
			secret:    "tg-secret",
			wantCode:  http.StatusOK,
			wantBody:  "OK",
			wantTexts: []string{strings.TrimSpace(bot.Help())},
		},
		"wrong secret": {
			env:      baselineEnv,
			body:     telegramUpdate("hello"),
			secret:   "wrong",
			wantCode: http.StatusUnauthorized,
			wantBody: "Unauthorized",
		},
		"wrong secret and missing zai key": {
			body:     telegramUpdate("hello"),
			secret:   "wrong",
			wantCode: http.StatusUnauthorized,
			wantBody: "Unauthorized",
		},
		"missing zai key": {
			body:     telegramUpdate("hello"),
			secret:   "tg-secret",
			wantCode: http.StatusInternalServerError,
			wantBody: configErrorText,
		},
		"malformed update": {
			env:      baselineEnv,
			body:     `{"message":`,
			secret:   "tg-secret",
			wantCode: http.StatusInternalServerError,
			wantBody: internalErrorText,
		},
		"update without text": {
			env:      baselineEnv,
			body:     `{"update_id":1,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"date":0,"sticker":{"file_id":"x"}}}`,
			secret:   "tg-secret",
			wantCode: http.StatusOK,
			wantBody: "OK",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m := testMux(t, nil)
			e := testEngine(t, m, tc.env)
			w := serve(e, telegramRequest(tc.body, tc.secret))
			testutil.AssertEqual(t, w.Code, tc.wantCode)
			testutil.AssertEqual(t, w.Body.String(), tc.wantBody)
			testutil.AssertEqual(t, m.sentTexts(), tc.wantTexts)
		})
	}
}

func TestTelegramFailover(t *testing.T) {
	t.Parallel()

	m := testMux(t, nil)
	e := testEngine(t, m, map[string]string{
		"MOONSHOT_API_KEY": "kimi-key",
		"ZAI_API_KEY":      "zai-key",
	})

	serve(e, telegramRequest(telegramUpdate("hello"), "tg-secret"))

	testutil.AssertEqual(t, m.sentTexts(), []string{"hi there"})
	testutil.AssertEqual(t, len(m.prompts["api.moonshot.cn"]), 1)
	testutil.AssertEqual(t, len(m.prompts["open.bigmodel.cn"]), 1)
}

func TestTelegramTerminalError(t *testing.T) {
	t.Parallel()

	m := testMux(t, map[string]http.HandlerFunc{
		postKimi: func(w http.ResponseWriter, r *http.Request) {
			web.RespondJSONStatus(w, http.StatusBadRequest, map[string]any{
				"error": map[string]string{"message": "invalid temperature"},
			})
		},
	})
	e := testEngine(t, m, map[string]string{
		"MOONSHOT_API_KEY": "kimi-key",
		"ZAI_API_KEY":      "zai-key",
	})

	serve(e, telegramRequest(telegramUpdate("hello"), "tg-secret"))

	testutil.AssertEqual(t, m.sentTexts(), []string{"kimi error: API error: 400: invalid temperature"})
	testutil.AssertEqual(t, len(m.prompts["open.bigmodel.cn"]), 0)
}

func TestNewsWithUnreachableSources(t *testing.T) {
	t.Parallel()

	// No feed routes: every source gets a 404.
	m := testMux(t, nil)
	e := testEngine(t, m, baselineEnv)

	serve(e, telegramRequest(telegramUpdate("/news"), "tg-secret"))

	testutil.AssertEqual(t, m.sentTexts(), []string{bot.NewsAck, "hi there"})
	prompts := m.prompts["open.bigmodel.cn"]
	if len(prompts) != 1 {
		t.Fatalf("want 1 prompt, got %d", len(prompts))
	}
	msgs := prompts[0]["messages"].([]any)
	testutil.AssertEqual(t, msgs[0].(map[string]any)["content"], bot.NewsSystem())
	testutil.AssertEqual(t, msgs[1].(map[string]any)["content"], "Raw Data:\n"+news.NoUpdates)
}

func feishuRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/feishu", strings.NewReader(body))
}

func TestFeishuVerification(t *testing.T) {
	t.Parallel()

	m := testMux(t, nil)
	e := testEngine(t, m, baselineEnv)

	w := serve(e, feishuRequest(`{"challenge":"abc","token":"feishu-token","type":"url_verification"}`))
	testutil.AssertEqual(t, w.Code, http.StatusOK)
	testutil.AssertEqual(t, testutil.UnmarshalJSON[map[string]string](t, w.Body.Bytes()), map[string]string{"challenge": "abc"})
	testutil.AssertEqual(t, len(m.feishuSends), 0)
	testutil.AssertEqual(t, len(m.prompts), 0)

	w = serve(e, feishuRequest(`{"challenge":"abc","token":"wrong","type":"url_verification"}`))
	testutil.AssertEqual(t, w.Code, http.StatusUnauthorized)
}

func TestFeishuMessage(t *testing.T) {
	t.Parallel()

	m := testMux(t, nil)
	e := testEngine(t, m, baselineEnv)

	body := `{"schema":"2.0","header":{"event_id":"1","token":"feishu-token","event_type":"im.message.receive_v1"},` +
		`"event":{"sender":{"sender_id":{"open_id":"ou_1"}},"message":{"message_id":"om_1","chat_id":"oc_1","chat_type":"group","message_type":"text","content":"{\"text\":\"@_user_1 hello\"}"}}}`
	w := serve(e, feishuRequest(body))
	testutil.AssertEqual(t, w.Code, http.StatusOK)

	testutil.AssertEqual(t, m.feishuSends, []map[string]any{{
		"receive_id": "oc_1",
		"msg_type":   "text",
		"content":    `{"text":"hi there"}`,
	}})
	msgs := m.prompts["open.bigmodel.cn"][0]["messages"].([]any)
	testutil.AssertEqual(t, msgs[len(msgs)-1].(map[string]any)["content"], "hello")
}

func TestFeishuIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	m := testMux(t, nil)
	e := testEngine(t, m, baselineEnv)

	w := serve(e, feishuRequest(`{"schema":"2.0","header":{"token":"feishu-token","event_type":"im.chat.member.bot.added_v1"},"event":{}}`))
	testutil.AssertEqual(t, w.Code, http.StatusOK)
	testutil.AssertEqual(t, len(m.feishuSends), 0)

	w = serve(e, feishuRequest(`not json`))
	testutil.AssertEqual(t, w.Code, http.StatusBadRequest)
}

func TestDebugLogs(t *testing.T) {
	t.Parallel()

	e := testEngine(t, testMux(t, nil), baselineEnv)
	e.log.Info("marker line")

	w := serve(e, httptest.NewRequest(http.MethodGet, "/debug/logs", nil))
	testutil.AssertEqual(t, w.Code, http.StatusUnauthorized)

	r := httptest.NewRequest(http.MethodGet, "/debug/logs", nil)
	r.Header.Set("Authorization", "Bearer debug-token")
	w = serve(e, r)
	testutil.AssertEqual(t, w.Code, http.StatusOK)
	testutil.AssertContains(t, w.Body.String(), "marker line")
}

func TestSendDigest(t *testing.T) {
	t.Parallel()

	m := testMux(t, nil)
	e := testEngine(t, m, baselineEnv)

	e.sendDigest(logger.Put(t.Context(), e.log), []int64{42, -100}, []string{"oc_1"})

	testutil.AssertEqual(t, m.sentTexts(), []string{"hi there", "hi there"})
	testutil.AssertEqual(t, len(m.feishuSends), 1)
	// No acknowledgement is sent by the scheduled digest.
	testutil.AssertEqual(t, len(m.prompts["open.bigmodel.cn"]), 1)
}

func TestBackgroundRecovers(t *testing.T) {
	t.Parallel()

	e := testEngine(t, testMux(t, nil), baselineEnv)
	ran := false
	e.background(t.Context(), "test", func(ctx context.Context) {
		ran = true
		panic("boom")
	})
	e.tasks.Wait()
	testutil.AssertEqual(t, ran, true)
}

func TestSetWebhook(t *testing.T) {
	t.Parallel()

	m := testMux(t, nil)
	e := testEngine(t, m, baselineEnv)

	if err := e.setWebhook(t.Context()); !errors.Is(err, errNoHost) {
		t.Fatalf("setWebhook() = %v, want errNoHost", err)
	}

	e.host = "openclaw.example.com"
	if err := e.setWebhook(t.Context()); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, m.telegramCalls, []call{{
		Method: "setWebhook",
		Args: map[string]any{
			"url":          "https://openclaw.example.com/webhook",
			"secret_token": "tg-secret",
		},
	}})
}

func TestParseChatIDs(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in      string
		want    []int64
		wantErr bool
	}{
		"empty":   {in: ""},
		"list":    {in: "1, -100200 ,3,", want: []int64{1, -100200, 3}},
		"invalid": {in: "1,@channel", wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := parseChatIDs(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseChatIDs() error = %v, wantErr %v", err, tc.wantErr)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}
