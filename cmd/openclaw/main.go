// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"go.astrophena.name/openclaw/internal/ai"
	"go.astrophena.name/openclaw/internal/bot"
	"go.astrophena.name/openclaw/internal/cli"
	"go.astrophena.name/openclaw/internal/config"
	"go.astrophena.name/openclaw/internal/feishu"
	"go.astrophena.name/openclaw/internal/httplogger"
	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/news"
	"go.astrophena.name/openclaw/internal/systemd"
	"go.astrophena.name/openclaw/internal/telegram"
	"go.astrophena.name/openclaw/internal/util/syncx"
	"go.astrophena.name/openclaw/internal/web"
)

func main() { cli.Main(new(engine)) }

const (
	defaultPort    = "3000"
	defaultEnvFile = ".env"
	logLineLimit   = 300
	// Providers can be slow to answer long prompts.
	httpTimeout = 60 * time.Second
	taskTimeout = 5 * time.Minute
)

func (e *engine) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&e.prod, "prod", false, "Run in production mode: register the Telegram webhook on start.")
	fs.BoolVar(&e.verbose, "verbose", false, "Log debug messages and every outgoing HTTP request.")
	fs.StringVar(&e.configPath, "config", "", "Path to a YAML `file` with provider and news source settings.")
	fs.StringVar(&e.envFile, "env-file", defaultEnvFile, "Read environment variables from this dotenv `file` if it exists.")
	fs.StringVar(&e.addr, "addr", "", "Listen on `host:port`. Overrides PORT.")
}

func (e *engine) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	if len(env.Args) > 0 {
		return fmt.Errorf("%w: unexpected arguments %q", cli.ErrInvalidArgs, env.Args)
	}

	dotenv, err := readEnvFile(e.envFile)
	if err != nil {
		return err
	}
	e.getenv = func(key string) string {
		return cmp.Or(env.Getenv(key), dotenv[key])
	}

	// Load configuration from environment variables.
	e.addr = cmp.Or(e.addr, ":"+cmp.Or(e.getenv("PORT"), defaultPort))
	e.host = cmp.Or(e.host, e.getenv("HOST"))
	e.configPath = cmp.Or(e.configPath, e.getenv("OPENCLAW_CONFIG"))
	e.tgToken = cmp.Or(e.tgToken, e.getenv("TELEGRAM_TOKEN"))
	e.tgSecret = cmp.Or(e.tgSecret, e.getenv("TELEGRAM_SECRET"))
	e.feishuAppID = cmp.Or(e.feishuAppID, e.getenv("FEISHU_APP_ID"))
	e.feishuAppSecret = cmp.Or(e.feishuAppSecret, e.getenv("FEISHU_APP_SECRET"))
	e.feishuToken = cmp.Or(e.feishuToken, e.getenv("FEISHU_VERIFICATION_TOKEN"))
	e.ghToken = cmp.Or(e.ghToken, e.getenv("GITHUB_TOKEN"))
	e.debugToken = cmp.Or(e.debugToken, e.getenv("DEBUG_TOKEN"))
	e.digestSchedule = cmp.Or(e.digestSchedule, e.getenv("DIGEST_SCHEDULE"))
	e.digestTimezone = cmp.Or(e.digestTimezone, e.getenv("DIGEST_TIMEZONE"), "UTC")
	e.digestTelegramChats = cmp.Or(e.digestTelegramChats, e.getenv("DIGEST_TELEGRAM_CHATS"))
	e.digestFeishuChats = cmp.Or(e.digestFeishuChats, e.getenv("DIGEST_FEISHU_CHATS"))

	e.stderr = env.Stderr

	// Initialize internal state.
	if err := e.init.Get(func() error {
		return e.doInit(ctx)
	}); err != nil {
		return err
	}
	ctx = logger.Put(ctx, e.log)

	// Used in tests.
	if e.noServerStart {
		return nil
	}

	if e.prod {
		if err := e.setWebhook(ctx); err != nil {
			return err
		}
		e.log.Info("running in production mode")
	} else {
		e.log.Info("running in development mode")
	}

	if e.cron != nil {
		e.cron.Start()
		e.log.Info("news digest scheduled", "schedule", e.digestSchedule, "timezone", e.digestTimezone)
	}

	go systemd.WatchdogLoop(ctx)

	return e.srv.ListenAndServe(ctx)
}

type engine struct {
	init syncx.Lazy[error] // main initialization

	// initialized by doInit
	ai        *ai.Engine
	bot       *bot.Bot
	cfg       *config.Config
	cron      *cron.Cron
	feishu    *feishu.Client
	log       *logger.Logger
	logStream *logger.Streamer
	mux       *http.ServeMux
	scrubber  *strings.Replacer
	srv       *web.Server
	tasks     sync.WaitGroup
	tg        *telegram.Client

	// configuration, read-only after initialization
	addr                string
	configPath          string
	debugToken          string
	digestFeishuChats   string
	digestSchedule      string
	digestTelegramChats string
	digestTimezone      string
	envFile             string
	feishuAppID         string
	feishuAppSecret     string
	feishuToken         string
	getenv              func(string) string
	ghToken             string
	host                string
	httpc               *http.Client
	prod                bool
	stderr              io.Writer
	tgSecret            string
	tgToken             string
	verbose             bool

	// for tests
	noServerStart bool
	ready         func() // see web.Server.Ready
}

func (e *engine) doInit(ctx context.Context) error {
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	if e.getenv == nil {
		e.getenv = func(string) string { return "" }
	}

	e.logStream = logger.NewStreamer(logLineLimit)
	e.log = logger.New(io.MultiWriter(e.stderr, e.logStream))
	if e.verbose {
		e.log.Level.Set(slog.LevelDebug)
	}
	ctx = logger.Put(ctx, e.log)

	cfg := config.Default()
	if e.configPath != "" {
		var err error
		if cfg, err = config.Load(e.configPath); err != nil {
			return err
		}
	}
	if order := e.getenv("AI_PROVIDERS"); order != "" {
		if err := cfg.SetOrder(order); err != nil {
			return fmt.Errorf("AI_PROVIDERS: %w", err)
		}
	}
	e.cfg = cfg

	e.initScrubber()

	if e.httpc == nil {
		e.httpc = &http.Client{Timeout: httpTimeout}
	}
	if e.verbose {
		transport := e.httpc.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		httpc := *e.httpc
		httpc.Transport = httplogger.New(transport, e.log.Logger, e.scrubber)
		e.httpc = &httpc
	}

	e.ai = &ai.Engine{Providers: e.providers()}
	e.bot = &bot.Bot{
		AI:    e.ai,
		News:  &news.Aggregator{Sources: e.sources(), Timeout: httpTimeout},
		Intel: e.intel(),
	}

	if e.tgToken != "" {
		e.tg = &telegram.Client{
			Token:      e.tgToken,
			HTTPClient: e.httpc,
			Scrubber:   e.scrubber,
		}
	}
	if e.feishuAppID != "" && e.feishuAppSecret != "" {
		e.feishu = &feishu.Client{
			AppID:      e.feishuAppID,
			AppSecret:  e.feishuAppSecret,
			HTTPClient: e.httpc,
			Scrubber:   e.scrubber,
		}
	}

	if e.digestSchedule != "" {
		if err := e.initDigest(ctx); err != nil {
			return err
		}
	}

	e.initRoutes()
	e.srv = &web.Server{
		Addr: e.addr,
		Mux:  e.mux,
		Ready: func() {
			systemd.Notify(ctx, systemd.Ready)
			if e.ready != nil {
				e.ready()
			}
		},
		OnShutdown: e.shutdown,
	}

	if missing := e.missingBaseline(); len(missing) > 0 {
		e.log.Warn("required AI provider keys are missing, webhooks will fail", "keys", missing)
	}
	e.log.Debug("initialized", "providers", e.ai.Available(), "sources", len(e.cfg.Sources))

	return nil
}

func (e *engine) initScrubber() {
	secrets := []string{
		e.tgToken,
		e.tgSecret,
		e.feishuAppSecret,
		e.feishuToken,
		e.ghToken,
		e.debugToken,
	}
	for _, p := range e.cfg.Providers {
		secrets = append(secrets, e.getenv(p.KeyEnv))
	}
	var scrubPairs []string
	for _, val := range secrets {
		if val != "" {
			scrubPairs = append(scrubPairs, val, "[EXPUNGED]")
		}
	}
	if len(scrubPairs) > 0 {
		e.scrubber = strings.NewReplacer(scrubPairs...)
	}
}

// missingBaseline returns the key variables of required providers that are
// not set.
func (e *engine) missingBaseline() []string {
	var missing []string
	for _, p := range e.cfg.Providers {
		if p.Required && e.getenv(p.KeyEnv) == "" {
			missing = append(missing, p.KeyEnv)
		}
	}
	return missing
}

// background runs f after the current request is answered. f gets a context
// that is not canceled with the request, but is limited by taskTimeout.
// Shutdown waits for background tasks.
func (e *engine) background(ctx context.Context, name string, f func(context.Context)) {
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), taskTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Get(ctx).Error("background task panicked", "task", name, "panic", r)
			}
		}()
		f(ctx)
	}()
}

func (e *engine) shutdown(ctx context.Context) {
	systemd.Notify(ctx, systemd.Stopping)
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	done := make(chan struct{})
	go func() {
		e.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.log.Warn("gave up waiting for background tasks", "error", ctx.Err())
	}
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vars, nil
}

var errNoHost = errors.New("host hasn't set; pass it with HOST environment variable")

func (e *engine) setWebhook(ctx context.Context) error {
	if e.tg == nil {
		e.log.Warn("TELEGRAM_TOKEN is not set, not registering the webhook")
		return nil
	}
	if e.host == "" {
		return errNoHost
	}
	u := &url.URL{
		Scheme: "https",
		Host:   e.host,
		Path:   "/webhook",
	}
	return e.tg.SetWebhook(ctx, u.String(), e.tgSecret)
}
