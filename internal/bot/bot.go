// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package bot turns chat messages into replies: it dispatches commands,
// gathers news for them and asks the AI provider chain to answer.
package bot

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"go.astrophena.name/openclaw/internal/ai"
	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/news"
)

// ReplyFunc sends one message back to the chat the request came from.
type ReplyFunc func(ctx context.Context, text string) error

// Responder answers prompts. It never fails.
type Responder interface {
	Respond(ctx context.Context, p ai.Prompt) string
}

// Digester builds a news digest.
type Digester interface {
	Digest(ctx context.Context) string
}

// Gatherer collects intel material.
type Gatherer interface {
	Gather(ctx context.Context) news.Report
}

// Bot handles messages. It keeps no state between messages.
type Bot struct {
	AI    Responder
	News  Digester
	Intel Gatherer
}

// Acknowledgements sent before slow work.
const (
	NewsAck  = "🕵️ Collecting the latest AI news (Anthropic, Google, Hacker News, GitHub)..."
	IntelAck = "🔍 Gathering Claude Code intel from GitHub and Hacker News..."
)

// IntelSystem is the system instruction of the intel flow.
const IntelSystem = "You are a tech trend analyst specializing in developer tools."

var (
	//go:embed prompts/news.tmpl
	newsSystem string
	//go:embed prompts/help.txt
	helpText string
	//go:embed prompts/intel.tmpl
	intelSrc      string
	intelTemplate = template.Must(template.New("intel").Funcs(template.FuncMap{
		"json": toJSON,
	}).Parse(intelSrc))
)

// NewsSystem returns the system instruction of the news flow.
func NewsSystem() string { return newsSystem }

// Help returns the help message.
func Help() string { return helpText }

type handler func(b *Bot, ctx context.Context, text string, reply ReplyFunc) error

var commands = map[string]handler{
	"/news":       (*Bot).handleNews,
	"/intel":      (*Bot).handleIntel,
	"/claudecode": (*Bot).handleIntel,
	"/help":       (*Bot).handleHelp,
	"/start":      (*Bot).handleHelp,
}

// Command returns the command key of text: its first word, lower-cased,
// without a "@botname" suffix.
func Command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(fields[0])
	if strings.HasPrefix(cmd, "/") {
		cmd, _, _ = strings.Cut(cmd, "@")
	}
	return cmd
}

// Handle answers text through reply. Unknown commands and plain text go to
// the AI unchanged. The returned error is the error of the final reply.
func (b *Bot) Handle(ctx context.Context, text string, reply ReplyFunc) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	cmd := Command(text)
	logger.Get(ctx).Debug("handling message", "command", cmd)
	if h, ok := commands[cmd]; ok {
		return h(b, ctx, text, reply)
	}
	return reply(ctx, b.AI.Respond(ctx, ai.Prompt{User: text}))
}

// ack sends an acknowledgement. Failing to send it does not stop the flow.
func ack(ctx context.Context, reply ReplyFunc, text string) {
	if err := reply(ctx, text); err != nil {
		logger.Get(ctx).Warn("sending acknowledgement failed", "error", err)
	}
}

// NewsReport runs the news flow without acknowledgement and returns the
// summary.
func (b *Bot) NewsReport(ctx context.Context) string {
	digest := b.News.Digest(ctx)
	return b.AI.Respond(ctx, ai.Prompt{
		User:   "Raw Data:\n" + digest,
		System: newsSystem,
	})
}

func (b *Bot) handleNews(ctx context.Context, _ string, reply ReplyFunc) error {
	ack(ctx, reply, NewsAck)
	return reply(ctx, b.NewsReport(ctx))
}

func (b *Bot) handleIntel(ctx context.Context, _ string, reply ReplyFunc) error {
	ack(ctx, reply, IntelAck)
	prompt, err := IntelPrompt(b.Intel.Gather(ctx))
	if err != nil {
		return err
	}
	return reply(ctx, b.AI.Respond(ctx, ai.Prompt{User: prompt, System: IntelSystem}))
}

func (b *Bot) handleHelp(ctx context.Context, _ string, reply ReplyFunc) error {
	return reply(ctx, helpText)
}

// IntelPrompt renders the intel prompt for r.
func IntelPrompt(r news.Report) (string, error) {
	var buf bytes.Buffer
	if err := intelTemplate.Execute(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
