// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram talks to the Telegram Bot API: it decodes webhook updates,
// sends replies and registers the webhook.
package telegram

import (
	"cmp"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/request"
)

const (
	// DefaultAPIURL is the Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"
	// SecretHeader carries the secret token set by SetWebhook.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	maxMessageLen  = 4096
	sendRetryLimit = 5 // N attempts to retry message sending
)

// ErrNoMessage is returned by DecodeUpdate for updates that carry no text
// message, like edits, reactions or stickers.
var ErrNoMessage = errors.New("telegram: update has no text message")

// Message is an incoming text message.
type Message struct {
	ChatID int64
	Text   string
	Sender string
}

// DecodeUpdate reads a webhook update.
func DecodeUpdate(r io.Reader) (Message, error) {
	var upd tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&upd); err != nil {
		return Message{}, fmt.Errorf("decoding update: %w", err)
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return Message{}, ErrNoMessage
	}
	m := Message{ChatID: msg.Chat.ID, Text: msg.Text}
	if msg.From != nil {
		m.Sender = msg.From.UserName
		if m.Sender == "" {
			m.Sender = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		}
	}
	return m, nil
}

// ValidSecret reports whether r carries the expected secret token. An empty
// secret disables the check.
func ValidSecret(r *http.Request, secret string) bool {
	if secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// Client sends requests to the Bot API.
type Client struct {
	Token      string
	HTTPClient *http.Client
	Scrubber   *strings.Replacer
	// APIURL overrides DefaultAPIURL.
	APIURL string

	makeRequest func(ctx context.Context, method string, args any) error
	sleep       func(context.Context, time.Duration) bool
}

type outgoing struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMessage sends text to chatID as Markdown. Long texts are split into
// several messages. If Telegram can't parse the Markdown, the chunk is sent
// again as plain text.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text) {
		msg := &outgoing{ChatID: chatID, Text: chunk, ParseMode: tgbotapi.ModeMarkdown}
		err := c.send(ctx, msg)
		if isParseError(err) {
			logger.Get(ctx).Warn("markdown rejected, resending as plain text", slog.Int64("chat_id", chatID))
			msg.ParseMode = ""
			err = c.send(ctx, msg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg *outgoing) error {
	var err error
	for range sendRetryLimit {
		err = c.do(ctx, "sendMessage", msg)
		if err == nil {
			return nil
		}

		retryable, wait := isRateLimited(err)
		if !retryable {
			return err
		}

		logger.Get(ctx).Warn("sending rate limited, waiting", slog.Int64("chat_id", msg.ChatID), slog.Duration("wait", wait))
		if !c.wait(ctx, wait) {
			return ctx.Err()
		}
	}
	return err
}

var errNoHost = errors.New("telegram: webhook URL has no host")

// SetWebhook points the bot at url. Telegram will send secret in
// SecretHeader with every update.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	if !strings.HasPrefix(url, "https://") || len(url) == len("https://") {
		return errNoHost
	}
	return c.do(ctx, "setWebhook", map[string]string{
		"url":          url,
		"secret_token": secret,
	})
}

func (c *Client) do(ctx context.Context, method string, args any) error {
	if c.makeRequest != nil {
		return c.makeRequest(ctx, method, args)
	}
	_, err := request.Make[request.IgnoreResponse](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        strings.TrimSuffix(cmp.Or(c.APIURL, DefaultAPIURL), "/") + "/bot" + c.Token + "/" + method,
		Body:       args,
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	return err
}

func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	return sleep(ctx, d)
}

func splitMessage(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxMessageLen {
		return []string{text}
	}

	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= maxMessageLen {
			chunks = append(chunks, text)
			break
		}

		var (
			lastNewline    = -1
			lastWhitespace = -1
			byteCap        = len(text)
			runeCount      int
		)

		for i, r := range text {
			if runeCount == maxMessageLen {
				byteCap = i
				break
			}
			runeCount++

			if r == '\n' {
				lastNewline = i
				continue
			}
			if unicode.IsSpace(r) {
				lastWhitespace = i
			}
		}

		splitAt := byteCap
		switch {
		case lastNewline > 0:
			splitAt = lastNewline
		case lastWhitespace > 0:
			splitAt = lastWhitespace
		}

		if chunk := strings.TrimSpace(text[:splitAt]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[splitAt:])
	}

	return chunks
}

type errorResponse struct {
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func isRateLimited(err error) (bool, time.Duration) {
	var statusErr *request.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		return false, 0
	}
	var resp errorResponse
	if err := json.Unmarshal(statusErr.Body, &resp); err != nil {
		return false, 0
	}
	return true, time.Duration(resp.Parameters.RetryAfter) * time.Second
}

// isParseError reports whether Telegram rejected the message markup.
func isParseError(err error) bool {
	var statusErr *request.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		return false
	}
	var resp errorResponse
	if err := json.Unmarshal(statusErr.Body, &resp); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(resp.Description), "can't parse entities")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
