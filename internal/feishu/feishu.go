// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package feishu implements the bits of the Feishu (Lark) open platform the
// bot needs: event subscription callbacks and sending text messages.
package feishu

import (
	"cmp"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.astrophena.name/openclaw/internal/request"
)

// DefaultBaseURL is the open platform endpoint.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

// Event types and message types the bot understands.
const (
	TypeURLVerification = "url_verification"
	EventMessageReceive = "im.message.receive_v1"
	MessageTypeText     = "text"
)

var (
	// ErrInvalidToken means the callback carries a wrong verification token.
	ErrInvalidToken = errors.New("feishu: invalid verification token")
	// ErrNoMessage means the event is not an incoming text message.
	ErrNoMessage = errors.New("feishu: event has no text message")
)

// Envelope is an event callback body. URL verification requests use the
// top-level Type, Token and Challenge fields, schema 2.0 events use Header
// and Event.
type Envelope struct {
	Schema    string  `json:"schema,omitempty"`
	Header    *Header `json:"header,omitempty"`
	Event     *Event  `json:"event,omitempty"`
	Challenge string  `json:"challenge,omitempty"`
	Type      string  `json:"type,omitempty"`
	Token     string  `json:"token,omitempty"`
}

// Header is the schema 2.0 event header.
type Header struct {
	EventID    string `json:"event_id"`
	Token      string `json:"token"`
	CreateTime string `json:"create_time"`
	EventType  string `json:"event_type"`
	TenantKey  string `json:"tenant_key"`
	AppID      string `json:"app_id"`
}

// Event is the payload of im.message.receive_v1.
type Event struct {
	Sender *struct {
		SenderID struct {
			OpenID  string `json:"open_id"`
			UserID  string `json:"user_id"`
			UnionID string `json:"union_id"`
		} `json:"sender_id"`
		SenderType string `json:"sender_type"`
	} `json:"sender,omitempty"`
	Message *struct {
		MessageID   string `json:"message_id"`
		ChatID      string `json:"chat_id"`
		ChatType    string `json:"chat_type"`
		MessageType string `json:"message_type"`
		// Content is a JSON string, {"text":"..."} for text messages.
		Content string `json:"content"`
	} `json:"message,omitempty"`
}

// Message is an incoming text message.
type Message struct {
	ChatID string
	Text   string
	Sender string
}

// Decode reads an event callback body.
func Decode(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &env, nil
}

// IsVerification reports whether env is a URL verification request.
func (env *Envelope) IsVerification() bool {
	return env.Type == TypeURLVerification
}

// Verify checks the verification token. An empty want disables the check.
func (env *Envelope) Verify(want string) error {
	if want == "" {
		return nil
	}
	got := env.Token
	if env.Header != nil && env.Header.Token != "" {
		got = env.Header.Token
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

var mentionRe = regexp.MustCompile(`@_user_\d+`)

// Message extracts the text message carried by env. Mention placeholders
// are removed from the text.
func (env *Envelope) Message() (Message, error) {
	if env.Header == nil || env.Header.EventType != EventMessageReceive {
		return Message{}, ErrNoMessage
	}
	if env.Event == nil || env.Event.Message == nil || env.Event.Message.MessageType != MessageTypeText {
		return Message{}, ErrNoMessage
	}
	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(env.Event.Message.Content), &content); err != nil {
		return Message{}, fmt.Errorf("decoding message content: %w", err)
	}
	text := strings.TrimSpace(mentionRe.ReplaceAllString(content.Text, ""))
	if text == "" {
		return Message{}, ErrNoMessage
	}
	m := Message{ChatID: env.Event.Message.ChatID, Text: text}
	if s := env.Event.Sender; s != nil {
		m.Sender = cmp.Or(s.SenderID.OpenID, s.SenderID.UserID, s.SenderID.UnionID)
	}
	return m, nil
}

// APIError is an error reported in the body of an open platform response.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu: code %d: %s", e.Code, e.Msg)
}

// Client calls the open platform as an internal app.
type Client struct {
	AppID      string
	AppSecret  string
	HTTPClient *http.Client
	Scrubber   *strings.Replacer
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// TenantToken exchanges the app credentials for a tenant access token.
func (c *Client) TenantToken(ctx context.Context) (string, error) {
	resp, err := request.Make[tokenResponse](ctx, request.Params{
		Method: http.MethodPost,
		URL:    c.url("/auth/v3/tenant_access_token/internal"),
		Body: map[string]string{
			"app_id":     c.AppID,
			"app_secret": c.AppSecret,
		},
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return "", fmt.Errorf("getting tenant access token: %w", err)
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("getting tenant access token: %w", &APIError{Code: resp.Code, Msg: resp.Msg})
	}
	return resp.TenantAccessToken, nil
}

type sendRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
}

type sendResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SendText sends text to the chat. A fresh tenant token is obtained for every
// call.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	token, err := c.TenantToken(ctx)
	if err != nil {
		return err
	}
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	resp, err := request.Make[sendResponse](ctx, request.Params{
		Method: http.MethodPost,
		URL:    c.url("/im/v1/messages?receive_id_type=chat_id"),
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json; charset=utf-8",
		},
		Body: sendRequest{
			ReceiveID: chatID,
			MsgType:   MessageTypeText,
			Content:   string(content),
		},
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("sending message: %w", &APIError{Code: resp.Code, Msg: resp.Msg})
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(cmp.Or(c.BaseURL, DefaultBaseURL), "/") + path
}
