// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"net/http"

	"go.astrophena.name/openclaw/internal/feishu"
	"go.astrophena.name/openclaw/internal/logger"
	"go.astrophena.name/openclaw/internal/telegram"
	"go.astrophena.name/openclaw/internal/web"
)

// handleTelegram acknowledges the update and answers it in the background.
func (e *engine) handleTelegram(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(r.Context())

	if !telegram.ValidSecret(r, e.tgSecret) {
		web.RespondError(w, r, web.ErrUnauthorized)
		return
	}
	if e.tg == nil || len(e.missingBaseline()) > 0 {
		log.Error("telegram webhook called without required configuration", "missing", e.missingBaseline(), "telegram", e.tg != nil)
		web.RespondText(w, http.StatusInternalServerError, configErrorText)
		return
	}

	msg, err := telegram.DecodeUpdate(r.Body)
	if errors.Is(err, telegram.ErrNoMessage) {
		web.RespondText(w, http.StatusOK, "OK")
		return
	}
	if err != nil {
		log.Error("decoding telegram update", "error", err)
		web.RespondText(w, http.StatusInternalServerError, internalErrorText)
		return
	}

	log.Info("received message", "platform", "telegram", "chat_id", msg.ChatID, "sender", msg.Sender, "text", msg.Text)
	e.background(r.Context(), "telegram", func(ctx context.Context) {
		reply := func(ctx context.Context, text string) error {
			return e.tg.SendMessage(ctx, msg.ChatID, text)
		}
		if err := e.bot.Handle(ctx, msg.Text, reply); err != nil {
			logger.Get(ctx).Error("answering telegram message", "chat_id", msg.ChatID, "error", err)
		}
	})
	web.RespondText(w, http.StatusOK, "OK")
}

type feishuAck struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// handleFeishu answers URL verification requests and message events.
func (e *engine) handleFeishu(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(r.Context())

	env, err := feishu.Decode(r.Body)
	if err != nil {
		log.Warn("decoding feishu event", "error", err)
		web.RespondJSONError(w, r, web.ErrBadRequest)
		return
	}
	if err := env.Verify(e.feishuToken); err != nil {
		log.Warn("rejected feishu event", "error", err)
		web.RespondJSONError(w, r, web.ErrUnauthorized)
		return
	}
	if env.IsVerification() {
		web.RespondJSON(w, map[string]string{"challenge": env.Challenge})
		return
	}

	if e.feishu == nil || len(e.missingBaseline()) > 0 {
		log.Error("feishu webhook called without required configuration", "missing", e.missingBaseline(), "feishu", e.feishu != nil)
		web.RespondText(w, http.StatusInternalServerError, configErrorText)
		return
	}

	msg, err := env.Message()
	if errors.Is(err, feishu.ErrNoMessage) {
		web.RespondJSON(w, feishuAck{Msg: "ignored"})
		return
	}
	if err != nil {
		log.Warn("decoding feishu message", "error", err)
		web.RespondJSON(w, feishuAck{Msg: "ignored"})
		return
	}

	log.Info("received message", "platform", "feishu", "chat_id", msg.ChatID, "sender", msg.Sender, "text", msg.Text)
	e.background(r.Context(), "feishu", func(ctx context.Context) {
		reply := func(ctx context.Context, text string) error {
			return e.feishu.SendText(ctx, msg.ChatID, text)
		}
		if err := e.bot.Handle(ctx, msg.Text, reply); err != nil {
			logger.Get(ctx).Error("answering feishu message", "chat_id", msg.ChatID, "error", err)
		}
	})
	web.RespondJSON(w, feishuAck{Msg: "ok"})
}
