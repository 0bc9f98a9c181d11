// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"go.astrophena.name/openclaw/internal/logger"
)

// initDigest schedules the news digest. Jobs run as background tasks derived
// from ctx.
func (e *engine) initDigest(ctx context.Context) error {
	loc, err := time.LoadLocation(e.digestTimezone)
	if err != nil {
		return fmt.Errorf("DIGEST_TIMEZONE: %w", err)
	}
	tgChats, err := parseChatIDs(e.digestTelegramChats)
	if err != nil {
		return fmt.Errorf("DIGEST_TELEGRAM_CHATS: %w", err)
	}
	feishuChats := splitList(e.digestFeishuChats)

	switch {
	case len(tgChats) > 0 && e.tg == nil:
		return errors.New("DIGEST_TELEGRAM_CHATS is set, but TELEGRAM_TOKEN is not")
	case len(feishuChats) > 0 && e.feishu == nil:
		return errors.New("DIGEST_FEISHU_CHATS is set, but FEISHU_APP_ID or FEISHU_APP_SECRET is not")
	case len(tgChats) == 0 && len(feishuChats) == 0:
		return errors.New("DIGEST_SCHEDULE is set, but there are no chats to send the digest to")
	}

	e.cron = cron.New(cron.WithLocation(loc))
	if _, err := e.cron.AddFunc(e.digestSchedule, func() {
		e.background(ctx, "digest", func(ctx context.Context) {
			e.sendDigest(ctx, tgChats, feishuChats)
		})
	}); err != nil {
		return fmt.Errorf("DIGEST_SCHEDULE: %w", err)
	}
	return nil
}

// sendDigest runs the news flow once and sends the summary to every chat.
// A failed chat does not stop the others.
func (e *engine) sendDigest(ctx context.Context, tgChats []int64, feishuChats []string) {
	log := logger.Get(ctx)
	start := time.Now()
	report := e.bot.NewsReport(ctx)

	for _, id := range tgChats {
		if err := e.tg.SendMessage(ctx, id, report); err != nil {
			log.Error("sending digest", "platform", "telegram", "chat_id", id, "error", err)
		}
	}
	for _, id := range feishuChats {
		if err := e.feishu.SendText(ctx, id, report); err != nil {
			log.Error("sending digest", "platform", "feishu", "chat_id", id, "error", err)
		}
	}
	log.Info("digest sent", "chats", len(tgChats)+len(feishuChats), "duration", time.Since(start).Round(time.Millisecond))
}

func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, item := range splitList(s) {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat ID %q", item)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
