// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Openclaw is a chat bot that answers Telegram and Feishu messages with the help
of several LLM providers and summarizes AI news on request.

Every message is answered by the first provider of the chain that works.
Providers without an API key are skipped. When a provider is rate limited,
rejects the key or fails on its side, the next one is tried; any other error
is sent to the chat as is. The default chain is kimi (Moonshot), nvidia
(NVIDIA NIM), gemini and zhipu (ZAI GLM). The ZAI key is mandatory.

# Usage

	$ openclaw [flags...]

# Commands

	/news       summarize the latest AI news from blogs, Hacker News and GitHub Trending
	/intel      report on recent Claude Code repositories and discussions (alias /claudecode)
	/help       show help (alias /start)

Anything else is sent to the AI as is.

# Endpoints

	GET  /            liveness text
	GET  /health      health report
	POST /webhook     Telegram updates
	POST /feishu      Feishu event callbacks
	GET  /debug/logs  recent log lines, requires DEBUG_TOKEN as a bearer token

# Environment

	PORT                       port to listen on (default 3000)
	HOST                       public host name, used by -prod to register the Telegram webhook
	TELEGRAM_TOKEN             Telegram bot token
	TELEGRAM_SECRET            secret token Telegram sends with every update
	FEISHU_APP_ID              Feishu app ID
	FEISHU_APP_SECRET          Feishu app secret
	FEISHU_VERIFICATION_TOKEN  Feishu event verification token
	ZAI_API_KEY                ZAI key (required), with ZAI_MODEL and ZAI_API_BASE_URL
	MOONSHOT_API_KEY           Moonshot key, with MOONSHOT_MODEL and MOONSHOT_BASE_URL
	NVIDIA_API_KEY             NVIDIA key, with NVIDIA_MODEL and NVIDIA_BASE_URL
	GEMINI_API_KEY             Gemini key, with GEMINI_MODEL
	AI_PROVIDERS               comma-separated provider order
	GITHUB_TOKEN               GitHub token for /intel
	DIGEST_SCHEDULE            cron schedule of the news digest
	DIGEST_TIMEZONE            time zone of DIGEST_SCHEDULE (default UTC)
	DIGEST_TELEGRAM_CHATS      comma-separated Telegram chat IDs receiving the digest
	DIGEST_FEISHU_CHATS        comma-separated Feishu chat IDs receiving the digest
	DEBUG_TOKEN                enables /debug/logs
	OPENCLAW_CONFIG            path to a YAML configuration file

Variables can also be put into a dotenv file (see -env-file). The process
environment takes precedence.

# Configuration file

The provider chain and news sources can be changed with a YAML file:

	order: [zhipu, gemini]
	providers:
	  - name: zhipu
	    model: glm-4-plus
	  - name: deepseek
	    kind: openai
	    base_url: https://api.deepseek.com/v1
	    model: deepseek-chat
	    key_env: DEEPSEEK_API_KEY
	sources:
	  - name: OpenAI News
	    kind: rss
	    url: https://openai.com/news/rss.xml
	    limit: 3

Providers are merged by name with the built-in ones. A sources list replaces
the built-in sources.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/openclaw/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
