// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package systemd lets the bot signal readiness and keep the watchdog happy
// when it runs as a systemd service.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"go.astrophena.name/openclaw/internal/logger"
)

// State defines a sd-notify protocol state.
// See https://www.freedesktop.org/software/systemd/man/sd_notify.html.
type State string

const (
	// Ready tells the service manager that the server accepts requests.
	Ready State = "READY=1"
	// Stopping tells the service manager that the server is shutting down.
	Stopping State = "STOPPING=1"
	// Watchdog updates the watchdog timestamp.
	Watchdog State = "WATCHDOG=1"
)

// Notify sends state to systemd. It does nothing outside of systemd.
// Failures are logged with the logger from ctx.
func Notify(ctx context.Context, state State) {
	addr := &net.UnixAddr{
		Net:  "unixgram",
		Name: os.Getenv("NOTIFY_SOCKET"),
	}
	if addr.Name == "" {
		return
	}

	conn, err := net.DialUnix(addr.Net, nil, addr)
	if err != nil {
		logger.Get(ctx).Warn("systemd notify failed", "state", string(state), "error", err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(state)); err != nil {
		logger.Get(ctx).Warn("systemd notify failed", "state", string(state), "error", err)
	}
}

// WatchdogLoop pings the watchdog until ctx is canceled. It returns
// immediately when the watchdog is not enabled.
func WatchdogLoop(ctx context.Context) {
	if os.Getenv("WATCHDOG_USEC") == "" {
		return
	}
	interval, err := watchdogInterval(os.Getenv("WATCHDOG_USEC"))
	if err != nil {
		logger.Get(ctx).Warn("systemd watchdog disabled", "error", err)
		return
	}

	// sd_watchdog_enabled(3) asks for half the interval.
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			Notify(ctx, Watchdog)
		case <-ctx.Done():
			return
		}
	}
}

func watchdogInterval(usec string) (time.Duration, error) {
	s, err := strconv.Atoi(usec)
	if err != nil {
		return 0, fmt.Errorf("parsing WATCHDOG_USEC: %w", err)
	}
	if s <= 0 {
		return 0, errors.New("WATCHDOG_USEC must be a positive number")
	}
	return time.Duration(s) * time.Microsecond, nil
}
