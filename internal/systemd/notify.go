// Package systemd reports service state to systemd over the notify socket.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends READY, WATCHDOG, STATUS and STOPPING notifications. Outside
// systemd (no NOTIFY_SOCKET) every call is a no-op.
type Notifier struct {
	logger   *slog.Logger
	notify   func(state string) (bool, error)
	watchdog func() (time.Duration, error)
}

// NewNotifier creates a notifier for the current process.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
		watchdog: func() (time.Duration, error) {
			return daemon.SdWatchdogEnabled(false)
		},
	}
}

// Status publishes a one-line status shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	if _, err := n.notify("STATUS=" + fmt.Sprintf(format, args...)); err != nil {
		n.logger.Debug("sd_notify STATUS failed", "error", err)
	}
}

// Serve implements suture.Service. It signals readiness, pings the watchdog
// at half its interval when one is configured, and signals stopping when ctx
// is cancelled.
func (n *Notifier) Serve(ctx context.Context) error {
	sent, err := n.notify(daemon.SdNotifyReady)
	switch {
	case err != nil:
		n.logger.Warn("sd_notify READY failed", "error", err)
	case !sent:
		n.logger.Debug("Not running under systemd notify")
	default:
		n.logger.Info("Notified systemd of readiness")
	}

	var tick <-chan time.Time
	if interval, wdErr := n.watchdog(); wdErr != nil {
		n.logger.Warn("Invalid systemd watchdog settings", "error", wdErr)
	} else if interval > 0 {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		tick = ticker.C
		n.logger.Info("systemd watchdog enabled", "interval", interval)
	}

	for {
		select {
		case <-ctx.Done():
			_, _ = n.notify(daemon.SdNotifyStopping)
			return ctx.Err()
		case <-tick:
			if _, err := n.notify(daemon.SdNotifyWatchdog); err != nil {
				n.logger.Warn("sd_notify WATCHDOG failed", "error", err)
			}
		}
	}
}

func (n *Notifier) String() string {
	return "systemd-notifier"
}
