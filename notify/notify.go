/*
Package notify delivers schedule audit reports to an operator.

IMPLEMENTATIONS:
  Telegram: sends one message per report to a chat (bot token + chat id)
  Log:      writes a warning entry per finding through logrus

The audit scheduler only notifies when a run has findings.
*/
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-engine/schedule"
)

// maxListed caps the findings spelled out in one message.
const maxListed = 20

// Report is the outcome of one audit run.
type Report struct {
	RunID    string
	Window   schedule.Interval
	Findings []schedule.Finding
}

// Notifier delivers a report.
type Notifier interface {
	Notify(ctx context.Context, r Report) error
}

// Text renders the report as plain text.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule audit %s: %d finding(s) between %s and %s\n",
		r.RunID, len(r.Findings),
		r.Window.Start.Format(schedule.DateLayout), r.Window.End.Format(schedule.DateLayout))
	for i, f := range r.Findings {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", len(r.Findings)-maxListed)
			break
		}
		fmt.Fprintf(&b, "- %s %s: %s\n", f.At.Format(time.RFC3339), f.Kind, f.Message)
	}
	return b.String()
}

// =============================================================================
// TELEGRAM
// =============================================================================

// sender is the part of *tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts reports to a single chat.
type Telegram struct {
	bot    sender
	chatID int64
}

// NewTelegram authenticates the bot token against the Telegram API.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to start telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, r.Text())
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// =============================================================================
// LOG
// =============================================================================

// Log writes findings to a logger.
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Notify(_ context.Context, r Report) error {
	for _, f := range r.Findings {
		entry := l.Logger.WithFields(logrus.Fields{
			"run_id":    r.RunID,
			"kind":      f.Kind,
			"worker_id": f.WorkerID,
			"task_id":   f.TaskID,
			"at":        f.At.Format(time.RFC3339),
		})
		if f.LeaveID != "" {
			entry = entry.WithField("leave_id", f.LeaveID)
		}
		if f.OtherTaskID != "" {
			entry = entry.WithField("other_task_id", f.OtherTaskID)
		}
		entry.Warn(f.Message)
	}
	return nil
}
