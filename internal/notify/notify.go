// Package notify sends best-effort operator notifications on process
// lifecycle events: a nil-safe, fail-open notifier backed by the slack-go
// SDK.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// FailureInput describes a process that transitioned to FAILED.
type FailureInput struct {
	ProcessID string
	Name      string
	Message   string
}

// RepeatedTimeoutInput describes a process stopped after repeated timeouts.
type RepeatedTimeoutInput struct {
	ProcessID      string
	Name           string
	TimeoutCount   int
	LastStageStuck string
}

// Notifier posts operator notifications. Nil-safe: every method is a no-op
// when the receiver is nil, so callers can wire an unconfigured Notifier
// into every lifecycle transition without branching.
type Notifier struct {
	api     *goslack.Client
	channel string
	logger  *slog.Logger
}

// New builds a Notifier. Returns nil (a disabled, no-op notifier) if token
// or channel is empty.
func New(token, channel string) *Notifier {
	if token == "" || channel == "" {
		return nil
	}
	return &Notifier{
		api:     goslack.New(token),
		channel: channel,
		logger:  slog.Default().With("component", "notify"),
	}
}

// NotifyProcessFailed posts a best-effort failure notification. Fail-open:
// delivery errors are logged, never returned.
func (n *Notifier) NotifyProcessFailed(ctx context.Context, in FailureInput) {
	if n == nil {
		return
	}
	text := fmt.Sprintf(":x: *Monitoring process failed* — %s (`%s`)\n%s", in.Name, in.ProcessID, in.Message)
	n.post(ctx, text, "process_id", in.ProcessID)
}

// NotifyRepeatedTimeout posts a best-effort notification that a process was
// stopped after repeated stage timeouts.
func (n *Notifier) NotifyRepeatedTimeout(ctx context.Context, in RepeatedTimeoutInput) {
	if n == nil {
		return
	}
	text := fmt.Sprintf(
		":warning: *Monitoring process stopped after repeated timeouts* — %s (`%s`)\nStage `%s` timed out %d times in a row.",
		in.Name, in.ProcessID, in.LastStageStuck, in.TimeoutCount,
	)
	n.post(ctx, text, "process_id", in.ProcessID)
}

func (n *Notifier) post(ctx context.Context, text string, logKV ...any) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	block := goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil)
	if _, _, err := n.api.PostMessageContext(ctx, n.channel, goslack.MsgOptionBlocks(block)); err != nil {
		n.logger.Error("failed to send Slack notification", append(logKV, "error", err)...)
	}
}
