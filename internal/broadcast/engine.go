// Package broadcast fans one message out to every known user, sequentially
// and rate-limited. Parallel fan-out would breach the transport's per-second
// send limit and risk the sending identity being throttled; the limiter is
// the throttle.
package broadcast

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	kit "teraboxbot/internal/transport"
	logx "teraboxbot/pkg/logx"
)

// Sender delivers one content payload to one recipient. Terminal recipient
// failures surface as kit.ErrRecipientGone.
type Sender interface {
	SendContent(ctx context.Context, to kit.ChatTarget, content kit.Content, opt *kit.SendOptions) error
}

type Config struct {
	// RatePerSec bounds outbound attempts. 20/s keeps ~50ms between sends.
	RatePerSec int

	// ProgressEvery pushes a Progress snapshot to the sink after every Nth
	// completed attempt.
	ProgressEvery int
}

type Engine struct {
	sender Sender
	log    logx.Logger

	limiter       *rate.Limiter
	progressEvery int
}

func New(cfg Config, sender Sender, log logx.Logger) *Engine {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	every := cfg.ProgressEvery
	if every <= 0 {
		every = 5
	}
	return &Engine{
		sender: sender,
		log:    log,
		// Burst of 1: attempts are spaced evenly, never batched.
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		progressEvery: every,
	}
}

// Run visits every recipient in snapshot order exactly once, delivering the
// content and classifying each attempt. The sink (may be nil) receives a
// progress snapshot after every Nth completed attempt, never more often.
//
// A per-recipient failure never aborts the job; only ctx cancellation stops
// it early, losing the remainder (progress is not persisted anywhere).
func (e *Engine) Run(ctx context.Context, content kit.Content, recipients []int64, sink func(Progress)) Report {
	var rep Report
	total := len(recipients)

	e.log.Info("broadcast started",
		logx.Int("total", total), logx.String("content", content.Kind.String()))

	completed := 0
	for _, id := range recipients {
		if err := e.limiter.Wait(ctx); err != nil {
			e.log.Warn("broadcast interrupted",
				logx.Int("completed", completed), logx.Int("total", total), logx.Err(err))
			break
		}

		switch e.attempt(ctx, id, content) {
		case OutcomeDelivered:
			rep.Delivered++
		case OutcomeUnreachable:
			rep.Unreachable++
		case OutcomeFailed:
			rep.Failed++
		}
		completed++

		if sink != nil && completed%e.progressEvery == 0 {
			sink(Progress{
				Total:       total,
				Completed:   completed,
				Delivered:   rep.Delivered,
				Unreachable: rep.Unreachable,
				Failed:      rep.Failed,
			})
		}
	}

	if rep.FailedTotal() > 0 {
		e.log.Warn("broadcast finished with failures",
			logx.Int("delivered", rep.Delivered),
			logx.Int("unreachable", rep.Unreachable),
			logx.Int("failed", rep.Failed))
	} else {
		e.log.Info("broadcast finished", logx.Int("delivered", rep.Delivered))
	}
	return rep
}

func (e *Engine) attempt(ctx context.Context, id int64, content kit.Content) Outcome {
	err := e.sender.SendContent(ctx, kit.ChatTarget{ChatID: id}, content,
		&kit.SendOptions{DisableNotification: true})
	switch {
	case err == nil:
		return OutcomeDelivered
	case errors.Is(err, kit.ErrRecipientGone):
		return OutcomeUnreachable
	default:
		e.log.Warn("broadcast send failed", logx.Int64("chat_id", id), logx.Err(err))
		return OutcomeFailed
	}
}
