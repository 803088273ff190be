// Package gate answers whether a user may use gated features: membership in
// the configured channel, checked fresh on every gated interaction so that
// revocation takes effect within one event.
package gate

import (
	"context"
	"strings"
	"sync"

	logx "teraboxbot/pkg/logx"
)

// Oracle reports the raw membership role of a user in a channel.
// Implemented by the Telegram adapter.
type Oracle interface {
	MemberStatus(ctx context.Context, channel string, userID int64) (string, error)
}

type Gate struct {
	oracle Oracle
	log    logx.Logger

	mu      sync.RWMutex
	channel string
}

func New(oracle Oracle, channel string, log logx.Logger) *Gate {
	return &Gate{oracle: oracle, channel: channel, log: log}
}

// SetChannel swaps the gated channel (config hot reload).
func (g *Gate) SetChannel(channel string) {
	g.mu.Lock()
	g.channel = channel
	g.mu.Unlock()
}

// IsMember is fail-closed: any oracle error counts as not-a-member. The
// false negative is accepted in exchange for one uniform failure path.
func (g *Gate) IsMember(ctx context.Context, userID int64) bool {
	g.mu.RLock()
	channel := g.channel
	g.mu.RUnlock()

	status, err := g.oracle.MemberStatus(ctx, channel, userID)
	if err != nil {
		g.log.Debug("membership check failed; treating as non-member",
			logx.Int64("user_id", userID), logx.Err(err))
		return false
	}
	switch strings.ToLower(status) {
	case "member", "administrator", "creator", "owner":
		return true
	default:
		return false
	}
}
