// Package bot implements the feature handlers: onboarding, link resolution,
// membership rechecks, activity stats and operator broadcasts.
package bot

import (
	"context"
	"sync"

	"teraboxbot/internal/broadcast"
	"teraboxbot/internal/directory"
	"teraboxbot/internal/resolver"
	kit "teraboxbot/internal/transport"
	logx "teraboxbot/pkg/logx"
)

// MemberGate is the membership predicate guarding gated features.
type MemberGate interface {
	IsMember(ctx context.Context, userID int64) bool
}

// Resolver turns a share link into a resolution result.
type Resolver interface {
	Resolve(ctx context.Context, link string) (resolver.Result, error)
}

// UIConfig holds the presentation knobs (hot-reloadable).
type UIConfig struct {
	Channel      string // force-subscribe channel, "@name"
	OwnerURL     string
	WebAppURL    string
	PreviewImage string
	WelcomeVideo string
}

type Bot struct {
	adapter  kit.Adapter
	dir      directory.Store
	gate     MemberGate
	resolver Resolver
	engine   *broadcast.Engine
	log      logx.Logger

	mu sync.RWMutex
	ui UIConfig

	// bcastSlot is a single-slot token: one broadcast job at a time, so
	// overlapping jobs cannot compound rate-limit pressure.
	bcastSlot chan struct{}
}

func New(adapter kit.Adapter, dir directory.Store, gate MemberGate, res Resolver, engine *broadcast.Engine, ui UIConfig, log logx.Logger) *Bot {
	b := &Bot{
		adapter:   adapter,
		dir:       dir,
		gate:      gate,
		resolver:  res,
		engine:    engine,
		ui:        ui,
		log:       log,
		bcastSlot: make(chan struct{}, 1),
	}
	b.bcastSlot <- struct{}{}
	return b
}

// SetUI swaps presentation settings (config hot reload).
func (b *Bot) SetUI(ui UIConfig) {
	b.mu.Lock()
	b.ui = ui
	b.mu.Unlock()
}

func (b *Bot) uiConfig() UIConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ui
}
