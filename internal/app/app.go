// Package app wires the services together and owns their lifecycle:
// construct, start, hot-reload, ordered stop.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"teraboxbot/internal/bot"
	"teraboxbot/internal/broadcast"
	"teraboxbot/internal/config"
	"teraboxbot/internal/directory"
	"teraboxbot/internal/gate"
	"teraboxbot/internal/resolver"
	"teraboxbot/internal/router"
	kit "teraboxbot/internal/transport"
	"teraboxbot/internal/transport/telegram"
	logx "teraboxbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	adapter *telegram.Adapter
	dir     directory.Store
	gate    *gate.Gate
	bot     *bot.Bot
	router  *router.Router
	cron    *cron.Cron

	updates chan kit.Update

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout.Std(),
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Channel: logx.ChannelConfig{
			Enabled:    cfg.Logging.Channel.Enabled,
			MinLevel:   cfg.Logging.Channel.MinLevel,
			RatePerSec: cfg.Logging.Channel.RatePerSec,
		},
	}, adapter)
	logs.SetChannelTarget(cfg.Telegram.LogChatID)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	dir, err := directory.Open(directory.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout.Std(),
	}, log.With(logx.String("comp", "directory")))
	if err != nil {
		return nil, fmt.Errorf("open directory store: %w", err)
	}

	g := gate.New(adapter, cfg.Telegram.Channel, log.With(logx.String("comp", "gate")))

	res := resolver.New(resolver.Config{
		Endpoint:    cfg.Resolver.Endpoint,
		APIKey:      cfg.Resolver.APIKey,
		APIHost:     cfg.Resolver.APIHost,
		MaxInFlight: cfg.Resolver.MaxInFlight,
		Timeout:     cfg.Resolver.Timeout.Std(),
	}, log.With(logx.String("comp", "resolver")))

	engine := broadcast.New(broadcast.Config{
		RatePerSec:    cfg.Broadcast.RatePerSec,
		ProgressEvery: cfg.Broadcast.ProgressEvery,
	}, adapter, log.With(logx.String("comp", "broadcast")))

	b := bot.New(adapter, dir, g, res, engine, bot.UIConfig{
		Channel:      cfg.Telegram.Channel,
		OwnerURL:     cfg.Telegram.OwnerURL,
		WebAppURL:    cfg.Links.WebAppURL,
		PreviewImage: cfg.Links.PreviewImage,
		WelcomeVideo: cfg.Links.WelcomeVideo,
	}, log.With(logx.String("comp", "bot")))

	rt := router.New(log.With(logx.String("comp", "router")))
	rt.SetOperators(cfg.Telegram.OperatorIDs)
	if err := b.Register(rt, cfg.Links.Patterns); err != nil {
		_ = dir.Close()
		return nil, err
	}

	return &App{
		cfgm:    cfgm,
		logs:    logs,
		log:     log,
		adapter: adapter,
		dir:     dir,
		gate:    g,
		bot:     b,
		router:  rt,
		updates: make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Dispatch(runCtx, a.updates)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	}()

	a.startStatsReport(runCtx)

	a.log.Info("app started")
	return nil
}

// applyConfig pushes hot-reloadable settings into running services.
// Broadcast pacing and the resolver admission bound are fixed until restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Channel: logx.ChannelConfig{
			Enabled:    cfg.Logging.Channel.Enabled,
			MinLevel:   cfg.Logging.Channel.MinLevel,
			RatePerSec: cfg.Logging.Channel.RatePerSec,
		},
	})
	a.logs.SetChannelTarget(cfg.Telegram.LogChatID)

	a.router.SetOperators(cfg.Telegram.OperatorIDs)
	if err := a.router.SetPatterns(cfg.Links.Patterns); err != nil {
		a.log.Warn("link patterns rejected on reload", logx.Err(err))
	}
	a.gate.SetChannel(cfg.Telegram.Channel)
	a.bot.SetUI(bot.UIConfig{
		Channel:      cfg.Telegram.Channel,
		OwnerURL:     cfg.Telegram.OwnerURL,
		WebAppURL:    cfg.Links.WebAppURL,
		PreviewImage: cfg.Links.PreviewImage,
		WelcomeVideo: cfg.Links.WelcomeVideo,
	})

	a.log.Info("config applied")
}

// startStatsReport schedules the periodic activity report posted to the log
// channel. Disabled when no cron spec is configured.
func (a *App) startStatsReport(ctx context.Context) {
	cfg := a.cfgm.Get()
	spec := cfg.Stats.ReportCron
	if spec == "" {
		return
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		text, err := a.bot.StatsReportText(ctx)
		if err != nil {
			a.log.Warn("stats report failed", logx.Err(err))
			return
		}
		chatID := a.cfgm.Get().Telegram.LogChatID
		if chatID == 0 {
			return
		}
		if _, err := a.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil); err != nil {
			a.log.Warn("stats report send failed", logx.Err(err))
		}
	})
	if err != nil {
		a.log.Warn("invalid stats report schedule", logx.String("spec", spec), logx.Err(err))
		return
	}
	c.Start()
	a.cron = c
	a.log.Info("stats report scheduled", logx.String("spec", spec))
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")

	if a.runCancel != nil {
		a.runCancel()
	}

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		done := make(chan error, 1)
		go func() { done <- fn(stepCtx) }()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	if a.cron != nil {
		step("cron", 2*time.Second, func(c context.Context) error {
			stopped := a.cron.Stop()
			select {
			case <-stopped.Done():
			case <-c.Done():
			}
			return nil
		})
	}
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("handlers", 3*time.Second, func(c context.Context) error {
		done := make(chan struct{})
		go func() { a.router.Wait(); close(done) }()
		select {
		case <-done:
		case <-c.Done():
		}
		return nil
	})
	step("goroutines", 2*time.Second, func(c context.Context) error {
		done := make(chan struct{})
		go func() { a.wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-c.Done():
		}
		return nil
	})
	step("directory", 2*time.Second, func(c context.Context) error { return a.dir.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
