// Package router classifies inbound events and dispatches each to exactly
// one handler: command token first, then link-pattern free text, then
// callback data. Unmatched events and unauthorized operator commands are
// dropped silently.
package router

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	kit "teraboxbot/internal/transport"
	logx "teraboxbot/pkg/logx"
)

type Event struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
}

type HandlerFunc func(ctx context.Context, ev *Event) error

type route struct {
	name         string
	operatorOnly bool
	handle       HandlerFunc
}

type Router struct {
	log logx.Logger

	mu        sync.RWMutex
	commands  map[string]route
	callbacks map[string]route
	linkRoute *route
	patterns  []*regexp.Regexp
	operators map[int64]struct{}

	wg sync.WaitGroup
}

func New(log logx.Logger) *Router {
	return &Router{
		log:       log,
		commands:  map[string]route{},
		callbacks: map[string]route{},
		operators: map[int64]struct{}{},
	}
}

// Command registers a slash command (without the leading "/").
func (r *Router) Command(name string, operatorOnly bool, h HandlerFunc) {
	r.mu.Lock()
	r.commands[strings.ToLower(name)] = route{name: "/" + name, operatorOnly: operatorOnly, handle: h}
	r.mu.Unlock()
}

// Callback registers an exact-match callback action.
func (r *Router) Callback(data string, h HandlerFunc) {
	r.mu.Lock()
	r.callbacks[data] = route{name: "cb:" + data, handle: h}
	r.mu.Unlock()
}

// Links registers the free-text handler and its domain patterns.
func (r *Router) Links(patterns []string, h HandlerFunc) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("link pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	r.mu.Lock()
	r.patterns = compiled
	r.linkRoute = &route{name: "link", handle: h}
	r.mu.Unlock()
	return nil
}

// SetPatterns swaps the link patterns (config hot reload).
func (r *Router) SetPatterns(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("link pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	r.mu.Lock()
	r.patterns = compiled
	r.mu.Unlock()
	return nil
}

func (r *Router) SetOperators(ids []int64) {
	ops := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		ops[id] = struct{}{}
	}
	r.mu.Lock()
	r.operators = ops
	r.mu.Unlock()
}

func (r *Router) isOperator(id int64) bool {
	r.mu.RLock()
	_, ok := r.operators[id]
	r.mu.RUnlock()
	return ok
}

// Route classifies one update. ok=false means the event is dropped: no
// matching route, or an operator-only route hit by a non-operator.
func (r *Router) Route(up kit.Update) (HandlerFunc, *Event, bool) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return nil, nil, false
		}
		ev := &Event{
			Update: up,
			Chat:   kit.ChatTarget{ChatID: up.Message.ChatID},
			FromID: up.Message.FromID,
		}

		if name, args, ok := parseCommand(up.Message.Text); ok {
			r.mu.RLock()
			rt, found := r.commands[name]
			r.mu.RUnlock()
			if !found {
				return nil, nil, false
			}
			if rt.operatorOnly && !r.isOperator(ev.FromID) {
				r.log.Debug("operator command from non-operator dropped",
					logx.String("cmd", rt.name), logx.Int64("from_id", ev.FromID))
				return nil, nil, false
			}
			ev.Command = rt.name
			ev.Args = args
			return rt.handle, ev, true
		}

		r.mu.RLock()
		link := r.linkRoute
		patterns := r.patterns
		r.mu.RUnlock()
		if link != nil {
			for _, re := range patterns {
				if re.MatchString(up.Message.Text) {
					ev.Command = link.name
					return link.handle, ev, true
				}
			}
		}
		return nil, nil, false

	case kit.UpdateCallback:
		if up.Callback == nil {
			return nil, nil, false
		}
		r.mu.RLock()
		rt, found := r.callbacks[up.Callback.Data]
		r.mu.RUnlock()
		if !found {
			return nil, nil, false
		}
		ev := &Event{
			Update:  up,
			Chat:    kit.ChatTarget{ChatID: up.Callback.ChatID},
			FromID:  up.Callback.FromID,
			Command: rt.name,
		}
		return rt.handle, ev, true
	}
	return nil, nil, false
}

// Dispatch consumes updates until ctx is done. Every matched event runs on
// its own goroutine; a handler failure or panic never reaches the loop.
func (r *Router) Dispatch(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			h, ev, matched := r.Route(up)
			if !matched {
				continue
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.handle(ctx, h, ev)
			}()
		}
	}
}

func (r *Router) handle(ctx context.Context, h HandlerFunc, ev *Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in handler",
				logx.String("cmd", ev.Command),
				logx.Any("panic", rec),
				logx.Stack(string(debug.Stack())))
		}
	}()

	start := time.Now()
	err := h(ctx, ev)
	fields := []logx.Field{
		logx.String("cmd", ev.Command),
		logx.Int64("chat_id", ev.Chat.ChatID),
		logx.Int64("from_id", ev.FromID),
		logx.Duration("dur", time.Since(start)),
	}
	if err != nil {
		r.log.Warn("request failed", append(fields, logx.Err(err))...)
	} else {
		r.log.Debug("request ok", fields...)
	}
}

// Wait blocks until in-flight handlers finish (shutdown).
func (r *Router) Wait() { r.wg.Wait() }

func parseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	name = strings.TrimPrefix(fields[0], "/")
	// strip "@botname" suffixes used in groups
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}
