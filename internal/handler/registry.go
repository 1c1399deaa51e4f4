// Package handler dispatches matched function keys to registered
// handlers, gated by the membership authorizer.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/kamir/gowxbot/internal/router"
	"github.com/kamir/gowxbot/internal/store"
	"github.com/kamir/gowxbot/internal/wxmsg"
)

// Handler reacts to one inbound message. Replies go through the
// sender so they ride the durable queue.
type Handler func(ctx context.Context, msg *wxmsg.InboundMessage) error

// Sender is the outbound text path (gateway client over the queue).
type Sender interface {
	SendText(ctx context.Context, receiver, content, aters, producer, messageID string) error
}

// Authorizer gates handler invocation; rejections carry the router's
// sentinel errors.
type Authorizer interface {
	Authorize(functionKey string, msg *wxmsg.InboundMessage) error
}

type Registry struct {
	auth   Authorizer
	sender Sender
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry(auth Authorizer, sender Sender, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		auth:     auth,
		sender:   sender,
		logger:   logger.With("component", "handler"),
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(key string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = h
}

// Keys returns the registered handler keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dispatch runs the handler for key if the caller is authorized. One
// failing or panicking handler is contained here; it never takes down
// the webhook loop. Rejections send a notice back to the caller and
// are not retried.
func (r *Registry) Dispatch(ctx context.Context, key string, msg *wxmsg.InboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "function", key, "msg_id", msg.MessageID, "panic", rec)
		}
	}()

	r.mu.RLock()
	h, ok := r.handlers[key]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("no handler registered", "function", key)
		return
	}

	if err := r.auth.Authorize(key, msg); err != nil {
		if router.IsRejection(err) {
			notice := fmt.Sprintf("%s-%s: authorization failed, contact an administrator", msg.MessageID, key)
			if err := r.sender.SendText(ctx, msg.RoomID, notice, "", "authz", msg.MessageID); err != nil {
				r.logger.Error("failed to enqueue rejection notice", "function", key, "error", err)
			}
			r.logger.Info("handler rejected", "function", key, "sender", msg.SenderID, "reason", err)
			return
		}
		r.logger.Error("authorization check failed", "function", key, "error", err)
		return
	}

	if err := h(ctx, msg); err != nil {
		r.logger.Error("handler failed", "function", key, "msg_id", msg.MessageID, "error", err)
	}
}

// RuleLister feeds the menu handler.
type RuleLister interface {
	ListActiveRules() ([]store.Rule, error)
}

// RegisterBuiltins installs the stock handlers.
func RegisterBuiltins(r *Registry, sender Sender, rules RuleLister) {
	r.Register("echo", func(ctx context.Context, msg *wxmsg.InboundMessage) error {
		return sender.SendText(ctx, msg.RoomID, msg.DisplayText, "", "echo", msg.MessageID)
	})

	r.Register("menu", func(ctx context.Context, msg *wxmsg.InboundMessage) error {
		active, err := rules.ListActiveRules()
		if err != nil {
			return fmt.Errorf("failed to list rules for menu: %w", err)
		}
		var b strings.Builder
		b.WriteString("Available commands:\n")
		for _, rule := range active {
			if rule.FunctionKey == "" {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", rule.FunctionKey, rule.Pattern)
		}
		return sender.SendText(ctx, msg.RoomID, strings.TrimRight(b.String(), "\n"), "", "menu", msg.MessageID)
	})
}
