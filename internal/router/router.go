// Package router matches normalized messages against stored rules.
package router

import (
	"log/slog"
	"regexp"
	"sync"

	"github.com/kamir/gowxbot/internal/store"
	"github.com/kamir/gowxbot/internal/wxmsg"
)

// wildcard in a whitelist admits every room.
const wildcard = "all"

// RuleSource yields the ordered active rule set.
type RuleSource interface {
	ListActiveRules() ([]store.Rule, error)
}

// Decision is the outcome of routing one message.
type Decision struct {
	Matched     bool   `json:"matched"`
	RuleID      int64  `json:"rule_id,omitempty"`
	ReplyText   string `json:"reply_text,omitempty"`
	FunctionKey string `json:"function_key,omitempty"`
}

// Rewriter may rewrite the display text before pattern evaluation.
// It applies only to rules carrying the AI flag; without a rewriter
// those rules match the raw display text.
type Rewriter func(msg *wxmsg.InboundMessage) string

type Router struct {
	rules    RuleSource
	rewriter Rewriter
	logger   *slog.Logger

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

func New(rules RuleSource, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		rules:    rules,
		logger:   logger.With("component", "router"),
		compiled: make(map[string]*regexp.Regexp),
	}
}

// SetRewriter installs a display-text rewriter used before pattern
// evaluation.
func (r *Router) SetRewriter(rw Rewriter) {
	r.rewriter = rw
}

// Route evaluates the stored rules in ascending order and returns the
// first match. Callers drop self-echoes before invoking Route.
func (r *Router) Route(msg *wxmsg.InboundMessage) (Decision, error) {
	rules, err := r.rules.ListActiveRules()
	if err != nil {
		return Decision{}, err
	}

	// The rewrite runs at most once, on the first flagged rule.
	rewritten := ""
	haveRewrite := false

	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if rule.TypeFilter != wildcard && rule.TypeFilter != msg.ContentType.String() {
			continue
		}
		if rule.RequiresMention && !msg.IsMentioned {
			continue
		}
		if containsString(rule.Blacklist, msg.RoomID) {
			continue
		}
		if !containsString(rule.Whitelist, wildcard) && !containsString(rule.Whitelist, msg.RoomID) {
			continue
		}
		re, err := r.compile(rule.Pattern)
		if err != nil {
			r.logger.Warn("skipping rule with invalid pattern",
				"rule_id", rule.ID, "pattern", rule.Pattern, "error", err)
			continue
		}
		text := msg.DisplayText
		if rule.AIFlag && r.rewriter != nil {
			if !haveRewrite {
				rewritten = r.rewriter(msg)
				haveRewrite = true
			}
			text = rewritten
		}
		if !re.MatchString(text) {
			continue
		}
		return Decision{
			Matched:     true,
			RuleID:      rule.ID,
			ReplyText:   rule.ReplyText,
			FunctionKey: rule.FunctionKey,
		}, nil
	}
	return Decision{}, nil
}

// compile returns the cached regex for a pattern, compiling it with
// dot-matches-newline semantics on first use.
func (r *Router) compile(pattern string) (*regexp.Regexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if re, ok := r.compiled[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile("(?s)" + pattern)
	if err != nil {
		return nil, err
	}
	r.compiled[pattern] = re
	return re, nil
}

func containsString(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
