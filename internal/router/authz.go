package router

import (
	"errors"
	"fmt"

	"github.com/kamir/gowxbot/internal/store"
	"github.com/kamir/gowxbot/internal/wxmsg"
)

// Sentinel rejections returned by Authorize. Handlers are never
// invoked when one of these is returned; a rejection notice goes back
// to the caller instead.
var (
	ErrRuleUnregistered = errors.New("no rule registered for function")
	ErrNoMembership     = errors.New("no membership record")
	ErrLevelTooLow      = errors.New("membership level too low")
	ErrModuleMissing    = errors.New("module not granted to membership")
)

// RuleLookup resolves the rule registered for a handler key.
type RuleLookup interface {
	GetRuleByFunction(functionKey string) (*store.Rule, error)
}

// MemberLookup resolves a membership record; nil means none exists.
type MemberLookup interface {
	GetMember(key string) (*store.Member, error)
}

// Authorizer gates handler invocation on the caller's membership.
type Authorizer struct {
	rules   RuleLookup
	members MemberLookup
}

func NewAuthorizer(rules RuleLookup, members MemberLookup) *Authorizer {
	return &Authorizer{rules: rules, members: members}
}

// Authorize checks whether the sender of msg may invoke functionKey.
// A nil return means the handler proceeds.
func (a *Authorizer) Authorize(functionKey string, msg *wxmsg.InboundMessage) error {
	rule, err := a.rules.GetRuleByFunction(functionKey)
	if err != nil {
		return fmt.Errorf("failed to resolve rule for %s: %w", functionKey, err)
	}
	if rule == nil {
		return ErrRuleUnregistered
	}
	if !rule.CheckPermission {
		return nil
	}

	member, err := a.members.GetMember(msg.MembershipKey())
	if err != nil {
		return fmt.Errorf("failed to resolve membership %s: %w", msg.MembershipKey(), err)
	}
	if member == nil {
		return ErrNoMembership
	}
	if member.Level < rule.RequiredLevel {
		return ErrLevelTooLow
	}
	if rule.Module != "" && !containsString(member.Modules, rule.Module) {
		return ErrModuleMissing
	}
	return nil
}

// IsRejection reports whether err is an authorization rejection, as
// opposed to a storage failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRuleUnregistered) ||
		errors.Is(err, ErrNoMembership) ||
		errors.Is(err, ErrLevelTooLow) ||
		errors.Is(err, ErrModuleMissing)
}
