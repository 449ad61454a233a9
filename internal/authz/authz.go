// Package authz wraps the casbin enforcer behind the small surface the API
// handlers need, with an evaluation mode switch so a deployment can observe
// decisions (shadow) before turning enforcement on.
package authz

import (
	"errors"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// ParseMode validates a mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.TrimSpace(strings.ToLower(raw))) {
	case ModeEnforce, "":
		return ModeEnforce, nil
	case ModeShadow:
		return ModeShadow, nil
	case ModeDisabled:
		return ModeDisabled, nil
	default:
		return "", errors.New("authz: invalid mode (expected enforce|shadow|disabled)")
	}
}

// Authorizer evaluates and manages policy through a casbin enforcer. All
// mutations go through the enforcer so its in-memory model and the backing
// adapter stay in step.
type Authorizer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	mode     Mode
}

// New builds an authorizer from a model file and a policy adapter. The
// adapter's policy is loaded immediately.
func New(modelPath string, adapter persist.Adapter, mode Mode) (*Authorizer, error) {
	m, err := model.NewModelFromFile(modelPath)
	if err != nil {
		return nil, err
	}
	return NewWithModel(m, adapter, mode)
}

// NewWithModel is New with an already-built model, used by tests. A nil
// adapter yields an in-memory-only enforcer.
func NewWithModel(m model.Model, adapter persist.Adapter, mode Mode) (*Authorizer, error) {
	var enforcer *casbin.Enforcer
	var err error
	if adapter == nil {
		enforcer, err = casbin.NewEnforcer(m)
	} else {
		enforcer, err = casbin.NewEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

// Authorize evaluates a request. enforced reports whether the decision is
// binding: shadow mode evaluates but never blocks, disabled mode allows
// everything without evaluating.
func (a *Authorizer) Authorize(rvals ...interface{}) (allowed bool, enforced bool, err error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	switch a.mode {
	case ModeDisabled:
		return true, false, nil
	case ModeShadow:
		ok, err := a.enforcer.Enforce(rvals...)
		return ok, false, err
	default:
		ok, err := a.enforcer.Enforce(rvals...)
		return ok, true, err
	}
}

// Policies returns the rules of the given policy type.
func (a *Authorizer) Policies(ptype string) [][]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ast, ok := a.enforcer.GetModel()[section(ptype)][ptype]
	if !ok {
		return nil
	}

	rules := make([][]string, len(ast.Policy))
	for i, rule := range ast.Policy {
		rules[i] = append([]string(nil), rule...)
	}
	return rules
}

// AddPolicy adds one rule. Returns false when the rule already existed.
func (a *Authorizer) AddPolicy(ptype string, rule []string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if isGrouping(ptype) {
		return a.enforcer.AddNamedGroupingPolicy(ptype, rule)
	}
	return a.enforcer.AddNamedPolicy(ptype, rule)
}

// AddPolicies adds many rules at once.
func (a *Authorizer) AddPolicies(ptype string, rules [][]string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if isGrouping(ptype) {
		return a.enforcer.AddNamedGroupingPolicies(ptype, rules)
	}
	return a.enforcer.AddNamedPolicies(ptype, rules)
}

// RemovePolicy removes one rule. Returns false when the rule was not present.
func (a *Authorizer) RemovePolicy(ptype string, rule []string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if isGrouping(ptype) {
		return a.enforcer.RemoveNamedGroupingPolicy(ptype, rule)
	}
	return a.enforcer.RemoveNamedPolicy(ptype, rule)
}

// RemovePolicies removes many rules at once.
func (a *Authorizer) RemovePolicies(ptype string, rules [][]string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if isGrouping(ptype) {
		return a.enforcer.RemoveNamedGroupingPolicies(ptype, rules)
	}
	return a.enforcer.RemoveNamedPolicies(ptype, rules)
}

// RemoveFiltered removes all rules of ptype matching the positional pattern
// starting at fieldIndex. Empty values are unconstrained.
func (a *Authorizer) RemoveFiltered(ptype string, fieldIndex int, fieldValues ...string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if isGrouping(ptype) {
		return a.enforcer.RemoveFilteredNamedGroupingPolicy(ptype, fieldIndex, fieldValues...)
	}
	return a.enforcer.RemoveFilteredNamedPolicy(ptype, fieldIndex, fieldValues...)
}

// Reload replaces the in-memory policy with the adapter's current contents.
func (a *Authorizer) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enforcer.LoadPolicy()
}

func isGrouping(ptype string) bool {
	return strings.HasPrefix(ptype, "g")
}

func section(ptype string) string {
	if isGrouping(ptype) {
		return "g"
	}
	return "p"
}
