// Package rbac maps roles to the actions they may perform. Lookups fail
// closed: an unknown role or unlisted action is always denied.
package rbac

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

var knownActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}

func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func ParseAction(s string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(knownActions, action) {
		return action, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Policy is an immutable role to action table. It is built once at startup
// and shared by every request.
type Policy struct {
	grants map[Role]map[Action]struct{}
	log    logrus.FieldLogger
}

type PolicyOption func(*Policy)

// WithLogger makes every decision emit a debug entry.
func WithLogger(log logrus.FieldLogger) PolicyOption {
	return func(p *Policy) { p.log = log }
}

func NewPolicy(grants map[Role][]Action, opts ...PolicyOption) *Policy {
	p := &Policy{grants: make(map[Role]map[Action]struct{}, len(grants))}
	for role, actions := range grants {
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		p.grants[role] = set
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultGrants is the built-in table used when no policy file is given.
func DefaultGrants() map[Role][]Action {
	return map[Role][]Action{
		RoleAdmin:  {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage},
		RoleEditor: {ActionRead, ActionUpdate},
		RoleViewer: {ActionRead},
	}
}

func DefaultPolicy(opts ...PolicyOption) *Policy {
	return NewPolicy(DefaultGrants(), opts...)
}

func (p *Policy) IsPermitted(role Role, action Action) bool {
	if p == nil {
		return false
	}
	_, ok := p.grants[role][action]
	if p.log != nil {
		p.log.WithFields(logrus.Fields{
			"role":    role,
			"action":  action,
			"allowed": ok,
		}).Debug("permission check")
	}
	return ok
}

// Actions returns the sorted actions granted to role.
func (p *Policy) Actions(role Role) []Action {
	if p == nil {
		return nil
	}
	out := make([]Action, 0, len(p.grants[role]))
	for a := range p.grants[role] {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// Roles returns the sorted roles present in the table.
func (p *Policy) Roles() []Role {
	if p == nil {
		return nil
	}
	out := make([]Role, 0, len(p.grants))
	for r := range p.grants {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}
