//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package policy provides the declarative expectation matrix of the
// authorization boundary oracle.
//
// The matrix maps (role, action-class, resource attributes) to an expected
// decision of ALLOW or DENY. It is a pure lookup with no side effects, and
// it deliberately refuses to default: a lookup on a combination without an
// entry is a configuration error, because defaulting in either direction
// would silently mask a gap in test coverage.
package policy

import (
	"fmt"
	"sort"

	"github.com/hxci-campus/authprobe/pkg/common"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
)

// Decision is an expected policy outcome.
type Decision int

// Expected decisions.
const (
	Allow Decision = iota
	Deny
)

// String returns the canonical report spelling of the decision.
func (d Decision) String() string {
	if d == Allow {
		return "ALLOW"
	}
	return "DENY"
}

// ActionClass is the semantic class of a probe action.
type ActionClass string

// Action classes exercised against the campus-portal backend.
const (
	ActionPublishNotification ActionClass = "publish-notification"
	ActionReadList            ActionClass = "read-list"
	ActionPublishTodo         ActionClass = "publish-todo"
	ActionCompleteTodo        ActionClass = "complete-todo"
	ActionAdminClearCache     ActionClass = "admin-clear-cache"
)

// Attributes carries the resource attributes a boundary decision depends
// on. Zero values mean the attribute is not applicable to the action class.
type Attributes struct {
	Level role.Level
	Scope role.Scope
}

type entryKind int

const (
	kindFixed entryKind = iota
	kindBoundary
)

type entry struct {
	kind     entryKind
	decision Decision // for kindFixed
}

// Matrix is the declarative (role, action-class, attributes) -> decision
// table. Entries are either fixed decisions or boundary rules derived from
// the role's level ceiling and scope set.
type Matrix struct {
	entries map[string]map[ActionClass]entry
}

// NewMatrix creates an empty Matrix.
func NewMatrix() *Matrix {
	return &Matrix{entries: make(map[string]map[ActionClass]entry)}
}

func (m *Matrix) set(roleName string, class ActionClass, e entry) {
	row := m.entries[roleName]
	if row == nil {
		row = make(map[ActionClass]entry)
		m.entries[roleName] = row
	}
	row[class] = e
}

// SetFixed records an attribute-independent expected decision.
func (m *Matrix) SetFixed(roleName string, class ActionClass, d Decision) {
	m.set(roleName, class, entry{kind: kindFixed, decision: d})
}

// SetBoundary records a level/scope boundary rule: the expected decision is
// ALLOW iff the probed level is at or below the role's ceiling urgency and
// the probed scope is in the role's scope set.
func (m *Matrix) SetBoundary(roleName string, class ActionClass) {
	m.set(roleName, class, entry{kind: kindBoundary})
}

// ExpectedDecision returns the expected decision for the given role,
// action class and attributes. A missing entry is a ConfigurationError; a
// boundary lookup with out-of-domain attributes is likewise an error
// rather than a silent default.
func (m *Matrix) ExpectedDecision(r role.Role, class ActionClass, attrs Attributes) (Decision, error) {
	row, ok := m.entries[r.Name]
	if !ok {
		return Deny, common.NewConfigurationError(common.ReasonPolicyGap,
			"no policy entries for role", missingKey(r.Name, class))
	}
	e, ok := row[class]
	if !ok {
		return Deny, common.NewConfigurationError(common.ReasonPolicyGap,
			"no policy entry", missingKey(r.Name, class))
	}

	if e.kind == kindFixed {
		return e.decision, nil
	}

	if !attrs.Level.Valid() {
		return Deny, common.NewConfigurationError(common.ReasonPlanInvalid,
			fmt.Sprintf("boundary lookup for %s/%s with level %d outside 1..4", r.Name, class, attrs.Level))
	}
	if _, err := role.ParseScope(string(attrs.Scope)); err != nil {
		return Deny, common.NewConfigurationError(common.ReasonPlanInvalid,
			fmt.Sprintf("boundary lookup for %s/%s: %v", r.Name, class, err))
	}

	if r.AllowsLevel(attrs.Level) && r.AllowsScope(attrs.Scope) {
		return Allow, nil
	}
	return Deny, nil
}

// Pair identifies one exercised (role, action-class) combination.
type Pair struct {
	Role  string
	Class ActionClass
}

// Verify checks that the matrix has an entry for every exercised pair. It
// returns a single ConfigurationError naming all the gaps, so an
// incomplete matrix aborts the run before any probe executes.
func (m *Matrix) Verify(pairs []Pair) error {
	seen := make(map[string]bool)
	var missing []string
	for _, p := range pairs {
		key := missingKey(p.Role, p.Class)
		if seen[key] {
			continue
		}
		seen[key] = true
		if row, ok := m.entries[p.Role]; !ok {
			missing = append(missing, key)
		} else if _, ok := row[p.Class]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return common.NewConfigurationError(common.ReasonPolicyGap,
			"policy matrix incomplete", missing...)
	}
	return nil
}

func missingKey(roleName string, class ActionClass) string {
	return fmt.Sprintf("%s/%s", roleName, class)
}

// Default builds the standard campus-portal expectation matrix for the
// given roles: publish actions follow each role's level/scope boundary,
// list reads are open to any authenticated role, todo completion is open,
// and cache administration is reserved for rank-1 roles.
func Default(store *role.Store) *Matrix {
	m := NewMatrix()
	for _, r := range store.All() {
		m.SetBoundary(r.Name, ActionPublishNotification)
		m.SetBoundary(r.Name, ActionPublishTodo)
		m.SetFixed(r.Name, ActionReadList, Allow)
		m.SetFixed(r.Name, ActionCompleteTodo, Allow)
		if r.Rank == 1 {
			m.SetFixed(r.Name, ActionAdminClearCache, Allow)
		} else {
			m.SetFixed(r.Name, ActionAdminClearCache, Deny)
		}
	}
	return m
}
