//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package role provides the immutable role model for the authorization
// boundary oracle.
//
// A role is a named identity class with a fixed privilege ceiling and an
// allowed-scope set. Roles are configuration: they are loaded once, either
// from a YAML file or from the built-in campus-portal account table, and
// never mutated during a run.
//
// # Privilege Model
//
// Roles are ordered by a privilege rank where 1 is the most privileged
// (principal, system admin) and 4 the least (student). A role may publish
// a notification only at its own ceiling level or a numerically greater,
// i.e. less urgent, level, and only to scopes in its declared set.
package role

import (
	"fmt"
	"os"

	"github.com/hxci-campus/authprobe/pkg/common"
	"gopkg.in/yaml.v3"
)

// Scope is the breadth of a notification's target audience.
type Scope string

// Scopes, from narrowest to widest audience.
const (
	ScopeClass      Scope = "CLASS"
	ScopeGrade      Scope = "GRADE"
	ScopeDepartment Scope = "DEPARTMENT"
	ScopeSchoolWide Scope = "SCHOOL_WIDE"
)

// AllScopes lists every defined scope, narrowest first.
var AllScopes = []Scope{ScopeClass, ScopeGrade, ScopeDepartment, ScopeSchoolWide}

// ParseScope validates and canonicalizes a scope string.
func ParseScope(s string) (Scope, error) {
	for _, known := range AllScopes {
		if Scope(s) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Level is the urgency ranking of a notification. A lower numeric value is
// more urgent and requires more privilege to publish.
type Level int

// Notification urgency levels.
const (
	LevelEmergency Level = 1
	LevelImportant Level = 2
	LevelRegular   Level = 3
	LevelReminder  Level = 4
)

// Valid reports whether l is within the defined 1..4 range.
func (l Level) Valid() bool {
	return l >= LevelEmergency && l <= LevelReminder
}

// Role describes one identity class under test.
type Role struct {
	// Name is the oracle-local identifier, e.g. "student".
	Name string `yaml:"name"`
	// Code is the backend role code carried in token claims, e.g. "STUDENT".
	Code string `yaml:"code"`
	// Display is the human-readable role name for reports.
	Display string `yaml:"display"`
	// EmployeeID, LoginName and Password are the authentication identity fields.
	EmployeeID string `yaml:"employeeId"`
	LoginName  string `yaml:"loginName"`
	Password   string `yaml:"password"`
	// Rank orders roles by privilege; 1 is the most privileged.
	Rank int `yaml:"rank"`
	// MaxLevel is the most urgent notification level this role may publish.
	MaxLevel Level `yaml:"maxLevel"`
	// Scopes is the set of target scopes this role may publish to.
	Scopes []Scope `yaml:"scopes"`
}

// AllowsLevel reports whether the role may publish at level l. Publishing
// is permitted at the role's ceiling or any less urgent level.
func (r Role) AllowsLevel(l Level) bool {
	return l >= r.MaxLevel
}

// AllowsScope reports whether s is in the role's declared scope set.
func (r Role) AllowsScope(s Scope) bool {
	for _, allowed := range r.Scopes {
		if allowed == s {
			return true
		}
	}
	return false
}

func (r Role) validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("role with empty name")
	case r.Code == "":
		return fmt.Errorf("role %s: empty code", r.Name)
	case r.EmployeeID == "":
		return fmt.Errorf("role %s: empty employeeId", r.Name)
	case r.Rank < 1 || r.Rank > 4:
		return fmt.Errorf("role %s: rank %d out of range 1..4", r.Name, r.Rank)
	case !r.MaxLevel.Valid():
		return fmt.Errorf("role %s: maxLevel %d out of range 1..4", r.Name, r.MaxLevel)
	case len(r.Scopes) == 0:
		return fmt.Errorf("role %s: empty scope set", r.Name)
	}
	for _, s := range r.Scopes {
		if _, err := ParseScope(string(s)); err != nil {
			return fmt.Errorf("role %s: %v", r.Name, err)
		}
	}
	return nil
}

// Store holds the immutable set of roles under test, preserving
// declaration order.
type Store struct {
	roles map[string]Role
	order []string
}

// NewStore validates the given roles and builds a Store. Duplicate names
// or invalid role definitions yield a ConfigurationError.
func NewStore(roles []Role) (*Store, error) {
	s := &Store{roles: make(map[string]Role, len(roles))}
	for _, r := range roles {
		if err := r.validate(); err != nil {
			return nil, common.NewConfigurationError(common.ReasonRoleInvalid, err.Error())
		}
		if _, dup := s.roles[r.Name]; dup {
			return nil, common.NewConfigurationError(common.ReasonRoleInvalid,
				fmt.Sprintf("duplicate role %s", r.Name))
		}
		s.roles[r.Name] = r
		s.order = append(s.order, r.Name)
	}
	return s, nil
}

// Get returns the role with the given name.
func (s *Store) Get(name string) (Role, bool) {
	r, ok := s.roles[name]
	return r, ok
}

// Names returns role names in declaration order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns every role in declaration order.
func (s *Store) All() []Role {
	out := make([]Role, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.roles[name])
	}
	return out
}

type rolesFile struct {
	Roles []Role `yaml:"roles"`
}

// LoadFile reads a role definition file of the form:
//
//	roles:
//	  - name: student
//	    code: STUDENT
//	    employeeId: STUDENT_001
//	    loginName: Student-Zhang
//	    password: admin123
//	    rank: 4
//	    maxLevel: 4
//	    scopes: [CLASS]
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}

	var f rolesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse roles file: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, common.NewConfigurationError(common.ReasonRoleInvalid, "no roles defined")
	}

	return NewStore(f.Roles)
}
