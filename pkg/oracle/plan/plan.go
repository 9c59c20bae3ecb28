//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package plan loads test plans and drives full oracle runs.
//
// A plan is a YAML document listing probes (synthetic requests under a
// role's credential) and claim audits (decode-and-inspect assertions on a
// role's token). Probes may declare a causal dependency on the record
// created by an earlier probe; such pairs always execute in order, even
// when independent chains run on the bounded worker pool.
package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hxci-campus/authprobe/pkg/common"
	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/hxci-campus/authprobe/pkg/oracle/probe"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
	"gopkg.in/yaml.v3"
)

// ProbeSpec is the YAML form of one probe.
type ProbeSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Role        string         `yaml:"role"`
	Action      string         `yaml:"action"`
	Method      string         `yaml:"method"`
	Path        string         `yaml:"path"`
	Level       int            `yaml:"level"`
	Scope       string         `yaml:"scope"`
	Payload     map[string]any `yaml:"payload"`
	DependsOn   string         `yaml:"dependsOn"`
}

// AuditSpec is the YAML form of one token claim audit.
type AuditSpec struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// Plan is a complete test plan.
type Plan struct {
	Probes []ProbeSpec `yaml:"probes"`
	Audits []AuditSpec `yaml:"audits"`
}

// Load reads and parses a plan from a YAML file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	return &p, nil
}

// Validate checks the structural integrity of the plan against the role
// store: unique names, known roles, resolvable action classes, and causal
// dependencies that reference an earlier probe (which also rules out
// cycles). Violations are ConfigurationErrors.
func (p *Plan) Validate(roles *role.Store) error {
	if len(p.Probes) == 0 && len(p.Audits) == 0 {
		return common.NewConfigurationError(common.ReasonPlanInvalid, "plan defines no probes or audits")
	}

	seen := make(map[string]int)
	for i, ps := range p.Probes {
		switch {
		case ps.Name == "":
			return common.NewConfigurationError(common.ReasonPlanInvalid, fmt.Sprintf("probe %d has no name", i))
		case ps.Role == "":
			return common.NewConfigurationError(common.ReasonPlanInvalid, fmt.Sprintf("probe %s has no role", ps.Name))
		case ps.Action == "":
			return common.NewConfigurationError(common.ReasonPlanInvalid, fmt.Sprintf("probe %s has no action", ps.Name))
		case ps.Method == "":
			return common.NewConfigurationError(common.ReasonPlanInvalid, fmt.Sprintf("probe %s has no method", ps.Name))
		case ps.Path == "":
			return common.NewConfigurationError(common.ReasonPlanInvalid, fmt.Sprintf("probe %s has no path", ps.Name))
		}
		if _, dup := seen[ps.Name]; dup {
			return common.NewConfigurationError(common.ReasonPlanInvalid, fmt.Sprintf("duplicate probe name %s", ps.Name))
		}
		if _, ok := roles.Get(ps.Role); !ok {
			return common.NewConfigurationError(common.ReasonPlanInvalid,
				fmt.Sprintf("probe %s references unknown role %s", ps.Name, ps.Role))
		}
		if ps.Scope != "" {
			if _, err := role.ParseScope(ps.Scope); err != nil {
				return common.NewConfigurationError(common.ReasonPlanInvalid, fmt.Sprintf("probe %s: %v", ps.Name, err))
			}
		}
		if ps.Level != 0 && !role.Level(ps.Level).Valid() {
			return common.NewConfigurationError(common.ReasonPlanInvalid,
				fmt.Sprintf("probe %s: level %d out of range 1..4", ps.Name, ps.Level))
		}
		if ps.DependsOn != "" {
			if _, ok := seen[ps.DependsOn]; !ok {
				return common.NewConfigurationError(common.ReasonPlanInvalid,
					fmt.Sprintf("probe %s depends on %s, which is not an earlier probe", ps.Name, ps.DependsOn))
			}
		}
		seen[ps.Name] = i
	}

	for i, as := range p.Audits {
		if as.Name == "" {
			return common.NewConfigurationError(common.ReasonPlanInvalid, fmt.Sprintf("audit %d has no name", i))
		}
		if _, ok := roles.Get(as.Role); !ok {
			return common.NewConfigurationError(common.ReasonPlanInvalid,
				fmt.Sprintf("audit %s references unknown role %s", as.Name, as.Role))
		}
	}
	return nil
}

// Pairs lists the distinct (role, action-class) combinations the plan
// exercises, for the policy matrix completeness gate.
func (p *Plan) Pairs() []policy.Pair {
	var pairs []policy.Pair
	for _, ps := range p.Probes {
		pairs = append(pairs, policy.Pair{Role: ps.Role, Class: policy.ActionClass(ps.Action)})
	}
	return pairs
}

// Filter returns a copy of the plan containing only the probes and
// audits whose names match one of the glob patterns. Dependencies of a
// matched probe are retained so causal chains stay intact. An empty
// pattern list keeps everything.
func (p *Plan) Filter(patterns []string) *Plan {
	if len(patterns) == 0 {
		return p
	}

	matches := func(name string) bool {
		for _, pattern := range patterns {
			ok, err := filepath.Match(pattern, name)
			if err != nil {
				// Invalid pattern - treat as literal match
				if pattern == name {
					return true
				}
				continue
			}
			if ok {
				return true
			}
		}
		return false
	}

	keep := make(map[string]bool)
	byName := make(map[string]ProbeSpec, len(p.Probes))
	for _, ps := range p.Probes {
		byName[ps.Name] = ps
	}
	for _, ps := range p.Probes {
		if !matches(ps.Name) {
			continue
		}
		for name := ps.Name; name != ""; {
			if keep[name] {
				break
			}
			keep[name] = true
			name = byName[name].DependsOn
		}
	}

	out := &Plan{}
	for _, ps := range p.Probes {
		if keep[ps.Name] {
			out.Probes = append(out.Probes, ps)
		}
	}
	for _, as := range p.Audits {
		if matches(as.Name) {
			out.Audits = append(out.Audits, as)
		}
	}
	return out
}

// Probe converts the YAML form into the executable probe.
func (ps ProbeSpec) Probe() probe.Probe {
	return probeFromSpec(ps)
}

// probeFromSpec converts the YAML form into the executable probe.
func probeFromSpec(ps ProbeSpec) probe.Probe {
	return probe.Probe{
		Name:        ps.Name,
		Description: ps.Description,
		Role:        ps.Role,
		Class:       policy.ActionClass(ps.Action),
		Method:      ps.Method,
		Path:        ps.Path,
		Payload:     ps.Payload,
		Level:       role.Level(ps.Level),
		Scope:       role.Scope(ps.Scope),
		DependsOn:   ps.DependsOn,
	}
}
