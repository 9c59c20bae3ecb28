//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package verdict classifies probe outcomes against policy expectations.
//
// The severity assignment is deliberately asymmetric: granted access that
// should have been denied is a security hole and is flagged CRITICAL or
// HIGH, while denied access that should have been allowed merely breaks
// legitimate usage and is flagged MEDIUM. The two must never collapse
// into one bucket.
package verdict

import (
	"fmt"

	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/hxci-campus/authprobe/pkg/oracle/probe"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
)

// Classification is the oracle's judgement of one probe or audit.
type Classification int

// Classifications. Error is distinct from Fail: a transport fault or
// unparseable response is never silently counted as a pass or a fail.
const (
	Pass Classification = iota
	Fail
	Error
)

// String returns the report spelling of the classification.
func (c Classification) String() string {
	switch c {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	default:
		return "ERROR"
	}
}

// Severity tags non-PASS findings by impact.
type Severity int

// Severities, in ascending order of impact.
const (
	SeverityNone Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the report spelling of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	default:
		return "-"
	}
}

// Finding is one immutable classified result. Findings are appended to
// the run's list and never mutated afterwards.
type Finding struct {
	// Name is the probe or audit name.
	Name string
	// Role is the identity class under test, empty for role-independent audits.
	Role string
	// Class groups findings for report summaries.
	Class policy.ActionClass
	// Expected is the policy expectation, empty for audits without one.
	Expected string
	// Observed is the normalized outcome observation.
	Observed string
	// Classification and Severity are the oracle's judgement.
	Classification Classification
	Severity       Severity
	// Detail is free text for the report.
	Detail string
	// Outcome keeps the raw record for non-PASS review, nil for audits.
	Outcome *probe.Outcome
}

// escalation reports whether the violated boundary is a privilege
// escalation: the role acting above its level ceiling or outside its
// declared scope set.
func escalation(p probe.Probe, r role.Role) bool {
	if p.Level != 0 && !r.AllowsLevel(p.Level) {
		return true
	}
	if p.Scope != "" && !r.AllowsScope(p.Scope) {
		return true
	}
	return false
}

// Classify compares a probe's observed outcome to its expected decision.
// Classification is deterministic: the same (probe, expected, outcome)
// triple always yields the same finding.
func Classify(p probe.Probe, r role.Role, expected policy.Decision, out probe.Outcome) Finding {
	f := Finding{
		Name:     p.Name,
		Role:     p.Role,
		Class:    p.Class,
		Expected: expected.String(),
		Observed: out.Kind.String(),
		Outcome:  &out,
	}

	if out.Kind == probe.Faulted {
		f.Classification = Error
		f.Detail = out.Detail
		return f
	}

	switch expected {
	case policy.Deny:
		if out.Kind == probe.Rejected {
			f.Classification = Pass
			f.Detail = describeRejection(out)
			return f
		}
		f.Classification = Fail
		if escalation(p, r) {
			f.Severity = SeverityCritical
			f.Detail = fmt.Sprintf("privilege escalation: %s performed %s despite level/scope boundary", r.Name, p.Class)
		} else {
			f.Severity = SeverityHigh
			f.Detail = fmt.Sprintf("%s performed %s that policy expected to be denied", r.Name, p.Class)
		}
		return f

	default: // Allow
		if out.Kind == probe.Accepted {
			f.Classification = Pass
			return f
		}
		f.Classification = Fail
		f.Severity = SeverityMedium
		f.Detail = fmt.Sprintf("legitimate %s by %s was rejected (%s)", p.Class, r.Name, describeRejection(out))
		return f
	}
}

func describeRejection(out probe.Outcome) string {
	if out.StatusCode != 0 && out.StatusCode != 200 {
		return fmt.Sprintf("HTTP %d", out.StatusCode)
	}
	return fmt.Sprintf("business code %d %s", out.BusinessCode, out.Message)
}

// ErrorFinding records a probe that could not be executed at all, e.g.
// because its role failed to authenticate or its causal parent produced
// no record.
func ErrorFinding(name, roleName string, class policy.ActionClass, detail string) Finding {
	return Finding{
		Name:           name,
		Role:           roleName,
		Class:          class,
		Observed:       "NOT-EXECUTED",
		Classification: Error,
		Detail:         detail,
	}
}
