//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package probe provides single synthetic requests against the protected
// campus-portal API and the normalization of their raw results.
//
// The backend conflates authorization failures across two layers: the
// transport layer (HTTP 401/403) and an embedded business envelope
// (HTTP 200 with a non-zero code). The [Outcome] normalization collapses
// both into one rejection signal so downstream classification never
// re-implements the scattered status checks.
package probe

import (
	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
)

// Probe is one synthetic test action: a target endpoint, an HTTP verb, a
// payload template parameterized by level and scope, and the semantic
// action class it represents.
type Probe struct {
	// Name uniquely identifies the probe within a plan.
	Name string
	// Description is free text for reports.
	Description string
	// Role names the identity class whose credential the probe uses.
	Role string
	// Class is the semantic action class, used for policy lookup and
	// report grouping.
	Class policy.ActionClass
	// Method and Path describe the HTTP action. Path may contain the
	// "{id}" placeholder, resolved from the causal parent's created record.
	Method string
	Path   string
	// Payload is the JSON body template. Level and Scope, when set, are
	// merged into a copy of the template before sending.
	Payload map[string]any
	// Level and Scope are the resource attributes the boundary decision
	// depends on. Zero values mean not applicable.
	Level role.Level
	Scope role.Scope
	// DependsOn names the probe whose created record this probe operates
	// on. Causally ordered pairs always run sequentially.
	DependsOn string
}

// Attributes returns the policy lookup attributes for this probe.
func (p Probe) Attributes() policy.Attributes {
	return policy.Attributes{Level: p.Level, Scope: p.Scope}
}

// OutcomeKind is the normalized result category of an executed probe.
type OutcomeKind int

const (
	// Accepted means the backend performed the action: HTTP 200 with a
	// success business code.
	Accepted OutcomeKind = iota
	// Rejected means the backend refused the action, at either layer:
	// HTTP 401/403, or HTTP 200 with a non-success business code.
	Rejected
	// Faulted means no meaningful decision was observed: transport
	// failure, unparseable response, or an unexpected HTTP status.
	Faulted
)

// String returns the report spelling of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case Accepted:
		return "ACCEPTED"
	case Rejected:
		return "REJECTED"
	default:
		return "FAULTED"
	}
}

// Outcome is the normalized raw result of executing a probe.
type Outcome struct {
	Kind OutcomeKind
	// StatusCode is the HTTP status, 0 on transport failure.
	StatusCode int
	// BusinessCode is the embedded envelope code; meaningful only when
	// StatusCode is 200. 0 is success.
	BusinessCode int
	// Message is the envelope message, when present.
	Message string
	// RecordID is the identifier of a record created by an accepted
	// publish action, used to drive causally dependent probes.
	RecordID int64
	// Detail carries the failure description for faulted outcomes.
	Detail string
}
