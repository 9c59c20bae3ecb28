//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package verdict

import (
	"testing"

	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/hxci-campus/authprobe/pkg/oracle/probe"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
	"github.com/stretchr/testify/assert"
)

func studentRole() role.Role {
	return role.Role{
		Name:     "student",
		Code:     "STUDENT",
		Rank:     4,
		MaxLevel: role.LevelReminder,
		Scopes:   []role.Scope{role.ScopeClass},
	}
}

func escalationProbe() probe.Probe {
	return probe.Probe{
		Name:  "student/publish-level-escalation",
		Role:  "student",
		Class: policy.ActionPublishNotification,
		Level: role.LevelEmergency,
		Scope: role.ScopeClass,
	}
}

func inBoundsProbe() probe.Probe {
	return probe.Probe{
		Name:  "student/publish-at-ceiling",
		Role:  "student",
		Class: policy.ActionPublishNotification,
		Level: role.LevelReminder,
		Scope: role.ScopeClass,
	}
}

func TestDenyRejectedIsPass(t *testing.T) {
	f := Classify(escalationProbe(), studentRole(), policy.Deny,
		probe.Outcome{Kind: probe.Rejected, StatusCode: 200, BusinessCode: 403, Message: "denied"})

	assert.Equal(t, Pass, f.Classification)
	assert.Equal(t, SeverityNone, f.Severity)
	assert.Equal(t, "DENY", f.Expected)
	assert.Equal(t, "REJECTED", f.Observed)
}

func TestDenyAcceptedEscalationIsCriticalFail(t *testing.T) {
	f := Classify(escalationProbe(), studentRole(), policy.Deny,
		probe.Outcome{Kind: probe.Accepted, StatusCode: 200, RecordID: 7})

	assert.Equal(t, Fail, f.Classification)
	assert.Equal(t, SeverityCritical, f.Severity)
	assert.Contains(t, f.Detail, "privilege escalation")
}

func TestDenyAcceptedScopeEscalationIsCritical(t *testing.T) {
	p := inBoundsProbe()
	p.Scope = role.ScopeSchoolWide

	f := Classify(p, studentRole(), policy.Deny, probe.Outcome{Kind: probe.Accepted})
	assert.Equal(t, Fail, f.Classification)
	assert.Equal(t, SeverityCritical, f.Severity)
}

func TestDenyAcceptedWithoutEscalationIsHighFail(t *testing.T) {
	// A denied action class without level/scope attributes, e.g. cache
	// administration by a non-admin role
	p := probe.Probe{
		Name:  "student/clear-cache",
		Role:  "student",
		Class: policy.ActionAdminClearCache,
	}

	f := Classify(p, studentRole(), policy.Deny, probe.Outcome{Kind: probe.Accepted})
	assert.Equal(t, Fail, f.Classification)
	assert.Equal(t, SeverityHigh, f.Severity)
}

func TestAllowAcceptedIsPass(t *testing.T) {
	f := Classify(inBoundsProbe(), studentRole(), policy.Allow,
		probe.Outcome{Kind: probe.Accepted, StatusCode: 200, RecordID: 3})

	assert.Equal(t, Pass, f.Classification)
}

func TestAllowRejectedIsMediumFail(t *testing.T) {
	f := Classify(inBoundsProbe(), studentRole(), policy.Allow,
		probe.Outcome{Kind: probe.Rejected, StatusCode: 200, BusinessCode: 403, Message: "denied"})

	assert.Equal(t, Fail, f.Classification)
	assert.Equal(t, SeverityMedium, f.Severity)
	assert.Contains(t, f.Detail, "business code 403")
}

func TestFaultedIsErrorRegardlessOfExpectation(t *testing.T) {
	out := probe.Outcome{Kind: probe.Faulted, Detail: "transport: connection refused"}

	for _, expected := range []policy.Decision{policy.Allow, policy.Deny} {
		f := Classify(inBoundsProbe(), studentRole(), expected, out)
		assert.Equal(t, Error, f.Classification)
		assert.Equal(t, "transport: connection refused", f.Detail)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	p := escalationProbe()
	r := studentRole()
	out := probe.Outcome{Kind: probe.Accepted, StatusCode: 200}

	first := Classify(p, r, policy.Deny, out)
	for i := 0; i < 5; i++ {
		again := Classify(p, r, policy.Deny, out)
		assert.Equal(t, first.Classification, again.Classification)
		assert.Equal(t, first.Severity, again.Severity)
		assert.Equal(t, first.Detail, again.Detail)
	}
}

func TestRejectionDescription(t *testing.T) {
	// HTTP-layer rejections name the status, envelope rejections the code
	f := Classify(escalationProbe(), studentRole(), policy.Deny,
		probe.Outcome{Kind: probe.Rejected, StatusCode: 403})
	assert.Contains(t, f.Detail, "HTTP 403")
}

func TestErrorFinding(t *testing.T) {
	f := ErrorFinding("student/todo-complete", "student", policy.ActionCompleteTodo,
		"causal parent student/todo-publish produced no record")

	assert.Equal(t, Error, f.Classification)
	assert.Equal(t, "NOT-EXECUTED", f.Observed)
	assert.Nil(t, f.Outcome)
}

func TestSeverityStrings(t *testing.T) {
	assert.Equal(t, "CRITICAL", SeverityCritical.String())
	assert.Equal(t, "HIGH", SeverityHigh.String())
	assert.Equal(t, "MEDIUM", SeverityMedium.String())
	assert.Equal(t, "-", SeverityNone.String())
	assert.Equal(t, "PASS", Pass.String())
	assert.Equal(t, "FAIL", Fail.String())
	assert.Equal(t, "ERROR", Error.String())
}
