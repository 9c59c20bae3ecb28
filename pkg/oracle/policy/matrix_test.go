//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package policy

import (
	"testing"

	"github.com/hxci-campus/authprobe/pkg/common"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatrixBoundary(t *testing.T) {
	store := role.DefaultStore()
	m := Default(store)

	student, _ := store.Get("student")
	principal, _ := store.Get("principal")
	teacher, _ := store.Get("teacher")

	// The principal may publish anywhere at any level
	d, err := m.ExpectedDecision(principal, ActionPublishNotification,
		Attributes{Level: role.LevelEmergency, Scope: role.ScopeSchoolWide})
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	// A student stays inside level 4 / CLASS
	d, err = m.ExpectedDecision(student, ActionPublishNotification,
		Attributes{Level: role.LevelReminder, Scope: role.ScopeClass})
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	// Level escalation
	d, err = m.ExpectedDecision(student, ActionPublishNotification,
		Attributes{Level: role.LevelEmergency, Scope: role.ScopeClass})
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	// Scope escalation
	d, err = m.ExpectedDecision(teacher, ActionPublishNotification,
		Attributes{Level: role.LevelRegular, Scope: role.ScopeSchoolWide})
	require.NoError(t, err)
	assert.Equal(t, Deny, d)
}

func TestDefaultMatrixFixedActions(t *testing.T) {
	store := role.DefaultStore()
	m := Default(store)

	for _, r := range store.All() {
		d, err := m.ExpectedDecision(r, ActionReadList, Attributes{})
		require.NoError(t, err)
		assert.Equal(t, Allow, d, "every role may read the list")

		d, err = m.ExpectedDecision(r, ActionAdminClearCache, Attributes{})
		require.NoError(t, err)
		if r.Rank == 1 {
			assert.Equal(t, Allow, d, "rank-1 role %s administers the cache", r.Name)
		} else {
			assert.Equal(t, Deny, d, "role %s must not administer the cache", r.Name)
		}
	}
}

func TestExpectedDecisionDeterministic(t *testing.T) {
	store := role.DefaultStore()
	m := Default(store)
	teacher, _ := store.Get("teacher")
	attrs := Attributes{Level: role.LevelImportant, Scope: role.ScopeDepartment}

	first, err := m.ExpectedDecision(teacher, ActionPublishNotification, attrs)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		d, err := m.ExpectedDecision(teacher, ActionPublishNotification, attrs)
		require.NoError(t, err)
		assert.Equal(t, first, d)
	}
}

func TestExpectedDecisionMissingEntry(t *testing.T) {
	store := role.DefaultStore()
	student, _ := store.Get("student")

	m := NewMatrix()
	_, err := m.ExpectedDecision(student, ActionReadList, Attributes{})
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))

	m.SetFixed("student", ActionReadList, Allow)
	_, err = m.ExpectedDecision(student, ActionPublishTodo, Attributes{})
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))
}

func TestBoundaryLookupRejectsBadAttributes(t *testing.T) {
	store := role.DefaultStore()
	m := Default(store)
	student, _ := store.Get("student")

	_, err := m.ExpectedDecision(student, ActionPublishNotification,
		Attributes{Level: 9, Scope: role.ScopeClass})
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))

	_, err = m.ExpectedDecision(student, ActionPublishNotification,
		Attributes{Level: role.LevelReminder, Scope: "CAMPUS"})
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))
}

func TestVerifyCollectsAllGaps(t *testing.T) {
	m := NewMatrix()
	m.SetFixed("student", ActionReadList, Allow)

	err := m.Verify([]Pair{
		{Role: "student", Class: ActionReadList},
		{Role: "student", Class: ActionPublishTodo},
		{Role: "teacher", Class: ActionReadList},
	})
	require.Error(t, err)

	var cfg *common.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	// Every gap is reported at once, sorted, so one run surfaces the
	// whole configuration problem
	assert.Equal(t, []string{"student/publish-todo", "teacher/read-list"}, cfg.Missing)
}

func TestVerifyCompleteMatrix(t *testing.T) {
	store := role.DefaultStore()
	m := Default(store)

	var pairs []Pair
	for _, r := range store.All() {
		for _, class := range []ActionClass{
			ActionPublishNotification, ActionReadList,
			ActionPublishTodo, ActionCompleteTodo, ActionAdminClearCache,
		} {
			pairs = append(pairs, Pair{Role: r.Name, Class: class})
		}
	}
	assert.NoError(t, m.Verify(pairs))
}

func TestPrivilegeMonotonicity(t *testing.T) {
	// If a low-privilege role may publish at some level/scope, every
	// role with a lower (more privileged) ceiling and a superset scope
	// may as well
	store := role.DefaultStore()
	m := Default(store)

	student, _ := store.Get("student")
	sysadmin, _ := store.Get("system_admin")

	for _, lvl := range []role.Level{role.LevelEmergency, role.LevelImportant, role.LevelRegular, role.LevelReminder} {
		for _, sc := range role.AllScopes {
			attrs := Attributes{Level: lvl, Scope: sc}
			studentD, err := m.ExpectedDecision(student, ActionPublishNotification, attrs)
			require.NoError(t, err)
			if studentD == Allow {
				adminD, err := m.ExpectedDecision(sysadmin, ActionPublishNotification, attrs)
				require.NoError(t, err)
				assert.Equal(t, Allow, adminD)
			}
		}
	}
}
