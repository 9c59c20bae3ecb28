//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package plan

import (
	"fmt"

	"github.com/hxci-campus/authprobe/pkg/oracle/role"
)

const (
	publishNotificationPath = "/admin-api/test/notification/api/publish-database"
	listNotificationsPath   = "/admin-api/test/notification/api/list"
	publishTodoPath         = "/admin-api/test/todo-new/api/publish"
	completeTodoPath        = "/admin-api/test/todo-new/api/{id}/complete"
	clearCachePath          = "/admin-api/test/permission-cache/api/clear-cache"
)

// Default builds the standard boundary sweep for the given role table:
// for every role, a publish at its own ceiling (expected to be accepted),
// a level-escalation and a scope-escalation attempt where the role has
// room to escalate (expected to be rejected), a list read, a cache
// administration attempt, a todo publish/complete causal chain, and a
// token claim audit.
func Default(store *role.Store) *Plan {
	p := &Plan{}

	for _, r := range store.All() {
		scope := r.Scopes[0]

		p.Probes = append(p.Probes, ProbeSpec{
			Name:        r.Name + "/publish-at-ceiling",
			Description: fmt.Sprintf("%s publishes at its own ceiling (level %d, %s)", r.Display, r.MaxLevel, scope),
			Role:        r.Name,
			Action:      "publish-notification",
			Method:      "POST",
			Path:        publishNotificationPath,
			Level:       int(r.MaxLevel),
			Scope:       string(scope),
			Payload: map[string]any{
				"title":   fmt.Sprintf("boundary check by %s", r.Code),
				"content": "synthetic notification issued by authprobe",
			},
		})

		if r.MaxLevel > role.LevelEmergency {
			p.Probes = append(p.Probes, ProbeSpec{
				Name:        r.Name + "/publish-level-escalation",
				Description: fmt.Sprintf("%s attempts level %d, one above its ceiling", r.Display, r.MaxLevel-1),
				Role:        r.Name,
				Action:      "publish-notification",
				Method:      "POST",
				Path:        publishNotificationPath,
				Level:       int(r.MaxLevel) - 1,
				Scope:       string(scope),
				Payload: map[string]any{
					"title":   fmt.Sprintf("level escalation by %s", r.Code),
					"content": "synthetic escalation attempt issued by authprobe",
				},
			})
		}

		if forbidden, ok := firstForbiddenScope(r); ok {
			p.Probes = append(p.Probes, ProbeSpec{
				Name:        r.Name + "/publish-scope-escalation",
				Description: fmt.Sprintf("%s attempts scope %s outside its allowed set", r.Display, forbidden),
				Role:        r.Name,
				Action:      "publish-notification",
				Method:      "POST",
				Path:        publishNotificationPath,
				Level:       int(r.MaxLevel),
				Scope:       string(forbidden),
				Payload: map[string]any{
					"title":   fmt.Sprintf("scope escalation by %s", r.Code),
					"content": "synthetic escalation attempt issued by authprobe",
				},
			})
		}

		p.Probes = append(p.Probes, ProbeSpec{
			Name:        r.Name + "/read-list",
			Description: fmt.Sprintf("%s reads the notification list", r.Display),
			Role:        r.Name,
			Action:      "read-list",
			Method:      "GET",
			Path:        listNotificationsPath,
		})

		p.Probes = append(p.Probes, ProbeSpec{
			Name:        r.Name + "/clear-cache",
			Description: fmt.Sprintf("%s attempts permission-cache administration", r.Display),
			Role:        r.Name,
			Action:      "admin-clear-cache",
			Method:      "POST",
			Path:        clearCachePath,
		})

		p.Probes = append(p.Probes, ProbeSpec{
			Name:        r.Name + "/todo-publish",
			Description: fmt.Sprintf("%s publishes a todo at its ceiling", r.Display),
			Role:        r.Name,
			Action:      "publish-todo",
			Method:      "POST",
			Path:        publishTodoPath,
			Level:       int(r.MaxLevel),
			Scope:       string(scope),
			Payload: map[string]any{
				"title": fmt.Sprintf("todo chain by %s", r.Code),
			},
		})
		p.Probes = append(p.Probes, ProbeSpec{
			Name:        r.Name + "/todo-complete",
			Description: fmt.Sprintf("%s completes the todo it just created", r.Display),
			Role:        r.Name,
			Action:      "complete-todo",
			Method:      "POST",
			Path:        completeTodoPath,
			DependsOn:   r.Name + "/todo-publish",
		})

		p.Audits = append(p.Audits, AuditSpec{
			Name: r.Name + "/token",
			Role: r.Name,
		})
	}

	return p
}

func firstForbiddenScope(r role.Role) (role.Scope, bool) {
	for _, s := range role.AllScopes {
		if !r.AllowsScope(s) {
			return s, true
		}
	}
	return "", false
}
