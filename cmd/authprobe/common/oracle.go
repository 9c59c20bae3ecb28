//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package common carries the CLI-side wiring shared by the authprobe
// subcommands: configuration bootstrap and oracle construction from
// command flags.
package common

import (
	"github.com/hxci-campus/authprobe/internal/logging"
	"github.com/hxci-campus/authprobe/pkg/config"
	"github.com/hxci-campus/authprobe/pkg/oracle/plan"
	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/hxci-campus/authprobe/pkg/oracle/probe"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
	"github.com/hxci-campus/authprobe/pkg/oracle/session"
	"github.com/urfave/cli/v3"
)

// Setup loads configuration and applies the global trace flag. Safe to
// call from every subcommand; the config load is once-guarded.
func Setup(cmd *cli.Command) error {
	if err := config.Load(); err != nil {
		return err
	}
	if cmd.Root().Bool("trace") {
		if err := logging.UpdateLogLevels(".:debug"); err != nil {
			return err
		}
	}
	return nil
}

// LoadRoles returns the role table from the --roles file when given,
// otherwise the built-in account table.
func LoadRoles(cmd *cli.Command) (*role.Store, error) {
	if path := cmd.String("roles"); path != "" {
		return role.LoadFile(path)
	}
	return role.DefaultStore(), nil
}

// LoadPlan returns the plan from the --plan file when given, otherwise
// the built-in boundary sweep over the role table.
func LoadPlan(cmd *cli.Command, roles *role.Store) (*plan.Plan, error) {
	if path := cmd.String("plan"); path != "" {
		return plan.Load(path)
	}
	return plan.Default(roles), nil
}

// NewRunner builds a runner against the configured API endpoints.
func NewRunner(roles *role.Store) *plan.Runner {
	timeout := config.VConfig.GetDuration(config.HTTPTimeout)
	retries := config.VConfig.GetInt(config.HTTPRetries)

	sessions := session.NewManager(
		config.VConfig.GetString(config.AuthBase),
		timeout, retries,
		config.VConfig.GetDuration(config.SessionTTL))

	executor := probe.NewExecutor(
		config.VConfig.GetString(config.APIBase),
		config.VConfig.GetString(config.APITenant),
		timeout, retries)

	runner := plan.NewRunner(roles, policy.Default(roles), sessions, executor)
	runner.AuditConfig.MaxLifetime = config.VConfig.GetDuration(config.TokenMaxLifetime)
	return runner
}
