//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package check

import (
	"context"
	"fmt"

	"github.com/hxci-campus/authprobe/cmd/authprobe/common"
	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/urfave/cli/v3"
)

// Execute runs the pre-flight gates without touching the network: role
// table validation, plan structure, policy matrix completeness, and the
// expected-decision resolution for every probe.
func Execute(ctx context.Context, cmd *cli.Command) error {
	if err := common.Setup(cmd); err != nil {
		return err
	}

	roles, err := common.LoadRoles(cmd)
	if err != nil {
		return fmt.Errorf("role table invalid: %w", err)
	}
	fmt.Printf("✓ role table: %d roles\n", len(roles.Names()))

	p, err := common.LoadPlan(cmd, roles)
	if err != nil {
		return err
	}
	if err := p.Validate(roles); err != nil {
		return fmt.Errorf("plan invalid: %w", err)
	}
	fmt.Printf("✓ plan structure: %d probes, %d audits\n", len(p.Probes), len(p.Audits))

	matrix := policy.Default(roles)
	if err := matrix.Verify(p.Pairs()); err != nil {
		return fmt.Errorf("policy matrix incomplete: %w", err)
	}
	fmt.Printf("✓ policy matrix: all %d role/action pairs covered\n", len(p.Pairs()))

	for _, ps := range p.Probes {
		r, _ := roles.Get(ps.Role)
		pr := ps.Probe()
		if _, err := matrix.ExpectedDecision(r, pr.Class, pr.Attributes()); err != nil {
			return fmt.Errorf("probe %s: %w", ps.Name, err)
		}
	}
	fmt.Println("✓ expected decisions: all probes resolve")

	return nil
}
