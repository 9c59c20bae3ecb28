//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package run

import (
	"context"
	"fmt"
	"os"

	"github.com/hxci-campus/authprobe/cmd/authprobe/common"
	"github.com/hxci-campus/authprobe/pkg/oracle/report"
	"github.com/hxci-campus/authprobe/pkg/oracle/verdict"
	"github.com/urfave/cli/v3"
)

// Execute runs the full authorization boundary suite: pre-flight
// validation, per-role authentication, probe execution and the final
// report. Exits non-zero when any finding is FAIL or ERROR.
func Execute(ctx context.Context, cmd *cli.Command) error {
	if err := common.Setup(cmd); err != nil {
		return err
	}

	roles, err := common.LoadRoles(cmd)
	if err != nil {
		return err
	}

	p, err := common.LoadPlan(cmd, roles)
	if err != nil {
		return err
	}

	if patterns := cmd.StringSlice("test"); len(patterns) > 0 {
		p = p.Filter(patterns)
		if len(p.Probes) == 0 && len(p.Audits) == 0 {
			return fmt.Errorf("no probes match the specified patterns")
		}
	}

	runner := common.NewRunner(roles)
	runner.Parallel = cmd.Int("parallel")

	summary, findings, err := runner.Run(ctx, p)
	if err != nil {
		return err
	}

	for _, f := range findings {
		printFinding(f)
	}

	rendered, err := renderSummary(cmd, summary)
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" {
		if err := os.WriteFile(out, []byte(rendered), 0o600); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	} else {
		fmt.Printf("\n%s", rendered)
	}

	if !summary.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

func printFinding(f verdict.Finding) {
	switch f.Classification {
	case verdict.Pass:
		fmt.Printf("%s: PASS\n", f.Name)
	case verdict.Fail:
		fmt.Printf("%s: FAIL [%s] (expected %s, observed %s: %s)\n",
			f.Name, f.Severity, f.Expected, f.Observed, f.Detail)
	default:
		fmt.Printf("%s: ERROR (%s)\n", f.Name, f.Detail)
	}
}

func renderSummary(cmd *cli.Command, s report.Summary) (string, error) {
	switch format := cmd.String("format"); format {
	case "", "text":
		return report.Render(s), nil
	case "json":
		data, err := report.RenderJSON(s)
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", format)
	}
}
