//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package plan

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hxci-campus/authprobe/internal/logging"
	"github.com/hxci-campus/authprobe/pkg/oracle/policy"
	"github.com/hxci-campus/authprobe/pkg/oracle/probe"
	"github.com/hxci-campus/authprobe/pkg/oracle/report"
	"github.com/hxci-campus/authprobe/pkg/oracle/role"
	"github.com/hxci-campus/authprobe/pkg/oracle/session"
	"github.com/hxci-campus/authprobe/pkg/oracle/token"
	"github.com/hxci-campus/authprobe/pkg/oracle/verdict"
)

var logger = logging.GetLogger("authprobe.plan")

// maxParallel caps the worker pool for independent chains. Probes inside
// one causal chain always run in order regardless of this setting.
const maxParallel = 5

// Runner executes a plan end to end: pre-flight gates, per-role
// authentication, probe execution, classification and aggregation.
type Runner struct {
	Roles    *role.Store
	Matrix   *policy.Matrix
	Sessions *session.Manager
	Executor *probe.Executor
	// AuditConfig parameterizes token claim audits.
	AuditConfig token.AuditConfig
	// Parallel is the number of concurrent chains, clamped to 1..5.
	// Sequential execution is the default: probes mutate shared backend
	// state, and only provably independent chains may overlap.
	Parallel int

	// now is replaceable for tests.
	now func() time.Time
}

// NewRunner creates a sequential Runner with the default audit config.
func NewRunner(roles *role.Store, matrix *policy.Matrix, sessions *session.Manager, executor *probe.Executor) *Runner {
	return &Runner{
		Roles:       roles,
		Matrix:      matrix,
		Sessions:    sessions,
		Executor:    executor,
		AuditConfig: token.DefaultAuditConfig(),
		Parallel:    1,
		now:         time.Now,
	}
}

// Run executes the plan and returns the aggregated summary plus the full
// finding list.
//
// Pre-flight gating happens before any HTTP call: plan structure, policy
// matrix completeness, and the expected decision of every probe must all
// resolve, otherwise the run aborts with a ConfigurationError, since an
// incomplete policy makes every downstream verdict untrustworthy. After
// pre-flight, per-probe failures are isolated: one probe's ERROR never
// aborts the rest of the run.
func (r *Runner) Run(ctx context.Context, p *Plan) (report.Summary, []verdict.Finding, error) {
	if err := p.Validate(r.Roles); err != nil {
		return report.Summary{}, nil, err
	}
	if err := r.Matrix.Verify(p.Pairs()); err != nil {
		return report.Summary{}, nil, err
	}

	expected := make(map[string]policy.Decision, len(p.Probes))
	for _, ps := range p.Probes {
		rl, _ := r.Roles.Get(ps.Role)
		pr := probeFromSpec(ps)
		d, err := r.Matrix.ExpectedDecision(rl, pr.Class, pr.Attributes())
		if err != nil {
			return report.Summary{}, nil, err
		}
		expected[ps.Name] = d
	}

	creds, authErrs := r.authenticateAll(ctx, p)

	chains := buildChains(p.Probes)
	results := make([][]verdict.Finding, len(chains))

	parallel := r.Parallel
	if parallel < 1 {
		parallel = 1
	}
	if parallel > maxParallel {
		parallel = maxParallel
	}

	if parallel == 1 || len(chains) < 2 {
		for i, chain := range chains {
			results[i] = r.runChain(ctx, chain, expected, creds, authErrs)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, parallel)
		for i, chain := range chains {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, chain []probe.Probe) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = r.runChain(ctx, chain, expected, creds, authErrs)
			}(i, chain)
		}
		wg.Wait()
	}

	agg := report.NewAggregator()
	for _, fs := range results {
		agg.AddAll(fs...)
	}
	r.runAudits(p, creds, authErrs, agg)

	return agg.Summarize(), agg.Findings(), nil
}

// authenticateAll establishes one session per referenced role before any
// probe executes. A role that cannot authenticate poisons every probe and
// audit depending on it; those are recorded as ERROR, not executed.
func (r *Runner) authenticateAll(ctx context.Context, p *Plan) (map[string]*session.Credential, map[string]error) {
	var order []string
	seen := make(map[string]bool)
	note := func(name string) {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	for _, ps := range p.Probes {
		note(ps.Role)
	}
	for _, as := range p.Audits {
		note(as.Role)
	}

	creds := make(map[string]*session.Credential)
	authErrs := make(map[string]error)
	for _, name := range order {
		rl, _ := r.Roles.Get(name)
		cred, err := r.Sessions.Authenticate(ctx, rl)
		if err != nil {
			logger.Errorf(name, "login", "cannot establish session: %v", err)
			authErrs[name] = err
			continue
		}
		creds[name] = cred
	}
	return creds, authErrs
}

// buildChains groups probes into causal chains, preserving plan order.
// Each chain is a root probe plus every descendant depending on it.
func buildChains(specs []ProbeSpec) [][]probe.Probe {
	rootOf := make(map[string]string, len(specs))
	index := make(map[string]int)
	var chains [][]probe.Probe

	for _, ps := range specs {
		root := ps.Name
		if ps.DependsOn != "" {
			root = rootOf[ps.DependsOn]
		}
		rootOf[ps.Name] = root

		i, ok := index[root]
		if !ok {
			i = len(chains)
			index[root] = i
			chains = append(chains, nil)
		}
		chains[i] = append(chains[i], probeFromSpec(ps))
	}
	return chains
}

// runChain executes one causal chain in order. Record ids created by an
// accepted probe feed the "{id}" placeholder of its dependents.
func (r *Runner) runChain(ctx context.Context, chain []probe.Probe, expected map[string]policy.Decision,
	creds map[string]*session.Credential, authErrs map[string]error) []verdict.Finding {

	outcomes := make(map[string]probe.Outcome)
	var findings []verdict.Finding

	for _, pr := range chain {
		if ctx.Err() != nil {
			findings = append(findings, verdict.ErrorFinding(pr.Name, pr.Role, pr.Class, "run interrupted before probe executed"))
			continue
		}
		if err, failed := authErrs[pr.Role]; failed {
			findings = append(findings, verdict.ErrorFinding(pr.Name, pr.Role, pr.Class,
				"role could not authenticate: "+err.Error()))
			continue
		}

		if pr.DependsOn != "" {
			parent, ran := outcomes[pr.DependsOn]
			if !ran || parent.Kind != probe.Accepted || parent.RecordID == 0 {
				findings = append(findings, verdict.ErrorFinding(pr.Name, pr.Role, pr.Class,
					"causal dependency "+pr.DependsOn+" produced no record"))
				continue
			}
			pr.Path = strings.ReplaceAll(pr.Path, "{id}", strconv.FormatInt(parent.RecordID, 10))
		}

		rl, _ := r.Roles.Get(pr.Role)
		out := r.Executor.Execute(ctx, pr, creds[pr.Role].Token)
		outcomes[pr.Name] = out

		f := verdict.Classify(pr, rl, expected[pr.Name], out)
		findings = append(findings, f)
		logger.Infof(pr.Role, string(pr.Class), "%s: %s", pr.Name, f.Classification)
	}
	return findings
}

// runAudits decodes each audited role's token and runs the claim checks.
// A malformed token is recorded as an ERROR finding, never a crash.
func (r *Runner) runAudits(p *Plan, creds map[string]*session.Credential, authErrs map[string]error, agg *report.Aggregator) {
	for _, as := range p.Audits {
		if err, failed := authErrs[as.Role]; failed {
			agg.Add(verdict.ErrorFinding(as.Name, as.Role, token.AuditClass,
				"role could not authenticate: "+err.Error()))
			continue
		}

		claims, err := token.Inspect(creds[as.Role].Token)
		if err != nil {
			agg.Add(verdict.ErrorFinding(as.Name, as.Role, token.AuditClass, err.Error()))
			continue
		}

		for _, f := range token.Audit(as.Role, claims, r.AuditConfig, r.now()) {
			f.Name = as.Name + "/" + f.Name
			agg.Add(f)
		}
	}
}
