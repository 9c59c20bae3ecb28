//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package report aggregates classified findings into a run summary and
// renders it deterministically.
//
// Each run constructs and owns its own Aggregator; there is no
// process-wide result state. A finding is never reclassified after it is
// added: the sole success condition is zero FAIL and zero ERROR findings.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hxci-campus/authprobe/pkg/oracle/verdict"
)

// Aggregator collects the findings of one test run.
type Aggregator struct {
	findings []verdict.Finding
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends one finding. Findings are immutable once added.
func (a *Aggregator) Add(f verdict.Finding) {
	a.findings = append(a.findings, f)
}

// AddAll appends a batch of findings in order.
func (a *Aggregator) AddAll(fs ...verdict.Finding) {
	a.findings = append(a.findings, fs...)
}

// Findings returns a copy of the collected findings in insertion order.
func (a *Aggregator) Findings() []verdict.Finding {
	out := make([]verdict.Finding, len(a.findings))
	copy(out, a.findings)
	return out
}

// ClassCounts breaks one action class down by classification.
type ClassCounts struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// Summary is the aggregate view of a run.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	// BySeverity counts non-PASS findings per severity label.
	BySeverity map[string]int `json:"bySeverity"`
	// ByClass groups counts per action class.
	ByClass map[string]ClassCounts `json:"byClass"`
	// Problems lists every non-PASS finding, in insertion order, for
	// detailed review.
	Problems []verdict.Finding `json:"problems"`
}

// Success reports whether the run passed: no FAIL and no ERROR findings.
// A warning or PASS alone never fails a run.
func (s Summary) Success() bool {
	return s.Failed == 0 && s.Errored == 0
}

// Summarize computes the run summary from the collected findings.
func (a *Aggregator) Summarize() Summary {
	s := Summary{
		BySeverity: make(map[string]int),
		ByClass:    make(map[string]ClassCounts),
	}

	for _, f := range a.findings {
		s.Total++
		cc := s.ByClass[string(f.Class)]
		cc.Total++

		switch f.Classification {
		case verdict.Pass:
			s.Passed++
			cc.Passed++
		case verdict.Fail:
			s.Failed++
			cc.Failed++
			s.BySeverity[f.Severity.String()]++
			s.Problems = append(s.Problems, f)
		default:
			s.Errored++
			cc.Errored++
			s.Problems = append(s.Problems, f)
		}
		s.ByClass[string(f.Class)] = cc
	}
	return s
}

// severityOrder fixes the rendering order of severity buckets.
var severityOrder = []string{
	verdict.SeverityCritical.String(),
	verdict.SeverityHigh.String(),
	verdict.SeverityMedium.String(),
}

// Render produces the stable-ordered textual report. The output depends
// only on the Summary contents, never on wall-clock-derived ordering.
func Render(s Summary) string {
	var b strings.Builder

	b.WriteString("authorization boundary report\n")
	b.WriteString("=============================\n")
	fmt.Fprintf(&b, "total: %d  pass: %d  fail: %d  error: %d\n", s.Total, s.Passed, s.Failed, s.Errored)

	if len(s.BySeverity) > 0 {
		b.WriteString("\nfailures by severity:\n")
		for _, sev := range severityOrder {
			if n, ok := s.BySeverity[sev]; ok {
				fmt.Fprintf(&b, "  %-8s %d\n", sev, n)
			}
		}
	}

	if len(s.ByClass) > 0 {
		b.WriteString("\nby action class:\n")
		classes := make([]string, 0, len(s.ByClass))
		for class := range s.ByClass {
			classes = append(classes, class)
		}
		sort.Strings(classes)
		for _, class := range classes {
			cc := s.ByClass[class]
			fmt.Fprintf(&b, "  %-24s pass %d  fail %d  error %d\n", class, cc.Passed, cc.Failed, cc.Errored)
		}
	}

	if len(s.Problems) > 0 {
		b.WriteString("\nfindings requiring review:\n")
		for _, f := range s.Problems {
			tag := f.Classification.String()
			if f.Classification == verdict.Fail {
				tag = fmt.Sprintf("%s/%s", tag, f.Severity)
			}
			fmt.Fprintf(&b, "  [%s] %s (role=%s class=%s): %s\n", tag, f.Name, f.Role, f.Class, f.Detail)
		}
	}

	if s.Success() {
		b.WriteString("\nresult: PASS\n")
	} else {
		b.WriteString("\nresult: FAIL\n")
	}
	return b.String()
}

// RenderJSON produces the machine-readable report.
func RenderJSON(s Summary) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
