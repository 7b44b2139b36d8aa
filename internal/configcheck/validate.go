// Package configcheck implements the lint-style diagnostics run-build
// performs against the loaded job registry before dispatch: pool
// references, timeout/outcome-policy contradictions, and job-graph shape
// problems that would otherwise surface as a confusing dispatcher stall.
// The Diagnostic/Severity/LintRule shape generalizes from one graph
// document to the job registry.
package configcheck

import (
	"fmt"
	"os"
	"strings"

	"github.com/litani-build/litani/internal/graph"
	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/schema"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

type Diagnostic struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	JobID    string   `json:"job_id,omitempty"`
}

// LintRule lets callers register additional checks beyond the built-ins.
type LintRule interface {
	Name() string
	Apply(jobs []model.JobSpec, pools []model.Pool) []Diagnostic
}

// Validate runs every built-in check plus any extra rules against a loaded
// job registry and declared pools (spec ch. 4.3, ch. 4.4).
func Validate(jobs []model.JobSpec, pools []model.Pool, extraRules ...LintRule) []Diagnostic {
	var diags []Diagnostic
	diags = append(diags, lintPoolReferencesExist(jobs, pools)...)
	diags = append(diags, lintTimeoutPolicyContradiction(jobs)...)
	diags = append(diags, lintOutputCollisions(jobs)...)
	diags = append(diags, lintGraphAssembles(jobs)...)
	diags = append(diags, lintUnusedPools(jobs, pools)...)
	diags = append(diags, lintOutcomeTableValidates(jobs)...)

	for _, rule := range extraRules {
		if rule != nil {
			diags = append(diags, rule.Apply(jobs, pools)...)
		}
	}
	return diags
}

// ValidateOrError collapses diagnostics of SeverityError into a single
// error, the form run-build actually fails on (spec ch. 4.3, "Failure mode").
func ValidateOrError(jobs []model.JobSpec, pools []model.Pool, extraRules ...LintRule) error {
	diags := Validate(jobs, pools, extraRules...)
	var errs []string
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d.Rule+": "+d.Message)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func lintPoolReferencesExist(jobs []model.JobSpec, pools []model.Pool) []Diagnostic {
	known := make(map[string]bool, len(pools))
	for _, p := range pools {
		known[p.Name] = true
	}
	var diags []Diagnostic
	for _, j := range jobs {
		if j.Pool == "" || known[j.Pool] {
			continue
		}
		diags = append(diags, Diagnostic{
			Rule:     "pool_exists",
			Severity: SeverityError,
			Message:  fmt.Sprintf("job references pool %q which is not declared", j.Pool),
			JobID:    j.JobID,
		})
	}
	return diags
}

func lintTimeoutPolicyContradiction(jobs []model.JobSpec) []Diagnostic {
	var diags []Diagnostic
	for _, j := range jobs {
		if j.TimeoutOK && j.TimeoutIgnore {
			diags = append(diags, Diagnostic{
				Rule:     "timeout_policy_contradiction",
				Severity: SeverityError,
				Message:  "timeout_ok and timeout_ignore are mutually exclusive",
				JobID:    j.JobID,
			})
		}
		if j.TimeoutSeconds == 0 && (j.TimeoutOK || j.TimeoutIgnore) {
			diags = append(diags, Diagnostic{
				Rule:     "timeout_policy_without_timeout",
				Severity: SeverityWarning,
				Message:  "timeout_ok/timeout_ignore has no effect without a timeout",
				JobID:    j.JobID,
			})
		}
	}
	return diags
}

// lintOutputCollisions warns when two jobs declare the same output path,
// which the dispatcher tolerates (spec ch. 3 invariant: multiple producers
// are legal) but is almost always an authoring mistake worth flagging.
func lintOutputCollisions(jobs []model.JobSpec) []Diagnostic {
	owner := map[string]string{}
	var diags []Diagnostic
	for _, j := range jobs {
		for _, out := range j.Outputs {
			if prev, ok := owner[out]; ok && prev != j.JobID {
				diags = append(diags, Diagnostic{
					Rule:     "duplicate_output",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("output %q is also produced by job %s", out, prev),
					JobID:    j.JobID,
				})
				continue
			}
			owner[out] = j.JobID
		}
	}
	return diags
}

// lintGraphAssembles catches dependency cycles early, as a named diagnostic
// instead of a dispatcher stall (spec ch. 4.5, "Readiness").
func lintGraphAssembles(jobs []model.JobSpec) []Diagnostic {
	if _, err := graph.Assemble(jobs); err != nil {
		return []Diagnostic{{
			Rule:     "graph_assembles",
			Severity: SeverityError,
			Message:  err.Error(),
		}}
	}
	return nil
}

// lintOutcomeTableValidates catches a malformed outcome_table file at
// run-build start rather than letting it surface mid-run as a job-level
// load error (spec ch. 4.6, "outcome_table").
func lintOutcomeTableValidates(jobs []model.JobSpec) []Diagnostic {
	checked := map[string]bool{}
	var diags []Diagnostic
	for _, j := range jobs {
		if j.OutcomeTable == "" || checked[j.OutcomeTable] {
			continue
		}
		checked[j.OutcomeTable] = true
		raw, err := os.ReadFile(j.OutcomeTable)
		if err != nil {
			diags = append(diags, Diagnostic{
				Rule:     "outcome_table_readable",
				Severity: SeverityError,
				Message:  fmt.Sprintf("outcome_table %q: %v", j.OutcomeTable, err),
				JobID:    j.JobID,
			})
			continue
		}
		if err := schema.ValidateOutcomeTable(raw); err != nil {
			diags = append(diags, Diagnostic{
				Rule:     "outcome_table_schema",
				Severity: SeverityError,
				Message:  err.Error(),
				JobID:    j.JobID,
			})
		}
	}
	return diags
}

func lintUnusedPools(jobs []model.JobSpec, pools []model.Pool) []Diagnostic {
	used := make(map[string]bool, len(pools))
	for _, j := range jobs {
		if j.Pool != "" {
			used[j.Pool] = true
		}
	}
	var diags []Diagnostic
	for _, p := range pools {
		if !used[p.Name] {
			diags = append(diags, Diagnostic{
				Rule:     "unused_pool",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("pool %q is declared but referenced by no job", p.Name),
			})
		}
	}
	return diags
}
