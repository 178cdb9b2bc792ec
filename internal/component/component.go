// Package component holds the pluggable allow/deny checks consulted before
// the behavioral filters run.
package component

import (
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// CheckResult is a component's opinion about one visit. Matched false means
// the component has nothing to say and the pipeline moves on.
type CheckResult struct {
	Matched bool
	Verdict policy.Verdict
	Reason  policy.Reason
}

// Component is a single pluggable check.
type Component interface {
	Name() string
	Check(v *visitor.Visit) CheckResult
}

func allow(reason policy.Reason) CheckResult {
	return CheckResult{Matched: true, Verdict: policy.VerdictAllow, Reason: reason}
}

func deny(reason policy.Reason) CheckResult {
	return CheckResult{Matched: true, Verdict: policy.VerdictDeny, Reason: reason}
}
