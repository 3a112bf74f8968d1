// Package critic generates candidate lessons from a finished session trace
// and filters out low-quality or poisoned ones before they reach the
// Lesson Store.
package critic

import "context"

// ScopeHint is the critic's suggestion for how broadly a candidate lesson
// should apply; advisory only, the Lesson Store keys on domain_key/
// task_cluster regardless.
type ScopeHint string

const (
	ScopeTask   ScopeHint = "task"
	ScopeDomain ScopeHint = "domain"
	ScopeGlobal ScopeHint = "global"
)

// Candidate is the critic's raw output contract (spec 4.5), before quality
// filtering and before the Lesson Store assigns an ID.
type Candidate struct {
	TriggerFingerprints []string  `json:"trigger_fingerprints"`
	RuleText            string    `json:"rule_text"`
	ScopeHint           ScopeHint `json:"scope_hint"`
	Tags                []string  `json:"tags,omitempty"`
}

// StepRecord is one (tool_call, outcome, error_text_if_any) entry from a
// session trace, the critic's input alongside the referee verdict.
type StepRecord struct {
	ToolName  string
	Succeeded bool
	ErrorText string
	Fingerprint string
}

// RefereeVerdict is the subset of the referee's output the critic consumes;
// defined here rather than imported from pkg/referee to avoid a cyclic
// dependency (pkg/referee may in turn want quality signals derived from
// accepted lessons in a later iteration).
type RefereeVerdict struct {
	Passed    bool
	Uncertain bool
	Score     float64
}

// SessionTrace is the critic's full input.
type SessionTrace struct {
	SessionID   string
	DomainKey   string
	TaskCluster string
	Steps       []StepRecord
	Verdict     RefereeVerdict
}

// Adapter generates raw candidate lessons from a session trace, grounded
// on the teacher's ace.PatternSource/ErrorSource Extract contract: an
// Adapter is a pluggable source of insight candidates, and multiple
// adapters (an LLM-prompted one, a static/test one) can all feed the same
// quality filter.
type Adapter interface {
	Extract(ctx context.Context, trace SessionTrace) ([]Candidate, error)
}
