// Package referee implements the dual-authority session evaluator: a
// deterministic contract check plus an independent LLM judge, combined
// into one final verdict.
package referee

import "context"

// Result is a pass/fail outcome from either authority.
type Result string

const (
	ResultPass   Result = "pass"
	ResultFail   Result = "fail"
	ResultAbsent Result = "absent"
)

// Verdict is the referee's final combined output.
type Verdict string

const (
	VerdictPass      Verdict = "pass"
	VerdictFail      Verdict = "fail"
	VerdictUncertain Verdict = "uncertain"
)

// Contract is a task's declared deterministic checks: output predicates,
// required side effects, and ordering constraints.
type Contract struct {
	Predicates    []Predicate
	RequiredOrder []string // step/tool names expected in this relative order
}

// Predicate is a single named check over the session's final observable
// state; Check receives that state and reports pass/fail plus evidence.
type Predicate struct {
	Name  string
	Check func(state map[string]interface{}) (bool, string)
}

// EvaluationState is the session's final observable state handed to both
// the contract evaluator and the LLM judge.
type EvaluationState struct {
	SessionID    string
	TaskText     string
	FinalState   map[string]interface{}
	ToolCallLog  []string // tool names in execution order, for RequiredOrder checks
	ToolErrors   int
	StepCount    int
}

// ContractEvidence records a single predicate's outcome.
type ContractEvidence struct {
	Name   string
	Passed bool
	Detail string
}

// ContractOutcome is the deterministic evaluator's output.
type ContractOutcome struct {
	Result   Result
	Evidence []ContractEvidence
}

// JudgeOutcome is the LLM judge's output.
type JudgeOutcome struct {
	Result  Result
	Score   float64
	Reasons []string
}

// Judge is an independent model call scoring the session against a rubric.
type Judge interface {
	Evaluate(ctx context.Context, rubric string, state EvaluationState) (JudgeOutcome, error)
}

// Outcome is the referee's full combined output for one session.
type Outcome struct {
	Contract ContractOutcome
	Judge    JudgeOutcome
	Final    Verdict
}

// PromotionBlocked reports whether this outcome must block promotion of
// any lesson produced in the session (spec 4.6: uncertain is treated as
// fail for Promoter purposes).
func (o Outcome) PromotionBlocked() bool {
	return o.Final == VerdictUncertain
}
