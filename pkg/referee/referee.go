package referee

import "context"

// Referee runs the deterministic contract check and the LLM judge, then
// combines the two into a final verdict.
type Referee struct {
	judge        Judge
	judgeEnabled bool
	rubric       string
}

// Option configures a Referee.
type Option func(*Referee)

func WithRubric(rubric string) Option { return func(r *Referee) { r.rubric = rubric } }

// WithJudgeEnabled mirrors config.RefereeConfig.JudgeEnabled: when false,
// Evaluate never calls judge and falls back to the contract-only verdict
// (or uncertain with no contract declared), the same fallback path a judge
// transport error takes. Enabled by default.
func WithJudgeEnabled(enabled bool) Option {
	return func(r *Referee) { r.judgeEnabled = enabled }
}

func New(judge Judge, opts ...Option) *Referee {
	r := &Referee{judge: judge, judgeEnabled: true, rubric: defaultRubric}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const defaultRubric = `Evaluate whether the session achieved the stated task. Consider tool errors, the number of steps taken, and whether the final state plausibly satisfies the task text. Return pass or fail with a score in [0, 1] and brief reasons.`

// Evaluate runs both authorities and returns the combined Outcome. contract
// may be nil when the task declares no contract. A judge transport error
// does not fail the session: it falls back to the contract-only verdict
// when a contract is present, or to uncertain otherwise (spec 7). The judge
// is skipped entirely, via the same fallback, when judgeEnabled is false.
func (r *Referee) Evaluate(ctx context.Context, contract *Contract, state EvaluationState) (Outcome, error) {
	contractOutcome := EvaluateContract(contract, state)

	if !r.judgeEnabled || r.judge == nil {
		return Outcome{Contract: contractOutcome, Final: contractOnlyVerdict(contractOutcome)}, nil
	}

	judgeOutcome, err := r.judge.Evaluate(ctx, r.rubric, state)
	if err != nil {
		return Outcome{Contract: contractOutcome, Final: contractOnlyVerdict(contractOutcome)}, nil
	}

	final := Combine(contractOutcome.Result, judgeOutcome.Result)
	return Outcome{Contract: contractOutcome, Judge: judgeOutcome, Final: final}, nil
}

func contractOnlyVerdict(contractOutcome ContractOutcome) Verdict {
	switch contractOutcome.Result {
	case ResultPass:
		return VerdictPass
	case ResultFail:
		return VerdictFail
	default:
		return VerdictUncertain
	}
}
