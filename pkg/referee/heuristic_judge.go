package referee

import "context"

// QualityWeights configures the relative importance of a session's quality
// signals, grounded on the teacher's ace.QualityWeights.
type QualityWeights struct {
	Outcome     float64
	Efficiency  float64
	ToolSuccess float64
	ErrorFree   float64
}

// DefaultQualityWeights matches the spec's default quality weights.
var DefaultQualityWeights = QualityWeights{
	Outcome:     0.40,
	Efficiency:  0.20,
	ToolSuccess: 0.25,
	ErrorFree:   0.15,
}

// HeuristicJudge is a deterministic Judge implementation used when no LLM
// judge is configured (offline tests, adapters without model access, or as
// a sanity baseline to compare an LLM judge against). Grounded on the
// teacher's ace.QualityCalculator: outcome/efficiency/tool-success/
// error-free signals combined by weight, here repurposed from trajectory
// quality scoring into a pass/fail judge outcome.
type HeuristicJudge struct {
	weights            QualityWeights
	expectedSteps      int
	maxReasonableSteps int
	passThreshold      float64
}

// NewHeuristicJudge builds a HeuristicJudge with the spec's default
// weights and a pass threshold of 0.6.
func NewHeuristicJudge() *HeuristicJudge {
	return &HeuristicJudge{
		weights:            DefaultQualityWeights,
		expectedSteps:      5,
		maxReasonableSteps: 15,
		passThreshold:      0.6,
	}
}

func (j *HeuristicJudge) WithWeights(w QualityWeights) *HeuristicJudge {
	j.weights = w
	return j
}

func (j *HeuristicJudge) WithExpectedSteps(expected, max int) *HeuristicJudge {
	j.expectedSteps = expected
	j.maxReasonableSteps = max
	return j
}

func (j *HeuristicJudge) Evaluate(ctx context.Context, rubric string, state EvaluationState) (JudgeOutcome, error) {
	outcomeScore := j.outcomeScore(state)
	efficiencyScore := j.efficiencyScore(state.StepCount)
	toolSuccessScore := j.toolSuccessScore(state)
	errorFreeScore := j.errorFreeScore(state)

	score := outcomeScore*j.weights.Outcome +
		efficiencyScore*j.weights.Efficiency +
		toolSuccessScore*j.weights.ToolSuccess +
		errorFreeScore*j.weights.ErrorFree

	result := ResultFail
	reasons := []string{}
	if score >= j.passThreshold {
		result = ResultPass
		reasons = append(reasons, "heuristic score met pass threshold")
	} else {
		reasons = append(reasons, "heuristic score below pass threshold")
	}

	return JudgeOutcome{Result: result, Score: score, Reasons: reasons}, nil
}

func (j *HeuristicJudge) outcomeScore(state EvaluationState) float64 {
	if state.ToolErrors == 0 && state.StepCount > 0 {
		return 1.0
	}
	if state.StepCount == 0 {
		return 0.0
	}
	return 0.5
}

func (j *HeuristicJudge) efficiencyScore(stepCount int) float64 {
	if stepCount == 0 {
		return 0
	}
	if stepCount <= j.expectedSteps {
		return 1.0
	}
	if stepCount >= j.maxReasonableSteps {
		return 0.2
	}
	ratio := float64(stepCount-j.expectedSteps) / float64(j.maxReasonableSteps-j.expectedSteps)
	return 1.0 - 0.8*ratio
}

func (j *HeuristicJudge) toolSuccessScore(state EvaluationState) float64 {
	if state.StepCount == 0 {
		return 1.0
	}
	successful := state.StepCount - state.ToolErrors
	if successful < 0 {
		successful = 0
	}
	return float64(successful) / float64(state.StepCount)
}

func (j *HeuristicJudge) errorFreeScore(state EvaluationState) float64 {
	if state.ToolErrors > 0 {
		return 0.0
	}
	return 1.0
}
