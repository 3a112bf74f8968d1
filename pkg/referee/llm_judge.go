package referee

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/artemgetmann/memv2/pkg/spi"
)

// ModelJudge implements Judge as an independent model call against a
// rubric (spec 4.6: "LLM judge: independent model call with a rubric and
// the session's final observable state"), grounded on the teacher's
// ace.QualityCalculator being replaced at this layer by an actual model
// verdict rather than a heuristic one; HeuristicJudge remains available as
// the no-model-access fallback/baseline.
type ModelJudge struct {
	model     spi.Model
	maxTokens int
}

// NewModelJudge builds a Judge around model.
func NewModelJudge(model spi.Model) *ModelJudge {
	return &ModelJudge{model: model, maxTokens: 512}
}

type judgeResponse struct {
	Result  string   `json:"result"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Evaluate implements Judge.
func (j *ModelJudge) Evaluate(ctx context.Context, rubric string, state EvaluationState) (JudgeOutcome, error) {
	prompt := buildJudgePrompt(rubric, state)

	turn, err := j.model.Turn(ctx, []spi.Message{
		{Role: spi.RoleSystem, Content: judgeSchemaInstructions},
		{Role: spi.RoleUser, Content: prompt},
	}, nil, spi.StopCondition{MaxTokens: j.maxTokens})
	if err != nil {
		return JudgeOutcome{}, memverrors.Wrap(err, memverrors.TransportFailed, "judge model call failed")
	}

	raw := strings.TrimSpace(strings.Join(turn.TextBlocks, "\n"))
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var parsed judgeResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return JudgeOutcome{}, memverrors.Wrap(err, memverrors.InvalidResponse, "judge response was not valid JSON")
	}

	result := ResultFail
	if strings.EqualFold(parsed.Result, "pass") {
		result = ResultPass
	}

	score := parsed.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return JudgeOutcome{Result: result, Score: score, Reasons: parsed.Reasons}, nil
}

const judgeSchemaInstructions = `You are an independent evaluator judging whether an agent session accomplished its task. Respond with ONLY a JSON object, no prose, no markdown fences, with exactly these keys: "result" ("pass" or "fail"), "score" (a number in [0,1]), "reasons" (an array of short strings).`

func buildJudgePrompt(rubric string, state EvaluationState) string {
	var b strings.Builder
	b.WriteString("Rubric: ")
	b.WriteString(rubric)
	b.WriteString("\n\nTask: ")
	b.WriteString(state.TaskText)
	b.WriteString("\nSteps taken: ")
	b.WriteString(strconv.Itoa(state.StepCount))
	b.WriteString("\nTool errors: ")
	b.WriteString(strconv.Itoa(state.ToolErrors))
	b.WriteString("\nTool call order: ")
	b.WriteString(strings.Join(state.ToolCallLog, ", "))
	b.WriteString("\nFinal state: ")
	if encoded, err := json.Marshal(state.FinalState); err == nil {
		b.Write(encoded)
	}
	return b.String()
}
