package critic

import (
	"context"
	"encoding/json"
	"strings"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/artemgetmann/memv2/pkg/spi"
)

// ModelAdapter asks a Model SPI transport to generate candidate lessons
// from a session trace (spec 4.5: "Ask the model to generate candidate
// lessons from a run trace"), grounded on the teacher's ace.Reflector/
// Generator pattern of prompting an LLM for structured self-improvement
// output and parsing its JSON response. The strict/legacy prompt-path
// distinction lives in Critic; ModelAdapter only renders the prompt text
// the active path dictates.
type ModelAdapter struct {
	model      spi.Model
	promptPath PromptPath
	knowledge  KnowledgeProvider
	maxTokens  int
}

// ModelAdapterOption configures a ModelAdapter.
type ModelAdapterOption func(*ModelAdapter)

func WithModelAdapterPromptPath(p PromptPath) ModelAdapterOption {
	return func(a *ModelAdapter) { a.promptPath = p }
}

func WithModelAdapterKnowledge(k KnowledgeProvider) ModelAdapterOption {
	return func(a *ModelAdapter) { a.knowledge = k }
}

// NewModelAdapter builds an Adapter that extracts candidates via model.
func NewModelAdapter(model spi.Model, opts ...ModelAdapterOption) *ModelAdapter {
	a := &ModelAdapter{model: model, promptPath: PromptPathStrict, maxTokens: 1024}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// rawCandidate mirrors Candidate's JSON shape exactly as spec 4.5's output
// contract names the fields, so a schema-only prompt can ask the model for
// this shape verbatim.
type rawCandidate struct {
	TriggerFingerprints []string `json:"trigger_fingerprints"`
	RuleText            string   `json:"rule_text"`
	ScopeHint           string   `json:"scope_hint"`
	Tags                []string `json:"tags,omitempty"`
}

// Extract implements Adapter: it prompts the model with the trace and
// parses a strict JSON list of candidates from the response text. The
// model is never trusted to have the last word — Critic.Propose runs the
// quality filter over whatever Extract returns.
func (a *ModelAdapter) Extract(ctx context.Context, trace SessionTrace) ([]Candidate, error) {
	prompt, err := a.buildPrompt(ctx, trace)
	if err != nil {
		return nil, err
	}

	turn, err := a.model.Turn(ctx, []spi.Message{
		{Role: spi.RoleSystem, Content: candidateSchemaInstructions},
		{Role: spi.RoleUser, Content: prompt},
	}, nil, spi.StopCondition{MaxTokens: a.maxTokens})
	if err != nil {
		return nil, memverrors.Wrap(err, memverrors.TransportFailed, "critic model call failed")
	}

	raw := strings.Join(turn.TextBlocks, "\n")
	return parseCandidates(raw)
}

const candidateSchemaInstructions = `You are generating lessons for a tool-using agent from its most recent session. Respond with ONLY a JSON array, no prose, no markdown fences. Each element has exactly these keys: "trigger_fingerprints" (array of strings, must be drawn from the fingerprints listed below), "rule_text" (string, at most 160 characters, "WRONG X -> CORRECT Y" form when possible), "scope_hint" (one of "task", "domain", "global"), and optionally "tags" (array of short strings). Return an empty array if nothing generalizable was learned.`

func (a *ModelAdapter) buildPrompt(ctx context.Context, trace SessionTrace) (string, error) {
	var b strings.Builder
	b.WriteString("Session outcome: ")
	if trace.Verdict.Uncertain {
		b.WriteString("uncertain")
	} else if trace.Verdict.Passed {
		b.WriteString("passed")
	} else {
		b.WriteString("failed")
	}
	b.WriteString("\nSteps:\n")

	var fingerprints []string
	for _, step := range trace.Steps {
		status := "ok"
		if !step.Succeeded {
			status = "error: " + step.ErrorText
		}
		b.WriteString("- ")
		b.WriteString(step.ToolName)
		b.WriteString(" -> ")
		b.WriteString(status)
		if step.Fingerprint != "" {
			b.WriteString(" [fingerprint: ")
			b.WriteString(step.Fingerprint)
			b.WriteString("]")
			fingerprints = append(fingerprints, step.Fingerprint)
		}
		b.WriteString("\n")
	}

	if a.promptPath == PromptPathStrict && a.knowledge != nil {
		excerpts, err := a.knowledge.Excerpts(ctx, trace.DomainKey)
		if err == nil && len(excerpts) > 0 {
			b.WriteString("\nDomain notes:\n")
			for _, e := range excerpts {
				b.WriteString("- ")
				b.WriteString(e)
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\nValid trigger_fingerprints: ")
	b.WriteString(strings.Join(fingerprints, ", "))
	return b.String(), nil
}

// parseCandidates extracts a JSON array from raw, tolerating a model that
// wraps it in a code fence despite instructions not to.
func parseCandidates(raw string) ([]Candidate, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return nil, nil
	}

	var parsed []rawCandidate
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, memverrors.Wrap(err, memverrors.CriticRejected, "critic model response was not a valid JSON array")
	}

	out := make([]Candidate, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, Candidate{
			TriggerFingerprints: p.TriggerFingerprints,
			RuleText:            p.RuleText,
			ScopeHint:           ScopeHint(p.ScopeHint),
			Tags:                p.Tags,
		})
	}
	return out, nil
}
