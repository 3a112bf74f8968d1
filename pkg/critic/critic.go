package critic

import (
	"context"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/artemgetmann/memv2/pkg/lesson"
)

// PromptPath selects between the two critic prompt variants (spec 4.5).
type PromptPath string

const (
	// PromptPathLegacy may include domain-specific exemplars in its prompt.
	PromptPathLegacy PromptPath = "legacy"
	// PromptPathStrict uses a schema-only prompt and relies on a
	// retrieval-backed knowledge provider for any domain context, so the
	// critic is not hard-coded to any one domain.
	PromptPathStrict PromptPath = "strict"
)

// KnowledgeProvider supplies domain-doc excerpts to the strict prompt path;
// it is not consulted on the legacy path, whose prompt carries neither
// domain notes nor exemplars.
type KnowledgeProvider interface {
	Excerpts(ctx context.Context, domainKey string) ([]string, error)
}

// Critic runs an Adapter, filters its output, and converts survivors into
// lesson.Candidate for the Lesson Store.
type Critic struct {
	adapter    Adapter
	promptPath PromptPath
	knowledge  KnowledgeProvider
}

// Option configures a Critic.
type Option func(*Critic)

func WithPromptPath(p PromptPath) Option           { return func(c *Critic) { c.promptPath = p } }
func WithKnowledgeProvider(k KnowledgeProvider) Option { return func(c *Critic) { c.knowledge = k } }

// New builds a Critic around adapter, defaulting to the strict prompt path.
func New(adapter Adapter, opts ...Option) *Critic {
	c := &Critic{adapter: adapter, promptPath: PromptPathStrict}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Propose runs extraction, quality-filters the result, and converts
// survivors into Lesson Store candidates. The strict path requires a
// KnowledgeProvider to be configured (spec 4.5: "relies on a
// retrieval-backed knowledge provider... so the critic is not hard-coded
// to any one domain").
func (c *Critic) Propose(ctx context.Context, trace SessionTrace) ([]lesson.Candidate, map[int]string, error) {
	if c.promptPath == PromptPathStrict && c.knowledge == nil {
		return nil, nil, memverrors.New(memverrors.CriticRejected, "strict prompt path requires a knowledge provider")
	}

	raw, err := c.adapter.Extract(ctx, trace)
	if err != nil {
		return nil, nil, memverrors.Wrap(err, memverrors.CriticRejected, "critic adapter extraction failed")
	}

	sessionFingerprints := make(map[string]bool, len(trace.Steps))
	for _, step := range trace.Steps {
		if step.Fingerprint != "" {
			sessionFingerprints[step.Fingerprint] = true
		}
	}

	accepted, rejected := FilterAll(raw, sessionFingerprints)

	candidates := make([]lesson.Candidate, 0, len(accepted))
	for _, a := range accepted {
		candidates = append(candidates, lesson.Candidate{
			RuleText:            a.RuleText,
			TriggerFingerprints: a.TriggerFingerprints,
			Tags:                lesson.Tags{Model: a.Tags},
			DomainKey:           trace.DomainKey,
			TaskCluster:         trace.TaskCluster,
			SourceSessionID:     trace.SessionID,
			PromotionBlocked:    trace.Verdict.Uncertain,
		})
	}

	return candidates, rejected, nil
}
