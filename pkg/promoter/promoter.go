package promoter

import (
	"time"

	"github.com/artemgetmann/memv2/pkg/lesson"
	"github.com/artemgetmann/memv2/pkg/metrics"
)

// Clock is overridable for deterministic tests.
type Clock func() time.Time

// Promoter evaluates activation history against a lesson.Store and applies
// lifecycle transitions.
type Promoter struct {
	store   lesson.Store
	weights Weights
	now     Clock
	metrics *metrics.Registry
}

// Option configures a Promoter.
type Option func(*Promoter)

func WithWeights(w Weights) Option { return func(p *Promoter) { p.weights = w } }
func WithClock(c Clock) Option     { return func(p *Promoter) { p.now = c } }

// WithMetrics wires a Prometheus registry; every lifecycle transition this
// Promoter applies is reported on it.
func WithMetrics(m *metrics.Registry) Option { return func(p *Promoter) { p.metrics = m } }

func New(store lesson.Store, opts ...Option) *Promoter {
	p := &Promoter{store: store, weights: DefaultWeights, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Promoter) transition(id string, status lesson.Status, reason string) error {
	err := p.store.Transition(id, status, reason)
	if err == nil && p.metrics != nil {
		p.metrics.RecordPromoterTransition(string(status))
	}
	return err
}

// evidenceWindow selects the activations relevant to a lesson: same
// domain_key first; if fewer than PromotionMinRuns, widen to task_cluster
// neighbors too (spec 4.4, "prevents starvation for rarely-used domains").
func evidenceWindow(l *lesson.Lesson, activations []Activation) []Activation {
	var sameDomain []Activation
	for _, a := range activations {
		if a.LessonID == l.ID && a.DomainKey == l.DomainKey {
			sameDomain = append(sameDomain, a)
		}
	}
	if len(sameDomain) >= PromotionMinRuns || l.TaskCluster == "" {
		return sameDomain
	}

	out := append([]Activation(nil), sameDomain...)
	seen := make(map[int]bool)
	for i := range sameDomain {
		seen[i] = true
	}
	for _, a := range activations {
		if a.LessonID == l.ID && a.DomainKey != l.DomainKey && a.TaskCluster == l.TaskCluster {
			out = append(out, a)
		}
	}
	return out
}

// Evaluate recomputes utility for lesson l from the given activation
// history and applies whichever lifecycle transition (if any) now applies.
// It returns the aggregate utility used in the decision, for observability.
func (p *Promoter) Evaluate(l *lesson.Lesson, activations []Activation) (float64, error) {
	window := evidenceWindow(l, activations)

	aggregate, hasRegression := aggregateUtility(window, p.weights)

	if suppressed := p.shouldSuppress(l, window, aggregate); suppressed {
		return aggregate, p.transition(l.ID, lesson.StatusSuppressed, "mean utility non-positive over sufficient retrievals, or repeated conflict loss")
	}

	if l.Status == lesson.StatusCandidate && !l.PromotionBlocked &&
		len(window) >= PromotionMinRuns && aggregate >= PromotionUtilityThreshold && !hasRegression {
		return aggregate, p.transition(l.ID, lesson.StatusPromoted, "aggregate utility crossed promotion threshold")
	}

	if p.shouldArchive(l) {
		return aggregate, p.transition(l.ID, lesson.StatusArchived, "idle beyond archival period with low reliability")
	}

	return aggregate, nil
}

func aggregateUtility(window []Activation, w Weights) (aggregate float64, hasRegression bool) {
	if len(window) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, a := range window {
		u := Utility(a, w)
		sum += u
		if u <= PromotionBlockUtility {
			hasRegression = true
		}
	}
	return sum / float64(len(window)), hasRegression
}

func (p *Promoter) shouldSuppress(l *lesson.Lesson, window []Activation, meanUtility float64) bool {
	if l.Status == lesson.StatusArchived {
		return false
	}
	if len(window) >= SuppressionMinRetrievals && meanUtility <= SuppressionMeanUtilityCeiling {
		return true
	}

	lossCounts := make(map[string]int)
	for _, a := range window {
		if a.ConflictLostTo != "" {
			lossCounts[a.ConflictLostTo]++
		}
	}
	for _, count := range lossCounts {
		if count >= SuppressionConflictLossThreshold {
			return true
		}
	}
	return false
}

func (p *Promoter) shouldArchive(l *lesson.Lesson) bool {
	if l.Status == lesson.StatusArchived {
		return false
	}
	idleFor := p.now().Sub(l.UpdatedAt)
	return idleFor > ArchivalIdlePeriod && l.Reliability() < ArchivalReliabilityCeiling
}
