// Package promoter recomputes per-lesson utility from recorded activations
// and applies lifecycle transitions: promotion, suppression, archival.
package promoter

import "time"

// Activation is one retrieval-and-outcome record for a lesson, recorded by
// the step loop whenever a lesson was injected (pre-run or on-error) and
// the session subsequently concluded.
type Activation struct {
	LessonID        string
	SessionID       string
	DomainKey       string
	TaskCluster     string
	Fingerprint     string
	ErrorReduction  float64 // 1 if no failure fingerprint recurred within the session, else 0; not compared against a cross-session baseline
	StepEfficiency  float64 // 1 - 2*(steps/max_steps) clamped to [-1, 1]; total steps, not steps-to-first-success against a baseline
	RefereeScoreGain float64 // normalized change in referee score, [-1, 1]; 0 if no referee signal
	HasRefereeSignal bool
	ConflictLostTo  string // opponent lesson ID, if this activation lost a conflict resolution
	Timestamp       time.Time
}

// Weights are the utility formula's coefficients (spec 4.4).
type Weights struct {
	ErrorReduction   float64
	StepEfficiency   float64
	RefereeScoreGain float64
}

// DefaultWeights matches the spec's fixed default formula.
var DefaultWeights = Weights{
	ErrorReduction:   0.50,
	StepEfficiency:   0.30,
	RefereeScoreGain: 0.20,
}

const (
	// PromotionUtilityThreshold is the minimum aggregate utility required
	// to promote a candidate lesson.
	PromotionUtilityThreshold = 0.20
	// PromotionMinRuns is the minimum number of relevant runs required.
	PromotionMinRuns = 3
	// PromotionBlockUtility is the single-activation regression ceiling: a
	// lesson with any one activation at or below this utility cannot
	// promote from the evidence window containing it.
	PromotionBlockUtility = -0.5

	// SuppressionMinRetrievals and SuppressionMeanUtilityCeiling implement
	// the "retrieved >=3 times with mean utility <=0" suppression rule.
	SuppressionMinRetrievals       = 3
	SuppressionMeanUtilityCeiling  = 0.0
	// SuppressionConflictLossThreshold implements the "loses in conflict
	// resolution >=3 times to the same opponent" suppression rule.
	SuppressionConflictLossThreshold = 3

	// ArchivalIdlePeriod and ArchivalReliabilityCeiling implement the
	// archival rule: non-retrieved longer than this AND reliability below
	// this ceiling moves a lesson to archived.
	ArchivalIdlePeriod         = 60 * 24 * time.Hour
	ArchivalReliabilityCeiling = 0.4
)

// Utility computes a single activation's utility score. When the
// activation carries no referee signal, the referee term's weight is
// redistributed proportionally across the other two terms (spec 4.4: "the
// last term is redistributed").
func Utility(a Activation, w Weights) float64 {
	if a.HasRefereeSignal {
		return w.ErrorReduction*a.ErrorReduction + w.StepEfficiency*a.StepEfficiency + w.RefereeScoreGain*a.RefereeScoreGain
	}

	remaining := w.ErrorReduction + w.StepEfficiency
	if remaining == 0 {
		return 0
	}
	errorWeight := w.ErrorReduction + w.RefereeScoreGain*(w.ErrorReduction/remaining)
	stepWeight := w.StepEfficiency + w.RefereeScoreGain*(w.StepEfficiency/remaining)
	return errorWeight*a.ErrorReduction + stepWeight*a.StepEfficiency
}
