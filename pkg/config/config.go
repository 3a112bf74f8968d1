package config

import "time"

// Config is the complete configuration for a memv2 deployment: the lesson
// store backend, the two retrieval lanes, the promoter thresholds, the
// referee, the step loop, and the ambient logging/metrics stack.
type Config struct {
	Store     StoreConfig     `yaml:"store" validate:"required"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty" validate:"omitempty"`
	Promoter  PromoterConfig  `yaml:"promoter,omitempty" validate:"omitempty"`
	Referee   RefereeConfig   `yaml:"referee,omitempty" validate:"omitempty"`
	StepLoop  StepLoopConfig  `yaml:"step_loop,omitempty" validate:"omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty" validate:"omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty" validate:"omitempty"`
}

// StoreConfig selects and configures the Lesson Store backend.
type StoreConfig struct {
	// Backend is "jsonl" or "sqlite".
	Backend string `yaml:"backend" validate:"required,oneof=jsonl sqlite"`

	// Path is the lessons.jsonl file or the sqlite database file, depending
	// on Backend.
	Path string `yaml:"path" validate:"required"`

	// EventLogPath locates the session artifacts: cmd/memv2 uses its
	// directory as the root under which events/session-<id>.jsonl,
	// metrics/session-<id>.json and traces/ are written.
	EventLogPath string `yaml:"event_log_path" validate:"required"`

	// MaxPromptTokens bounds the formatted pre-run lessons block; the step
	// loop drops lowest-reliability lessons first when the block would exceed it.
	// Zero disables the budget guard.
	MaxPromptTokens int `yaml:"max_prompt_tokens" validate:"min=0"`

	// CompactionThreshold is the number of JSONL records after which the
	// store atomically compacts the file (no effect for the sqlite backend).
	CompactionThreshold int `yaml:"compaction_threshold" validate:"min=0"`
}

// RetrievalConfig controls the two retrieval lanes and the ranking formula.
type RetrievalConfig struct {
	// PreRunTopK is the number of lessons returned for the prompt-build
	// retrieval call.
	PreRunTopK int `yaml:"pre_run_top_k" validate:"min=1,max=64"`

	// OnErrorTopM is the number of lessons returned after a tool failure.
	OnErrorTopM int `yaml:"on_error_top_m" validate:"min=1,max=16"`

	// TransferMode is "strict" (transfer lane disabled), "auto" (transfer
	// lane fires only when the strict lane returns no high-confidence hit),
	// or "always" (both lanes fire unconditionally); see pkg/retriever.Mode.
	TransferMode string `yaml:"transfer_mode" validate:"required,oneof=strict auto always"`

	// TransferOnErrorQuota and TransferPreRunQuota cap how many cross-domain
	// lessons may appear in a single retrieval call.
	TransferOnErrorQuota int `yaml:"transfer_on_error_quota" validate:"min=0"`
	TransferPreRunQuota  int `yaml:"transfer_pre_run_quota" validate:"min=0"`

	// TransferScoreMultiplier discounts cross-domain lesson scores.
	TransferScoreMultiplier float64 `yaml:"transfer_score_multiplier" validate:"min=0,max=1"`

	// Ranking weights; must sum to 1.0 (checked by validateCustomRules).
	Weights RankingWeights `yaml:"weights"`

	// RecencyHalfLife is the exponential-decay half-life applied to a
	// lesson's age when computing its recency score.
	RecencyHalfLife time.Duration `yaml:"recency_half_life" validate:"min=0"`

	// MaxLessonsPerPriorSession and MaxLessonsPerTag are retrieval guards.
	MaxLessonsPerPriorSession int `yaml:"max_lessons_per_prior_session" validate:"min=1"`
	MaxLessonsPerTag          int `yaml:"max_lessons_per_tag" validate:"min=1"`
}

// RankingWeights are the coefficients of the retrieval scoring formula:
// fingerprint_match, tag_overlap, text_similarity, reliability, recency.
type RankingWeights struct {
	FingerprintMatch float64 `yaml:"fingerprint_match" validate:"min=0,max=1"`
	TagOverlap       float64 `yaml:"tag_overlap" validate:"min=0,max=1"`
	TextSimilarity   float64 `yaml:"text_similarity" validate:"min=0,max=1"`
	Reliability      float64 `yaml:"reliability" validate:"min=0,max=1"`
	Recency          float64 `yaml:"recency" validate:"min=0,max=1"`
}

// Sum returns the sum of all weight coefficients.
func (w RankingWeights) Sum() float64 {
	return w.FingerprintMatch + w.TagOverlap + w.TextSimilarity + w.Reliability + w.Recency
}

// PromoterConfig holds the promotion/suppression/archival thresholds.
type PromoterConfig struct {
	// MinRunsForPromotion is the minimum number of independent evidence
	// runs a lesson needs before it can be promoted.
	MinRunsForPromotion int `yaml:"min_runs_for_promotion" validate:"min=1"`

	// PromotionUtilityThreshold is the minimum aggregate utility score
	// required for promotion.
	PromotionUtilityThreshold float64 `yaml:"promotion_utility_threshold"`

	// PromotionBlockUtility is the single-activation utility floor below
	// which a lesson is blocked from promotion regardless of aggregate.
	PromotionBlockUtility float64 `yaml:"promotion_block_utility"`

	// SuppressionMinRetrievals and SuppressionMeanUtility gate suppression
	// of a lesson with a poor mean track record.
	SuppressionMinRetrievals int     `yaml:"suppression_min_retrievals" validate:"min=1"`
	SuppressionMeanUtility   float64 `yaml:"suppression_mean_utility"`

	// SuppressionConflictLosses suppresses a lesson after losing this many
	// conflicts to the same opponent.
	SuppressionConflictLosses int `yaml:"suppression_conflict_losses" validate:"min=1"`

	// ArchivalIdlePeriod and ArchivalReliabilityCeiling gate archival of a
	// lesson that has gone stale.
	ArchivalIdlePeriod         time.Duration `yaml:"archival_idle_period" validate:"min=0"`
	ArchivalReliabilityCeiling float64       `yaml:"archival_reliability_ceiling"`

	// UtilityWeights are the coefficients of the per-activation utility
	// formula: error_reduction, step_efficiency_gain, referee_score_gain.
	UtilityWeights UtilityWeights `yaml:"utility_weights"`
}

// UtilityWeights are the coefficients of the Promoter's per-activation
// utility formula.
type UtilityWeights struct {
	ErrorReduction     float64 `yaml:"error_reduction" validate:"min=0,max=1"`
	StepEfficiencyGain float64 `yaml:"step_efficiency_gain" validate:"min=0,max=1"`
	RefereeScoreGain   float64 `yaml:"referee_score_gain" validate:"min=0,max=1"`
}

// Sum returns the sum of all utility weight coefficients.
func (w UtilityWeights) Sum() float64 {
	return w.ErrorReduction + w.StepEfficiencyGain + w.RefereeScoreGain
}

// RefereeConfig controls the deterministic contract evaluator and the
// optional LLM judge.
type RefereeConfig struct {
	ContractEnabled bool `yaml:"contract_enabled"`

	// JudgeEnabled turns on the LLM judge half of verdict combination.
	JudgeEnabled bool   `yaml:"judge_enabled"`
	JudgeModelID string `yaml:"judge_model_id,omitempty" validate:"required_if=JudgeEnabled true"`

	// QualityWeights feed the teacher-derived QualityCalculator signal used
	// alongside contract evaluation.
	QualityWeights QualityWeights `yaml:"quality_weights"`
}

// QualityWeights are the coefficients of the trajectory quality score:
// outcome, efficiency, tool success rate, error-freedom.
type QualityWeights struct {
	Outcome     float64 `yaml:"outcome" validate:"min=0,max=1"`
	Efficiency  float64 `yaml:"efficiency" validate:"min=0,max=1"`
	ToolSuccess float64 `yaml:"tool_success" validate:"min=0,max=1"`
	ErrorFree   float64 `yaml:"error_free" validate:"min=0,max=1"`
}

// StepLoopConfig bounds a single session of the step loop.
type StepLoopConfig struct {
	MaxSteps           int           `yaml:"max_steps" validate:"min=1"`
	WallClockBudget    time.Duration `yaml:"wall_clock_budget" validate:"min=0"`
	ValidationRetryCap int           `yaml:"validation_retry_cap" validate:"min=0"`

	// RepetitionFingerprintThreshold triggers a forced reflection turn once
	// the same fingerprint fails this many times in a row.
	RepetitionFingerprintThreshold int `yaml:"repetition_fingerprint_threshold" validate:"min=1"`

	// RepetitionHardFailureThreshold triggers a forced reflection turn after
	// this many hard (non-validation) failures.
	RepetitionHardFailureThreshold int `yaml:"repetition_hard_failure_threshold" validate:"min=1"`
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Severity      string `yaml:"severity" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	JSONLPath     string `yaml:"jsonl_path,omitempty"`
	ConsoleColor  bool   `yaml:"console_color"`
	ConsoleStderr bool   `yaml:"console_stderr"`
}

// MetricsConfig configures the Prometheus exporter and OpenTelemetry tracer.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address,omitempty" validate:"required_if=Enabled true"`
	ServiceName   string `yaml:"service_name,omitempty"`
}
