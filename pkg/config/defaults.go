package config

import "time"

// Default returns a Config populated with the numeric defaults named in the
// retrieval/promoter formulas: pre-run top-K of 8-12 (10), on-error top-M of
// 2, transfer quotas of 1 on-error / 2 pre-run with a 0.6x score multiplier,
// a 14-day recency half-life, and the 0.40/0.25/0.20/0.10/0.05 ranking
// weights.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:             "jsonl",
			Path:                "data/lessons.jsonl",
			EventLogPath:        "data/events.jsonl",
			MaxPromptTokens:     2000,
			CompactionThreshold: 500,
		},
		Retrieval: RetrievalConfig{
			PreRunTopK:              10,
			OnErrorTopM:             2,
			TransferMode:            "auto",
			TransferOnErrorQuota:    1,
			TransferPreRunQuota:     2,
			TransferScoreMultiplier: 0.6,
			Weights: RankingWeights{
				FingerprintMatch: 0.40,
				TagOverlap:       0.25,
				TextSimilarity:   0.20,
				Reliability:      0.10,
				Recency:          0.05,
			},
			RecencyHalfLife:           14 * 24 * time.Hour,
			MaxLessonsPerPriorSession: 2,
			MaxLessonsPerTag:          3,
		},
		Promoter: PromoterConfig{
			MinRunsForPromotion:       3,
			PromotionUtilityThreshold: 0.20,
			PromotionBlockUtility:     -0.5,
			SuppressionMinRetrievals:  3,
			SuppressionMeanUtility:    0.0,
			SuppressionConflictLosses: 3,
			ArchivalIdlePeriod:        60 * 24 * time.Hour,
			ArchivalReliabilityCeiling: 0.4,
			UtilityWeights: UtilityWeights{
				ErrorReduction:     0.50,
				StepEfficiencyGain: 0.30,
				RefereeScoreGain:   0.20,
			},
		},
		Referee: RefereeConfig{
			ContractEnabled: true,
			JudgeEnabled:    false,
			QualityWeights: QualityWeights{
				Outcome:     0.40,
				Efficiency:  0.20,
				ToolSuccess: 0.25,
				ErrorFree:   0.15,
			},
		},
		StepLoop: StepLoopConfig{
			MaxSteps:                       30,
			WallClockBudget:                5 * time.Minute,
			ValidationRetryCap:             2,
			RepetitionFingerprintThreshold: 2,
			RepetitionHardFailureThreshold: 3,
		},
		Logging: LoggingConfig{
			Severity:      "INFO",
			ConsoleColor:  true,
			ConsoleStderr: false,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: "127.0.0.1:9090",
			ServiceName:   "memv2",
		},
	}
}
