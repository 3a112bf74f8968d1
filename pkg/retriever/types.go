// Package retriever ranks lessons for a given query context: a strict lane
// matching the active domain_key and a capped, score-discounted transfer
// lane for cross-domain lessons, combined under shared guards.
package retriever

import "github.com/artemgetmann/memv2/pkg/lesson"

// Mode controls whether the transfer lane may fire.
type Mode string

const (
	// ModeAuto fires the transfer lane only when the strict lane returns
	// fewer than one high-confidence hit (score >= TransferTriggerScore).
	ModeAuto Mode = "auto"
	// ModeStrict disables the transfer lane entirely.
	ModeStrict Mode = "strict"
	// ModeAlways fires both lanes unconditionally.
	ModeAlways Mode = "always"
)

// Query is the retrieval input shared by both entry points.
type Query struct {
	DomainKey   string
	TaskCluster string
	TaskText    string
	ErrorText   string
	Fingerprint string
	Tags        []string
}

// Lane identifies which of the two lanes produced a Hit.
type Lane string

const (
	LaneStrict   Lane = "strict"
	LaneTransfer Lane = "transfer"
)

// Hit is one ranked retrieval result.
type Hit struct {
	Lesson *lesson.Lesson
	Score  float64
	Lane   Lane
}

// Weights are the ranking formula's coefficients (spec 4.3); see
// pkg/config's RankingWeights for the tunable, validated equivalent.
type Weights struct {
	FingerprintMatch float64
	TagOverlap       float64
	TextSimilarity   float64
	Reliability      float64
	Recency          float64
}

// DefaultWeights matches the spec's fixed default formula.
var DefaultWeights = Weights{
	FingerprintMatch: 0.40,
	TagOverlap:       0.25,
	TextSimilarity:   0.20,
	Reliability:      0.10,
	Recency:          0.05,
}

const (
	// TransferScoreMultiplier discounts transfer-lane scores (spec 4.3).
	TransferScoreMultiplier = 0.6
	// TransferTriggerScore is the strict-lane confidence threshold below
	// which auto mode fires the transfer lane.
	TransferTriggerScore = 0.5

	// MaxLessonsPerSourceSession caps how many lessons from the same prior
	// session may appear in one retrieval.
	MaxLessonsPerSourceSession = 2
	// MaxLessonsSharingTag caps how many returned lessons may share a tag.
	MaxLessonsSharingTag = 3

	// DefaultPrerunTopK and DefaultOnErrorTopM are the spec's default
	// result-set sizes for the two retrieval entry points.
	DefaultPrerunTopK  = 10
	DefaultOnErrorTopM = 2
	// DefaultPrerunTransferQuota and DefaultOnErrorTransferQuota cap how
	// many transfer-lane lessons may appear in each kind of retrieval.
	DefaultPrerunTransferQuota  = 2
	DefaultOnErrorTransferQuota = 1

	// RecencyHalfLifeDays is the exponential decay half-life for a
	// lesson's updated_at age.
	RecencyHalfLifeDays = 14.0
)
