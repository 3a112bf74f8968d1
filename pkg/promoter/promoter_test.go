package promoter

import (
	"testing"
	"time"

	"github.com/artemgetmann/memv2/pkg/lesson"
	"github.com/artemgetmann/memv2/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilityWithRefereeSignal(t *testing.T) {
	a := Activation{ErrorReduction: 1, StepEfficiency: 0.5, RefereeScoreGain: 0.5, HasRefereeSignal: true}
	got := Utility(a, DefaultWeights)
	want := 0.50*1 + 0.30*0.5 + 0.20*0.5
	assert.InDelta(t, want, got, 1e-9)
}

func TestUtilityWithoutRefereeSignalRedistributesWeight(t *testing.T) {
	a := Activation{ErrorReduction: 1, StepEfficiency: 1, HasRefereeSignal: false}
	got := Utility(a, DefaultWeights)
	// With both terms at 1, the redistributed weight must sum to the full 1.0 coefficient mass.
	assert.InDelta(t, 1.0, got, 1e-9)
}

func newPromoterStore(t *testing.T) *lesson.MemoryStore {
	t.Helper()
	return lesson.NewMemoryStore()
}

func seed(t *testing.T, store *lesson.MemoryStore, domainKey, taskCluster string) *lesson.Lesson {
	t.Helper()
	id, err := store.Upsert(lesson.Candidate{
		RuleText:            "distinct rule text for this test",
		TriggerFingerprints: []string{"x:y"},
		DomainKey:           domainKey,
		TaskCluster:         taskCluster,
	})
	require.NoError(t, err)
	l, err := store.Get(id)
	require.NoError(t, err)
	return l
}

func TestEvaluatePromotesOnSufficientPositiveUtility(t *testing.T) {
	store := newPromoterStore(t)
	l := seed(t, store, "shell-ops", "")

	p := New(store)
	activations := []Activation{
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
	}

	_, err := p.Evaluate(l, activations)
	require.NoError(t, err)

	got, err := store.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, lesson.StatusPromoted, got.Status)
}

func TestEvaluateReportsTransitionToMetrics(t *testing.T) {
	store := newPromoterStore(t)
	l := seed(t, store, "shell-ops", "")
	reg := metrics.New()

	p := New(store, WithMetrics(reg))
	activations := []Activation{
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
	}

	_, err := p.Evaluate(l, activations)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.PromoterTransitions.WithLabelValues(string(lesson.StatusPromoted))))
}

func TestEvaluateDoesNotPromoteBelowMinRuns(t *testing.T) {
	store := newPromoterStore(t)
	l := seed(t, store, "shell-ops", "")

	p := New(store)
	activations := []Activation{
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
	}

	_, err := p.Evaluate(l, activations)
	require.NoError(t, err)

	got, err := store.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, lesson.StatusCandidate, got.Status)
}

func TestEvaluateBlocksPromotionOnSingleMajorRegression(t *testing.T) {
	store := newPromoterStore(t)
	l := seed(t, store, "shell-ops", "")

	p := New(store)
	activations := []Activation{
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 1, StepEfficiency: 1, RefereeScoreGain: 1, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: -1, StepEfficiency: -1, RefereeScoreGain: -1, HasRefereeSignal: true},
	}

	_, err := p.Evaluate(l, activations)
	require.NoError(t, err)

	got, err := store.Get(l.ID)
	require.NoError(t, err)
	assert.NotEqual(t, lesson.StatusPromoted, got.Status, "a single activation at or below -0.5 utility must block promotion")
}

func TestEvaluateSuppressesOnNonPositiveMeanUtility(t *testing.T) {
	store := newPromoterStore(t)
	l := seed(t, store, "shell-ops", "")

	p := New(store)
	activations := []Activation{
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 0, StepEfficiency: 0, RefereeScoreGain: 0, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 0, StepEfficiency: 0, RefereeScoreGain: 0, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "shell-ops", ErrorReduction: 0, StepEfficiency: 0, RefereeScoreGain: 0, HasRefereeSignal: true},
	}

	_, err := p.Evaluate(l, activations)
	require.NoError(t, err)

	got, err := store.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, lesson.StatusSuppressed, got.Status)
}

func TestEvaluateSuppressesOnRepeatedConflictLossToSameOpponent(t *testing.T) {
	store := newPromoterStore(t)
	l := seed(t, store, "shell-ops", "")

	p := New(store)
	activations := []Activation{
		{LessonID: l.ID, DomainKey: "shell-ops", ConflictLostTo: "opponent-1"},
		{LessonID: l.ID, DomainKey: "shell-ops", ConflictLostTo: "opponent-1"},
		{LessonID: l.ID, DomainKey: "shell-ops", ConflictLostTo: "opponent-1"},
	}

	_, err := p.Evaluate(l, activations)
	require.NoError(t, err)

	got, err := store.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, lesson.StatusSuppressed, got.Status)
}

func TestEvaluateArchivesIdleLowReliabilityLesson(t *testing.T) {
	store := newPromoterStore(t)
	l := seed(t, store, "shell-ops", "")
	l.HarmfulCount = 5
	require.NoError(t, store.Transition(l.ID, lesson.StatusCandidate, "reset"))

	old := time.Now().Add(-100 * 24 * time.Hour)
	fixedNow := time.Now()

	p := New(store, WithClock(func() time.Time { return fixedNow }))

	// Directly exercise shouldArchive's idle+reliability condition via a
	// lesson whose UpdatedAt predates the archival period.
	stale := &lesson.Lesson{
		ID:           l.ID,
		Status:       lesson.StatusCandidate,
		UpdatedAt:    old,
		HarmfulCount: 10,
	}
	assert.True(t, p.shouldArchive(stale))
}

func TestEvaluateDoesNotArchiveRecentLowReliabilityLesson(t *testing.T) {
	store := newPromoterStore(t)
	p := New(store)

	recent := &lesson.Lesson{ID: "x", Status: lesson.StatusCandidate, UpdatedAt: time.Now(), HarmfulCount: 10}
	assert.False(t, p.shouldArchive(recent))
}

func TestEvidenceWindowWidensToTaskClusterWhenSameDomainInsufficient(t *testing.T) {
	store := newPromoterStore(t)
	l := seed(t, store, "rare-domain", "cluster-a")

	activations := []Activation{
		{LessonID: l.ID, DomainKey: "rare-domain", TaskCluster: "cluster-a", ErrorReduction: 1, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "other-domain", TaskCluster: "cluster-a", ErrorReduction: 1, HasRefereeSignal: true},
		{LessonID: l.ID, DomainKey: "other-domain-2", TaskCluster: "cluster-a", ErrorReduction: 1, HasRefereeSignal: true},
	}

	window := evidenceWindow(l, activations)
	assert.Len(t, window, 3, "fewer than 3 same-domain activations should widen to task_cluster neighbors")
}
