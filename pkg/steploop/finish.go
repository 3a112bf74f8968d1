package steploop

import (
	"context"
	"encoding/json"

	"github.com/artemgetmann/memv2/pkg/critic"
	"github.com/artemgetmann/memv2/pkg/event"
	"github.com/artemgetmann/memv2/pkg/lesson"
	"github.com/artemgetmann/memv2/pkg/promoter"
	"github.com/artemgetmann/memv2/pkg/referee"
)

// finish runs the post-session pipeline (spec 4.7, post-session steps):
// capture final state, evaluate the referee, propose and upsert lessons
// via the critic, derive an Activation for every lesson touched this
// session, and run the Promoter over the full evidence window.
func (s *Session) finish(
	ctx context.Context,
	task Task,
	touchedLessonIDs map[string]bool,
	steps []critic.StepRecord,
	toolCallLog []string,
	toolErrors int,
	stepCount int,
	validationRetryAttempts int,
	validationRetryCappedEvents int,
	prerunLessonIDs []string,
	reason terminationReason,
) (Result, error) {
	finalStateText, _ := s.adapter.CaptureFinalState(ctx)

	evalState := referee.EvaluationState{
		SessionID:   task.ID,
		TaskText:    task.TaskText,
		FinalState:  parseFinalState(finalStateText),
		ToolCallLog: toolCallLog,
		ToolErrors:  toolErrors,
		StepCount:   stepCount,
	}

	outcome, refErr := s.ref.Evaluate(ctx, task.Contract, evalState)
	if refErr != nil {
		outcome = referee.Outcome{Final: referee.VerdictUncertain}
	}
	if s.metrics != nil {
		s.metrics.RecordRefereeVerdict(string(outcome.Final), string(evalSourceFor(outcome, refErr)))
	}

	trace := critic.SessionTrace{
		SessionID:   task.ID,
		DomainKey:   task.DomainKey,
		TaskCluster: task.TaskCluster,
		Steps:       steps,
		Verdict: critic.RefereeVerdict{
			Passed:    outcome.Final == referee.VerdictPass,
			Uncertain: outcome.Final == referee.VerdictUncertain,
			Score:     outcome.Judge.Score,
		},
	}

	if s.crit != nil {
		candidates, _, proposeErr := s.crit.Propose(ctx, trace)
		if proposeErr == nil {
			for _, c := range candidates {
				prior := make(map[string]bool)
				if existing, iterErr := s.store.Iter(lesson.Filter{}); iterErr == nil {
					for _, l := range existing {
						prior[l.ID] = true
					}
				}
				if id, upsertErr := s.store.Upsert(c); upsertErr == nil {
					touchedLessonIDs[id] = true
					if s.metrics != nil {
						upsertOutcome := "created"
						if prior[id] {
							upsertOutcome = "merged"
						}
						s.metrics.RecordLessonUpsert(c.DomainKey, upsertOutcome)
					}
				}
			}
		}
	}

	hasRefereeSignal := outcome.Judge.Result != ""
	refereeScoreGain := 0.0
	if hasRefereeSignal {
		refereeScoreGain = outcome.Judge.Score*2 - 1
	}
	errorReduction := errorReductionFor(steps)
	stepEfficiency := stepEfficiencyFor(stepCount, s.cfg.MaxSteps)

	activations := make(map[string]promoter.Activation, len(touchedLessonIDs))
	for id := range touchedLessonIDs {
		activations[id] = promoter.Activation{
			LessonID:         id,
			SessionID:        task.ID,
			DomainKey:        task.DomainKey,
			TaskCluster:      task.TaskCluster,
			ErrorReduction:   errorReduction,
			StepEfficiency:   stepEfficiency,
			RefereeScoreGain: refereeScoreGain,
			HasRefereeSignal: hasRefereeSignal,
		}
	}
	applyConflictLosses(activations, s.store)

	lessonActivations := 0
	for id, a := range activations {
		l, getErr := s.store.Get(id)
		if getErr != nil {
			continue
		}
		s.activations.Append(a)
		lessonActivations++
		_, _ = s.promo.Evaluate(l, s.activations.For(id))
	}

	metrics := event.SessionMetrics{
		SessionID:                   task.ID,
		Passed:                      outcome.Final == referee.VerdictPass,
		Score:                       outcome.Judge.Score,
		Steps:                       stepCount,
		ToolErrors:                  toolErrors,
		V2PrerunLessonIDs:           prerunLessonIDs,
		V2LessonActivations:         lessonActivations,
		FingerprintRecurrenceBefore: fingerprintRecurrenceBefore(steps, task.DomainKey, s.store),
		FingerprintRecurrenceAfter:  fingerprintRecurrenceAfter(steps),
		ValidationRetryAttempts:     validationRetryAttempts,
		ValidationRetryCappedEvents: validationRetryCappedEvents,
		EvalSource:                  evalSourceFor(outcome, refErr),
		Reason:                      string(reason),
		CompletedAt:                 s.now(),
	}
	if s.eventLog != nil {
		_ = s.eventLog.AppendMetrics(metrics)
	}

	return Result{Metrics: metrics, RefereeOutcome: outcome, FinalState: finalStateText}, nil
}

func parseFinalState(raw string) map[string]interface{} {
	if raw == "" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err == nil {
		return m
	}
	return map[string]interface{}{"raw": raw}
}

// errorReductionFor is 1 if none of this session's steps recurred the same
// failure fingerprint, else 0. It looks only within this session; it does
// not compare against any cross-session recurrence baseline.
func errorReductionFor(steps []critic.StepRecord) float64 {
	seen := make(map[string]int)
	for _, st := range steps {
		if !st.Succeeded && st.Fingerprint != "" {
			seen[st.Fingerprint]++
			if seen[st.Fingerprint] > 1 {
				return 0
			}
		}
	}
	return 1
}

// failingFingerprints extracts the fingerprint of every failed step, in
// order, skipping steps that have none (e.g. a step that failed before a
// fingerprint could be computed).
func failingFingerprints(steps []critic.StepRecord) []string {
	fps := make([]string, 0, len(steps))
	for _, st := range steps {
		if !st.Succeeded && st.Fingerprint != "" {
			fps = append(fps, st.Fingerprint)
		}
	}
	return fps
}

// fingerprintRecurrenceBefore is the fraction of this session's failing
// steps whose fingerprint already appears in the domain's lesson store,
// i.e. was seen and recorded in some prior session (spec 3: "fraction of
// failing steps whose fingerprint appeared in prior sessions").
func fingerprintRecurrenceBefore(steps []critic.StepRecord, domainKey string, store lesson.Store) float64 {
	fps := failingFingerprints(steps)
	if len(fps) == 0 {
		return 0
	}
	known := knownFingerprints(store, domainKey)
	recurring := 0
	for _, fp := range fps {
		if known[fp] {
			recurring++
		}
	}
	return float64(recurring) / float64(len(fps))
}

// fingerprintRecurrenceAfter is the fraction of this session's failing
// steps whose fingerprint had already failed earlier in the same session,
// despite the on-error hint injected at that earlier failure (spec 3: "...
// vs. in this one after hint injection"). Zero means every hint the
// session injected prevented its fingerprint from recurring.
func fingerprintRecurrenceAfter(steps []critic.StepRecord) float64 {
	fps := failingFingerprints(steps)
	if len(fps) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(fps))
	recurring := 0
	for _, fp := range fps {
		if seen[fp] {
			recurring++
		}
		seen[fp] = true
	}
	return float64(recurring) / float64(len(fps))
}

// knownFingerprints collects every trigger fingerprint across the domain's
// retrievable and non-retrievable lessons alike: a suppressed or archived
// lesson's fingerprint still counts as "seen in a prior session".
func knownFingerprints(store lesson.Store, domainKey string) map[string]bool {
	known := make(map[string]bool)
	lessons, err := store.Iter(lesson.Filter{DomainKey: domainKey})
	if err != nil {
		return known
	}
	for _, l := range lessons {
		for _, fp := range l.TriggerFingerprints {
			known[fp] = true
		}
	}
	return known
}

// stepEfficiencyFor maps a session that finished well under max_steps to a
// positive score and one that exhausted its budget to a negative one.
func stepEfficiencyFor(stepCount, maxSteps int) float64 {
	if maxSteps <= 0 {
		return 0
	}
	ratio := float64(stepCount) / float64(maxSteps)
	score := 1 - 2*ratio
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

// applyConflictLosses sets ConflictLostTo on the lower-ErrorReduction side
// of any pair of touched lessons that conflict with each other, so the
// Promoter's suppression-by-repeated-conflict-loss rule has evidence to
// work with. Inferred post-hoc since the step loop has no direct signal
// about which lesson "won" a conflict during the session itself.
func applyConflictLosses(activations map[string]promoter.Activation, store lesson.Store) {
	lessons := make(map[string]*lesson.Lesson, len(activations))
	for id := range activations {
		if l, err := store.Get(id); err == nil {
			lessons[id] = l
		}
	}

	decided := make(map[string]bool)
	for id, l := range lessons {
		for _, opponentID := range l.ConflictsWith {
			pairKey := id + "|" + opponentID
			reverseKey := opponentID + "|" + id
			if decided[pairKey] || decided[reverseKey] {
				continue
			}
			if _, ok := lessons[opponentID]; !ok {
				continue
			}
			decided[pairKey] = true

			a, b := activations[id], activations[opponentID]
			if a.ErrorReduction < b.ErrorReduction {
				a.ConflictLostTo = opponentID
				activations[id] = a
			} else if b.ErrorReduction < a.ErrorReduction {
				b.ConflictLostTo = id
				activations[opponentID] = b
			}
		}
	}
}

func evalSourceFor(outcome referee.Outcome, refErr error) event.EvalSource {
	if refErr != nil {
		return event.EvalSourceNone
	}
	if outcome.Judge.Result != "" && outcome.Contract.Result != referee.ResultAbsent {
		return event.EvalSourceJudgePrimary
	}
	if outcome.Judge.Result == "" && outcome.Contract.Result != referee.ResultAbsent {
		return event.EvalSourceContract
	}
	if outcome.Judge.Result != "" {
		return event.EvalSourceJudgePrimary
	}
	return event.EvalSourceNone
}
