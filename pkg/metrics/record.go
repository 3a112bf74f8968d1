package metrics

import "time"

// RecordLessonUpsert increments the lesson-upsert counter; outcome is
// "created" or "merged".
func (r *Registry) RecordLessonUpsert(domainKey, outcome string) {
	r.LessonUpserts.WithLabelValues(domainKey, outcome).Inc()
}

// SetLessonsByStatus overwrites the current gauge value for domainKey and
// status; callers snapshot the store's counts and call this once per
// status rather than incrementing/decrementing on every transition.
func (r *Registry) SetLessonsByStatus(domainKey, status string, count float64) {
	r.LessonsByStatus.WithLabelValues(domainKey, status).Set(count)
}

// RecordRetrievalHits adds to the lane hit counter for phase ("prerun" or
// "onerror").
func (r *Registry) RecordRetrievalHits(phase, lane string, hits int) {
	r.RetrievalLaneHits.WithLabelValues(lane, phase).Add(float64(hits))
}

// RecordRetrievalLatency observes one retriever call's duration.
func (r *Registry) RecordRetrievalLatency(phase string, duration time.Duration) {
	r.RetrievalLatency.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordPromoterTransition increments the transition counter for the
// lifecycle status a lesson just moved to.
func (r *Registry) RecordPromoterTransition(toStatus string) {
	r.PromoterTransitions.WithLabelValues(toStatus).Inc()
}

// RecordValidationRetry increments the per-domain validation-retry counter.
func (r *Registry) RecordValidationRetry(domainKey string) {
	r.ValidationRetries.WithLabelValues(domainKey).Inc()
}

// RecordValidationRetryCapped increments the retry-cap-hit counter.
func (r *Registry) RecordValidationRetryCapped() {
	r.ValidationRetryCapped.Inc()
}

// RecordRefereeVerdict increments the verdict distribution counter.
func (r *Registry) RecordRefereeVerdict(verdict, evalSource string) {
	r.RefereeVerdicts.WithLabelValues(verdict, evalSource).Inc()
}

// RecordSessionOutcome increments the session-outcome counter and observes
// the step-count/duration histograms; reason is "" for a normal end.
func (r *Registry) RecordSessionOutcome(domainKey, reason string, steps int, duration time.Duration) {
	r.SessionOutcomes.WithLabelValues(domainKey, reason).Inc()
	r.SessionSteps.Observe(float64(steps))
	r.SessionDuration.Observe(duration.Seconds())
}
