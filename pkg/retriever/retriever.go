package retriever

import (
	"sort"
	"time"

	"github.com/artemgetmann/memv2/pkg/lesson"
)

// Clock is overridable for deterministic tests.
type Clock func() time.Time

// Retriever ranks lessons for a session's pre-run and on-error retrieval
// points, reading from a lesson.Store.
type Retriever struct {
	store   lesson.Store
	weights Weights
	mode    Mode
	now     Clock
}

// Option configures a Retriever.
type Option func(*Retriever)

func WithWeights(w Weights) Option { return func(r *Retriever) { r.weights = w } }
func WithMode(m Mode) Option       { return func(r *Retriever) { r.mode = m } }
func withClock(c Clock) Option     { return func(r *Retriever) { r.now = c } }

// New builds a Retriever over store with the spec's default weights and
// auto transfer mode unless overridden.
func New(store lesson.Store, opts ...Option) *Retriever {
	r := &Retriever{
		store:   store,
		weights: DefaultWeights,
		mode:    ModeAuto,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prerun retrieves top-K lessons (default 8-12) for system-prompt injection.
func (r *Retriever) Prerun(q Query, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = DefaultPrerunTopK
	}
	return r.retrieve(q, topK, DefaultPrerunTransferQuota)
}

// OnError retrieves top-M (default 2) hint lessons appended to a failing
// tool result.
func (r *Retriever) OnError(q Query, topM int) ([]Hit, error) {
	if topM <= 0 {
		topM = DefaultOnErrorTopM
	}
	return r.retrieve(q, topM, DefaultOnErrorTransferQuota)
}

func (r *Retriever) retrieve(q Query, limit, transferQuota int) ([]Hit, error) {
	now := r.now()

	strictCandidates, err := r.store.Iter(lesson.Filter{DomainKey: q.DomainKey, RetrievableOnly: true})
	if err != nil {
		return nil, err
	}
	strictHits := rankAll(q, strictCandidates, now, r.weights, LaneStrict, 1.0)

	fireTransfer := r.mode == ModeAlways
	if r.mode == ModeAuto {
		fireTransfer = !hasHighConfidenceHit(strictHits)
	}

	var transferHits []Hit
	if fireTransfer {
		all, err := r.store.Iter(lesson.Filter{RetrievableOnly: true})
		if err != nil {
			return nil, err
		}
		var crossDomain []*lesson.Lesson
		for _, l := range all {
			if l.DomainKey != q.DomainKey {
				crossDomain = append(crossDomain, l)
			}
		}
		transferHits = rankAll(q, crossDomain, now, r.weights, LaneTransfer, TransferScoreMultiplier)
		sort.Slice(transferHits, func(i, j int) bool { return transferHits[i].Score > transferHits[j].Score })
		if len(transferHits) > transferQuota {
			transferHits = transferHits[:transferQuota]
		}
	}

	merged := append(strictHits, transferHits...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	merged = resolveConflicts(merged)
	merged = applyGuards(merged, q)

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func hasHighConfidenceHit(hits []Hit) bool {
	for _, h := range hits {
		if h.Score >= TransferTriggerScore {
			return true
		}
	}
	return false
}

func rankAll(q Query, lessons []*lesson.Lesson, now time.Time, w Weights, lane Lane, multiplier float64) []Hit {
	hits := make([]Hit, 0, len(lessons))
	for _, l := range lessons {
		hits = append(hits, Hit{Lesson: l, Score: score(q, l, now, w) * multiplier, Lane: lane})
	}
	return hits
}

// resolveConflicts drops the lower-reliability side of any conflict pair
// where both sides would otherwise be returned (spec 4.2/4.3).
func resolveConflicts(hits []Hit) []Hit {
	byID := make(map[string]*lesson.Lesson, len(hits))
	for _, h := range hits {
		byID[h.Lesson.ID] = h.Lesson
	}

	dropped := make(map[string]bool)
	for _, h := range hits {
		l := h.Lesson
		for _, conflictID := range l.ConflictsWith {
			other, present := byID[conflictID]
			if !present || dropped[conflictID] || dropped[l.ID] {
				continue
			}
			if l.Reliability() >= other.Reliability() {
				dropped[conflictID] = true
			} else {
				dropped[l.ID] = true
			}
		}
	}

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if !dropped[h.Lesson.ID] {
			out = append(out, h)
		}
	}
	return out
}

// applyGuards enforces the per-prior-session and per-tag hard caps (spec
// 4.3), dropping lowest-scored excess hits first since input is pre-sorted
// descending by score.
func applyGuards(hits []Hit, q Query) []Hit {
	sessionCounts := make(map[string]int)
	tagCounts := make(map[string]int)

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if sessionCounts[h.Lesson.SourceSessionID] >= MaxLessonsPerSourceSession {
			continue
		}

		tagLimited := false
		for _, tag := range h.Lesson.Tags.All() {
			if tagCounts[tag] >= MaxLessonsSharingTag {
				tagLimited = true
				break
			}
		}
		if tagLimited {
			continue
		}

		sessionCounts[h.Lesson.SourceSessionID]++
		for _, tag := range h.Lesson.Tags.All() {
			tagCounts[tag]++
		}
		out = append(out, h)
	}
	return out
}
