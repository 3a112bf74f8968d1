package critic

import "context"

// StaticAdapter returns fixed candidates regardless of the session trace,
// grounded on the teacher's ace.StaticAdapter — useful for tests and for
// seeding known-good lessons outside of an LLM call.
type StaticAdapter struct {
	candidates []Candidate
}

// NewStaticAdapter builds an Adapter that always returns candidates.
func NewStaticAdapter(candidates []Candidate) *StaticAdapter {
	return &StaticAdapter{candidates: candidates}
}

func (a *StaticAdapter) Extract(ctx context.Context, trace SessionTrace) ([]Candidate, error) {
	return a.candidates, nil
}
