package promoter

import "sync"

// ActivationLog accumulates Activation records across sessions sharing one
// lesson store, so Evaluate always sees the full evidence window rather
// than just the session that just finished (spec 4.7 post-session step 4:
// "run Promoter update over the window including this session"). The
// concurrency model (spec 5) only requires sequential single-process
// access, so a mutex-guarded map is sufficient; there is no cross-process
// durability requirement here.
type ActivationLog struct {
	mu       sync.Mutex
	byLesson map[string][]Activation
}

// NewActivationLog builds an empty log.
func NewActivationLog() *ActivationLog {
	return &ActivationLog{byLesson: make(map[string][]Activation)}
}

// Append records one activation.
func (l *ActivationLog) Append(a Activation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byLesson[a.LessonID] = append(l.byLesson[a.LessonID], a)
}

// For returns every activation recorded against lessonID, oldest first.
func (l *ActivationLog) For(lessonID string) []Activation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Activation, len(l.byLesson[lessonID]))
	copy(out, l.byLesson[lessonID])
	return out
}

// All returns every activation recorded across every lesson, oldest first
// per lesson; used by Evaluate callers that want the full cross-lesson
// window (e.g. evidenceWindow's task_cluster widening).
func (l *ActivationLog) All() []Activation {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Activation
	for _, activations := range l.byLesson {
		out = append(out, activations...)
	}
	return out
}
