// Package lesson implements the Lesson Store: persistence, dedup, conflict
// links, and lifecycle transitions for the primary entity of memv2.
package lesson

import (
	"fmt"
	"strings"
	"time"
)

// Status is a lesson's lifecycle state. Lessons are never hard-deleted by
// default; they move through these states and stay there.
type Status string

const (
	StatusCandidate Status = "candidate"
	StatusPromoted  Status = "promoted"
	StatusSuppressed Status = "suppressed"
	StatusArchived  Status = "archived"
)

// Retrievable reports whether lessons in this status may appear in
// retrieval results (testable property 2 / invariant 8).
func (s Status) Retrievable() bool {
	return s == StatusCandidate || s == StatusPromoted
}

// Tags splits a lesson's labels into system tags (trusted, extracted by the
// Fingerprinter) and model tags (advisory, supplied by the Critic).
type Tags struct {
	System []string `json:"system,omitempty"`
	Model  []string `json:"model,omitempty"`
}

// All returns the union of system and model tags.
func (t Tags) All() []string {
	out := make([]string, 0, len(t.System)+len(t.Model))
	out = append(out, t.System...)
	out = append(out, t.Model...)
	return out
}

// Lesson is the primary persisted entity.
type Lesson struct {
	ID                 string   `json:"id"`
	Status             Status   `json:"status"`
	RuleText           string   `json:"rule_text"`
	TriggerFingerprints []string `json:"trigger_fingerprints"`
	Tags               Tags     `json:"tags"`
	DomainKey          string   `json:"domain_key"`
	TaskCluster        string   `json:"task_cluster,omitempty"`
	SourceSessionID    string   `json:"source_session_id"`

	RetrievalCount int `json:"retrieval_count"`
	HelpfulCount   int `json:"helpful_count"`
	HarmfulCount   int `json:"harmful_count"`

	ConflictsWith []string `json:"conflicts_with,omitempty"`

	// PromotionBlocked is set when a lesson was produced in a session whose
	// referee verdict was "uncertain"; it cannot promote solely from that
	// evidence until the same lesson re-emerges with consistent evidence
	// elsewhere (spec 4.6).
	PromotionBlocked bool `json:"promotion_blocked,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// SchemaVersion supports forward-compatible readers: unknown fields in
	// a newer on-disk record are tolerated, and older records default this
	// to 0.
	SchemaVersion int `json:"schema_version"`
}

// CurrentSchemaVersion is stamped onto every newly created Lesson.
const CurrentSchemaVersion = 1

// Reliability is the Laplace-smoothed ratio used by both the Promoter and
// the Retriever's ranking formula.
func (l *Lesson) Reliability() float64 {
	return float64(l.HelpfulCount+1) / float64(l.HelpfulCount+l.HarmfulCount+2)
}

// ShortCode returns a compact citation code (L/M/P + a zero-padded
// three-digit number taken from an FNV hash of the ID, modulo 1000),
// grounded on the teacher's Learning.ShortCode pattern, used when lessons
// are injected into the prompt so the model can cite which lesson it used.
func (l *Lesson) ShortCode() string {
	prefix := "L"
	switch {
	case containsTag(l.Tags.All(), "constraint_failed"), containsTag(l.Tags.All(), "no_progress"):
		prefix = "M"
	case l.Status == StatusPromoted:
		prefix = "P"
	}
	seq := fnv32(l.ID) % 1000
	return fmt.Sprintf("%s%03d", prefix, seq)
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

// Candidate is the input to Upsert: everything the Critic (or an Adapter)
// can propose about a new lesson. The store fills in ID, counts, and
// timestamps.
type Candidate struct {
	RuleText            string
	TriggerFingerprints []string
	Tags                Tags
	DomainKey           string
	TaskCluster         string
	SourceSessionID     string
	PromotionBlocked    bool
}

// Filter narrows Iter results. A zero-value Filter matches everything.
type Filter struct {
	DomainKey    string
	TaskCluster  string
	Statuses     []Status
	RetrievableOnly bool
}

func (f Filter) matches(l *Lesson) bool {
	if f.DomainKey != "" && l.DomainKey != f.DomainKey {
		return false
	}
	if f.TaskCluster != "" && l.TaskCluster != f.TaskCluster {
		return false
	}
	if f.RetrievableOnly && !l.Status.Retrievable() {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if l.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func normalizeRuleText(s string) string {
	return strings.TrimSpace(s)
}
