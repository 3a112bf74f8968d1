// Package steploop drives one session: the single-threaded, cooperative
// turn-by-turn loop that calls the Model SPI and Adapter SPI, retrieves and
// injects lessons, and runs the post-session Referee/Critic/Promoter
// pipeline. It is the one package that wires every other memv2 component
// together.
package steploop

import (
	"github.com/artemgetmann/memv2/pkg/event"
	"github.com/artemgetmann/memv2/pkg/referee"
)

// Task describes one session's unit of work.
type Task struct {
	ID          string
	DomainKey   string
	TaskCluster string
	TaskText    string
	Contract    *referee.Contract // nil when the task declares no contract
}

// Result is what Run returns: the terminal SessionMetrics plus the outcome
// details a caller (a benchmark harness, a CLI) may want beyond the metrics
// record itself.
type Result struct {
	Metrics       event.SessionMetrics
	RefereeOutcome referee.Outcome
	FinalState    string
}

// terminationReason names why a session ended, recorded onto SessionMetrics.
type terminationReason string

const (
	reasonNormal    terminationReason = ""
	reasonBudget    terminationReason = "budget"
	reasonTransport terminationReason = "transport"
	reasonCanceled  terminationReason = "canceled"
)
