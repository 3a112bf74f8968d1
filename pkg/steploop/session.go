package steploop

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/artemgetmann/memv2/pkg/config"
	"github.com/artemgetmann/memv2/pkg/critic"
	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/artemgetmann/memv2/pkg/event"
	"github.com/artemgetmann/memv2/pkg/fingerprint"
	"github.com/artemgetmann/memv2/pkg/lesson"
	"github.com/artemgetmann/memv2/pkg/logging"
	"github.com/artemgetmann/memv2/pkg/metrics"
	"github.com/artemgetmann/memv2/pkg/promoter"
	"github.com/artemgetmann/memv2/pkg/referee"
	"github.com/artemgetmann/memv2/pkg/retriever"
	"github.com/artemgetmann/memv2/pkg/spi"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Clock is overridable for deterministic tests.
type Clock func() time.Time

// Session drives one run of the step loop over a fixed Adapter/Model pair,
// a shared Lesson Store, and the Retriever/Critic/Referee/Promoter built
// on top of it.
type Session struct {
	adapter  spi.Adapter
	model    spi.Model
	store    lesson.Store
	eventLog *event.Log

	retr        *retriever.Retriever
	promo       *promoter.Promoter
	activations *promoter.ActivationLog
	crit        *critic.Critic
	ref         *referee.Referee

	knowledge critic.KnowledgeProvider // optional; also feeds the initial prompt
	metrics   *metrics.Registry        // optional; nil disables Prometheus/otel wiring

	flightRecorder *logging.FlightRecorder // optional; nil disables runtime trace snapshots
	traceDir       string

	cfg                 config.StepLoopConfig
	maxPromptTokens      int
	maxTransportRetries  int
	prerunTopK           int
	onErrorTopM          int

	logger *logging.Logger
	now    Clock
}

// Option configures a Session.
type Option func(*Session)

func WithStepLoopConfig(cfg config.StepLoopConfig) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithRetrievalTopK overrides the pre-run top-K and on-error top-M result
// sizes (pkg/config's RetrievalConfig.PreRunTopK/OnErrorTopM); zero leaves
// the Retriever's own package defaults in effect.
func WithRetrievalTopK(prerunTopK, onErrorTopM int) Option {
	return func(s *Session) { s.prerunTopK = prerunTopK; s.onErrorTopM = onErrorTopM }
}

func WithMaxPromptTokens(n int) Option { return func(s *Session) { s.maxPromptTokens = n } }

func WithEventLog(l *event.Log) Option { return func(s *Session) { s.eventLog = l } }

func WithKnowledgeProvider(k critic.KnowledgeProvider) Option {
	return func(s *Session) { s.knowledge = k }
}

func WithTransportRetries(n int) Option { return func(s *Session) { s.maxTransportRetries = n } }

// WithMetrics wires a Prometheus/otel Registry into the session: turn spans,
// validation-retry counters, and the terminal session-outcome histogram.
func WithMetrics(m *metrics.Registry) Option { return func(s *Session) { s.metrics = m } }

func WithLogger(l *logging.Logger) Option { return func(s *Session) { s.logger = l } }

// WithFlightRecorder wires a Go 1.25 runtime/trace.FlightRecorder into the
// session: Run wraps the whole attempt in a trace task, and an abnormal
// termination (transport, budget, or cancellation) dumps the ring buffer to
// traceDir as "session-<id>.trace" for offline debugging. This complements
// rather than replaces the otel spans metrics.Registry records: the
// flight recorder captures the low-level runtime trace leading up to a rare
// production failure, which a span alone does not carry.
func WithFlightRecorder(fr *logging.FlightRecorder, traceDir string) Option {
	return func(s *Session) { s.flightRecorder = fr; s.traceDir = traceDir }
}

func withClock(c Clock) Option { return func(s *Session) { s.now = c } }

// New builds a Session wiring every component together, grounded on the
// teacher's functional-options agent constructor pattern.
func New(
	adapter spi.Adapter,
	model spi.Model,
	store lesson.Store,
	retr *retriever.Retriever,
	promo *promoter.Promoter,
	activations *promoter.ActivationLog,
	crit *critic.Critic,
	ref *referee.Referee,
	opts ...Option,
) *Session {
	s := &Session{
		adapter:             adapter,
		model:               model,
		store:               store,
		retr:                retr,
		promo:               promo,
		activations:         activations,
		crit:                crit,
		ref:                 ref,
		cfg:                 config.Default().StepLoop,
		maxPromptTokens:      config.Default().Store.MaxPromptTokens,
		maxTransportRetries: 3,
		logger:              logging.GetLogger(),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// toolResultMessage wraps a tool observation (success output, error text
// plus hints, or a validation error) as the next turn's tool-role message.
func toolResultMessage(content string) spi.Message {
	return spi.Message{Role: spi.RoleTool, Content: content}
}

func assistantMessage(t spi.Turn) spi.Message {
	content := ""
	for i, block := range t.TextBlocks {
		if i > 0 {
			content += "\n"
		}
		content += block
	}
	return spi.Message{Role: spi.RoleAssistant, Content: content}
}

// Run executes one complete session for task: setup, the per-turn
// protocol, and post-session Referee/Critic/Promoter processing (spec
// 4.7). It always returns a populated Result, even on failure, since
// SessionMetrics must be written regardless of outcome (spec 7).
func (s *Session) Run(ctx context.Context, task Task) (Result, error) {
	domainKey := task.DomainKey
	startedAt := s.now()
	ctx = logging.WithSessionID(logging.WithDomainKey(ctx, domainKey), task.ID)
	s.logger.Info(ctx, "session starting")

	if s.flightRecorder != nil {
		var endTask func()
		ctx, endTask = logging.TraceTask(ctx, "steploop.session")
		defer endTask()
	}

	var sessionSpan oteltrace.Span
	if s.metrics != nil {
		ctx, sessionSpan = metrics.StartSessionSpan(ctx, task.ID, domainKey)
	}

	toolSpec := s.adapter.ToolSpec()

	prerunQuery := retriever.Query{DomainKey: domainKey, TaskCluster: task.TaskCluster, TaskText: task.TaskText}
	prerunStart := s.now()
	prerunHits, err := s.retr.Prerun(prerunQuery, s.prerunTopK)
	if err != nil {
		prerunHits = nil
	}
	if s.metrics != nil {
		recordLaneHits(s.metrics, "prerun", prerunHits, s.now().Sub(prerunStart))
	}
	prerunLessonIDs := hitIDs(prerunHits)

	knowledgeText := ""
	if s.knowledge != nil {
		if excerpts, kErr := s.knowledge.Excerpts(ctx, domainKey); kErr == nil {
			for i, e := range excerpts {
				if i > 0 {
					knowledgeText += "\n"
				}
				knowledgeText += e
			}
		}
	}

	lessonsBlock := buildLessonsBlock(prerunHits, s.maxPromptTokens)
	prompt := buildInitialPrompt(task, knowledgeText, lessonsBlock, describeToolSchema(toolSpec))

	messages := []spi.Message{{Role: spi.RoleUser, Content: prompt}}

	touchedLessonIDs := make(map[string]bool)
	for _, id := range prerunLessonIDs {
		touchedLessonIDs[id] = true
	}

	var (
		steps                       []critic.StepRecord
		toolCallLog                 []string
		toolErrors                  int
		hardFailures                int
		lastFingerprint             string
		fingerprintRepeats          int
		validationRetriesThisStep   int
		validationRetryAttempts     int
		validationRetryCappedEvents int
		stepIndex                   int
		reason                      terminationReason
	)

	stop := spi.StopCondition{MaxTokens: 4096}

loop:
	for {
		select {
		case <-ctx.Done():
			reason = reasonCanceled
			break loop
		default:
		}

		if s.cfg.WallClockBudget > 0 && s.now().Sub(startedAt) > s.cfg.WallClockBudget {
			reason = reasonBudget
			break loop
		}
		if s.cfg.MaxSteps > 0 && stepIndex >= s.cfg.MaxSteps {
			reason = reasonBudget
			break loop
		}

		var turnSpan oteltrace.Span
		turnCtx := ctx
		if s.metrics != nil {
			turnCtx, turnSpan = metrics.StartTurnSpan(ctx, stepIndex)
		}

		turn, turnErr := s.callModelWithRetry(turnCtx, messages, []spi.ToolSpec{toolSpec}, stop)
		if turnSpan != nil {
			metrics.EndSpan(turnSpan, turnErr)
		}
		if turnErr != nil {
			s.logger.Error(ctx, "model transport failed at step %d: %v", stepIndex, turnErr)
			reason = reasonTransport
			break loop
		}

		if turn.ToolCall == nil {
			messages = append(messages, assistantMessage(turn))
			reason = reasonNormal
			break loop
		}

		if shapeErr := spi.ValidateShape(toolSpec.InputSchema, turn.ToolCall.Input); shapeErr != nil {
			validationRetriesThisStep++
			if s.metrics != nil {
				s.metrics.RecordValidationRetry(domainKey)
			}
			if validationRetriesThisStep > s.cfg.ValidationRetryCap {
				validationRetryCappedEvents++
				validationRetriesThisStep = 0
				if s.metrics != nil {
					s.metrics.RecordValidationRetryCapped()
				}
				messages = s.runReflectionTurn(ctx, messages, stop)
				stepIndex++
				continue
			}
			// Only the calls that actually get re-solicited count as retries;
			// the call that trips the cap above is forced into reflection
			// instead, so it is not one.
			validationRetryAttempts++
			messages = append(messages, toolResultMessage("validation error: "+shapeErr.Error()))
			continue
		}
		validationRetriesThisStep = 0

		payload := turn.ToolCall.Input
		payloadJSON, _ := json.Marshal(payload)

		result, execErr := s.adapter.Execute(ctx, payload)
		if execErr != nil {
			reason = reasonTransport
			break loop
		}

		toolCallLog = append(toolCallLog, turn.ToolCall.Name)

		if result.ErrorText != "" {
			toolErrors++
			hardFailures++

			fp := fingerprint.Fingerprint(domainKey, result.ErrorText, string(payloadJSON), "")
			steps = append(steps, critic.StepRecord{
				ToolName:    turn.ToolCall.Name,
				Succeeded:   false,
				ErrorText:   result.ErrorText,
				Fingerprint: fp,
			})

			if s.eventLog != nil {
				_ = s.eventLog.AppendError(event.ErrorEvent{
					SessionID:     task.ID,
					StepIndex:     stepIndex,
					ToolName:      turn.ToolCall.Name,
					ActionPayload: payload,
					ErrorText:     result.ErrorText,
					Fingerprint:   fp,
					Tags:          fingerprint.Extract(result.ErrorText, string(payloadJSON)),
					Channel:       event.ChannelHardFailure,
					Timestamp:     s.now(),
				})
			}

			onErrorStart := s.now()
			onErrorHits, oErr := s.retr.OnError(retriever.Query{
				DomainKey:   domainKey,
				TaskCluster: task.TaskCluster,
				ErrorText:   result.ErrorText,
				Fingerprint: fp,
			}, s.onErrorTopM)
			if s.metrics != nil {
				recordLaneHits(s.metrics, "onerror", onErrorHits, s.now().Sub(onErrorStart))
			}
			if oErr == nil {
				for _, id := range hitIDs(onErrorHits) {
					touchedLessonIDs[id] = true
				}
			}
			messages = append(messages, toolResultMessage(result.ErrorText+"\n"+onErrorHintBlock(onErrorHits)))

			if lastFingerprint != "" && fp == lastFingerprint {
				fingerprintRepeats++
			} else {
				fingerprintRepeats = 1
			}
			lastFingerprint = fp
			repeated := fingerprintRepeats >= s.cfg.RepetitionFingerprintThreshold

			if repeated || hardFailures >= s.cfg.RepetitionHardFailureThreshold {
				messages = s.runReflectionTurn(ctx, messages, stop)
				hardFailures = 0
			}
		} else {
			steps = append(steps, critic.StepRecord{ToolName: turn.ToolCall.Name, Succeeded: true})
			lastFingerprint = ""
			messages = append(messages, toolResultMessage(result.OutputText))
		}

		stepIndex++
	}

	s.logger.Info(ctx, "session loop ended after %d steps, reason=%q", stepIndex, string(reason))

	if s.flightRecorder != nil && (reason == reasonTransport || reason == reasonBudget || reason == reasonCanceled) {
		if err := os.MkdirAll(s.traceDir, 0755); err == nil {
			path := filepath.Join(s.traceDir, "session-"+task.ID+".trace")
			if err := s.flightRecorder.Snapshot(path); err != nil {
				s.logger.Warn(ctx, "flight recorder snapshot failed: %v", err)
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordSessionOutcome(domainKey, string(reason), stepIndex, s.now().Sub(startedAt))
	}
	if sessionSpan != nil {
		var endErr error
		if reason == reasonTransport || reason == reasonCanceled {
			endErr = memverrors.New(memverrors.TransportFailed, "session ended with reason "+string(reason))
		}
		metrics.EndSpan(sessionSpan, endErr)
	}

	return s.finish(ctx, task, touchedLessonIDs, steps, toolCallLog, toolErrors, stepIndex,
		validationRetryAttempts, validationRetryCappedEvents, prerunLessonIDs, reason)
}

// callModelWithRetry retries transport-level failures with bounded
// exponential backoff (spec 7: "Transport error... bounded retry;
// persistent failure ends session with fail reason=transport"), grounded
// on the teacher's workflows.Step retry loop.
func (s *Session) callModelWithRetry(ctx context.Context, messages []spi.Message, tools []spi.ToolSpec, stop spi.StopCondition) (spi.Turn, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxTransportRetries; attempt++ {
		turn, err := s.model.Turn(ctx, messages, tools, stop)
		if err == nil {
			return turn, nil
		}
		lastErr = err

		if attempt == s.maxTransportRetries {
			break
		}

		backoffDuration := time.Duration(float64(time.Second) * math.Pow(2, float64(attempt)))
		select {
		case <-ctx.Done():
			return spi.Turn{}, memverrors.Wrap(ctx.Err(), memverrors.Canceled, "context canceled during transport retry backoff")
		case <-time.After(backoffDuration):
		}
	}
	return spi.Turn{}, memverrors.Wrap(lastErr, memverrors.TransportFailed, "model transport retries exhausted")
}

// recordLaneHits tallies hits per lane and reports them plus the call's
// latency to the metrics registry.
func recordLaneHits(m *metrics.Registry, phase string, hits []retriever.Hit, duration time.Duration) {
	m.RecordRetrievalLatency(phase, duration)
	counts := map[retriever.Lane]int{}
	for _, h := range hits {
		counts[h.Lane]++
	}
	for lane, n := range counts {
		m.RecordRetrievalHits(phase, string(lane), n)
	}
}

func hitIDs(hits []retriever.Hit) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.Lesson.ID)
	}
	return ids
}

func describeToolSchema(spec spi.ToolSpec) string {
	data, err := json.Marshal(spec.InputSchema)
	if err != nil {
		return spec.Name
	}
	return spec.Name + " " + string(data)
}
