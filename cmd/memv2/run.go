package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	anthropicadapter "github.com/artemgetmann/memv2/pkg/adapters/llm/anthropic"
	"github.com/artemgetmann/memv2/pkg/adapters/tool/mcptool"
	"github.com/artemgetmann/memv2/pkg/config"
	"github.com/artemgetmann/memv2/pkg/critic"
	"github.com/artemgetmann/memv2/pkg/event"
	"github.com/artemgetmann/memv2/pkg/lesson"
	"github.com/artemgetmann/memv2/pkg/logging"
	"github.com/artemgetmann/memv2/pkg/metrics"
	"github.com/artemgetmann/memv2/pkg/promoter"
	"github.com/artemgetmann/memv2/pkg/referee"
	"github.com/artemgetmann/memv2/pkg/retriever"
	"github.com/artemgetmann/memv2/pkg/steploop"
)

var runFlags struct {
	configPath  string
	taskID      string
	sessionID   string
	domain      string
	taskCluster string
	taskText    string
	maxSteps    int

	mcpCommand string
	mcpArgs    []string
	mcpTool    string

	modelID    string
	criticMode string
	docsPaths  []string
	useJudge   string // "heuristic" or "model"

	metricsEnabled bool
}

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session: task + tool adapter + model against a shared lesson store",
		Long: `run drives one complete session (spec 4.7): pre-run retrieval and prompt
build, the per-turn model/tool protocol with validation retry and on-error
hint injection, and the post-session referee/critic/promoter pipeline. It
writes lessons.jsonl (or the configured sqlite file), events/session-<id>.jsonl,
and metrics/session-<id>.json under the configured store root, then exits 0
on success and non-zero only when the session's terminal reason was a
transport failure (spec 7: "exit code reflects transport-level health only").`,
		RunE: runSession,
	}

	cmd.Flags().StringVar(&runFlags.configPath, "config", "", "YAML config file layered over defaults")
	cmd.Flags().StringVar(&runFlags.taskID, "task-id", "", "stable task identifier (required)")
	cmd.Flags().StringVar(&runFlags.sessionID, "session-id", "", "session identifier; defaults to task-id")
	cmd.Flags().StringVar(&runFlags.domain, "domain", "", "domain key (tool family + adapter); required")
	cmd.Flags().StringVar(&runFlags.taskCluster, "task-cluster", "", "coarse task-cluster label; defaults to task-id")
	cmd.Flags().StringVar(&runFlags.taskText, "task-text", "", "the task description shown to the model (required)")
	cmd.Flags().IntVar(&runFlags.maxSteps, "max-steps", 0, "override the configured max_steps budget")

	cmd.Flags().StringVar(&runFlags.mcpCommand, "mcp-command", "", "subprocess command exposing the tool over MCP stdio (required)")
	cmd.Flags().StringSliceVar(&runFlags.mcpArgs, "mcp-arg", nil, "argument to the MCP server subprocess; repeatable")
	cmd.Flags().StringVar(&runFlags.mcpTool, "mcp-tool", "", "name of the MCP tool this session drives (required)")

	cmd.Flags().StringVar(&runFlags.modelID, "model", string(anthropic.ModelClaudeSonnet4_5_20250929), "Anthropic model id; ANTHROPIC_API_KEY must be set")
	cmd.Flags().StringVar(&runFlags.criticMode, "critic-mode", "legacy", "critic prompt path: legacy or strict (strict requires --docs)")
	cmd.Flags().StringSliceVar(&runFlags.docsPaths, "docs", nil, "local doc file excerpted by the strict-mode critic's knowledge provider; repeatable")
	cmd.Flags().StringVar(&runFlags.useJudge, "judge", "heuristic", "referee judge: heuristic or model")
	cmd.Flags().BoolVar(&runFlags.metricsEnabled, "metrics", false, "wire a Prometheus/otel metrics.Registry into the session")

	rootCmd.AddCommand(cmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	if runFlags.taskID == "" || runFlags.domain == "" || runFlags.taskText == "" {
		return fmt.Errorf("--task-id, --domain, and --task-text are required")
	}
	if runFlags.mcpCommand == "" || runFlags.mcpTool == "" {
		return fmt.Errorf("--mcp-command and --mcp-tool are required")
	}
	sessionID := runFlags.sessionID
	if sessionID == "" {
		sessionID = runFlags.taskID
	}
	taskCluster := runFlags.taskCluster
	if taskCluster == "" {
		taskCluster = runFlags.taskID
	}

	mgr, err := config.NewManager(config.WithConfigPath(runFlags.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()
	if runFlags.maxSteps > 0 {
		cfg.StepLoop.MaxSteps = runFlags.maxSteps
	}

	logger := buildLogger(cfg.Logging)
	logging.SetLogger(logger)

	store, storeCloser, err := openStore(cfg.Store, logger, sessionID)
	if err != nil {
		return fmt.Errorf("open lesson store: %w", err)
	}
	defer storeCloser()

	eventLogPath := filepath.Join(filepath.Dir(cfg.Store.EventLogPath), "events", "session-"+sessionID+".jsonl")
	eventLog, err := event.Open(eventLogPath)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer eventLog.Close()

	var metricsRegistry *metrics.Registry
	if runFlags.metricsEnabled {
		metricsRegistry = metrics.New()
	}

	flightRecorder := logging.NewFlightRecorder()
	if err := flightRecorder.Start(); err != nil {
		logger.Warn(cmd.Context(), "flight recorder disabled: %v", err)
		flightRecorder = nil
	} else {
		defer flightRecorder.Stop()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.StepLoop.WallClockBudget+30*time.Second)
	defer cancel()

	adapter, err := mcptool.DialStdio(ctx, mcptool.StdioOptions{
		Command:       runFlags.mcpCommand,
		Args:          runFlags.mcpArgs,
		ClientName:    "memv2",
		ClientVersion: "0.1.0",
	}, runFlags.mcpTool, runFlags.domain)
	if err != nil {
		return fmt.Errorf("dial mcp adapter: %w", err)
	}

	model, err := anthropicadapter.NewFromEnv(anthropic.Model(runFlags.modelID))
	if err != nil {
		return fmt.Errorf("build model transport: %w", err)
	}

	retr := retriever.New(store, retriever.WithWeights(toRetrievalWeights(cfg.Retrieval.Weights)), retriever.WithMode(toTransferMode(cfg.Retrieval.TransferMode)))

	promoOpts := []promoter.Option{}
	if metricsRegistry != nil {
		promoOpts = append(promoOpts, promoter.WithMetrics(metricsRegistry))
	}
	promo := promoter.New(store, promoOpts...)
	activations := promoter.NewActivationLog()

	var judge referee.Judge = referee.NewHeuristicJudge()
	if runFlags.useJudge == "model" {
		judge = referee.NewModelJudge(model)
	}
	ref := referee.New(judge, referee.WithJudgeEnabled(cfg.Referee.JudgeEnabled))

	knowledge := newFileKnowledgeProvider(runFlags.docsPaths)

	criticAdapter := critic.NewModelAdapter(model, critic.WithModelAdapterPromptPath(critic.PromptPath(runFlags.criticMode)), critic.WithModelAdapterKnowledge(knowledge))
	criticOpts := []critic.Option{critic.WithPromptPath(critic.PromptPath(runFlags.criticMode))}
	if knowledge != nil {
		criticOpts = append(criticOpts, critic.WithKnowledgeProvider(knowledge))
	}
	crit := critic.New(criticAdapter, criticOpts...)

	sessOpts := []steploop.Option{
		steploop.WithStepLoopConfig(cfg.StepLoop),
		steploop.WithRetrievalTopK(cfg.Retrieval.PreRunTopK, cfg.Retrieval.OnErrorTopM),
		steploop.WithMaxPromptTokens(cfg.Store.MaxPromptTokens),
		steploop.WithEventLog(eventLog),
		steploop.WithLogger(logger),
	}
	if knowledge != nil {
		sessOpts = append(sessOpts, steploop.WithKnowledgeProvider(knowledge))
	}
	if metricsRegistry != nil {
		sessOpts = append(sessOpts, steploop.WithMetrics(metricsRegistry))
	}
	if flightRecorder != nil {
		sessOpts = append(sessOpts, steploop.WithFlightRecorder(flightRecorder, filepath.Join(filepath.Dir(cfg.Store.EventLogPath), "traces")))
	}

	sess := steploop.New(adapter, model, store, retr, promo, activations, crit, ref, sessOpts...)

	result, runErr := sess.Run(ctx, steploop.Task{
		ID:          sessionID,
		DomainKey:   runFlags.domain,
		TaskCluster: taskCluster,
		TaskText:    runFlags.taskText,
	})
	if runErr != nil {
		return fmt.Errorf("session run: %w", runErr)
	}

	if err := writeMetricsFile(filepath.Dir(cfg.Store.EventLogPath), sessionID, result.Metrics); err != nil {
		logger.Warn(ctx, "failed to write metrics/session-%s.json: %v", sessionID, err)
	}

	cmd.Printf("session %s: passed=%v score=%.2f steps=%d reason=%q eval_source=%s\n",
		sessionID, result.Metrics.Passed, result.Metrics.Score, result.Metrics.Steps,
		result.Metrics.Reason, result.Metrics.EvalSource)

	if result.Metrics.Reason == "transport" {
		return fmt.Errorf("session ended on a transport failure")
	}
	return nil
}

func buildLogger(cfg config.LoggingConfig) *logging.Logger {
	outputs := []logging.Output{logging.NewConsoleOutput(cfg.ConsoleStderr, logging.WithColor(cfg.ConsoleColor))}
	if cfg.JSONLPath != "" {
		if jsonl, err := logging.NewJSONLOutput(cfg.JSONLPath); err == nil {
			outputs = append(outputs, jsonl)
		}
	}
	return logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(cfg.Severity),
		Outputs:  outputs,
	})
}

func openStore(cfg config.StoreConfig, logger *logging.Logger, sessionID string) (lesson.Store, func(), error) {
	var durable lesson.Store
	var err error
	switch cfg.Backend {
	case "sqlite":
		durable, err = lesson.OpenSQLiteStore(cfg.Path)
	default:
		durable, err = lesson.OpenJSONLStore(cfg.Path, cfg.CompactionThreshold)
	}
	if err != nil {
		return nil, nil, err
	}

	degrading := lesson.NewDegradingStore(durable, logger, sessionID)
	closer := func() {
		if closable, ok := durable.(interface{ Close() error }); ok {
			_ = closable.Close()
		}
	}
	return degrading, closer, nil
}

func toRetrievalWeights(w config.RankingWeights) retriever.Weights {
	return retriever.Weights{
		FingerprintMatch: w.FingerprintMatch,
		TagOverlap:       w.TagOverlap,
		TextSimilarity:   w.TextSimilarity,
		Reliability:      w.Reliability,
		Recency:          w.Recency,
	}
}

func toTransferMode(s string) retriever.Mode {
	switch strings.ToLower(s) {
	case "strict":
		return retriever.ModeStrict
	case "always":
		return retriever.ModeAlways
	default:
		return retriever.ModeAuto
	}
}

func writeMetricsFile(storeRoot, sessionID string, m event.SessionMetrics) error {
	dir := filepath.Join(storeRoot, "metrics")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "session-"+sessionID+".json"), data, 0644)
}
