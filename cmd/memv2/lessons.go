package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artemgetmann/memv2/pkg/config"
	"github.com/artemgetmann/memv2/pkg/lesson"
)

var lessonsFlags struct {
	configPath string
	domain     string
	status     string
}

func init() {
	lessonsCmd := &cobra.Command{
		Use:   "lessons",
		Short: "Inspect the Lesson Store",
	}
	lessonsCmd.PersistentFlags().StringVar(&lessonsFlags.configPath, "config", "", "YAML config file layered over defaults")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List lessons, optionally filtered by domain or status",
		RunE:  runLessonsList,
	}
	listCmd.Flags().StringVar(&lessonsFlags.domain, "domain", "", "filter by domain_key")
	listCmd.Flags().StringVar(&lessonsFlags.status, "status", "", "filter by status: candidate, promoted, suppressed, archived")

	showCmd := &cobra.Command{
		Use:   "show <lesson-id>",
		Short: "Show one lesson's full record",
		Args:  cobra.ExactArgs(1),
		RunE:  runLessonsShow,
	}

	lessonsCmd.AddCommand(listCmd, showCmd)
	rootCmd.AddCommand(lessonsCmd)
}

func openReadOnlyStore() (lesson.Store, error) {
	mgr, err := config.NewManager(config.WithConfigPath(lessonsFlags.configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get().Store

	switch cfg.Backend {
	case "sqlite":
		return lesson.OpenSQLiteStore(cfg.Path)
	default:
		return lesson.OpenJSONLStore(cfg.Path, cfg.CompactionThreshold)
	}
}

func runLessonsList(cmd *cobra.Command, args []string) error {
	store, err := openReadOnlyStore()
	if err != nil {
		return err
	}

	filter := lesson.Filter{DomainKey: lessonsFlags.domain}
	if lessonsFlags.status != "" {
		filter.Statuses = []lesson.Status{lesson.Status(lessonsFlags.status)}
	}

	lessons, err := store.Iter(filter)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].UpdatedAt.After(lessons[j].UpdatedAt) })

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tSTATUS\tDOMAIN\tRELIABILITY\tRULE")
	for _, l := range lessons {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			l.ID, l.ShortCode(), l.Status, l.DomainKey, l.Reliability(), truncate(l.RuleText, 80))
	}
	return w.Flush()
}

func runLessonsShow(cmd *cobra.Command, args []string) error {
	store, err := openReadOnlyStore()
	if err != nil {
		return err
	}

	l, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("get lesson: %w", err)
	}

	cmd.Printf("id:             %s\n", l.ID)
	cmd.Printf("short_code:     %s\n", l.ShortCode())
	cmd.Printf("status:         %s\n", l.Status)
	cmd.Printf("domain_key:     %s\n", l.DomainKey)
	cmd.Printf("task_cluster:   %s\n", l.TaskCluster)
	cmd.Printf("rule_text:      %s\n", l.RuleText)
	cmd.Printf("triggers:       %s\n", strings.Join(l.TriggerFingerprints, ", "))
	cmd.Printf("tags (system):  %s\n", strings.Join(l.Tags.System, ", "))
	cmd.Printf("tags (model):   %s\n", strings.Join(l.Tags.Model, ", "))
	cmd.Printf("reliability:    %.3f (helpful=%d harmful=%d retrievals=%d)\n",
		l.Reliability(), l.HelpfulCount, l.HarmfulCount, l.RetrievalCount)
	cmd.Printf("conflicts_with: %s\n", strings.Join(l.ConflictsWith, ", "))
	cmd.Printf("source_session: %s\n", l.SourceSessionID)
	cmd.Printf("created_at:     %s\n", l.CreatedAt)
	cmd.Printf("updated_at:     %s\n", l.UpdatedAt)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
