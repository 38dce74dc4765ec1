package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookgen/internal/config"
	"bookgen/internal/generator"
	"bookgen/internal/llm"
	"bookgen/internal/outline"
	"bookgen/internal/resolver"
	"bookgen/internal/storage"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rootCmd = &cobra.Command{
		Use:               "bookgen",
		Short:             "Generate long-form books from an LLM-written outline",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogger,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	configPath string
	dbPath     string
	verbose    bool
	logger     = zap.NewNop()

	// generate / outline flags
	topicFlag        string
	glossaryFlag     bool
	expandedFlag     bool
	policyFlag       string
	regenerationFlag string
	dryRunFlag       bool

	tocFlag      bool
	historyLimit int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the run ledger database (SQLite); overrides storage.db")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	for _, c := range []*cobra.Command{generateCmd, outlineCmd} {
		c.Flags().StringVarP(&topicFlag, "topic", "t", "", "Book topic (asked interactively when empty)")
		c.Flags().StringVar(&policyFlag, "policy", "", "Outline policy: reuse-latest, always-new or interactive")
		c.Flags().StringVar(&regenerationFlag, "regeneration", "", "What happens to a rejected outline: replace or keep")
		c.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Log prompts instead of calling the generation service")
	}
	generateCmd.Flags().BoolVarP(&glossaryFlag, "glossary", "g", false, "Append a generated glossary")
	generateCmd.Flags().BoolVarP(&expandedFlag, "expanded", "e", false, "One section per subtopic instead of per topic")
	showCmd.Flags().BoolVar(&tocFlag, "toc", false, "Print the table of contents only")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(outlineCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
}

func setupLogger(cmd *cobra.Command, args []string) error {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	logger = l
	return nil
}

// loadSettings reads the config file and applies command line overrides.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	flags := cmd.Flags()
	if policyFlag != "" {
		cfg.Book.Policy = policyFlag
	}
	if regenerationFlag != "" {
		cfg.Book.Regeneration = regenerationFlag
	}
	if flags.Lookup("glossary") != nil && flags.Changed("glossary") {
		cfg.Book.Glossary = glossaryFlag
	}
	if flags.Lookup("expanded") != nil && flags.Changed("expanded") {
		cfg.Book.Expanded = expandedFlag
	}
	if flags.Lookup("dry-run") != nil && flags.Changed("dry-run") {
		cfg.AI.DryRun = dryRunFlag
	}
	if dbPath != "" {
		cfg.Storage.DB = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sampling(cfg *config.Config) llm.Sampling {
	return llm.Sampling{
		Temperature:      cfg.AI.Temperature,
		TopP:             cfg.AI.TopP,
		FrequencyPenalty: cfg.AI.FrequencyPenalty,
		PresencePenalty:  cfg.AI.PresencePenalty,
	}
}

// initCompleter builds the configured client wrapped with logging, the
// per-call timeout and the run journal.
func initCompleter(ctx context.Context, cfg *config.Config, journal llm.Journal) (llm.Completer, error) {
	inner, err := llm.NewCompleter(ctx, llm.CompleterOptions{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
		DryRun:   cfg.AI.DryRun,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create completer: %w", err)
	}
	return llm.Wrap(inner,
		llm.WithLogging(logger),
		llm.WithTimeout(time.Duration(cfg.AI.TimeoutSeconds)*time.Second),
		llm.WithJournal(journal, logger),
	), nil
}

func initResolver(cfg *config.Config, completer llm.Completer, op *operator) (*resolver.Resolver, error) {
	policy, err := resolver.ParsePolicy(cfg.Book.Policy)
	if err != nil {
		return nil, err
	}
	regen, err := resolver.ParseRegeneration(cfg.Book.Regeneration)
	if err != nil {
		return nil, err
	}
	return resolver.New(storage.NewFileOutlineStore(cfg.Book.OutlineDir), completer, resolver.Options{
		Policy:       policy,
		Regeneration: regen,
		Model:        cfg.AI.Model,
		TokenCeiling: cfg.AI.MaxTokens,
		Sampling:     sampling(cfg),
		Decider:      op,
		Selector:     op,
		Logger:       logger,
	}), nil
}

func resolveTopic(ctx context.Context, op *operator) (string, error) {
	if topicFlag != "" {
		return topicFlag, storage.ValidateTopic(topicFlag)
	}
	return op.AskTopic(ctx)
}

// interrupted reports a Ctrl-C at an operator prompt, which ends the command
// without an error.
func interrupted(err error) bool {
	if errors.Is(err, context.Canceled) {
		fmt.Println("👋 Interrupted.")
		return true
	}
	return false
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Resolve an outline for a topic and generate the full book",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		op := newOperator(os.Stdin, os.Stdout)
		topic, err := resolveTopic(ctx, op)
		if interrupted(err) {
			return nil
		}
		if err != nil {
			return err
		}

		// 1. Open the run ledger
		ledger, err := storage.NewSQLiteLedger(cfg.Storage.DB)
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer ledger.Close()

		run := storage.Run{ID: uuid.NewString(), Topic: topic, StartedAt: time.Now()}
		if err := ledger.StartRun(ctx, run); err != nil {
			logger.Warn("Failed to record run start", zap.String("run", run.ID), zap.Error(err))
		}
		journal := storage.NewRunJournal(ledger, run.ID)

		// 2. Generate
		runErr := generateBook(ctx, cfg, topic, op, ledger, &run, journal)

		// 3. Close the run
		status := "completed"
		switch {
		case errors.Is(runErr, resolver.ErrAborted):
			status = "aborted"
		case runErr != nil:
			status = "failed"
		}
		if err := ledger.FinishRun(context.WithoutCancel(ctx), run.ID, status, runErr); err != nil {
			logger.Warn("Failed to record run end", zap.String("run", run.ID), zap.Error(err))
		}
		logger.Info("Run finished", zap.String("run", run.ID), zap.String("status", status), zap.Int("calls", journal.Calls()))

		if status == "aborted" {
			fmt.Println("👋 Outline rejected; nothing was generated.")
			return nil
		}
		return runErr
	},
}

func generateBook(ctx context.Context, cfg *config.Config, topic string, op *operator, ledger storage.RunLedger, run *storage.Run, journal llm.Journal) error {
	completer, err := initCompleter(ctx, cfg, journal)
	if err != nil {
		return err
	}
	res, err := initResolver(cfg, completer, op)
	if err != nil {
		return err
	}

	fmt.Printf("📚 Resolving outline for %q...\n", topic)
	resolution, err := res.Resolve(ctx, topic)
	if err != nil {
		return err
	}
	if resolution.Reused {
		fmt.Printf("📂 Reading from %s\n", resolution.ID.FileName())
	} else {
		fmt.Printf("💾 Outline written to %s\n", resolution.ID.FileName())
	}

	o, err := outline.Parse(resolution.Text)
	if err != nil {
		return fmt.Errorf("outline %s: %w", resolution.ID.FileName(), err)
	}

	name := resolution.ID.DocumentName()
	run.OutlineID = resolution.ID.FileName()
	run.Document = name
	if err := ledger.StartRun(ctx, *run); err != nil {
		logger.Warn("Failed to update run", zap.String("run", run.ID), zap.Error(err))
	}

	opts := generator.Options{IncludeGlossary: cfg.Book.Glossary, ExpandedSections: cfg.Book.Expanded}
	fmt.Printf("🚀 Generating %q: %d chapters, %d prompts\n", o.DisplayTitle(), len(o.Chapters), o.PromptCount(opts.ExpandedSections, opts.IncludeGlossary))

	store := generator.NewMarkdownStore(cfg.Book.OutputDir).WithOutline(resolution.ID)
	pipeline := generator.NewPipeline(completer, store, generator.PipelineConfig{
		Model:        cfg.AI.Model,
		TokenCeiling: cfg.AI.MaxTokens,
		Sampling:     sampling(cfg),
		ReportDir:    cfg.Book.ReportDir,
		Logger:       logger,
		Progress: func(step, total int, phase llm.Phase) {
			fmt.Printf("  ✍️  [%d/%d] %s\n", step, total, phase)
		},
	})
	result, err := pipeline.Generate(ctx, o, name, opts)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Book written to %s (%d prompts)\n", result.Location, result.Prompts)
	return nil
}

var outlineCmd = &cobra.Command{
	Use:   "outline",
	Short: "Resolve an outline for a topic and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		op := newOperator(os.Stdin, os.Stdout)
		topic, err := resolveTopic(ctx, op)
		if interrupted(err) {
			return nil
		}
		if err != nil {
			return err
		}
		completer, err := initCompleter(ctx, cfg, nil)
		if err != nil {
			return err
		}
		res, err := initResolver(cfg, completer, op)
		if err != nil {
			return err
		}
		resolution, err := res.Resolve(ctx, topic)
		if errors.Is(err, resolver.ErrAborted) {
			fmt.Println("👋 Outline rejected.")
			return nil
		}
		if interrupted(err) {
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("📄 %s\n\n%s\n", resolution.ID.FileName(), strings.TrimRight(resolution.Text, "\n"))
		o, err := outline.Parse(resolution.Text)
		if err != nil {
			fmt.Printf("⚠️  Outline cannot be generated from: %v\n", err)
			return nil
		}
		fmt.Printf("\n📊 %d chapters; %d prompts per topic, %d expanded\n",
			len(o.Chapters), o.PromptCount(false, false), o.PromptCount(true, false))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <book.md>",
	Short: "Render a generated book in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if tocFlag {
			for _, s := range generator.SplitMarkdown(args[0], string(content)) {
				if s.Level == 0 {
					continue
				}
				fmt.Printf("%s%s\n", strings.Repeat("  ", s.Level-1), s.Title)
			}
			return nil
		}

		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		out, err := renderer.Render(string(content))
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent generation runs from the run ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		ledger, err := storage.NewSQLiteLedger(cfg.Storage.DB)
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer ledger.Close()

		runs, err := ledger.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}
		fmt.Print(renderHistory(runs))
		return nil
	},
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	statusStyles = map[string]lipgloss.Style{
		"completed": lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"failed":    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		"aborted":   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"running":   lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
	}
)

func renderHistory(runs []storage.Run) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-19s  %-10s  %-5s  %-24s  %s", "STARTED", "STATUS", "CALLS", "TOPIC", "DOCUMENT")) + "\n")
	for _, r := range runs {
		status := fmt.Sprintf("%-10s", r.Status)
		if style, ok := statusStyles[r.Status]; ok {
			status = style.Render(status)
		}
		fmt.Fprintf(&sb, "%-19s  %s  %5d  %-24s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), status, r.Calls, r.Topic, r.Document)
		if r.Error != "" {
			sb.WriteString("    " + warnStyle.Render(r.Error) + "\n")
		}
	}
	return sb.String()
}
