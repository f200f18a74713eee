package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spigell/cv-ranker/internal/export"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/pipeline"
	"github.com/spigell/cv-ranker/internal/ranking"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	defaultOutput  = "ranking.json"
	defaultStepLog = "process.log"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, score and rank every CV under the input directory",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

// runOutput is the document written to --output.
type runOutput struct {
	RunID string `json:"run_id"`
	*ranking.Ranking
	Skipped []pipeline.Skip `json:"skipped,omitempty"`
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("input", "i", ".", "directory with CV documents (pdf, docx)")
	runCmd.Flags().StringP("output", "o", defaultOutput, "file to write the ranking to")
	runCmd.Flags().StringP("xlsx", "x", "", "also write the ranking as a spreadsheet. Default is unset.")
	runCmd.Flags().String("log", defaultStepLog, "step log file, truncated on every run")
	runCmd.Flags().Float64("coherence", ranking.DefaultCoherence, "coherence input applied to every candidate")
	runCmd.Flags().IntP("workers", "w", pipeline.DefaultWorkers, "documents processed concurrently")
	runCmd.Flags().StringP("language", "l", pipeline.DefaultLanguage, "required document language")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before sending documents to the model")

	viper.BindPFlag("pipeline.step-log", runCmd.Flags().Lookup("log"))
	viper.BindPFlag("pipeline.workers", runCmd.Flags().Lookup("workers"))
	viper.BindPFlag("pipeline.language", runCmd.Flags().Lookup("language"))
	viper.BindPFlag("scoring.coherence", runCmd.Flags().Lookup("coherence"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		base.Fatal("getting a config", zap.Error(err))
	}

	runID := uuid.NewString()
	runLogger := logger.WithRun(base, runID)

	runLogger.Info("starting the cv-ranker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	runLogger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	scoringConfig, tables, err := loadScoring(config.Scoring)
	if err != nil {
		runLogger.Fatal("loading scoring configuration", zap.Error(err))
	}

	input := cmd.Flag("input").Value.String()
	paths, err := pipeline.Collect(input)
	if err != nil {
		runLogger.Fatal("collecting documents", zap.Error(err), zap.String("input", input))
	}

	if len(paths) == 0 {
		runLogger.Info("exiting", zap.String("reason", "no documents found"), zap.String("input", input))
		return
	}

	runLogger.Info("collected documents", zap.Int("count", len(paths)))

	deps, explainer, err := newDeps(ctx, config, runLogger)
	if err != nil {
		runLogger.Fatal("preparing extraction", zap.Error(err))
	}

	if explainer != nil && cmd.Flag("yes").Value.String() == "false" {
		if err := confirm(len(paths), config.AI.Gemini.Model); err != nil {
			if errors.Is(err, errExit) {
				runLogger.Info("exiting", zap.String("reason", "got no from prompt"))
				return
			}
			runLogger.Fatal("exiting", zap.Error(err))
		}
	}

	if config.Pipeline.StepLog == "" {
		config.Pipeline.StepLog = defaultStepLog
	}

	stepLog, closeStepLog, err := logger.NewStepLog(config.Pipeline.StepLog)
	if err != nil {
		runLogger.Fatal("opening step log", zap.Error(err))
	}
	defer func() { _ = closeStepLog() }()

	p, err := pipeline.New(deps, pipeline.Options{
		Language: config.Pipeline.Language,
		Workers:  config.Pipeline.Workers,
		Observers: []pipeline.Observer{
			pipeline.NewLogObserver(runLogger),
			pipeline.NewStepLogObserver(stepLog),
		},
	})
	if err != nil {
		runLogger.Fatal("creating pipeline", zap.Error(err))
	}

	report, err := p.Run(ctx, paths)
	if err != nil {
		runLogger.Fatal("processing documents", zap.Error(err))
	}

	orchestrator, err := ranking.New(scoringConfig, tables, explainer, ranking.Options{
		MinCandidates: config.Scoring.MinCandidates,
		Coherence:     config.Scoring.Coherence,
	}, runLogger)
	if err != nil {
		runLogger.Fatal("creating ranking", zap.Error(err))
	}

	result, err := orchestrator.Rank(ctx, report.Records)
	if err != nil {
		runLogger.Fatal("ranking candidates",
			zap.Error(err),
			zap.Int("processed", len(report.Records)),
			zap.Int("skipped", len(report.Skipped)),
			zap.String("hint", fmt.Sprintf("see %s for per-document reasons", config.Pipeline.StepLog)),
		)
	}

	if err := writeResults(cmd, runOutput{RunID: runID, Ranking: result, Skipped: report.Skipped}, runLogger); err != nil {
		runLogger.Fatal("writing results", zap.Error(err))
	}
}

func confirm(documents int, model string) error {
	if model == "" {
		model = "the model"
	}

	prompt := promptui.Select{
		Label: fmt.Sprintf("Send %d documents to %s?", documents, model),
		Items: []string{PromptYes, PromptNo},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return err
	}

	switch action {
	case PromptYes:
		return nil
	case PromptNo:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func writeResults(cmd *cobra.Command, out runOutput, logger *zap.Logger) error {
	output := cmd.Flag("output").Value.String()
	if err := export.WriteJSON(output, out); err != nil {
		return err
	}

	logger.Info("ranking written",
		zap.String("filename", output),
		zap.Int("ranked", len(out.Candidates)),
		zap.Int("excluded", len(out.Excluded)),
	)

	if len(out.Candidates) > 0 {
		logger.Info("top candidate",
			zap.String("name", out.Candidates[0].Name),
			zap.Float64("sys_score", out.Candidates[0].SysScore),
		)
	}

	if xlsx := cmd.Flag("xlsx").Value.String(); xlsx != "" {
		if err := export.WriteXLSX(xlsx, out.Ranking); err != nil {
			return err
		}
		logger.Info("spreadsheet written", zap.String("filename", xlsx))
	}

	return nil
}
