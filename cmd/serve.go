package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking over HTTP (POST /rank with a zip of CVs)",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", server.DefaultAddr, "address to listen on")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the cv-ranker server", zap.String("version", version))

	deps, explainer, err := newDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing extraction", zap.Error(err))
	}

	// Server settings fall back to the shared pipeline and scoring settings.
	if config.Server.Language == "" {
		config.Server.Language = config.Pipeline.Language
	}
	if config.Server.Workers == 0 {
		config.Server.Workers = config.Pipeline.Workers
	}
	if config.Server.Coherence == nil && viper.IsSet("scoring.coherence") {
		coherence := config.Scoring.Coherence
		config.Server.Coherence = &coherence
	}
	if config.Server.MinCandidates == 0 {
		config.Server.MinCandidates = config.Scoring.MinCandidates
	}

	srv := server.New(config.Server, deps, explainer, logger.Named("server"))
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
}
