package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/ai/gemini"
	"github.com/spigell/cv-ranker/internal/ai/heuristic"
	"github.com/spigell/cv-ranker/internal/document"
	"github.com/spigell/cv-ranker/internal/language"
	"github.com/spigell/cv-ranker/internal/pipeline"
	"github.com/spigell/cv-ranker/internal/scoring"
	"github.com/spigell/cv-ranker/internal/secrets"

	"go.uber.org/zap"
)

const providerHeuristic = "heuristic"

// newDeps wires the document, language and structuring collaborators. The explainer
// is nil when no model is available.
func newDeps(ctx context.Context, config *Config, logger *zap.Logger) (pipeline.Deps, ai.Explainer, error) {
	deps := pipeline.Deps{
		Extractor: document.NewExtractor(config.Document, logger.Named("document")),
		Detector:  language.NewDetector(0, config.Pipeline.MinConfidence),
		Logger:    logger,
	}

	structurer, explainer, err := newAI(ctx, config.AI, logger)
	if err != nil {
		return deps, nil, err
	}
	deps.Structurer = structurer

	return deps, explainer, nil
}

func newAI(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.StructuredExtractor, ai.Explainer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case providerHeuristic:
		logger.Info("using heuristic extraction", zap.String("provider", providerHeuristic))
		return heuristic.New(), nil, nil
	case "", gemini.Provider:
	default:
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	})
	if err != nil {
		if provider == gemini.Provider {
			return nil, nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}
		logger.Warn("falling back to heuristic extraction",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key-file to use the model"),
		)
		return heuristic.New(), nil, nil
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Options, logger.Named("gemini"))
	if err != nil {
		return nil, nil, err
	}

	extractor := gemini.NewExtractor(generator, logger.Named("extractor"), cfg.Gemini.MaxLogLength)
	explainer := gemini.NewExplainer(generator, logger.Named("explainer"))

	return extractor, explainer, nil
}

// loadScoring reads the scoring configuration and the optional mapping tables.
func loadScoring(cfg *ScoringConfig) (*scoring.Config, *scoring.MappingTables, error) {
	if strings.TrimSpace(cfg.Config) == "" {
		return nil, nil, fmt.Errorf("%w: scoring config file is not set (use --scoring-config or scoring.config)", scoring.ErrInvalidConfig)
	}

	scoringConfig, err := scoring.LoadConfig(cfg.Config)
	if err != nil {
		return nil, nil, err
	}

	var tables *scoring.MappingTables
	if strings.TrimSpace(cfg.Mappings) != "" {
		tables, err = scoring.LoadMappings(cfg.Mappings)
		if err != nil {
			return nil, nil, err
		}
	}

	return scoringConfig, tables, nil
}
