package cmd

import (
	"errors"
	"log"

	"github.com/spigell/cv-ranker/internal/ai/gemini"
	"github.com/spigell/cv-ranker/internal/document"
	"github.com/spigell/cv-ranker/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "cv-ranker"
)

type Config struct {
	AI       *AIConfig       `mapstructure:"ai"`
	Document document.Config `mapstructure:"document"`
	Pipeline *PipelineConfig `mapstructure:"pipeline"`
	Scoring  *ScoringConfig  `mapstructure:"scoring"`
	Server   server.Config   `mapstructure:"server"`
}

type AIConfig struct {
	// Provider is gemini or heuristic. Empty means gemini when a key is available.
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key" json:"-"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	gemini.Options `mapstructure:",squash"`
}

type PipelineConfig struct {
	Language      string  `mapstructure:"language"`
	Workers       int     `mapstructure:"workers"`
	MinConfidence float64 `mapstructure:"min-confidence"`
	StepLog       string  `mapstructure:"step-log"`
}

type ScoringConfig struct {
	Config        string  `mapstructure:"config"`
	Mappings      string  `mapstructure:"mappings"`
	Coherence     float64 `mapstructure:"coherence"`
	MinCandidates int     `mapstructure:"min-candidates"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-ranker extracts structured data from CV documents and ranks candidates with a configurable scoring model",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("scoring-config", "", "scoring configuration file (weights, subweights, policies)")
	rootCmd.PersistentFlags().String("mappings", "", "mapping tables file (degrees, university tiers, venues)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("scoring.config", rootCmd.PersistentFlags().Lookup("scoring-config"))
	viper.BindPFlag("scoring.mappings", rootCmd.PersistentFlags().Lookup("mappings"))
}

func initConfig() {
	// Only run and serve read the config file.
	if runCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Flags and environment are enough without the default file.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Pipeline == nil {
		config.Pipeline = &PipelineConfig{}
	}
	if config.Scoring == nil {
		config.Scoring = &ScoringConfig{}
	}

	return config, nil
}
