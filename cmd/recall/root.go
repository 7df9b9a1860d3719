package recall

import (
	"fmt"
	"log/slog"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/index"
	"github.com/soundprediction/recall/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Recall: persistent memory for AI coding assistants",
	Long: `Recall stores typed knowledge records with flexible custom fields and
retrieves them through hybrid keyword and semantic search. Records link
into a relationship graph, carry quality scores, and age out through
archival and sweeping.

Configuration is read from recall.yaml (working directory or ~/.recall)
and RECALL_-prefixed environment variables.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig reads the config and applies global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return logger.NewLogger(os.Stderr, logger.Options{Level: level, NoColor: cfg.Log.NoColor})
}

// embeddingFunc builds the semantic embedding backend from config.
func embeddingFunc(cfg *config.Config) (index.EmbeddingFunc, error) {
	e := cfg.Embedding
	apiKey := e.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	switch e.Provider {
	case "", "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("embedding provider openai requires an API key (RECALL_EMBEDDING_API_KEY or OPENAI_API_KEY)")
		}
		return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(e.Model)), nil
	case "ollama":
		baseURL := e.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/api"
		}
		return chromem.NewEmbeddingFuncOllama(e.Model, baseURL), nil
	case "compat":
		return chromem.NewEmbeddingFuncOpenAICompat(e.BaseURL, apiKey, e.Model, nil), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", e.Provider)
}

// open assembles a Recall client for a command invocation.
func open(cmd *cobra.Command) (recall.Recall, *config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	log := newLogger(cfg)
	embed, err := embeddingFunc(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	r, err := recall.New(cfg, embed, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return r, cfg, log, nil
}
