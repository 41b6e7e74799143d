package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coursebot/course-rag/internal/config"
	"github.com/coursebot/course-rag/internal/embeddings"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

// indexDimensions resolves the vector width: explicit config wins,
// otherwise it follows the embedding model.
func indexDimensions(cfg config.Config) int {
	if cfg.Index.Dimensions > 0 {
		return cfg.Index.Dimensions
	}
	return embeddings.Dimensions(cfg.Embeddings.Model)
}

var rootCmd = &cobra.Command{
	Use:   "course-rag",
	Short: "course-rag: a course question-answering system",
	Long: `course-rag ingests course notes and forum threads into a corpus,
indexes them as embedding vectors, and answers student questions
with citations back to the source material.

Commands:
  ingest  Build the document corpus from course notes and the forum
  index   Embed the corpus and populate the vector index
  serve   Start the question-answering HTTP API
  ask     Answer a single question from the command line
  mcp     Start the MCP server for corpus search`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Secrets come from the environment; .env is a convenience for
	// local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/course-rag")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// COURSERAG_INDEX_ADDRESSES -> index.addresses
	viper.SetEnvPrefix("COURSERAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	viper.BindEnv("server.addr", "COURSERAG_SERVER_ADDR")
	viper.BindEnv("corpus.file", "COURSERAG_CORPUS_FILE")
	viper.BindEnv("forum.base_url", "COURSERAG_FORUM_BASE_URL")
	viper.BindEnv("forum.category_url", "COURSERAG_FORUM_CATEGORY_URL")
	viper.BindEnv("embeddings.base_url", "COURSERAG_EMBEDDINGS_BASE_URL")
	viper.BindEnv("embeddings.model", "COURSERAG_EMBEDDINGS_MODEL")
	viper.BindEnv("index.addresses", "COURSERAG_INDEX_ADDRESSES")
	viper.BindEnv("index.name", "COURSERAG_INDEX_NAME")
	viper.BindEnv("index.username", "COURSERAG_INDEX_USERNAME")
	viper.BindEnv("index.password", "COURSERAG_INDEX_PASSWORD")
	viper.BindEnv("retrieval.search_depth", "COURSERAG_RETRIEVAL_SEARCH_DEPTH")
	viper.BindEnv("oracle.base_url", "COURSERAG_ORACLE_BASE_URL")
	viper.BindEnv("oracle.model", "COURSERAG_ORACLE_MODEL")
	viper.BindEnv("storage.endpoint", "COURSERAG_STORAGE_ENDPOINT")
	viper.BindEnv("storage.bucket", "COURSERAG_STORAGE_BUCKET")
	viper.BindEnv("mcp.name", "COURSERAG_MCP_NAME")
	viper.BindEnv("mcp.version", "COURSERAG_MCP_VERSION")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("COURSERAG_INDEX_ADDRESSES"); addrs != "" {
		cfg.Index.Addresses = strings.Split(addrs, ",")
	}

	// Secrets are environment-only, never read from the config file.
	cfg.Forum.TCookie = os.Getenv("_T_COOKIE")
	cfg.Forum.Session = os.Getenv("_FORUM_SESSION")
	cfg.Oracle.APIKey = os.Getenv("ORACLE_API_KEY")
	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = os.Getenv("COURSERAG_ORACLE_API_KEY")
	}
}
