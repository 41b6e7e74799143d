package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Corpus     Corpus     `mapstructure:"corpus"`
	Forum      Forum      `mapstructure:"forum"`
	Embeddings Embeddings `mapstructure:"embeddings"`
	Index      Index      `mapstructure:"index"`
	Retrieval  Retrieval  `mapstructure:"retrieval"`
	Oracle     Oracle     `mapstructure:"oracle"`
	Storage    Storage    `mapstructure:"storage"`
	MCP        MCP        `mapstructure:"mcp"`
}

// Server holds HTTP API configuration.
type Server struct {
	Addr       string `mapstructure:"addr"`
	ReadmePath string `mapstructure:"readme_path"`
}

// Corpus holds ingestion configuration: where the source material lives
// and where the built corpus is written.
type Corpus struct {
	File            string   `mapstructure:"file"`
	MarkdownSources []string `mapstructure:"markdown_sources"`
	MarkdownBaseURL string   `mapstructure:"markdown_base_url"`
	NotesDomains    []string `mapstructure:"notes_domains"`
	AcceptedAfter   string   `mapstructure:"accepted_after"`
	AcceptedBefore  string   `mapstructure:"accepted_before"`
}

// Forum holds connection details for the session-based forum.
// The two session cookies are secrets and come from the environment
// only (_T_COOKIE and _FORUM_SESSION), never from the config file.
type Forum struct {
	BaseURL     string        `mapstructure:"base_url"`
	CategoryURL string        `mapstructure:"category_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TCookie     string        `mapstructure:"-"`
	Session     string        `mapstructure:"-"`
}

// Embeddings holds configuration for the embedding inference service.
type Embeddings struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Index holds Elasticsearch vector index configuration.
type Index struct {
	Addresses  []string `mapstructure:"addresses"`
	Name       string   `mapstructure:"name"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	Dimensions int      `mapstructure:"dimensions"`
}

// Retrieval holds query-time retrieval configuration.
type Retrieval struct {
	SearchDepth int `mapstructure:"search_depth"`
}

// Oracle holds configuration for the answer-generation service.
// The API key is a secret and comes from the environment only.
type Oracle struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
	APIKey  string        `mapstructure:"-"`
}

// Storage holds optional S3/MinIO configuration for the corpus file.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	Object          string `mapstructure:"object"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:       "127.0.0.1:8000",
			ReadmePath: "README.md",
		},
		Corpus: Corpus{
			File: "articles.json",
			MarkdownSources: []string{
				"https://tds.s-anand.net/2025-01/_sidebar.md",
				"https://tds.s-anand.net/2025-01/README.md",
			},
			MarkdownBaseURL: "https://tds.s-anand.net/",
			NotesDomains:    []string{"tds.s-anand", "exam.sanand"},
			AcceptedAfter:   "2025-01-01",
			AcceptedBefore:  "2025-05-01",
		},
		Forum: Forum{
			BaseURL:     "https://discourse.onlinedegree.iitm.ac.in",
			CategoryURL: "https://discourse.onlinedegree.iitm.ac.in/c/courses/tds-kb/34",
			Timeout:     15 * time.Second,
		},
		Embeddings: Embeddings{
			BaseURL: "http://localhost:8001",
			Model:   "openai/clip-vit-base-patch32",
			Timeout: 30 * time.Second,
		},
		Index: Index{
			Addresses:  []string{"http://localhost:9200"},
			Name:       "articles",
			Dimensions: 512, // clip-vit-base-patch32 output size
		},
		Retrieval: Retrieval{
			SearchDepth: 3,
		},
		Oracle: Oracle{
			BaseURL: "https://aipipe.org/openai/v1",
			Model:   "gpt-3.5-turbo",
			Timeout: 60 * time.Second,
		},
		Storage: Storage{
			Endpoint:        "", // empty disables S3 upload of the corpus
			Bucket:          "course-rag",
			Object:          "corpus/articles.json",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		MCP: MCP{
			Name:    "course-rag",
			Version: "1.0.0",
		},
	}
}
