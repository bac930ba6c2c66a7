// Package config loads the service configuration from defaults, an optional
// YAML file and RECSYS_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/andrew/hybrid-recsys/pkg/fusion"
)

// EnvPrefix is stripped from environment variable names. A double underscore
// separates nesting levels: RECSYS_TEXT_EMBEDDING__VECTOR_DIM -> text_embedding.vector_dim
const EnvPrefix = "RECSYS_"

// PathEnvVar overrides the config file location
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when PathEnvVar is unset
var DefaultPaths = []string{"config.yaml", "config.yml", "/etc/recsys/config.yaml"}

// Config is the complete service configuration
type Config struct {
	Server         ServerConfig         `koanf:"server"`
	Qdrant         QdrantConfig         `koanf:"qdrant"`
	Logging        LoggingConfig        `koanf:"logging"`
	TextEmbedding  TextEmbeddingConfig  `koanf:"text_embedding"`
	GraphEmbedding GraphEmbeddingConfig `koanf:"graph_embedding"`
	Retrieval      RetrievalConfig      `koanf:"retrieval"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host               string        `koanf:"host"`
	Port               int           `koanf:"port"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
	MaxUploadBytes     int64         `koanf:"max_upload_bytes"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
}

// QdrantConfig configures the vector store connection
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey string `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// LoggingConfig configures the global logger
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// TextEmbeddingConfig configures the text encoder. Only VectorDim is read by
// the fusion core; Params is handed to the encoder unopened.
type TextEmbeddingConfig struct {
	VectorDim int            `koanf:"vector_dim"`
	Model     string         `koanf:"model"`
	OllamaURL string         `koanf:"ollama_url"`
	Timeout   time.Duration  `koanf:"timeout"`
	Workers   int            `koanf:"workers"`
	Params    map[string]any `koanf:"params"`
}

// GraphEmbeddingConfig configures the interaction-graph embedder. Only
// Constructor.Dimensions is read by the fusion core.
type GraphEmbeddingConfig struct {
	Constructor GraphConstructorConfig `koanf:"constructor"`
	Fit         GraphFitConfig         `koanf:"fit"`
	Params      map[string]any         `koanf:"params"`
}

// GraphConstructorConfig holds the model shape
type GraphConstructorConfig struct {
	Dimensions int `koanf:"dimensions"`
}

// GraphFitConfig holds training parameters
type GraphFitConfig struct {
	Iterations     int     `koanf:"iterations"`
	Regularization float64 `koanf:"regularization"`
	Alpha          float64 `koanf:"alpha"`
	Workers        int     `koanf:"workers"`
}

// RetrievalConfig bounds read requests
type RetrievalConfig struct {
	DefaultK int `koanf:"default_k"`
	MaxK     int `koanf:"max_k"`
}

// Default returns the configuration used when nothing overrides it.
// The params maps must be non-nil so file and env layers can merge keys into them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			CORSAllowedOrigins: []string{
				"http://localhost.tiangolo.com",
				"https://localhost.tiangolo.com",
				"http://localhost",
				"http://localhost:8080",
			},
			MaxUploadBytes:  64 << 20, // 64MB
			ShutdownTimeout: 10 * time.Second,
		},
		Qdrant: QdrantConfig{
			Host: "qdrant",
			Port: 6334,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		TextEmbedding: TextEmbeddingConfig{
			VectorDim: 768,
			Model:     "nomic-embed-text",
			OllamaURL: "http://localhost:11434",
			Timeout:   30 * time.Second,
			Workers:   4,
			Params:    map[string]any{},
		},
		GraphEmbedding: GraphEmbeddingConfig{
			Constructor: GraphConstructorConfig{Dimensions: 64},
			Fit: GraphFitConfig{
				Iterations:     15,
				Regularization: 0.01,
				Alpha:          40.0,
				Workers:        4,
			},
			Params: map[string]any{},
		},
		Retrieval: RetrievalConfig{
			DefaultK: 10,
			MaxK:     1000,
		},
	}
}

// Load builds the configuration from defaults, the config file (if any) and
// the environment, then validates it.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit file path; an empty path skips the file layer.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env values for list fields
	if raw, ok := k.Get("server.cors_allowed_origins").(string); ok {
		if err := k.Set("server.cors_allowed_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("failed to parse cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps RECSYS_GRAPH_EMBEDDING__CONSTRUCTOR__DIMENSIONS to graph_embedding.constructor.dimensions
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 2 && !strings.Contains(s, "__") {
		// Single-level names like RECSYS_SERVER_PORT
		return parts[0] + "." + parts[1]
	}
	return strings.ReplaceAll(s, "__", ".")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Dims returns the (text, graph) dimension pair used for fusion and collection schemas
func (c *Config) Dims() fusion.Dims {
	return fusion.Dims{
		Text:  c.TextEmbedding.VectorDim,
		Graph: c.GraphEmbedding.Constructor.Dimensions,
	}
}

// Validate checks the fields the service cannot run without
func (c *Config) Validate() error {
	var errs []error
	if c.TextEmbedding.VectorDim <= 0 {
		errs = append(errs, fmt.Errorf("text_embedding.vector_dim must be positive, got %d", c.TextEmbedding.VectorDim))
	}
	if c.GraphEmbedding.Constructor.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("graph_embedding.constructor.dimensions must be positive, got %d", c.GraphEmbedding.Constructor.Dimensions))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		errs = append(errs, fmt.Errorf("qdrant.port out of range: %d", c.Qdrant.Port))
	}
	if c.Qdrant.Host == "" {
		errs = append(errs, errors.New("qdrant.host is required"))
	}
	if c.Retrieval.MaxK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.max_k must be positive, got %d", c.Retrieval.MaxK))
	}
	return errors.Join(errs...)
}
