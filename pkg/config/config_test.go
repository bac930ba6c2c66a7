package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/hybrid-recsys/pkg/fusion"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Len(t, cfg.Server.CORSAllowedOrigins, 4)
	assert.Equal(t, fusion.Dims{Text: 768, Graph: 64}, cfg.Dims())
}

func TestLoadFrom_DefaultsOnly(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, Default().Dims(), cfg.Dims())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadFrom_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
qdrant:
  host: localhost
text_embedding:
  vector_dim: 384
  params:
    temperature: 0
graph_embedding:
  constructor:
    dimensions: 32
`), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, fusion.Dims{Text: 384, Graph: 32}, cfg.Dims())
	assert.Contains(t, cfg.TextEmbedding.Params, "temperature")
	// untouched keys keep their defaults
	assert.Equal(t, "nomic-embed-text", cfg.TextEmbedding.Model)
}

func TestLoadFrom_ModelParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
text_embedding:
  params:
    num_ctx: 2048
graph_embedding:
  params:
    walk_length: 20
`), 0o600))

	var cfg *Config
	var err error
	require.NotPanics(t, func() { cfg, err = LoadFrom(path) })
	require.NoError(t, err)
	assert.EqualValues(t, 2048, cfg.TextEmbedding.Params["num_ctx"])
	assert.EqualValues(t, 20, cfg.GraphEmbedding.Params["walk_length"])
}

func TestDefault_ParamsAreMergeable(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg.TextEmbedding.Params)
	assert.NotNil(t, cfg.GraphEmbedding.Params)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	t.Setenv("RECSYS_SERVER_PORT", "9100")
	t.Setenv("RECSYS_QDRANT_API_KEY", "secret")
	t.Setenv("RECSYS_TEXT_EMBEDDING__VECTOR_DIM", "512")
	t.Setenv("RECSYS_GRAPH_EMBEDDING__CONSTRUCTOR__DIMENSIONS", "16")
	t.Setenv("RECSYS_SERVER_CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Qdrant.APIKey)
	assert.Equal(t, fusion.Dims{Text: 512, Graph: 16}, cfg.Dims())
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoadFrom_Invalid(t *testing.T) {
	t.Setenv("RECSYS_TEXT_EMBEDDING__VECTOR_DIM", "0")
	_, err := LoadFrom("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text_embedding.vector_dim")
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.TextEmbedding.VectorDim = 0
	cfg.GraphEmbedding.Constructor.Dimensions = -1
	cfg.Qdrant.Host = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text_embedding.vector_dim")
	assert.Contains(t, err.Error(), "graph_embedding.constructor.dimensions")
	assert.Contains(t, err.Error(), "qdrant.host")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", envKey("RECSYS_SERVER_PORT"))
	assert.Equal(t, "qdrant.api_key", envKey("RECSYS_QDRANT_API_KEY"))
	assert.Equal(t, "text_embedding.vector_dim", envKey("RECSYS_TEXT_EMBEDDING__VECTOR_DIM"))
	assert.Equal(t, "graph_embedding.fit.alpha", envKey("RECSYS_GRAPH_EMBEDDING__FIT__ALPHA"))
}
