package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedEnv = []string{
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"STABILITY_API_KEY", "STABILITY_BASE_URL",
	"PICOGEN_API_KEY", "PICOGEN_BASE_URL",
	"AIGEN_OUTPUT_DIR", "AIGEN_QUIZ_DIR", "AIGEN_POLL_INTERVAL",
	"AIGEN_LOG_LEVEL", "AIGEN_LOG_FORMAT", "AIGEN_METRICS_ADDR",
	"AIGEN_MAX_RETRIES", "AIGEN_QUIZ_CONCURRENCY",
}

// isolate runs the test in an empty directory with every variable Load reads cleared.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range managedEnv {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)
	assert.Equal(t, 5*time.Second, cfg.Picogen.PollInterval)
	assert.Equal(t, "output/images", cfg.Output.Dir)
	assert.Equal(t, "output/quiz", cfg.Output.QuizDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Zero(t, cfg.Client.MaxRetries)
	assert.Zero(t, cfg.Quiz.Concurrency)
	assert.Empty(t, cfg.OpenAI.APIKey)
}

func TestLoad_FromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("STABILITY_API_KEY", "sk-stability")
	t.Setenv("PICOGEN_API_KEY", "pg-token")
	t.Setenv("PICOGEN_BASE_URL", "http://localhost:9000/v1")
	t.Setenv("AIGEN_POLL_INTERVAL", "250ms")
	t.Setenv("AIGEN_MAX_RETRIES", "3")
	t.Setenv("AIGEN_QUIZ_CONCURRENCY", "4")
	t.Setenv("AIGEN_LOG_FORMAT", "json")
	t.Setenv("AIGEN_METRICS_ADDR", ":9090")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.OpenAI.APIKey)
	assert.Equal(t, "sk-stability", cfg.Stability.APIKey)
	assert.Equal(t, "pg-token", cfg.Picogen.APIKey)
	assert.Equal(t, "http://localhost:9000/v1", cfg.Picogen.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Picogen.PollInterval)
	assert.Equal(t, 3, cfg.Client.MaxRetries)
	assert.Equal(t, 4, cfg.Quiz.Concurrency)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_YAMLWithPlaceholders(t *testing.T) {
	dir := isolate(t)
	t.Setenv("PICOGEN_API_KEY", "pg-from-env")
	path := filepath.Join(dir, "aigen.yaml")
	writeFile(t, path, `
openai:
  model: gpt-4
picogen:
  api_key: "${PICOGEN_API_KEY}"
  poll_interval: "${POLL_EVERY:-2s}"
output:
  dir: /tmp/aigen-images
logging:
  level: debug
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "gpt-4", cfg.OpenAI.Model)
	assert.Equal(t, "pg-from-env", cfg.Picogen.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Picogen.PollInterval)
	assert.Equal(t, "/tmp/aigen-images", cfg.Output.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	isolate(t)
	writeFile(t, DefaultConfigPath, `
output:
  dir: from-yaml
client:
  max_retries: 1
`)
	t.Setenv("AIGEN_OUTPUT_DIR", "from-env")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Output.Dir)
	assert.Equal(t, 1, cfg.Client.MaxRetries)
}

func TestLoad_DotEnvFile(t *testing.T) {
	isolate(t)
	writeFile(t, DefaultEnvFile, "OPENAI_API_KEY=sk-from-dotenv-file\nAIGEN_LOG_LEVEL=warn\n")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "sk-from-dotenv-file", cfg.OpenAI.APIKey)
	assert.Equal(t, "warn", cfg.Logging.Level)
	_, set := os.LookupEnv("AIGEN_LOG_LEVEL")
	assert.True(t, set)
	assert.Empty(t, os.Getenv("AIGEN_LOG_LEVEL"), ".env values must not leak into the process environment")
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, "test.env")
	writeFile(t, envFile, "OPENAI_API_KEY=sk-from-dotenv-file\nSTABILITY_API_KEY=sk-stability-dotenv\n")
	t.Setenv("OPENAI_API_KEY", "sk-from-real-env")

	cfg, err := Load("", envFile)

	require.NoError(t, err)
	assert.Equal(t, "sk-from-real-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "sk-stability-dotenv", cfg.Stability.APIKey)
}

func TestLoad_DotEnvFeedsYAMLPlaceholders(t *testing.T) {
	isolate(t)
	writeFile(t, DefaultEnvFile, "MY_STABILITY_KEY=sk-indirect\n")
	writeFile(t, DefaultConfigPath, "stability:\n  api_key: ${MY_STABILITY_KEY}\n")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "sk-indirect", cfg.Stability.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) (path string, envFiles []string)
		want  string
	}{
		{
			name: "explicit config file missing",
			setup: func(t *testing.T, dir string) (string, []string) {
				return filepath.Join(dir, "missing.yaml"), nil
			},
			want: "reading config file",
		},
		{
			name: "explicit env file missing",
			setup: func(t *testing.T, dir string) (string, []string) {
				return "", []string{filepath.Join(dir, "missing.env")}
			},
			want: "reading env files",
		},
		{
			name: "malformed yaml",
			setup: func(t *testing.T, dir string) (string, []string) {
				writeFile(t, DefaultConfigPath, "output: [unclosed\n")
				return "", nil
			},
			want: "parsing config file",
		},
		{
			name: "bad duration in environment",
			setup: func(t *testing.T, dir string) (string, []string) {
				t.Setenv("AIGEN_POLL_INTERVAL", "soon")
				return "", nil
			},
			want: "parsing environment",
		},
		{
			name: "unknown log format",
			setup: func(t *testing.T, dir string) (string, []string) {
				t.Setenv("AIGEN_LOG_FORMAT", "xml")
				return "", nil
			},
			want: "logging.format",
		},
		{
			name: "negative retries and concurrency",
			setup: func(t *testing.T, dir string) (string, []string) {
				t.Setenv("AIGEN_MAX_RETRIES", "-1")
				t.Setenv("AIGEN_QUIZ_CONCURRENCY", "-2")
				return "", nil
			},
			want: "2 errors occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path, envFiles := tt.setup(t, dir)

			cfg, err := Load(path, envFiles...)

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := buildDefaultConfig()
	cfg.OpenAI.APIKey = "sk-openai"

	assert.NoError(t, cfg.Validate(VendorOpenAI))
	assert.NoError(t, cfg.Validate())

	err := cfg.Validate(VendorOpenAI, VendorStability, VendorPicogen)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STABILITY_API_KEY")
	assert.Contains(t, err.Error(), "PICOGEN_API_KEY")
	assert.NotContains(t, err.Error(), "OPENAI_API_KEY")

	err = cfg.Validate("midjourney")
	assert.ErrorContains(t, err, `unknown vendor "midjourney"`)
}
