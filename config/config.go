// Package config provides configuration management for the application.
//
// Values are resolved in this order, later sources winning:
//  1. built-in defaults
//  2. config.yaml (optional), with ${VAR} and ${VAR:-default} placeholders expanded
//  3. .env file (optional)
//  4. process environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is read when Load is given no explicit path and the file exists.
	DefaultConfigPath = "config.yaml"
	// DefaultEnvFile is read when Load is given no explicit .env files and the file exists.
	DefaultEnvFile = ".env"
)

// Vendor names accepted by Config.Validate.
const (
	VendorOpenAI    = "openai"
	VendorStability = "stability"
	VendorPicogen   = "picogen"
)

// Config holds the application configuration
type Config struct {
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Stability StabilityConfig `yaml:"stability"`
	Picogen   PicogenConfig   `yaml:"picogen"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LogConfig       `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Client    ClientConfig    `yaml:"client"`
	Quiz      QuizConfig      `yaml:"quiz"`
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model   string `yaml:"model" env:"OPENAI_MODEL"`
}

// StabilityConfig holds Stability AI-specific configuration
type StabilityConfig struct {
	APIKey  string `yaml:"api_key" env:"STABILITY_API_KEY"`
	BaseURL string `yaml:"base_url" env:"STABILITY_BASE_URL"`
}

// PicogenConfig holds Picogen-specific configuration
type PicogenConfig struct {
	APIKey       string        `yaml:"api_key" env:"PICOGEN_API_KEY"`
	BaseURL      string        `yaml:"base_url" env:"PICOGEN_BASE_URL"`
	PollInterval time.Duration `yaml:"poll_interval" env:"AIGEN_POLL_INTERVAL"`
}

// OutputConfig controls where generated files land.
type OutputConfig struct {
	Dir     string `yaml:"dir" env:"AIGEN_OUTPUT_DIR"`
	QuizDir string `yaml:"quiz_dir" env:"AIGEN_QUIZ_DIR"`
}

// LogConfig holds slog handler settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"AIGEN_LOG_LEVEL"`
	// Format is "text" (tint) or "json".
	Format string `yaml:"format" env:"AIGEN_LOG_FORMAT"`
}

// MetricsConfig holds the Prometheus listener settings. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"AIGEN_METRICS_ADDR"`
}

// ClientConfig holds settings shared by every vendor client.
type ClientConfig struct {
	// MaxRetries of 0 keeps the fail-fast policy.
	MaxRetries int `yaml:"max_retries" env:"AIGEN_MAX_RETRIES"`
}

// QuizConfig holds quiz generator settings.
type QuizConfig struct {
	// Concurrency of 0 sends every topic at once.
	Concurrency int `yaml:"concurrency" env:"AIGEN_QUIZ_CONCURRENCY"`
}

// Load builds the configuration from defaults, the YAML file at path, the
// given .env files and the process environment.
// An empty path reads DefaultConfigPath if it exists; no envFiles reads
// DefaultEnvFile if it exists. Explicitly named files must exist.
func Load(path string, envFiles ...string) (*Config, error) {
	environment, err := buildEnvironment(envFiles)
	if err != nil {
		return nil, err
	}

	cfg := buildDefaultConfig()

	if err := applyYAML(cfg, path, environment); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg, environment); err != nil {
		return nil, err
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildDefaultConfig() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Model: "gpt-3.5-turbo",
		},
		Picogen: PicogenConfig{
			PollInterval: 5 * time.Second,
		},
		Output: OutputConfig{
			Dir:     "output/images",
			QuizDir: "output/quiz",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// buildEnvironment merges .env values under the process environment.
// Empty process variables do not mask .env values.
func buildEnvironment(envFiles []string) (map[string]string, error) {
	files := envFiles
	if len(files) == 0 {
		if _, err := os.Stat(DefaultEnvFile); err == nil {
			files = []string{DefaultEnvFile}
		}
	}

	environment := make(map[string]string)
	if len(files) > 0 {
		dotenv, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("reading env files: %w", err)
		}
		for k, v := range dotenv {
			environment[k] = v
		}
	}

	for k, v := range env.ToMap(os.Environ()) {
		if v != "" {
			environment[k] = v
		}
	}
	return environment, nil
}

func applyYAML(cfg *Config, path string, environment map[string]string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandWith(string(raw), func(key string) (string, bool) {
		v, ok := environment[key]
		return v, ok
	})
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config, environment map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// check validates settings every command depends on.
func (c *Config) check() error {
	var result *multierror.Error

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if c.Picogen.PollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("picogen.poll_interval must be positive, got %s", c.Picogen.PollInterval))
	}
	if c.Client.MaxRetries < 0 {
		result = multierror.Append(result, fmt.Errorf("client.max_retries cannot be negative, got %d", c.Client.MaxRetries))
	}
	if c.Quiz.Concurrency < 0 {
		result = multierror.Append(result, fmt.Errorf("quiz.concurrency cannot be negative, got %d", c.Quiz.Concurrency))
	}
	if c.Output.Dir == "" {
		result = multierror.Append(result, errors.New("output.dir cannot be empty"))
	}

	return result.ErrorOrNil()
}

// Validate reports every vendor in vendors whose API key is missing.
func (c *Config) Validate(vendors ...string) error {
	var result *multierror.Error
	for _, vendor := range vendors {
		var key, envName string
		switch vendor {
		case VendorOpenAI:
			key, envName = c.OpenAI.APIKey, "OPENAI_API_KEY"
		case VendorStability:
			key, envName = c.Stability.APIKey, "STABILITY_API_KEY"
		case VendorPicogen:
			key, envName = c.Picogen.APIKey, "PICOGEN_API_KEY"
		default:
			result = multierror.Append(result, fmt.Errorf("unknown vendor %q", vendor))
			continue
		}
		if key == "" {
			result = multierror.Append(result, fmt.Errorf("%s api key is not set (%s)", vendor, envName))
		}
	}
	return result.ErrorOrNil()
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandWith replaces ${VAR} and ${VAR:-default} placeholders using lookup.
// A variable that is unset or empty takes the default when one is given;
// without a default the placeholder is left untouched.
func expandWith(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]

		if value, ok := lookup(name); ok && value != "" {
			return value
		}
		if hasDefault {
			return def
		}
		return match
	})
}
