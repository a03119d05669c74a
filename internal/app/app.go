// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the aigen CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aigen/config"
	"aigen/internal/imagefile"
	"aigen/internal/logging"
	"aigen/internal/observability"
	"aigen/internal/providers"
	"aigen/internal/providers/openai"
	"aigen/internal/providers/picogen"
	"aigen/internal/providers/stability"
	"aigen/internal/quiz"
)

const metricsShutdownTimeout = 5 * time.Second

// App represents the application with all its dependencies.
// Vendor clients are built on first use so a command only needs the keys it uses.
type App struct {
	config   *config.Config
	registry *prometheus.Registry
	metrics  *observability.Metrics
	images   *imagefile.Writer

	metricsServer   *http.Server
	metricsListener net.Listener

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App and starts the metrics listener when one is configured.
// The caller must call Shutdown to release resources.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &App{
		config:   cfg,
		registry: registry,
		metrics:  observability.NewMetrics(registry),
		images:   imagefile.NewWriter(cfg.Output.Dir),
	}

	if cfg.Metrics.Addr != "" {
		if err := app.startMetrics(cfg.Metrics.Addr); err != nil {
			return nil, fmt.Errorf("failed to start metrics listener: %w", err)
		}
	}

	slog.Debug("app initialized",
		"output_dir", cfg.Output.Dir,
		"max_retries", cfg.Client.MaxRetries,
		"poll_interval", cfg.Picogen.PollInterval,
		"metrics_addr", cfg.Metrics.Addr,
	)
	return app, nil
}

func (a *App) startMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	a.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.metricsListener = ln

	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics listener stopped", logging.Err(err))
		}
	}()
	slog.Info("prometheus metrics enabled", "address", ln.Addr().String(), "endpoint", "/metrics")
	return nil
}

// MetricsAddr returns the bound metrics address, or "" when metrics are disabled.
func (a *App) MetricsAddr() string {
	if a.metricsListener == nil {
		return ""
	}
	return a.metricsListener.Addr().String()
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Metrics returns the collectors shared by every vendor client.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

func (a *App) providerOptions(baseURL string) providers.Options {
	return providers.Options{
		BaseURL:    baseURL,
		Hooks:      a.metrics.Hooks(),
		MaxRetries: a.config.Client.MaxRetries,
	}
}

// OpenAI returns a chat client. It fails when OPENAI_API_KEY is not configured.
func (a *App) OpenAI() (*openai.Client, error) {
	if err := a.config.Validate(config.VendorOpenAI); err != nil {
		return nil, err
	}
	return openai.New(a.config.OpenAI.APIKey, a.providerOptions(a.config.OpenAI.BaseURL))
}

// Stability returns an image generation client writing to the output directory.
func (a *App) Stability() (*stability.Client, error) {
	if err := a.config.Validate(config.VendorStability); err != nil {
		return nil, err
	}
	return stability.New(a.config.Stability.APIKey, a.images, a.providerOptions(a.config.Stability.BaseURL))
}

// Picogen returns a job client writing to the output directory. Extra options
// are applied after the configured poll interval and metrics observer.
func (a *App) Picogen(options ...picogen.Option) (*picogen.Client, error) {
	if err := a.config.Validate(config.VendorPicogen); err != nil {
		return nil, err
	}
	opts := append([]picogen.Option{
		picogen.WithPollInterval(a.config.Picogen.PollInterval),
		picogen.WithPollObserver(a.metrics),
	}, options...)
	return picogen.New(a.config.Picogen.APIKey, a.images, a.providerOptions(a.config.Picogen.BaseURL), opts...)
}

// Quiz returns a quiz generator backed by the chat client.
func (a *App) Quiz() (*quiz.Generator, error) {
	chat, err := a.OpenAI()
	if err != nil {
		return nil, err
	}
	return &quiz.Generator{
		Chat:        chat,
		Dir:         a.config.Output.QuizDir,
		Model:       a.config.OpenAI.Model,
		Concurrency: a.config.Quiz.Concurrency,
	}, nil
}

// Shutdown stops the metrics listener. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	defer a.shutdownMu.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	if a.metricsServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, metricsShutdownTimeout)
	defer cancel()
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics listener shutdown: %w", err)
	}
	return nil
}
