// Package main is the entry point for the aigen command line client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"aigen/config"
	"aigen/internal/app"
	"aigen/internal/core"
	"aigen/internal/logging"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

const usage = `usage: aigen [-config FILE] [-env-file FILE] <command> [flags] [args]

commands:
  models                         list OpenAI models, newest first
  chat [-model M] PROMPT         send one prompt to OpenAI
  balance                        show Stability AI credits
  engines                        list Stability AI engines
  image [-n N] PROMPT            generate N images with Stability AI
  job [-kind K] [-model M] PROMPT
                                 run a Picogen job (K: stability or midjourney) and download results
  jobs [-download]               list result URLs of completed Picogen jobs
  quiz [TOPIC...]                generate one quiz per topic with OpenAI
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aigen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "YAML config file (default: ./config.yaml if present)")
	envFile := fs.String("env-file", "", ".env file (default: ./.env if present)")
	versionFlag := fs.Bool("version", false, "Print version information")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *versionFlag {
		_, _ = fmt.Fprintf(stdout, "aigen %s (commit %s)\n", version, commit)
		return 0
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(*configPath, envFiles...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	handler, err := logging.NewHandler(stderr, logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to configure logging: %v\n", err)
		return 1
	}
	slog.SetDefault(slog.New(handler))

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize", logging.Err(err))
		return 1
	}
	defer func() {
		if err := application.Shutdown(context.Background()); err != nil {
			slog.Warn("shutdown error", logging.Err(err))
		}
	}()

	requestID := uuid.NewString()
	ctx = core.WithRequestID(ctx, requestID)

	name, cmdArgs := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", name, usage)
		return 2
	}

	slog.Debug("running command", "command", name, "request_id", requestID, "version", version)
	if err := cmd(ctx, application, cmdArgs, newPrinter(stdout, stderr)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var usageErr usageError
		if errors.As(err, &usageErr) {
			_, _ = fmt.Fprintf(stderr, "%s: %v\n", name, err)
			return 2
		}
		slog.Error("command failed", "command", name, "kind", core.KindOf(err), logging.Err(err))
		return 1
	}
	return 0
}
