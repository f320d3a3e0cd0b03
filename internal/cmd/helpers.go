package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/patrick-slimelab/openclaw/internal/build"
	"github.com/patrick-slimelab/openclaw/internal/config"
	"github.com/patrick-slimelab/openclaw/internal/logging"
	"github.com/patrick-slimelab/openclaw/internal/output"
	"github.com/patrick-slimelab/openclaw/internal/run"
	"github.com/patrick-slimelab/openclaw/internal/updater"
)

// loadConfig resolves and loads the Openclawfile, falling back to defaults
// when no file exists.
func loadConfig() (*config.Config, error) {
	path := config.Find(configPath, workDir)
	if path == "" {
		if configPath != "" {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger builds the logger from the global verbosity flags.
func newLogger(w io.Writer) logging.Logger {
	if quiet {
		return logging.New(w, slog.LevelError)
	}
	if verbose {
		return logging.New(w, slog.LevelDebug)
	}
	return logging.New(w, slog.LevelInfo)
}

// newWriter builds the output writer from the global format flag.
func newWriter() (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(os.Stdout, format), nil
}

// buildRequest assembles an update request from config and global flags.
func buildRequest(cfg *config.Config, channel string) (updater.Request, error) {
	steps := make([]build.Step, 0, 3)
	for _, c := range []struct{ name, command string }{
		{"install", cfg.Commands.Install},
		{"build", cfg.Commands.Build},
		{"ui-build", cfg.Commands.UIBuild},
	} {
		step, err := build.ParseStep(c.name, c.command)
		if err != nil {
			return updater.Request{}, err
		}
		steps = append(steps, step)
	}
	healthStep, err := build.ParseStep("health-check", cfg.Commands.HealthCheck)
	if err != nil {
		return updater.Request{}, err
	}

	if channel == "" {
		channel = cfg.Gateway.Channel
	}
	return updater.Request{
		WorkDir:    workDir,
		Timeout:    cfg.TimeoutDuration(),
		Channel:    channel,
		Runner:     run.NewExecRunner(),
		TagPattern: cfg.Gateway.TagPattern,
		AssetDir:   cfg.Assets.Dir,
		AssetEntry: cfg.Assets.Entry,
		BuildSteps: steps,
		HealthStep: healthStep,
		Logger:     newLogger(os.Stderr),
	}, nil
}
