// Package config handles Openclawfile parsing and location resolution.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "openclaw.toml"

// Gateway holds the update-procedure settings.
type Gateway struct {
	// Channel is the release channel to follow.
	Channel string `toml:"channel" yaml:"channel" json:"channel"`
	// Timeout is the overall update budget as a Go duration string,
	// e.g. "10m".
	Timeout string `toml:"timeout" yaml:"timeout" json:"timeout"`
	// TagPattern is the glob used to list release tags.
	TagPattern string `toml:"tag_pattern" yaml:"tag_pattern" json:"tag_pattern"`
}

// Assets describes the protected build-artifact directory.
type Assets struct {
	// Dir is the directory relative to the repository root, excluded from
	// cleanliness checks and only restored from commits that contain it.
	Dir string `toml:"dir" yaml:"dir" json:"dir"`
	// Entry is the file inside Dir probed to decide restorability.
	Entry string `toml:"entry" yaml:"entry" json:"entry"`
}

// Commands holds the toolchain command lines, tokenized with shell quoting
// rules before execution.
type Commands struct {
	Install     string `toml:"install" yaml:"install" json:"install"`
	Build       string `toml:"build" yaml:"build" json:"build"`
	UIBuild     string `toml:"ui_build" yaml:"ui_build" json:"ui_build"`
	HealthCheck string `toml:"health_check" yaml:"health_check" json:"health_check"`
}

// Config is the parsed Openclawfile.
type Config struct {
	Gateway  Gateway  `toml:"gateway" yaml:"gateway" json:"gateway"`
	Assets   Assets   `toml:"assets" yaml:"assets" json:"assets"`
	Commands Commands `toml:"commands" yaml:"commands" json:"commands"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Gateway: Gateway{
			Channel:    "stable",
			Timeout:    "10m",
			TagPattern: "v*",
		},
		Assets: Assets{
			Dir:   "dist",
			Entry: "index.html",
		},
		Commands: Commands{
			Install:     "npm ci",
			Build:       "npm run build",
			UIBuild:     "npm run build:ui",
			HealthCheck: "npm run doctor",
		},
	}
}

// TimeoutDuration returns the parsed update budget. Validate guarantees the
// string parses, so this never fails after a successful Load.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Gateway.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Find resolves the config file path. An explicit path wins; otherwise the
// working directory and then the user config directory are searched. An empty
// return means no file exists and defaults apply.
func Find(explicit, workdir string) string {
	if explicit != "" {
		return explicit
	}
	candidates := []string{
		filepath.Join(workdir, DefaultFileName),
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "openclaw", DefaultFileName))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
