package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/shlex"
)

// ValidationError describes one invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for values the update procedure cannot work
// with. Messages name the field so a user can fix the file directly.
func (c *Config) Validate() error {
	if c.Gateway.Channel == "" {
		return ValidationError{Field: "gateway.channel", Message: "must not be empty"}
	}
	if d, err := time.ParseDuration(c.Gateway.Timeout); err != nil {
		return ValidationError{Field: "gateway.timeout", Message: fmt.Sprintf("invalid duration %q", c.Gateway.Timeout)}
	} else if d <= 0 {
		return ValidationError{Field: "gateway.timeout", Message: "must be positive"}
	}
	if c.Gateway.TagPattern == "" {
		return ValidationError{Field: "gateway.tag_pattern", Message: "must not be empty"}
	}

	if err := validateRelPath("assets.dir", c.Assets.Dir); err != nil {
		return err
	}
	if c.Assets.Entry == "" {
		return ValidationError{Field: "assets.entry", Message: "must not be empty"}
	}

	commands := []struct {
		field string
		value string
	}{
		{"commands.install", c.Commands.Install},
		{"commands.build", c.Commands.Build},
		{"commands.ui_build", c.Commands.UIBuild},
		{"commands.health_check", c.Commands.HealthCheck},
	}
	for _, cmd := range commands {
		if strings.TrimSpace(cmd.value) == "" {
			return ValidationError{Field: cmd.field, Message: "must not be empty"}
		}
		if _, err := shlex.Split(cmd.value); err != nil {
			return ValidationError{Field: cmd.field, Message: fmt.Sprintf("unbalanced quoting in %q", cmd.value)}
		}
	}
	return nil
}

// validateRelPath rejects absolute or escaping paths: the protected asset
// directory must stay inside the repository.
func validateRelPath(field, p string) error {
	if p == "" {
		return ValidationError{Field: field, Message: "must not be empty"}
	}
	if strings.HasPrefix(p, "/") {
		return ValidationError{Field: field, Message: "must be relative to the repository root"}
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return ValidationError{Field: field, Message: "must not escape the repository root"}
	}
	return nil
}
