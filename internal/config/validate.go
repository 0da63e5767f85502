package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants that normalization cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Categories.Primary) == "" {
		problems = append(problems, "categories.primary must not be empty")
	}
	for _, category := range c.AllCategories() {
		if strings.ContainsAny(category, "/\\ .") {
			problems = append(problems, fmt.Sprintf("category %q must not contain path separators or spaces", category))
		}
	}
	if c.Pipeline.StageTimeout <= 0 {
		problems = append(problems, "pipeline.stage_timeout must be positive")
	}
	if c.Export.Enabled && c.Export.DSN == "" {
		problems = append(problems, "export.dsn is required when export.enabled is true (or set SUMIKA_EXPORT_DSN)")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
