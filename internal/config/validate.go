package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlanner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlanner() error {
	if c.Planner.MaxSegmentMiB <= 0 {
		return errors.New("planner.max_segment_mib must be positive")
	}
	if c.Planner.MinSegmentMinutes <= 0 {
		return errors.New("planner.min_segment_minutes must be positive")
	}
	if c.Planner.MaxSegmentMinutes < c.Planner.MinSegmentMinutes {
		return fmt.Errorf("planner.max_segment_minutes (%d) must be at least planner.min_segment_minutes (%d)",
			c.Planner.MaxSegmentMinutes, c.Planner.MinSegmentMinutes)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
