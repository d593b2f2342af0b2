package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePlanner(); err != nil {
		return err
	}
	if err := c.validateWorkload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Store.BusyTimeoutMS < 0 {
		return errors.New("store.busy_timeout_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q is not a host:port address: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validatePlanner() error {
	if c.Planner.ReferenceWeekHours <= 0 {
		return errors.New("planner.reference_week_hours must be positive")
	}
	if c.Planner.WorkdayHours <= 0 {
		return errors.New("planner.workday_hours must be positive")
	}
	if c.Planner.AvailabilityThresholdHours <= 0 {
		return errors.New("planner.availability_threshold_hours must be positive")
	}
	if c.Planner.AvailabilityThresholdHours > c.Planner.ReferenceWeekHours {
		return fmt.Errorf("planner.availability_threshold_hours (%g) must not exceed planner.reference_week_hours (%g)",
			c.Planner.AvailabilityThresholdHours, c.Planner.ReferenceWeekHours)
	}
	return nil
}

func (c *Config) validateWorkload() error {
	if c.Workload.BottleneckRatio <= 0 || c.Workload.BottleneckRatio > 1 {
		return errors.New("workload.bottleneck_ratio must be greater than 0 and at most 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
