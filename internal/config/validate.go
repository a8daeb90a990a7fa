package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. A missing Gemini key is not an
// error here; commands that reach the provider report it themselves.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateAutosave(); err != nil {
		return err
	}
	if err := c.validateAnthropic(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.CandidateDelayMS < 0 {
		return errors.New("pipeline.candidate_delay_ms must be >= 0")
	}
	if c.Pipeline.RemasterDelayMS < 0 {
		return errors.New("pipeline.remaster_delay_ms must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"gemini.timeout_seconds":         c.Gemini.TimeoutSeconds,
		"pipeline.extract_max_dimension": c.Pipeline.ExtractMaxDimension,
		"pipeline.max_editor_refs":       c.Pipeline.MaxEditorRefs,
	})
}

func (c *Config) validateAutosave() error {
	if c.Autosave.QuietPeriodSeconds <= 0 {
		return errors.New("autosave.quiet_period_seconds must be positive")
	}
	switch c.Autosave.Destination {
	case "", "local", "cloud":
		return nil
	default:
		return fmt.Errorf("autosave.destination must be \"local\" or \"cloud\", got %q", c.Autosave.Destination)
	}
}

func (c *Config) validateAnthropic() error {
	if !c.Anthropic.Enabled || c.Anthropic.UseBedrock {
		return nil
	}
	if c.Anthropic.APIKey == "" {
		return errors.New("anthropic.api_key must be set when anthropic.enabled is true (or set ANTHROPIC_API_KEY)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
