package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGemini()
	c.normalizeAnthropic()
	c.normalizeDrive()
	c.normalizePipeline()
	c.normalizeAutosave()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ProjectsDir, err = expandPath(c.Paths.ProjectsDir); err != nil {
		return fmt.Errorf("paths.projects_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		}
	}
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.TextModel = strings.TrimSpace(c.Gemini.TextModel)
	if c.Gemini.TextModel == "" {
		c.Gemini.TextModel = defaultGeminiTextModel
	}
	c.Gemini.ImageModel = strings.TrimSpace(c.Gemini.ImageModel)
	if c.Gemini.ImageModel == "" {
		c.Gemini.ImageModel = defaultGeminiImageModel
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeout
	}
}

func (c *Config) normalizeAnthropic() {
	c.Anthropic.APIKey = strings.TrimSpace(c.Anthropic.APIKey)
	if c.Anthropic.APIKey == "" {
		if value, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			c.Anthropic.APIKey = strings.TrimSpace(value)
		}
	}
	c.Anthropic.Model = strings.TrimSpace(c.Anthropic.Model)
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = defaultAnthropicModel
	}
	c.Anthropic.AWSRegion = strings.TrimSpace(c.Anthropic.AWSRegion)
	c.Anthropic.AWSProfile = strings.TrimSpace(c.Anthropic.AWSProfile)
}

func (c *Config) normalizeDrive() {
	c.Drive.AccessToken = strings.TrimSpace(c.Drive.AccessToken)
	if c.Drive.AccessToken == "" {
		if value, ok := os.LookupEnv("DIRECTOR_DRIVE_TOKEN"); ok {
			c.Drive.AccessToken = strings.TrimSpace(value)
		}
	}
	c.Drive.ClientID = strings.TrimSpace(c.Drive.ClientID)
	if c.Drive.ClientID == "" {
		if value, ok := os.LookupEnv("DIRECTOR_DRIVE_CLIENT_ID"); ok {
			c.Drive.ClientID = strings.TrimSpace(value)
		}
	}
	c.Drive.BaseURL = strings.TrimRight(strings.TrimSpace(c.Drive.BaseURL), "/")
	if c.Drive.BaseURL == "" {
		c.Drive.BaseURL = defaultDriveBaseURL
	}
	c.Drive.FolderName = strings.TrimSpace(c.Drive.FolderName)
	if c.Drive.FolderName == "" {
		c.Drive.FolderName = defaultDriveFolderName
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ExtractMaxDimension <= 0 {
		c.Pipeline.ExtractMaxDimension = defaultExtractMaxDimension
	}
	if c.Pipeline.MaxEditorRefs <= 0 {
		c.Pipeline.MaxEditorRefs = defaultMaxEditorRefs
	}
}

func (c *Config) normalizeAutosave() {
	c.Autosave.Destination = strings.ToLower(strings.TrimSpace(c.Autosave.Destination))
	if c.Autosave.QuietPeriodSeconds == 0 {
		c.Autosave.QuietPeriodSeconds = defaultAutosaveQuietPeriod
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("DIRECTOR_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
