package config

const (
	defaultStateDir            = "~/.local/share/nano-director"
	defaultLogDir              = "~/.local/share/nano-director/logs"
	defaultProjectsDir         = "~/NanoDirector"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultGeminiBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiTextModel     = "gemini-3-flash-preview"
	defaultGeminiImageModel    = "gemini-3-pro-image-preview"
	defaultGeminiTimeout       = 180
	defaultAnthropicModel      = "claude-sonnet-4-5"
	defaultDriveBaseURL        = "https://www.googleapis.com"
	defaultDriveFolderName     = "Nano Director Projects"
	defaultCandidateDelayMS    = 1000
	defaultRemasterDelayMS     = 800
	defaultExtractMaxDimension = 512
	defaultMaxEditorRefs       = 14
	defaultAutosaveQuietPeriod = 5
	defaultNtfyTimeout         = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			ProjectsDir: defaultProjectsDir,
			APIBind:     defaultAPIBind,
		},
		Gemini: Gemini{
			BaseURL:        defaultGeminiBaseURL,
			TextModel:      defaultGeminiTextModel,
			ImageModel:     defaultGeminiImageModel,
			TimeoutSeconds: defaultGeminiTimeout,
		},
		Anthropic: Anthropic{
			Model: defaultAnthropicModel,
		},
		Drive: Drive{
			BaseURL:    defaultDriveBaseURL,
			FolderName: defaultDriveFolderName,
		},
		Pipeline: Pipeline{
			CandidateDelayMS:    defaultCandidateDelayMS,
			RemasterDelayMS:     defaultRemasterDelayMS,
			ExtractMaxDimension: defaultExtractMaxDimension,
			MaxEditorRefs:       defaultMaxEditorRefs,
		},
		Autosave: Autosave{
			Enabled:            true,
			QuietPeriodSeconds: defaultAutosaveQuietPeriod,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Candidates:     true,
			Panels:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
