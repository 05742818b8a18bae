package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	ElevenLabsAPIKey       string
	ElevenLabsBaseURL      string
	ElevenLabsDefaultVoice string

	HeyGenAPIKey        string
	HeyGenAPIBaseURL    string
	HeyGenUploadBaseURL string

	AssetWebhookURL string

	VideoPollInterval    time.Duration
	VideoPollMaxAttempts int

	RenderBackground string
	RenderWidth      int
	RenderHeight     int

	AllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Provider API keys are optional at load time; each
// adapter reports a configuration error when it is invoked without one, so a
// partially configured instance can still serve the capabilities it has keys
// for (e.g. audio-only generation without HEYGEN_API_KEY).
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		ElevenLabsAPIKey:       os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL:      getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsDefaultVoice: getEnv("ELEVENLABS_DEFAULT_VOICE", "21m00Tcm4TlvDq8ikWAM"),

		HeyGenAPIKey:        os.Getenv("HEYGEN_API_KEY"),
		HeyGenAPIBaseURL:    getEnv("HEYGEN_API_BASE_URL", "https://api.heygen.com"),
		HeyGenUploadBaseURL: getEnv("HEYGEN_UPLOAD_BASE_URL", "https://upload.heygen.com"),

		AssetWebhookURL: os.Getenv("ASSET_WEBHOOK_URL"),

		VideoPollInterval:    time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 2)),
		VideoPollMaxAttempts: getEnvInt("VIDEO_POLL_MAX_ATTEMPTS", 150),

		RenderBackground: getEnv("RENDER_BACKGROUND", "#000000"),
		RenderWidth:      getEnvInt("RENDER_WIDTH", 1280),
		RenderHeight:     getEnvInt("RENDER_HEIGHT", 720),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
