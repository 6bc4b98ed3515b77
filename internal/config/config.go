package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultDownloaderFormat prefers an mp4 video stream merged with m4a audio.
const DefaultDownloaderFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	BotToken   string `envconfig:"BOT_TOKEN" validate:"required"`
	ChatID     int64  `envconfig:"CHAT_ID" validate:"required"`
	WebhookURL string `envconfig:"WEBHOOK_URL" validate:"omitempty,url"`

	HTTPPort    int           `envconfig:"PORT" default:"8443"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	DownloadDir      string        `envconfig:"DOWNLOAD_DIR" default:"./downloads"`
	DownloaderBin    string        `envconfig:"DOWNLOADER_BIN" default:"yt-dlp"`
	DownloaderFormat string        `envconfig:"DOWNLOADER_FORMAT"`
	ProgressInterval time.Duration `envconfig:"PROGRESS_INTERVAL" default:"3s"`
	UploadTimeout    time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"20m"`
	MaxManifestSize  int64         `envconfig:"MAX_MANIFEST_SIZE" default:"1048576"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
}

// WebhookEnabled reports whether updates arrive through a webhook instead of polling.
func (c *Config) WebhookEnabled() bool {
	return c.WebhookURL != ""
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive: %s", c.ProgressInterval)
	}

	if c.UploadTimeout <= 0 {
		return fmt.Errorf("upload timeout must be positive: %s", c.UploadTimeout)
	}

	if c.MaxManifestSize <= 0 {
		return fmt.Errorf("max manifest size must be positive: %d", c.MaxManifestSize)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.DownloaderBin == "" {
		return fmt.Errorf("downloader binary cannot be empty")
	}

	return nil
}
