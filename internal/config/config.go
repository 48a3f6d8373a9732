// Package config loads relay settings from defaults, an optional TOML file,
// a .env file and the environment, in ascending precedence.
package config

import (
	"time"

	"github.com/habat-tech/todrive/internal/secret"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Log formats. FormatAuto picks JSON when stderr is not a terminal.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the resolved relay configuration.
type Config struct {
	DevMode  bool           `toml:"dev_mode"`
	TempDir  string         `toml:"temp_dir"`
	Telegram TelegramConfig `toml:"telegram"`
	Drive    DriveConfig    `toml:"drive"`
	Auth     AuthConfig     `toml:"auth"`
	Storage  StorageConfig  `toml:"storage"`
	Log      LogConfig      `toml:"log"`
}

type TelegramConfig struct {
	TokenParam         string `toml:"token_param"`
	WebhookSecretParam string `toml:"webhook_secret_param"`
	PollTimeout        int    `toml:"poll_timeout"` // seconds
	MaxDownloadBytes   int64  `toml:"max_download_bytes"`
}

type DriveConfig struct {
	ClientConfigPath string `toml:"client_config_path"`
	SessionPath      string `toml:"session_path"`
	FolderID         string `toml:"folder_id"`
}

type AuthConfig struct {
	CallbackPort int           `toml:"callback_port"`
	Interactive  bool          `toml:"interactive"`
	Timeout      time.Duration `toml:"timeout"`
}

type StorageConfig struct {
	Backend   string `toml:"backend"`
	Table     string `toml:"table"`
	KMSKeyID  string `toml:"kms_key_id"`
	LockTable string `toml:"lock_table"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			TokenParam:         secret.TelegramTokenParam,
			WebhookSecretParam: secret.WebhookSecretParam,
			PollTimeout:        60,
			MaxDownloadBytes:   20 * 1024 * 1024,
		},
		Drive: DriveConfig{
			ClientConfigPath: "drive_credentials.json",
			SessionPath:      "credentials.json",
		},
		Auth: AuthConfig{
			CallbackPort: 8090,
			Interactive:  true,
			Timeout:      5 * time.Minute,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Table:   "TodriveCredentials",
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatAuto,
		},
	}
}
