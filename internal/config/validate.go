package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// Validate reports every invalid setting at once.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Storage.Backend {
	case BackendFile:
		if cfg.Drive.ClientConfigPath == "" || cfg.Drive.SessionPath == "" {
			errs = append(errs, errors.New("drive.client_config_path and drive.session_path are required for the file backend"))
		}
	case BackendDynamoDB:
		if cfg.Storage.Table == "" {
			errs = append(errs, errors.New("storage.table is required for the dynamodb backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: must be one of file, dynamodb, memory", cfg.Storage.Backend))
	}

	if cfg.Telegram.TokenParam == "" {
		errs = append(errs, errors.New("telegram.token_param is required"))
	}
	if cfg.Telegram.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("telegram.poll_timeout %d: must not be negative", cfg.Telegram.PollTimeout))
	}
	if cfg.Telegram.MaxDownloadBytes <= 0 {
		errs = append(errs, fmt.Errorf("telegram.max_download_bytes %d: must be positive", cfg.Telegram.MaxDownloadBytes))
	}

	if cfg.Auth.CallbackPort < 0 || cfg.Auth.CallbackPort > 65535 {
		errs = append(errs, fmt.Errorf("auth.callback_port %d: out of range", cfg.Auth.CallbackPort))
	}
	if cfg.Auth.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("auth.timeout %s: must be positive", cfg.Auth.Timeout))
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch cfg.Log.Format {
	case FormatAuto, FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be one of auto, text, json", cfg.Log.Format))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}
