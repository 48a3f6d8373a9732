package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variable names. Unprefixed names follow the Lambda function's
// existing environment.
const (
	EnvDevMode            = "DEV_MODE"
	EnvTempDir            = "TEMP_DIR"
	EnvTokenParam         = "TELEGRAM_TOKEN_PARAM"
	EnvWebhookSecretParam = "TELEGRAM_WEBHOOK_SECRET_PARAM"
	EnvPollTimeout        = "TELEGRAM_POLL_TIMEOUT"
	EnvMaxDownloadBytes   = "TELEGRAM_MAX_DOWNLOAD_BYTES"
	EnvClientConfigPath   = "DRIVE_CLIENT_CONFIG_PATH"
	EnvSessionPath        = "DRIVE_SESSION_PATH"
	EnvFolderID           = "DRIVE_FOLDER_ID"
	EnvCallbackPort       = "AUTH_CALLBACK_PORT"
	EnvInteractive        = "AUTH_INTERACTIVE"
	EnvAuthTimeout        = "AUTH_TIMEOUT"
	EnvStorageBackend     = "STORAGE_BACKEND"
	EnvCredentialsTable   = "CREDENTIALS_TABLE"
	EnvKMSKeyID           = "KMS_KEY_ID"
	EnvLockTable          = "LOCK_TABLE"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
)

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	var err error
	setErr := func(name string, e error) {
		if e != nil && err == nil {
			err = fmt.Errorf("environment variable %s: %w", name, e)
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok && v != "" {
			b, e := strconv.ParseBool(v)
			setErr(name, e)
			if e == nil {
				*dst = b
			}
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, e := strconv.Atoi(v)
			setErr(name, e)
			if e == nil {
				*dst = n
			}
		}
	}

	boolean(EnvDevMode, &cfg.DevMode)
	str(EnvTempDir, &cfg.TempDir)

	str(EnvTokenParam, &cfg.Telegram.TokenParam)
	str(EnvWebhookSecretParam, &cfg.Telegram.WebhookSecretParam)
	integer(EnvPollTimeout, &cfg.Telegram.PollTimeout)
	if v, ok := lookup(EnvMaxDownloadBytes); ok && v != "" {
		n, e := strconv.ParseInt(v, 10, 64)
		setErr(EnvMaxDownloadBytes, e)
		if e == nil {
			cfg.Telegram.MaxDownloadBytes = n
		}
	}

	str(EnvClientConfigPath, &cfg.Drive.ClientConfigPath)
	str(EnvSessionPath, &cfg.Drive.SessionPath)
	str(EnvFolderID, &cfg.Drive.FolderID)

	integer(EnvCallbackPort, &cfg.Auth.CallbackPort)
	boolean(EnvInteractive, &cfg.Auth.Interactive)
	if v, ok := lookup(EnvAuthTimeout); ok && v != "" {
		d, e := time.ParseDuration(v)
		setErr(EnvAuthTimeout, e)
		if e == nil {
			cfg.Auth.Timeout = d
		}
	}

	str(EnvStorageBackend, &cfg.Storage.Backend)
	str(EnvCredentialsTable, &cfg.Storage.Table)
	str(EnvKMSKeyID, &cfg.Storage.KMSKeyID)
	str(EnvLockTable, &cfg.Storage.LockTable)

	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFormat, &cfg.Log.Format)

	return err
}
