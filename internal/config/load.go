package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultConfigPath is read when present and no other path is given.
const DefaultConfigPath = "todrive.toml"

// DefaultEnvFile is the dotenv file read when present.
const DefaultEnvFile = ".env"

// EnvConfig overrides the config file path.
const EnvConfig = "TODRIVE_CONFIG"

// LoadOptions controls where Load reads from. Zero values use the defaults.
type LoadOptions struct {
	ConfigPath string
	EnvFile    string
	// LookupEnv replaces os.LookupEnv, for tests.
	LookupEnv func(string) (string, bool)
}

// Load resolves defaults, then the TOML file, then the .env file, then the
// environment. Variables already in the environment win over .env entries.
func Load(opts LoadOptions) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := readDotenv(envFile)
	if err != nil {
		return nil, err
	}
	lookup = layered(lookup, dotenv)

	cfg := Default()

	path, required := opts.ConfigPath, opts.ConfigPath != ""
	if !required {
		if p, ok := lookup(EnvConfig); ok && p != "" {
			path, required = p, true
		} else {
			path = DefaultConfigPath
		}
	}
	if err := decodeFile(path, required, cfg); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func readDotenv(path string) (map[string]string, error) {
	vals, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vals, nil
}

func layered(primary func(string) (string, bool), fallback map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}
		v, ok := fallback[key]
		return v, ok
	}
}

// decodeFile decodes path into cfg. A missing optional file is not an error.
// Unknown keys are.
func decodeFile(path string, required bool, cfg *Config) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}
