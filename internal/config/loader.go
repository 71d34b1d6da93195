package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment conventions.
const (
	EnvPrefix      = "PROFITSHARE_"
	EnvConfigFile  = EnvPrefix + "CONFIG"
	defaultEnvFile = ".env"
)

// LoadOption adjusts where Load reads from.
type LoadOption func(*loadOptions)

type loadOptions struct {
	file           string
	envFile        string
	skipValidation bool
}

// WithFile reads the YAML file at path, overriding PROFITSHARE_CONFIG.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.file = path
		}
	}
}

// WithEnvFile loads variables from a dotenv file instead of ./.env.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.envFile = path
		}
	}
}

// WithoutValidation returns the merged Config without calling Validate, for
// callers that layer more settings on top before validating.
func WithoutValidation() LoadOption {
	return func(o *loadOptions) {
		o.skipValidation = true
	}
}

// personSections are the YAML maps keyed by roster name.
var personSections = []string{"ownership", "take_home_pay"}

// rosterParser folds roster names in the per-person sections so env
// overrides, whose keys are always lower case, land on the same entry.
type rosterParser struct {
	koanf.Parser
}

func (p rosterParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	m, err := p.Parser.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	for _, section := range personSections {
		entries, ok := m[section].(map[string]interface{})
		if !ok {
			continue
		}
		folded := make(map[string]interface{}, len(entries))
		for name, v := range entries {
			key := personKey(name)
			if _, dup := folded[key]; dup {
				return nil, fmt.Errorf("%w: %s lists %q more than once", ErrInvalidConfig, section, key)
			}
			folded[key] = v
		}
		m[section] = folded
	}
	return m, nil
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) from WithFile or PROFITSHARE_CONFIG
//  3. env (prefix PROFITSHARE_), after loading a .env file when present
//
// Nested keys use a double underscore: PROFITSHARE_OWNERSHIP__DEAN=0.1.
// Roster names in the ownership and take_home_pay maps are case-insensitive.
// PROFITSHARE_PEOPLE takes a comma or space separated list.
func Load(ctx context.Context, opts ...LoadOption) (*Config, error) {
	o := loadOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		opt(&o)
	}

	// Existing environment variables win over the dotenv file.
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: env file %s: %w", ErrLoadConfig, o.envFile, err)
	}

	if o.file == "" {
		o.file = os.Getenv(EnvConfigFile)
	}

	k := koanf.New(".")

	if o.file != "" {
		if err := k.Load(file.Provider(o.file), rosterParser{yaml.Parser()}); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, o.file, err)
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "config" {
			return "", nil
		}
		key = strings.ReplaceAll(key, "__", ".")
		if key == "people" {
			return key, strings.Fields(strings.ReplaceAll(value, ",", " "))
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.skipValidation {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
