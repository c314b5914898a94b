package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix      = "CLICKRANK_"
	envConfigFile  = "CLICKRANK_CONFIG"
	envDotenvFile  = "CLICKRANK_ENV_FILE"
	defaultEnvFile = ".env"
)

// Load builds a Config by layering defaults, optional files, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CLICKRANK_CONFIG is set
//  3. dotenv file (CLICKRANK_ENV_FILE, default .env) merged into the
//     process environment without overriding variables already set
//  4. legacy variables REDIS_URL and PORT
//  5. env (prefix CLICKRANK_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, loadError("yaml file", err)
		}
	}

	if err := loadDotenv(); err != nil {
		return nil, loadError("dotenv file", err)
	}

	if err := k.Load(legacyProvider(), nil); err != nil {
		return nil, loadError("legacy env", err)
	}

	// CLICKRANK_REDIS_URL -> redis_url; underscores are kept to match koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, loadError("env", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, loadError("unmarshal", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotenv() error {
	path := os.Getenv(envDotenvFile)
	if path == "" {
		path = defaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// legacyProvider maps the unprefixed variables deployments historically set.
func legacyProvider() *env.Env {
	return env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		switch key {
		case "REDIS_URL":
			return "redis_url", value
		case "PORT":
			return "addr", ":" + strings.TrimPrefix(value, ":")
		}
		return "", nil
	})
}
