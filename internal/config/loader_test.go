package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/clickrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":3000")
				convey.So(cfg.RedisURL, convey.ShouldEqual, "redis://localhost:6379")
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 10)
				convey.So(cfg.LeaderboardPool, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CLICKRANK_ADDR", ":8080")
			_ = os.Setenv("CLICKRANK_REDIS_URL", "redis://cache:6379/2")
			_ = os.Setenv("CLICKRANK_LEADERBOARD_POOL", "80")
			_ = os.Setenv("CLICKRANK_COOKIE_SECURE", "false")
			_ = os.Setenv("CLICKRANK_BASE_PATH", "/api")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RedisURL, convey.ShouldEqual, "redis://cache:6379/2")
				convey.So(cfg.LeaderboardPool, convey.ShouldEqual, 80)
				convey.So(cfg.CookieSecure, convey.ShouldBeFalse)
				convey.So(cfg.BasePath, convey.ShouldEqual, "/api")
			})
		})

		convey.Convey("When loading config with legacy variables", func() {
			_ = os.Setenv("REDIS_URL", "redis://legacy:6379")
			_ = os.Setenv("PORT", "4000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the legacy values should apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RedisURL, convey.ShouldEqual, "redis://legacy:6379")
				convey.So(cfg.Addr, convey.ShouldEqual, ":4000")
			})

			convey.Convey("And prefixed variables should win over legacy ones", func() {
				_ = os.Setenv("CLICKRANK_REDIS_URL", "redis://prefixed:6379")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RedisURL, convey.ShouldEqual, "redis://prefixed:6379")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
key_prefix: "staging:"
leaderboard_limit: 5
leaderboard_pool: 20
stream_heartbeat_ms: 1000
`
			tmpFile := createTempFile("clickrank-config-*.yaml", yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CLICKRANK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.KeyPrefix, convey.ShouldEqual, "staging:")
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 5)
				convey.So(cfg.LeaderboardPool, convey.ShouldEqual, 20)
				convey.So(cfg.StreamHeartbeatMS, convey.ShouldEqual, 1000)
				convey.So(cfg.CookieName, convey.ShouldEqual, "cid") // From defaults
			})

			convey.Convey("And environment variables should override file values", func() {
				_ = os.Setenv("CLICKRANK_ADDR", ":7070")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with a dotenv file", func() {
			tmpFile := createTempFile("clickrank-*.env", "CLICKRANK_KEY_PREFIX=dot:\nREDIS_URL=redis://dotenv:6379\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CLICKRANK_ENV_FILE", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then dotenv values should reach the config", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KeyPrefix, convey.ShouldEqual, "dot:")
				convey.So(cfg.RedisURL, convey.ShouldEqual, "redis://dotenv:6379")
			})
		})

		convey.Convey("When the dotenv file does not exist", func() {
			_ = os.Setenv("CLICKRANK_ENV_FILE", "/non/existent/.env")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be ignored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempFile("clickrank-config-*.yaml", `invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CLICKRANK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CLICKRANK_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CLICKRANK_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the pool is smaller than the limit", func() {
			_ = os.Setenv("CLICKRANK_LEADERBOARD_LIMIT", "20")
			_ = os.Setenv("CLICKRANK_LEADERBOARD_POOL", "10")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CLICKRANK_LEADERBOARD_LIMIT", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CLICKRANK_CONFIG",
		"CLICKRANK_ENV_FILE",
		"CLICKRANK_ADDR",
		"CLICKRANK_REDIS_URL",
		"CLICKRANK_BASE_PATH",
		"CLICKRANK_KEY_PREFIX",
		"CLICKRANK_LEADERBOARD_LIMIT",
		"CLICKRANK_LEADERBOARD_POOL",
		"CLICKRANK_COOKIE_SECURE",
		"REDIS_URL",
		"PORT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempFile(pattern, content string) string {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
