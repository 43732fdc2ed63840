package common

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadConfig(t *testing.T) {
	Convey("Given no config file and no overrides", t, func() {
		t.Setenv(ConfigFileEnv, "")
		cfg, err := LoadConfig()

		Convey("defaults are returned and valid", func() {
			So(err, ShouldBeNil)
			So(cfg.Server.HTTPAddr, ShouldEqual, ":8080")
			So(cfg.Vision.Provider, ShouldEqual, "anthropic")
			So(cfg.Vision.Timeout, ShouldEqual, 2*time.Minute)
			So(cfg.RateLimit.PerHour, ShouldEqual, 10)
			So(cfg.Validate(), ShouldBeNil)
		})
	})

	Convey("Given a YAML file and env overrides", t, func() {
		path := filepath.Join(t.TempDir(), "wingspan.yaml")
		yaml := "server:\n  http_addr: \":9999\"\nvision:\n  provider: openai\n  timeout: 90s\nratelimit:\n  per_hour: 3\n"
		So(os.WriteFile(path, []byte(yaml), 0o644), ShouldBeNil)
		t.Setenv(ConfigFileEnv, path)
		t.Setenv("WINGSPAN_RATELIMIT__PER_HOUR", "25")
		t.Setenv("WINGSPAN_DATABASE__DSN", "file:scans.db")

		cfg, err := LoadConfig()

		Convey("env wins over the file and the file wins over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Server.HTTPAddr, ShouldEqual, ":9999")
			So(cfg.Vision.Provider, ShouldEqual, "openai")
			So(cfg.Vision.Timeout, ShouldEqual, 90*time.Second)
			So(cfg.RateLimit.PerHour, ShouldEqual, 25)
			So(cfg.Database.DSN, ShouldEqual, "file:scans.db")
			So(cfg.Upload.MaxDimension, ShouldEqual, 2048)
		})
	})

	Convey("Given a missing config file", t, func() {
		t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := LoadConfig()

		Convey("a configuration error is returned", func() {
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Validate rejects inconsistent settings", t, func() {
		cases := []struct {
			name   string
			mutate func(c *Config)
		}{
			{"unknown provider", func(c *Config) { c.Vision.Provider = "gemini" }},
			{"no http addr", func(c *Config) { c.Server.HTTPAddr = "" }},
			{"request timeout under vision timeout", func(c *Config) { c.Server.RequestTimeout = time.Second }},
			{"zero ceilings", func(c *Config) { c.Upload.MaxRawBytes = 0 }},
			{"zero rate when enabled", func(c *Config) { c.RateLimit.PerHour = 0 }},
		}
		for _, tc := range cases {
			Convey(tc.name, func() {
				cfg := DefaultConfig()
				tc.mutate(cfg)
				So(errors.Is(cfg.Validate(), ErrConfiguration), ShouldBeTrue)
			})
		}
	})
}

func TestNewLogger(t *testing.T) {
	Convey("NewLogger honours level and format", t, func() {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
		logger.Info("hidden")
		logger.Warn("shown", "k", "v")

		So(buf.String(), ShouldNotContainSubstring, "hidden")
		So(strings.HasPrefix(buf.String(), "{"), ShouldBeTrue)
		So(buf.String(), ShouldContainSubstring, `"k":"v"`)

		buf.Reset()
		NewLogger(LogConfig{Level: "bogus"}, &buf).Info("fallback")
		So(buf.String(), ShouldContainSubstring, "msg=fallback")
	})
}
