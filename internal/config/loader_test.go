package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/openab/internal/config"
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
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.CookieName, convey.ShouldEqual, "assigned_ab_page")
				convey.So(cfg.Experiment.Pages, convey.ShouldHaveLength, 3)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("OPENAB_ADDR", ":8080")
			_ = os.Setenv("OPENAB_COOKIE_NAME", "ab")
			_ = os.Setenv("OPENAB_COOKIE_MAX_AGE", "48h")
			_ = os.Setenv("OPENAB_PERSIST_ASSIGNMENT", "true")
			_ = os.Setenv("OPENAB_MARKER_POLICY", "strict")
			_ = os.Setenv("OPENAB_EXPERIMENT_PAGES", "a.html, b.html")
			_ = os.Setenv("OPENAB_EXPERIMENT_RANDOMIZE", "0.9,0.1")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CookieName, convey.ShouldEqual, "ab")
				convey.So(cfg.CookieMaxAge, convey.ShouldEqual, 48*time.Hour)
				convey.So(cfg.PersistAssignment, convey.ShouldBeTrue)
				convey.So(cfg.MarkerPolicy, convey.ShouldEqual, "strict")
				convey.So(cfg.Experiment.Pages, convey.ShouldResemble, []string{"a.html", "b.html"})
				convey.So(cfg.Experiment.Randomize, convey.ShouldResemble, []float64{0.9, 0.1})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
route: /landing
log_format: json
experiment:
  variants:
    - name: home-a.html
      weight: 2
    - name: home-b.html
      weight: 1
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OPENAB_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Route, convey.ShouldEqual, "/landing")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Experiment.Variants, convey.ShouldResemble, []config.Variant{
					{Name: "home-a.html", Weight: 2},
					{Name: "home-b.html", Weight: 1},
				})
				convey.So(cfg.Experiment.Pages, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
cookie_name: from_file
experiment:
  pages: [x.html, y.html]
  randomize: [0.5, 0.5]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OPENAB_CONFIG", tmpFile)
			_ = os.Setenv("OPENAB_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")         // Overridden by env
				convey.So(cfg.CookieName, convey.ShouldEqual, "from_file") // From file
				convey.So(cfg.Experiment.Pages, convey.ShouldResemble, []string{"x.html", "y.html"})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OPENAB_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("OPENAB_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("OPENAB_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When variants are set through the environment", func() {
			_ = os.Setenv("OPENAB_EXPERIMENT_VARIANTS", "a.html:1,b.html:2")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the key is ignored and the default experiment kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Experiment.Variants, convey.ShouldBeEmpty)
				convey.So(cfg.Experiment.Pages, convey.ShouldHaveLength, 3)
			})
		})

		convey.Convey("When the route collides with a built-in endpoint", func() {
			_ = os.Setenv("OPENAB_ROUTE", "/stats")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails as an invalid config", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "reserved")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the route is not a literal path", func() {
			_ = os.Setenv("OPENAB_ROUTE", "/open-ab/{x")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails as an invalid config", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "wildcards")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the experiment has a negative weight", func() {
			_ = os.Setenv("OPENAB_EXPERIMENT_PAGES", "a.html,b.html")
			_ = os.Setenv("OPENAB_EXPERIMENT_RANDOMIZE", "1,-1")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails as an invalid config", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a weight is not a number", func() {
			_ = os.Setenv("OPENAB_EXPERIMENT_PAGES", "a.html")
			_ = os.Setenv("OPENAB_EXPERIMENT_RANDOMIZE", "heavy")
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
		"OPENAB_CONFIG",
		"OPENAB_ADDR",
		"OPENAB_ROUTE",
		"OPENAB_COOKIE_NAME",
		"OPENAB_COOKIE_MAX_AGE",
		"OPENAB_PERSIST_ASSIGNMENT",
		"OPENAB_MARKER_POLICY",
		"OPENAB_EXPERIMENT_PAGES",
		"OPENAB_EXPERIMENT_RANDOMIZE",
		"OPENAB_EXPERIMENT_VARIANTS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "openab-config-*.yaml")
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
