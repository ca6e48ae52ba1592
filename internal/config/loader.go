package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	EnvPrefix     = "OPENAB_"
	EnvConfigFile = "OPENAB_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if OPENAB_CONFIG is set
//  3. env (prefix OPENAB_)
//
// OPENAB_EXPERIMENT_PAGES and OPENAB_EXPERIMENT_RANDOMIZE take comma separated lists.
// experiment.variants holds structured entries and is read from the file only;
// OPENAB_EXPERIMENT_VARIANTS is ignored.
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// OPENAB_COOKIE_NAME -> cookie_name, OPENAB_EXPERIMENT_PAGES -> experiment.pages
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		if key == EnvConfigFile {
			return "", nil
		}
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if rest, ok := strings.CutPrefix(key, "experiment_"); ok {
			if rest == "variants" {
				return "", nil
			}
			items := strings.Split(value, ",")
			for i := range items {
				items[i] = strings.TrimSpace(items[i])
			}
			return "experiment." + rest, items
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Lists replace rather than merge, so start the experiment empty and
	// fall back to the default split only when nothing was configured.
	cfg := *base
	cfg.Experiment = Experiment{}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if len(cfg.Experiment.Variants) == 0 && len(cfg.Experiment.Pages) == 0 && len(cfg.Experiment.Randomize) == 0 {
		cfg.Experiment = defaultExperiment()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
