package main

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/jdxj/ncmconv/internal/cover"
)

type Config struct {
	Input        string        `koanf:"input"`
	Files        []string      `koanf:"file"`
	Output       string        `koanf:"output"`
	Workers      int           `koanf:"workers"`
	NoCover      bool          `koanf:"no-cover"`
	CoverTimeout time.Duration `koanf:"cover-timeout"`
	CoverBaseURL string        `koanf:"cover-base-url"`
	LogLevel     string        `koanf:"log-level"`
}

func defaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"input":          "",
		"output":         "",
		"workers":        0,
		"no-cover":       false,
		"cover-timeout":  cover.DefaultTimeout.String(),
		"cover-base-url": cover.DefaultBaseURL,
		"log-level":      "info",
	}
}

// LoadConfig layers defaults, the optional yaml file named by --config and the
// explicitly set command line flags, in that order.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaultConfig(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed loading defaults: %w", err)
	}

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed loading flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed unmarshalling config: %w", err)
	}
	if cfg.Input == "" && len(cfg.Files) == 0 {
		cfg.Input = "."
	}
	return &cfg, nil
}
