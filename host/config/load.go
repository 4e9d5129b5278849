package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Load reads configuration with precedence environment > file > defaults.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	return newLoader(nil).withEnv().withFile(path).withDefaults().build()
}

type loader struct {
	// highest priority first
	configs []*Config
	environ map[string]string
	err     error
}

func newLoader(environ map[string]string) *loader {
	return &loader{configs: make([]*Config, 0, 3), environ: environ}
}

func (l *loader) build() (*Config, error) {
	if l.err != nil {
		return nil, fmt.Errorf("load config: %w", l.err)
	}

	cfg := new(Config)
	for _, c := range l.configs {
		if err := mergo.Merge(cfg, c); err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (l *loader) withEnv() *loader {
	cfg := new(Config)
	opts := env.Options{Prefix: EnvPrefix}
	if l.environ != nil {
		opts.Environment = l.environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		l.err = errors.Join(l.err, fmt.Errorf("parse environment: %w", err))
		return l
	}
	l.configs = append(l.configs, cfg)
	return l
}

func (l *loader) withFile(path string) *loader {
	if path == "" {
		return l
	}
	cfg := new(Config)
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		l.err = errors.Join(l.err, fmt.Errorf("read %s: %w", path, err))
		return l
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		l.err = errors.Join(l.err, fmt.Errorf("%s: unknown key %s", path, undecoded[0]))
		return l
	}
	l.configs = append(l.configs, cfg)
	return l
}

func (l *loader) withDefaults() *loader {
	l.configs = append(l.configs, Default())
	return l
}

// FileExists reports whether path names a readable regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
