// Package config loads the YAML recipe description consumed by the CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type TargetConfig struct {
	// Kind is "fs" or "memory".
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

type CacheConfig struct {
	// Kind is "fs", "memory", "gcs" or "redis".
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Addr   string `yaml:"addr"`
}

type GuardConfig struct {
	// Kind is "local" or "redis".
	Kind   string `yaml:"kind"`
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

type Config struct {
	LogMode string `yaml:"log_mode"`
	Workers int    `yaml:"workers"`

	ConcatDim      string         `yaml:"concat_dim"`
	InputsPerChunk int            `yaml:"inputs_per_chunk"`
	NItemsPerInput int            `yaml:"nitems_per_input"`
	TargetChunks   map[string]int `yaml:"target_chunks"`
	CacheInputs    *bool          `yaml:"cache_inputs"`

	// Inputs lists locators for a single-sequence recipe. Variables plus
	// SequenceLen and LocatorTemplate describe a multi-variable recipe;
	// the two forms are mutually exclusive.
	Inputs          []string `yaml:"inputs"`
	Variables       []string `yaml:"variables"`
	SequenceLen     int      `yaml:"sequence_len"`
	LocatorTemplate string   `yaml:"locator_template"`

	Target        TargetConfig `yaml:"target"`
	InputCache    CacheConfig  `yaml:"input_cache"`
	MetadataCache CacheConfig  `yaml:"metadata_cache"`
	Guard         GuardConfig  `yaml:"guard"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogMode == "" {
		c.LogMode = "dev"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.InputsPerChunk == 0 {
		c.InputsPerChunk = 1
	}
	if c.CacheInputs == nil {
		v := true
		c.CacheInputs = &v
	}
	if c.Target.Kind == "" {
		c.Target.Kind = "fs"
	}
	if c.InputCache.Kind == "" {
		c.InputCache.Kind = "memory"
	}
	if c.MetadataCache.Kind == "" {
		c.MetadataCache.Kind = "memory"
	}
	if c.Guard.Kind == "" {
		c.Guard.Kind = "local"
	}
}

func (c *Config) validate() error {
	if c.ConcatDim == "" {
		return fmt.Errorf("config: concat_dim is required")
	}
	single := len(c.Inputs) > 0
	multi := len(c.Variables) > 0
	switch {
	case single && multi:
		return fmt.Errorf("config: inputs and variables are mutually exclusive")
	case !single && !multi:
		return fmt.Errorf("config: either inputs or variables is required")
	case multi && c.SequenceLen < 1:
		return fmt.Errorf("config: sequence_len is required with variables")
	case multi && c.LocatorTemplate == "":
		return fmt.Errorf("config: locator_template is required with variables")
	}
	if c.Target.Kind == "fs" && c.Target.Path == "" {
		return fmt.Errorf("config: target.path is required for kind fs")
	}
	for name, cc := range map[string]CacheConfig{"input_cache": c.InputCache, "metadata_cache": c.MetadataCache} {
		switch cc.Kind {
		case "memory":
		case "fs":
			if cc.Path == "" {
				return fmt.Errorf("config: %s.path is required for kind fs", name)
			}
		case "gcs":
			if cc.Bucket == "" {
				return fmt.Errorf("config: %s.bucket is required for kind gcs", name)
			}
		case "redis":
			if cc.Addr == "" {
				return fmt.Errorf("config: %s.addr is required for kind redis", name)
			}
		default:
			return fmt.Errorf("config: %s.kind %q is not one of fs, memory, gcs, redis", name, cc.Kind)
		}
	}
	switch c.Guard.Kind {
	case "local":
	case "redis":
		if c.Guard.Addr == "" {
			return fmt.Errorf("config: guard.addr is required for kind redis")
		}
	default:
		return fmt.Errorf("config: guard.kind %q is not one of local, redis", c.Guard.Kind)
	}
	return nil
}
