package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSingleSequence(t *testing.T) {
	path := writeConfig(t, `
concat_dim: time
nitems_per_input: 3
inputs_per_chunk: 2
target_chunks:
  time: 5
cache_inputs: false
inputs:
  - data/in-0.json
  - data/in-1.json
target:
  kind: fs
  path: /tmp/out
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConcatDim != "time" || cfg.NItemsPerInput != 3 || cfg.InputsPerChunk != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.TargetChunks["time"] != 5 {
		t.Fatalf("target_chunks = %v", cfg.TargetChunks)
	}
	if cfg.CacheInputs == nil || *cfg.CacheInputs {
		t.Fatal("cache_inputs: false was not honored")
	}
	if len(cfg.Inputs) != 2 {
		t.Fatalf("inputs = %v", cfg.Inputs)
	}
	// Unset knobs take defaults.
	if cfg.LogMode != "dev" || cfg.Workers != 4 || cfg.Guard.Kind != "local" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.InputCache.Kind != "memory" || cfg.MetadataCache.Kind != "memory" {
		t.Fatalf("cache defaults not applied: %+v", cfg)
	}
}

func TestLoadMultiVariable(t *testing.T) {
	path := writeConfig(t, `
concat_dim: time
variables: [temp, salt]
sequence_len: 4
inputs_per_chunk: 2
locator_template: "data/{variable}-{position}.json"
target_chunks:
  time: 6
target:
  kind: memory
guard:
  kind: redis
  addr: localhost:6379
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Variables) != 2 || cfg.SequenceLen != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.LocatorTemplate != "data/{variable}-{position}.json" {
		t.Fatalf("locator_template = %q", cfg.LocatorTemplate)
	}
	if cfg.CacheInputs == nil || !*cfg.CacheInputs {
		t.Fatal("cache_inputs must default to true")
	}
	if cfg.Guard.Kind != "redis" || cfg.Guard.Addr != "localhost:6379" {
		t.Fatalf("guard = %+v", cfg.Guard)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing concat dim",
			body: "inputs: [a]\ntarget: {kind: memory}\n",
			want: "concat_dim",
		},
		{
			name: "inputs and variables together",
			body: "concat_dim: time\ninputs: [a]\nvariables: [temp]\nsequence_len: 1\nlocator_template: x\ntarget: {kind: memory}\n",
			want: "mutually exclusive",
		},
		{
			name: "neither inputs nor variables",
			body: "concat_dim: time\ntarget: {kind: memory}\n",
			want: "either inputs or variables",
		},
		{
			name: "variables without template",
			body: "concat_dim: time\nvariables: [temp]\nsequence_len: 2\ntarget: {kind: memory}\n",
			want: "locator_template",
		},
		{
			name: "fs target without path",
			body: "concat_dim: time\ninputs: [a]\ntarget: {kind: fs}\n",
			want: "target.path",
		},
		{
			name: "gcs cache without bucket",
			body: "concat_dim: time\ninputs: [a]\ntarget: {kind: memory}\ninput_cache: {kind: gcs}\n",
			want: "bucket",
		},
		{
			name: "unknown cache kind",
			body: "concat_dim: time\ninputs: [a]\ntarget: {kind: memory}\nmetadata_cache: {kind: s3}\n",
			want: "metadata_cache.kind",
		},
		{
			name: "redis guard without addr",
			body: "concat_dim: time\ninputs: [a]\ntarget: {kind: memory}\nguard: {kind: redis}\n",
			want: "guard.addr",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}
