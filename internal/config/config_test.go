package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.Project.Assistant.Model != DefaultModel {
		t.Fatalf("expected default model %q, got %q", DefaultModel, c.Project.Assistant.Model)
	}
	if got := c.Budget(); got.MaxCharsPerFile != 8000 || got.MaxTotalChars != 80000 {
		t.Fatalf("unexpected default budget %+v", got)
	}
	if !c.Extensions().Allows("x.PY") {
		t.Fatalf("default extensions should allow .py")
	}
}

func TestInitDirWritesParseableDefaultConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	for _, dir := range []string{"logs", "transcripts"} {
		if info, err := os.Stat(filepath.Join(projectDir, Dir, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory, err=%v", dir, err)
		}
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if c.Project.Assistant.Temperature != DefaultTemperature {
		t.Fatalf("temperature = %v", c.Project.Assistant.Temperature)
	}
	if c.Project.Assistant.TopP != nil {
		t.Fatalf("top_p should be unset by default")
	}
	if !c.Project.Transcripts.Enabled {
		t.Fatalf("transcripts should default to enabled")
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
assistant:
  endpoint: http://gpu-box:11434/
  model: llama3.1:8b
  top_p: 0.9
  request_timeout: 90s
context:
  max_chars_per_file: 100
  max_total_chars: 500
  extensions: [PY, .Rs, .py]
patches:
  section_only: true
`)
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	a := c.Project.Assistant
	if a.Endpoint != "http://gpu-box:11434" || a.Model != "llama3.1:8b" {
		t.Fatalf("assistant = %+v", a)
	}
	if a.NumCtx != DefaultNumCtx {
		t.Fatalf("num_ctx should keep default, got %d", a.NumCtx)
	}
	if a.TopP == nil || *a.TopP != 0.9 {
		t.Fatalf("top_p = %v", a.TopP)
	}
	if a.RequestTimeout != 90*time.Second {
		t.Fatalf("request_timeout = %v", a.RequestTimeout)
	}
	if got := strings.Join(c.Project.Context.Extensions, ","); got != ".py,.rs" {
		t.Fatalf("extensions = %s", got)
	}
	if !c.Project.Patches.SectionOnly {
		t.Fatalf("section_only should be true")
	}
	if !c.Project.Transcripts.Enabled {
		t.Fatalf("omitted transcripts block should keep default")
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cases := map[string]string{
		"assistant:\n  endpoint: not a url\n":    "endpoint",
		"assistant:\n  temperature: 3\n":         "temperature",
		"assistant:\n  top_p: 0\n":               "top_p",
		"context:\n  max_total_chars: -1\n":      "max_total_chars",
		"context:\n  max_chars_per_file: -5\n":   "max_chars_per_file",
		"assistant:\n  request_timeout: -1s\n":   "request_timeout",
		"context:\n  max_chars_per_file: many\n": "parse",
	}
	for body, want := range cases {
		if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := NewConfig(projectDir)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("config %q: err = %v, want mention of %s", body, err, want)
		}
	}
}

func TestApplyOverridesPrecedence(t *testing.T) {
	t.Setenv("OFFLINE_MODEL", "env-model")
	t.Setenv("OFFLINE_NUM_CTX", "4096")
	t.Setenv("OFFLINE_TEMPERATURE", "0.7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(KeyModel, "", "")
	flags.Float64(KeyTemperature, 0, "")
	flags.Float64(KeyTopP, 0, "")
	if err := flags.Parse([]string{"--temperature", "0.3"}); err != nil {
		t.Fatal(err)
	}
	v, err := BindOverrides(flags)
	if err != nil {
		t.Fatalf("BindOverrides: %v", err)
	}
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sets := map[string]string{
		"context.max_total_chars": "1234",
		"patches.section_only":    "true",
	}
	if err := c.ApplyOverrides(v, sets); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	a := c.Project.Assistant
	if a.Model != "env-model" {
		t.Fatalf("model = %q, want env-model", a.Model)
	}
	if a.NumCtx != 4096 {
		t.Fatalf("num_ctx = %d, want 4096", a.NumCtx)
	}
	if a.Temperature != 0.3 {
		t.Fatalf("temperature = %v, flag should win over env", a.Temperature)
	}
	if a.TopP != nil {
		t.Fatalf("top_p should stay unset when neither flag nor env is given")
	}
	if c.Project.Context.MaxTotalChars != 1234 || !c.Project.Patches.SectionOnly {
		t.Fatalf("--set overrides not applied: %+v", c.Project)
	}
}

func TestApplyOverridesRejectsInvalidValues(t *testing.T) {
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyOverrides(nil, map[string]string{"context.max_chars_per_file": "0"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := c.ApplyOverrides(nil, map[string]string{"context..x": "1"}); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
