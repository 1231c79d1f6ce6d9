// internal/config/config.go
//
// This package handles configuration and the .offline directory structure.
// Every project the assistant runs in gets a .offline/ folder in its root
// holding config.yaml, logs and saved transcripts.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/offline-coder/internal/filecontext"
	"github.com/kingrea/offline-coder/internal/patch"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".offline"

	DefaultEndpoint    = "http://localhost:11434"
	DefaultModel       = "qwen3-coder:30b"
	DefaultNumCtx      = 8192
	DefaultTemperature = 0.15
)

const defaultProjectConfigYAML = `# offline-coder project configuration
version: 1

# Chat backend. Any Ollama-compatible /api/chat endpoint works.
assistant:
  endpoint: http://localhost:11434
  model: qwen3-coder:30b
  num_ctx: 8192
  temperature: 0.15
  # top_p: 0.9
  # 0s waits for the backend as long as it takes.
  request_timeout: 0s

# Budgets are counted in characters, not bytes.
context:
  max_chars_per_file: 8000
  max_total_chars: 80000
  extensions: [.py, .html, .txt, .md, .js, .css, .go]

patches:
  # Only look for "# file:" blocks after the [PATCH] marker.
  section_only: false

transcripts:
  enabled: true
`

// AssistantConfig configures the chat backend.
type AssistantConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	NumCtx         int           `yaml:"num_ctx"`
	Temperature    float64       `yaml:"temperature"`
	TopP           *float64      `yaml:"top_p,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ContextConfig holds the loader budgets and directory filter.
type ContextConfig struct {
	MaxCharsPerFile int      `yaml:"max_chars_per_file"`
	MaxTotalChars   int      `yaml:"max_total_chars"`
	Extensions      []string `yaml:"extensions"`
}

// PatchConfig tunes answer parsing.
type PatchConfig struct {
	SectionOnly bool `yaml:"section_only"`
}

// TranscriptConfig controls whether exchanges are saved under .offline/transcripts.
type TranscriptConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ProjectConfig models .offline/config.yaml.
type ProjectConfig struct {
	Version     int              `yaml:"version"`
	Assistant   AssistantConfig  `yaml:"assistant"`
	Context     ContextConfig    `yaml:"context"`
	Patches     PatchConfig      `yaml:"patches"`
	Transcripts TranscriptConfig `yaml:"transcripts"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory the assistant was started from
	ProjectDir string

	// StateDir is ProjectDir/.offline
	StateDir string

	Project ProjectConfig
}

// InitDir creates the .offline directory structure in the given project directory.
//
// Structure created:
// .offline/
// ├── config.yaml
// ├── logs/         <- debug log and journey log
// └── transcripts/  <- one markdown file per ask
func InitDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, Dir)
	dirs := []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "transcripts"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig creates a new Config populated from .offline/config.yaml, falling
// back to defaults when the file is missing.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// TranscriptsDir returns the path to the saved transcripts
func (c *Config) TranscriptsDir() string {
	return filepath.Join(c.StateDir, "transcripts")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// Budget returns the loader budget.
func (c *Config) Budget() filecontext.Budget {
	return filecontext.Budget{
		MaxCharsPerFile: c.Project.Context.MaxCharsPerFile,
		MaxTotalChars:   c.Project.Context.MaxTotalChars,
	}
}

// Extensions returns the directory discovery filter.
func (c *Config) Extensions() filecontext.Extensions {
	return filecontext.NewExtensions(c.Project.Context.Extensions...)
}

// PatchOptions returns the answer parsing options.
func (c *Config) PatchOptions() patch.Options {
	return patch.Options{PatchSectionOnly: c.Project.Patches.SectionOnly}
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Assistant: AssistantConfig{
			Endpoint:    DefaultEndpoint,
			Model:       DefaultModel,
			NumCtx:      DefaultNumCtx,
			Temperature: DefaultTemperature,
		},
		Context: ContextConfig{
			MaxCharsPerFile: filecontext.DefaultMaxCharsPerFile,
			MaxTotalChars:   filecontext.DefaultMaxTotalChars,
			Extensions:      append([]string(nil), filecontext.DefaultExtensions...),
		},
		Transcripts: TranscriptConfig{Enabled: true},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Assistant.Endpoint) == "" {
		pc.Assistant.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(pc.Assistant.Model) == "" {
		pc.Assistant.Model = DefaultModel
	}
	if pc.Assistant.NumCtx == 0 {
		pc.Assistant.NumCtx = DefaultNumCtx
	}
	if len(pc.Context.Extensions) == 0 {
		pc.Context.Extensions = append([]string(nil), filecontext.DefaultExtensions...)
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Assistant.Endpoint = strings.TrimRight(strings.TrimSpace(pc.Assistant.Endpoint), "/")
	pc.Assistant.Model = strings.TrimSpace(pc.Assistant.Model)
	exts := make([]string, 0, len(pc.Context.Extensions))
	for _, ext := range pc.Context.Extensions {
		normalized := filecontext.NormalizeExtension(ext)
		if normalized == "" || contains(exts, normalized) {
			continue
		}
		exts = append(exts, normalized)
	}
	pc.Context.Extensions = exts
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if err := pc.Assistant.validate(); err != nil {
		return fmt.Errorf("assistant: %w", err)
	}
	if pc.Context.MaxCharsPerFile <= 0 {
		return fmt.Errorf("context.max_chars_per_file must be > 0")
	}
	if pc.Context.MaxTotalChars <= 0 {
		return fmt.Errorf("context.max_total_chars must be > 0")
	}
	if len(pc.Context.Extensions) == 0 {
		return fmt.Errorf("context.extensions must list at least one extension")
	}
	return nil
}

func (ac AssistantConfig) validate() error {
	u, err := url.Parse(ac.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint %q must be an absolute URL", ac.Endpoint)
	}
	if ac.Model == "" {
		return fmt.Errorf("model is required")
	}
	if ac.NumCtx < 0 {
		return fmt.Errorf("num_ctx must be >= 0")
	}
	if ac.Temperature < 0 || ac.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if ac.TopP != nil && (*ac.TopP <= 0 || *ac.TopP > 1) {
		return fmt.Errorf("top_p must be in (0, 1]")
	}
	if ac.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be >= 0")
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
