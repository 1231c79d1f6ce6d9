package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kingrea/offline-coder/internal/artifact"
	"github.com/kingrea/offline-coder/internal/assistant"
	"github.com/kingrea/offline-coder/internal/config"
	"github.com/kingrea/offline-coder/internal/logbook"
	"github.com/kingrea/offline-coder/internal/logging"
	"github.com/kingrea/offline-coder/internal/session"
)

// env bundles everything a command needs once configuration is resolved.
type env struct {
	cfg     *config.Config
	options assistant.Options
	logger  *logging.Logger
	journal *logbook.Logbook
	session *session.Session
}

func newEnv(cmd *cobra.Command) (*env, error) {
	projectDir, err := resolveProjectDir(projectFlag)
	if err != nil {
		return nil, err
	}
	if err := config.InitDir(projectDir); err != nil {
		return nil, fmt.Errorf("init %s: %w", config.Dir, err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	v, err := config.BindOverrides(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(v, setFlag); err != nil {
		return nil, err
	}

	logger, err := logging.New(projectDir)
	if err != nil {
		return nil, err
	}
	journal, err := logbook.New(filepath.Join(cfg.LogsDir(), logbook.FileName))
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("open logbook: %w", err)
	}

	a := cfg.Project.Assistant
	options := assistant.Options{
		Model:       a.Model,
		NumCtx:      a.NumCtx,
		Temperature: a.Temperature,
		TopP:        a.TopP,
	}
	logger.Debugf("config resolved from %s: endpoint=%s %s", cfg.ProjectConfigPath(), a.Endpoint, options)
	client := assistant.NewOllamaClient(a.Endpoint, options,
		assistant.WithLogger(logger),
		assistant.WithTimeout(a.RequestTimeout),
	)

	opts := []session.Option{
		session.WithExtensions(cfg.Extensions()),
		session.WithBudget(cfg.Budget()),
		session.WithPatchOptions(cfg.PatchOptions()),
		session.WithBaseDir(projectDir),
		session.WithModel(a.Model),
		session.WithLogbook(journal),
	}
	if cfg.Project.Transcripts.Enabled {
		opts = append(opts, session.WithTranscripts(artifact.NewStore(cfg.TranscriptsDir())))
	}

	return &env{
		cfg:     cfg,
		options: options,
		logger:  logger,
		journal: journal,
		session: session.New(client, opts...),
	}, nil
}

func (e *env) Close() {
	if e == nil {
		return
	}
	_ = e.logger.Close()
}

func resolveProjectDir(flagValue string) (string, error) {
	project := flagValue
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
	}
	absolute, err := filepath.Abs(project)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}
	info, err := os.Stat(absolute)
	if err != nil {
		return "", fmt.Errorf("project dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project dir %s is not a directory", absolute)
	}
	return absolute, nil
}
