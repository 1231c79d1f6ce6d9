// cmd/offline-coder/main.go
//
// Entry point for the offline-coder CLI. Running `offline-coder` with no
// subcommand opens the interactive REPL in the current directory; `ask` runs a
// single question for scripts.
//
// Flow:
// 1. Create .offline/ (config.yaml, logs/, transcripts/) if missing
// 2. Layer flags and OFFLINE_* environment over config.yaml
// 3. Build the assistant client and the session
// 4. Hand the session to the TUI (or the one-shot command)

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/offline-coder/internal/config"
	"github.com/kingrea/offline-coder/internal/tui"
)

var (
	projectFlag string
	setFlag     = overrideFlag{}
)

var rootCmd = &cobra.Command{
	Use:   "offline-coder",
	Short: "Ask a local model about your code and apply its patches",
	Long: `offline-coder loads project files into a bounded context, sends your question to a
local Ollama-compatible model and parses full-file patches from the reply. Patches are
only written after you type YES.`,
	SilenceUsage: true,
	RunE:         runREPL,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&projectFlag, "project", "", "project directory (defaults to the working directory)")
	flags.String(config.KeyEndpoint, "", "Ollama endpoint, e.g. http://localhost:11434")
	flags.String(config.KeyModel, "", "model name")
	flags.Int(config.KeyNumCtx, 0, "context window passed as num_ctx")
	flags.Float64(config.KeyTemperature, 0, "sampling temperature")
	flags.Float64(config.KeyTopP, 0, "nucleus sampling top_p (unset by default)")
	flags.Var(&setFlag, config.KeySet, "config.yaml override as dotted key=value (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	rt, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.journal.Info("session opened · %s", rt.options)
	app := tui.NewApp(rt.session,
		tui.WithLogbook(rt.journal),
		tui.WithContext(cmd.Context()),
		tui.WithModelOptions(rt.options),
	)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	rt.journal.Info("session closed")
	return nil
}
