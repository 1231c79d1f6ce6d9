package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/offline-coder/internal/apply"
	"github.com/kingrea/offline-coder/internal/session"
)

var (
	askLoad    []string
	askApply   bool
	askConfirm string
)

var askCmd = &cobra.Command{
	Use:   "ask [flags] <question>",
	Short: "Ask one question without opening the REPL",
	Long: `Loads the --load paths, asks the question and prints the summary, the patch list
and the raw answer. With --apply the patches are written after confirmation: pass
--confirm YES to skip the prompt, anything else cancels.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVar(&askLoad, "load", nil, "files or folders to load (repeatable or comma separated)")
	askCmd.Flags().BoolVar(&askApply, "apply", false, "write the parsed patches after confirmation")
	askCmd.Flags().StringVar(&askConfirm, "confirm", "", "confirmation token for --apply; prompts on stdin when empty")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	st := session.NewState()
	if len(askLoad) > 0 {
		var report session.LoadReport
		st, report = rt.session.LoadContext(st, askLoad)
		fmt.Fprintf(out, "Loaded %d files, about %d context characters.\n", report.FileCount, report.ContextChars)
		if report.TruncatedCount > 0 {
			fmt.Fprintf(out, "Note: %d files were truncated.\n", report.TruncatedCount)
		}
	}

	st, result, err := rt.session.Ask(cmd.Context(), st, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printAnswer(out, result)

	if !askApply || st.Patches.Len() == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nThese files will be overwritten:")
	for _, path := range st.Patches.Paths() {
		fmt.Fprintf(out, "- %s\n", path)
	}
	token := askConfirm
	if token == "" {
		fmt.Fprint(out, "Type YES to confirm: ")
		token = readLine(cmd.InOrStdin())
	}
	written, err := rt.session.Apply(st, strings.TrimSpace(token))
	if errors.Is(err, apply.ErrCancelled) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply stopped after %d files: %w", len(written), err)
	}
	fmt.Fprintf(out, "Wrote %d files.\n", len(written))
	return nil
}

func printAnswer(out io.Writer, result session.AskResult) {
	fmt.Fprintln(out, "\n===== SUMMARY =====")
	if result.HasSummary && result.Summary != "" {
		fmt.Fprintln(out, result.Summary)
	} else {
		fmt.Fprintln(out, "(no SUMMARY parsed)")
	}
	fmt.Fprintln(out, "\n===== PATCH FILES =====")
	if len(result.Patches) == 0 {
		fmt.Fprintln(out, "No patches parsed. Ask explicitly for a [PATCH] section with # file blocks.")
	}
	for _, f := range result.Patches {
		fmt.Fprintf(out, "- %s (%d chars)\n", f.Path, len([]rune(f.Code)))
	}
	fmt.Fprintln(out, "\n===== RAW OUTPUT =====")
	fmt.Fprintln(out, result.RawAnswer)
	if result.TranscriptPath != "" {
		fmt.Fprintf(out, "\nTranscript saved to %s\n", result.TranscriptPath)
	}
}

func readLine(in io.Reader) string {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return line
}
