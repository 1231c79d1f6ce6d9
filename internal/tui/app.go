// internal/tui/app.go
//
// The interactive REPL for offline-coder. It uses bubbletea, which follows The
// Elm Architecture:
//
// 1. Model: the session state plus the widgets on screen
// 2. Update: turns key presses and finished assistant calls into new state
// 3. View: renders the scrollback, the prompt and a status footer
//
// Only one session operation runs at a time. While the assistant is answering
// the prompt is locked and a spinner is shown.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/kingrea/offline-coder/internal/apply"
	"github.com/kingrea/offline-coder/internal/artifact"
	"github.com/kingrea/offline-coder/internal/assistant"
	"github.com/kingrea/offline-coder/internal/logbook"
	"github.com/kingrea/offline-coder/internal/session"
)

// inputMode is what the prompt line is currently used for.
type inputMode int

const (
	modeCommand inputMode = iota // reading REPL commands
	modeBusy                     // waiting for the assistant
	modeConfirm                  // waiting for the apply confirmation token
)

const (
	commandPlaceholder = "load <paths> · ask <question> · show · apply · clear · help"
	confirmPlaceholder = "type YES to overwrite these files, anything else cancels"
	logTailLines       = 20
)

// answerMsg carries a finished ask back into Update.
type answerMsg struct {
	question string
	state    session.State
	result   session.AskResult
	err      error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook enables the log command.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithContext sets the parent context for assistant calls.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// WithModelOptions prints the model settings in the startup banner.
func WithModelOptions(opts assistant.Options) AppOption {
	return func(a *App) {
		a.modelOptions = &opts
	}
}

// App is the main application model.
type App struct {
	session      *session.Session
	state        session.State
	logbook      *logbook.Logbook
	ctx          context.Context
	modelOptions *assistant.Options

	mode     inputMode
	lines    []string
	quitting bool

	// UI components
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	ready    bool

	width  int
	height int
}

// NewApp creates the REPL around an already configured session.
func NewApp(sess *session.Session, opts ...AppOption) *App {
	input := textinput.New()
	input.Prompt = promptStyle.Render(">>> ")
	input.Placeholder = commandPlaceholder
	input.CharLimit = 0
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = accentStyle

	app := &App{
		session: sess,
		state:   session.NewState(),
		ctx:     context.Background(),
		input:   input,
		spinner: spin,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.printBanner()
	return app
}

// State exposes the current session state.
func (a *App) State() session.State {
	return a.state
}

// Output returns the scrollback as plain lines.
func (a *App) Output() []string {
	return append([]string(nil), a.lines...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case spinner.TickMsg:
		if a.mode != modeBusy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case answerMsg:
		a.finishAsk(msg)
		return a, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			a.quitting = true
			return a, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		case tea.KeyEnter:
			if a.mode == modeBusy {
				return a, nil
			}
			value := a.input.Value()
			a.input.Reset()
			return a, a.submit(value)
		}
		if a.mode == modeBusy {
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height
	vpHeight := max(3, height-4)
	if !a.ready {
		a.viewport = viewport.New(max(20, width), vpHeight)
		a.ready = true
	} else {
		a.viewport.Width = max(20, width)
		a.viewport.Height = vpHeight
	}
	a.input.Width = max(10, width-6)
	if renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(20, width-4)),
	); err == nil {
		a.renderer = renderer
	}
	a.refresh()
}

// submit dispatches one line of input according to the current mode.
func (a *App) submit(raw string) tea.Cmd {
	if a.mode == modeConfirm {
		return a.confirmApply(raw)
	}
	line := strings.TrimSpace(raw)
	if line == "" {
		return nil
	}
	a.echo(line)
	command, rest := splitCommand(line)
	switch command {
	case "exit", "quit":
		a.quitting = true
		return tea.Quit
	case "help":
		a.printHelp()
	case "clear":
		a.state = a.session.Clear(a.state)
		a.print(okStyle.Render("Cleared loaded context and held patches."))
	case "load":
		a.load(strings.Fields(rest))
	case "ask":
		return a.startAsk(rest)
	case "show":
		a.show()
	case "apply":
		a.beginApply()
	case "log":
		a.showLog()
	case "history":
		a.showHistory(rest)
	default:
		a.print(warnStyle.Render(fmt.Sprintf("Unknown command %q, type help for the list.", command)))
	}
	a.refresh()
	return nil
}

func splitCommand(line string) (string, string) {
	command, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(command), strings.TrimSpace(rest)
}

func (a *App) load(paths []string) {
	if len(paths) == 0 {
		a.print(warnStyle.Render("Usage: load <path> [path...]"))
		return
	}
	var report session.LoadReport
	a.state, report = a.session.LoadContext(a.state, paths)
	a.print(okStyle.Render(fmt.Sprintf("Loaded %d files, about %d context characters.", report.FileCount, report.ContextChars)))
	if report.TruncatedCount > 0 {
		a.print(warnStyle.Render(fmt.Sprintf("Note: %d files were truncated. Consider loading only the key files.", report.TruncatedCount)))
	}
	if report.SkippedCount > 0 {
		a.print(mutedStyle.Render(fmt.Sprintf("%d files could not be read and were skipped.", report.SkippedCount)))
	}
	if report.DroppedCount > 0 {
		a.print(mutedStyle.Render(fmt.Sprintf("%d files did not fit the total budget.", report.DroppedCount)))
	}
}

func (a *App) startAsk(question string) tea.Cmd {
	if strings.TrimSpace(question) == "" {
		a.print(warnStyle.Render("Usage: ask <question>"))
		a.refresh()
		return nil
	}
	a.mode = modeBusy
	a.input.Blur()
	a.refresh()
	sess := a.session
	st := a.state
	ctx := a.ctx
	ask := func() tea.Msg {
		next, result, err := sess.Ask(ctx, st, question)
		return answerMsg{question: question, state: next, result: result, err: err}
	}
	return tea.Batch(a.spinner.Tick, ask)
}

func (a *App) finishAsk(msg answerMsg) {
	a.mode = modeCommand
	a.input.Focus()
	if msg.err != nil {
		a.print(errorStyle.Render(fmt.Sprintf("Ask failed: %v", msg.err)))
		a.refresh()
		return
	}
	a.state = msg.state
	res := msg.result

	a.print(headingStyle.Render("===== SUMMARY ====="))
	if res.HasSummary && res.Summary != "" {
		a.print(a.markdown(res.Summary))
	} else {
		a.print(mutedStyle.Render("(no SUMMARY parsed)"))
	}

	a.print(headingStyle.Render("===== PATCH FILES ====="))
	if len(res.Patches) == 0 {
		a.print(warnStyle.Render("No patches parsed. Ask explicitly for a [PATCH] section with # file blocks."))
	}
	for _, f := range res.Patches {
		a.print(fmt.Sprintf("- %s (%d chars)", f.Path, len([]rune(f.Code))))
	}

	if strings.TrimSpace(res.Notes) != "" {
		a.print(headingStyle.Render("===== NOTES ====="))
		a.print(a.markdown(res.Notes))
	}

	a.print(headingStyle.Render("===== RAW OUTPUT ====="))
	a.print(res.RawAnswer)
	if res.TranscriptPath != "" {
		a.print(mutedStyle.Render("Transcript saved to " + res.TranscriptPath))
	}
	a.refresh()
}

func (a *App) show() {
	if a.state.Patches.Len() == 0 {
		a.print(warnStyle.Render("No held patches, ask first."))
		return
	}
	for _, entry := range a.session.Preview(a.state) {
		a.print(mutedStyle.Render("------------------------"))
		a.print(headingStyle.Render("FILE: " + entry.Path))
		a.print(strings.Join(entry.Lines, "\n"))
		if entry.Truncated {
			a.print(mutedStyle.Render(fmt.Sprintf("... (first %d lines shown)", apply.PreviewLines)))
		}
	}
}

func (a *App) beginApply() {
	if a.state.Patches.Len() == 0 {
		a.print(warnStyle.Render("No held patches, ask first."))
		return
	}
	a.print("These files will be overwritten:")
	for _, path := range a.state.Patches.Paths() {
		a.print("- " + path)
	}
	a.mode = modeConfirm
	a.input.Placeholder = confirmPlaceholder
}

func (a *App) confirmApply(raw string) tea.Cmd {
	a.mode = modeCommand
	a.input.Placeholder = commandPlaceholder
	token := strings.TrimSpace(raw)
	a.echo(token)
	written, err := a.session.Apply(a.state, token)
	switch {
	case errors.Is(err, apply.ErrCancelled):
		a.print(mutedStyle.Render("Cancelled."))
	case err != nil:
		var writeErr *apply.WriteError
		if errors.As(err, &writeErr) {
			a.print(errorStyle.Render(fmt.Sprintf("Write failed on file %d (%s): %v", writeErr.Index+1, writeErr.Path, writeErr.Err)))
		} else {
			a.print(errorStyle.Render(fmt.Sprintf("Apply failed: %v", err)))
		}
		if len(written) > 0 {
			a.print(warnStyle.Render(fmt.Sprintf("%d files were already written.", len(written))))
		}
	default:
		a.print(okStyle.Render(fmt.Sprintf("Wrote %d files.", len(written))))
	}
	a.refresh()
	return nil
}

func (a *App) showLog() {
	if a.logbook == nil {
		a.print(mutedStyle.Render("No logbook configured."))
		return
	}
	lines, total := a.logbook.Tail(logTailLines)
	if total == 0 {
		a.print(mutedStyle.Render("Logbook is empty."))
		return
	}
	a.print(headingStyle.Render(fmt.Sprintf("Last %d of %d log entries", len(lines), total)))
	a.print(mutedStyle.Render(a.logbook.Path()))
	for _, line := range lines {
		a.print(mutedStyle.Render(line))
	}
}

func (a *App) showHistory(arg string) {
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			a.print(warnStyle.Render("Usage: history [n]"))
			return
		}
		a.showTranscript(n)
		return
	}
	history, err := a.session.History()
	if err != nil {
		a.print(errorStyle.Render(fmt.Sprintf("History unavailable: %v", err)))
		return
	}
	if len(history) == 0 {
		a.print(mutedStyle.Render("No saved transcripts."))
		return
	}
	for i, meta := range history {
		a.print(fmt.Sprintf("%3d  %s  %s  (%d patches)", i+1, meta.CreatedAt.Local().Format("2006-01-02 15:04"), oneLine(meta.Question), len(meta.Patches)))
	}
	a.print(mutedStyle.Render("Type history <n> to open one."))
}

func (a *App) showTranscript(n int) {
	t, err := a.session.Transcript(n)
	switch {
	case errors.Is(err, artifact.ErrChecksumMismatch):
		a.print(warnStyle.Render("Transcript was edited after it was saved."))
	case errors.Is(err, session.ErrNoTranscript):
		a.print(warnStyle.Render(fmt.Sprintf("No transcript %d, type history for the list.", n)))
		return
	case err != nil:
		a.print(errorStyle.Render(fmt.Sprintf("History unavailable: %v", err)))
		return
	}
	meta := t.Metadata
	a.print(headingStyle.Render(fmt.Sprintf("===== TRANSCRIPT %d =====", n)))
	a.print(mutedStyle.Render(fmt.Sprintf("%s · %s · %s", meta.CreatedAt.Local().Format("2006-01-02 15:04"), meta.Model, meta.Path)))
	a.print("Q: " + meta.Question)
	if len(meta.Patches) > 0 {
		a.print("Patches: " + strings.Join(meta.Patches, ", "))
	}
	if meta.Notes != "" {
		a.print(headingStyle.Render("===== NOTES ====="))
		a.print(a.markdown(meta.Notes))
	}
	a.print(headingStyle.Render("===== RAW OUTPUT ====="))
	a.print(t.Body)
}

func (a *App) printBanner() {
	a.print(titleStyle.Render("offline-coder"))
	if o := a.modelOptions; o != nil {
		a.print(mutedStyle.Render(o.String()))
	}
	a.printHelp()
}

func (a *App) printHelp() {
	a.print(strings.Join([]string{
		"Commands:",
		"  load <path1> <path2> ...   load files or folders into the context",
		"  ask <question>             ask about the loaded code",
		"  show                       preview the held patches (first 40 lines each)",
		"  apply                      write the held patches to disk (overwrites files)",
		"  clear                      drop the loaded context and held patches",
		"  log                        show the last session log entries",
		"  history [n]                list saved transcripts, or open number n",
		"  help                       show this help",
		"  exit                       quit",
	}, "\n"))
}

func (a *App) markdown(text string) string {
	if a.renderer == nil {
		return text
	}
	out, err := a.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func (a *App) echo(line string) {
	a.print(promptStyle.Render(">>> ") + line)
}

func (a *App) print(text string) {
	a.lines = append(a.lines, text)
}

func (a *App) refresh() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(strings.Join(a.lines, "\n"))
	a.viewport.GotoBottom()
}

func oneLine(text string) string {
	folded := strings.Join(strings.Fields(text), " ")
	runes := []rune(folded)
	if len(runes) > 60 {
		return string(runes[:57]) + "..."
	}
	return folded
}
