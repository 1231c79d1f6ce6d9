package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/offline-coder/internal/apply"
	"github.com/kingrea/offline-coder/internal/artifact"
	"github.com/kingrea/offline-coder/internal/assistant"
	"github.com/kingrea/offline-coder/internal/filecontext"
	"github.com/kingrea/offline-coder/internal/logbook"
)

const twoFileAnswer = "[SUMMARY]\nFix off-by-one\n\n[PATCH]\n# file: a.py\n```python\nx = 1\n```\n# file: pkg/b.py\n```python\ny = 2\n\n```\n\n[NOTES]\n- loop bound\n"

type recordingBoundary struct {
	answer string
	err    error
	seen   []assistant.Conversation
}

func (b *recordingBoundary) Chat(_ context.Context, conv assistant.Conversation) (string, error) {
	b.seen = append(b.seen, conv)
	return b.answer, b.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadContextReportsBudgetAndBuildsText(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), strings.Repeat("a", 30))
	writeFile(t, filepath.Join(root, "b.md"), strings.Repeat("b", 30))
	writeFile(t, filepath.Join(root, "c.png"), "binary")

	s := New(nil,
		WithExtensions(filecontext.NewExtensions(".py", ".md")),
		WithBudget(filecontext.Budget{MaxCharsPerFile: 20, MaxTotalChars: 35}),
	)
	st, report := s.LoadContext(NewState(), []string{root})
	if report.FileCount != 2 || report.TotalChars != 35 || report.TruncatedCount != 2 {
		t.Fatalf("report = %+v", report)
	}
	if !strings.Contains(st.ContextText, "# FILE: "+filepath.Join(root, "a.py")+" (TRUNCATED)") {
		t.Fatalf("context text = %q", st.ContextText)
	}
	if strings.Contains(st.ContextText, "c.png") {
		t.Fatalf("png should not be loaded: %q", st.ContextText)
	}
	if report.ContextChars != len([]rune(st.ContextText)) {
		t.Fatalf("context chars = %d", report.ContextChars)
	}
}

func TestLoadContextReplacesPreviousContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "a")
	s := New(nil)
	st, _ := s.LoadContext(NewState(), []string{root})
	st, report := s.LoadContext(st, []string{filepath.Join(root, "missing")})
	if report.FileCount != 0 || st.ContextText != "" || len(st.Loaded.Files) != 0 {
		t.Fatalf("expected empty context, got %+v / %q", report, st.ContextText)
	}
}

func TestAskAppendsTurnsAndHoldsPatches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "x = 0\n")
	boundary := &recordingBoundary{answer: twoFileAnswer}
	s := New(boundary)

	st, _ := s.LoadContext(NewState(), []string{root})
	st, res, err := s.Ask(context.Background(), st, "  why is x wrong?  ")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !res.HasSummary || res.Summary != "Fix off-by-one" {
		t.Fatalf("summary = %q (%v)", res.Summary, res.HasSummary)
	}
	if len(res.Patches) != 2 || res.Patches[0].Path != "a.py" || res.Patches[1].Code != "y = 2\n" {
		t.Fatalf("patches = %+v", res.Patches)
	}
	if !strings.Contains(res.Notes, "loop bound") || res.RawAnswer != twoFileAnswer {
		t.Fatalf("result = %+v", res)
	}
	if st.Patches.State() != apply.StateHeld || st.Patches.Len() != 2 {
		t.Fatalf("patch set = %v/%d", st.Patches.State(), st.Patches.Len())
	}
	if st.Conversation.Len() != 3 {
		t.Fatalf("conversation len = %d, want 3", st.Conversation.Len())
	}
	sent := boundary.seen[0].Messages()
	user := sent[len(sent)-1]
	if user.Role != assistant.RoleUser || !strings.Contains(user.Content, "x = 0") || !strings.Contains(user.Content, "why is x wrong?") {
		t.Fatalf("user turn = %+v", user)
	}
}

func TestAskWithoutPatchesStillHoldsEmptySet(t *testing.T) {
	s := New(&recordingBoundary{answer: "I am not sure."})
	st, res, err := s.Ask(context.Background(), NewState(), "hello")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.HasSummary || len(res.Patches) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if st.Patches.State() != apply.StateHeld || st.Patches.Len() != 0 {
		t.Fatalf("empty extraction should still be held")
	}
}

func TestAskReplacesHeldSet(t *testing.T) {
	boundary := &recordingBoundary{answer: twoFileAnswer}
	s := New(boundary)
	st, _, err := s.Ask(context.Background(), NewState(), "first")
	if err != nil {
		t.Fatal(err)
	}
	boundary.answer = "[SUMMARY]\nnothing to change\n[PATCH]\n"
	st, _, err = s.Ask(context.Background(), st, "second")
	if err != nil {
		t.Fatal(err)
	}
	if st.Patches.Len() != 0 || st.Conversation.Len() != 5 {
		t.Fatalf("patches=%d conversation=%d", st.Patches.Len(), st.Conversation.Len())
	}
	if boundary.seen[1].Len() != 4 {
		t.Fatalf("second call should carry history, got %d turns", boundary.seen[1].Len())
	}
}

func TestAskBoundaryErrorKeepsState(t *testing.T) {
	boom := errors.New("connection refused")
	boundary := &recordingBoundary{answer: twoFileAnswer}
	s := New(boundary)
	st, _, err := s.Ask(context.Background(), NewState(), "first")
	if err != nil {
		t.Fatal(err)
	}
	boundary.err = boom
	after, _, err := s.Ask(context.Background(), st, "second")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boundary error", err)
	}
	if after.Conversation.Len() != st.Conversation.Len() || after.Patches.Len() != 2 {
		t.Fatalf("state changed after failure: conv=%d patches=%d", after.Conversation.Len(), after.Patches.Len())
	}
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	boundary := &recordingBoundary{answer: "x"}
	s := New(boundary)
	if _, _, err := s.Ask(context.Background(), NewState(), " \n "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("err = %v", err)
	}
	if len(boundary.seen) != 0 {
		t.Fatalf("boundary should not be called")
	}
}

func TestApplyRequiresTokenAndWritesRelativeToBaseDir(t *testing.T) {
	base := t.TempDir()
	s := New(&recordingBoundary{answer: twoFileAnswer}, WithBaseDir(base))
	st, _, err := s.Ask(context.Background(), NewState(), "fix")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply(st, "yes"); !errors.Is(err, apply.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if _, err := os.Stat(filepath.Join(base, "a.py")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cancelled apply wrote a file: %v", err)
	}
	written, err := s.Apply(st, apply.ConfirmToken)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(written) != 2 || written[1] != filepath.Join(base, "pkg", "b.py") {
		t.Fatalf("written = %v", written)
	}
	data, err := os.ReadFile(filepath.Join(base, "pkg", "b.py"))
	if err != nil || string(data) != "y = 2\n" {
		t.Fatalf("b.py = %q, %v", data, err)
	}
	if preview := s.Preview(st); len(preview) != 2 || preview[0].Path != "a.py" {
		t.Fatalf("preview = %+v", preview)
	}
}

func TestClearKeepsConversation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "a")
	s := New(&recordingBoundary{answer: twoFileAnswer})
	st, _ := s.LoadContext(NewState(), []string{root})
	st, _, err := s.Ask(context.Background(), st, "q")
	if err != nil {
		t.Fatal(err)
	}
	cleared := s.Clear(st)
	if cleared.ContextText != "" || len(cleared.Loaded.Files) != 0 {
		t.Fatalf("context not cleared")
	}
	if cleared.Patches.State() != apply.StateEmpty {
		t.Fatalf("patch set should be empty after clear")
	}
	if cleared.Conversation.Len() != 3 {
		t.Fatalf("conversation should survive clear, len = %d", cleared.Conversation.Len())
	}
	if _, err := s.Apply(cleared, apply.ConfirmToken); !errors.Is(err, apply.ErrNothingHeld) {
		t.Fatalf("err = %v, want ErrNothingHeld", err)
	}
}

func TestAskSavesTranscriptAndJournal(t *testing.T) {
	dir := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "a")
	store := artifact.NewStore(filepath.Join(dir, "transcripts"),
		artifact.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
		artifact.WithIDSource(func() string { return "deadbeef-0000" }),
	)
	journal, err := logbook.New(filepath.Join(dir, "logs", logbook.FileName))
	if err != nil {
		t.Fatal(err)
	}
	s := New(&recordingBoundary{answer: twoFileAnswer},
		WithTranscripts(store), WithLogbook(journal), WithModel("m1"))
	st, _ := s.LoadContext(NewState(), []string{root})
	_, res, err := s.Ask(context.Background(), st, "q")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(res.TranscriptPath) != "20260102-030405-deadbeef.md" {
		t.Fatalf("transcript path = %q", res.TranscriptPath)
	}
	history, err := s.History()
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %v, %v", history, err)
	}
	meta := history[0]
	if meta.Model != "m1" || meta.Summary != "Fix off-by-one" || len(meta.Patches) != 2 || len(meta.Inputs) != 1 {
		t.Fatalf("metadata = %+v", meta)
	}
	if meta.Notes != "- loop bound" {
		t.Fatalf("notes = %q", meta.Notes)
	}
	saved, err := s.Transcript(1)
	if err != nil || saved.Body != twoFileAnswer || saved.Metadata.Question != "q" {
		t.Fatalf("transcript = %+v, %v", saved, err)
	}
	if _, err := s.Transcript(2); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("Transcript(2) err = %v", err)
	}
	lines, total := journal.Tail(10)
	if total != 2 || !strings.Contains(lines[1], "2 patch files") {
		t.Fatalf("journal = %v (%d)", lines, total)
	}
}

func TestTranscriptWithoutStore(t *testing.T) {
	s := New(&recordingBoundary{answer: twoFileAnswer})
	if _, err := s.Transcript(1); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("err = %v, want ErrNoTranscript", err)
	}
}
