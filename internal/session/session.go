// Package session ties the loader, the assistant boundary, the patch
// extractor and the apply workflow together. All mutable session data lives
// in a State value that every operation takes and returns.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/offline-coder/internal/apply"
	"github.com/kingrea/offline-coder/internal/artifact"
	"github.com/kingrea/offline-coder/internal/assistant"
	"github.com/kingrea/offline-coder/internal/filecontext"
	"github.com/kingrea/offline-coder/internal/logbook"
	"github.com/kingrea/offline-coder/internal/patch"
)

var (
	// ErrEmptyQuestion is returned by Ask when the question is blank.
	ErrEmptyQuestion = errors.New("session: empty question")
	// ErrNoTranscript is returned by Transcript for an index outside History.
	ErrNoTranscript = errors.New("session: no such transcript")
)

// State is everything a session remembers between operations.
type State struct {
	Conversation assistant.Conversation
	ContextText  string
	Loaded       filecontext.Batch
	Patches      apply.PatchSet
}

// NewState starts a conversation with the protocol system prompt.
func NewState() State {
	return State{Conversation: assistant.NewConversation(assistant.SystemPrompt)}
}

// LoadReport summarizes a load.
type LoadReport struct {
	FileCount      int
	TotalChars     int
	TruncatedCount int
	SkippedCount   int
	DroppedCount   int
	ContextChars   int
}

// AskResult is what one question produced.
type AskResult struct {
	Summary        string
	HasSummary     bool
	Patches        []patch.File
	Notes          string
	RawAnswer      string
	TranscriptPath string
}

// Session holds the collaborators shared by every operation.
type Session struct {
	boundary    assistant.Boundary
	extensions  filecontext.Extensions
	budget      filecontext.Budget
	reader      filecontext.Reader
	parser      patch.Options
	baseDir     string
	writer      apply.Writer
	model       string
	transcripts *artifact.Store
	journal     *logbook.Logbook
}

// Option configures a Session.
type Option func(*Session)

// WithExtensions sets the extensions picked up when walking directories.
func WithExtensions(ext filecontext.Extensions) Option {
	return func(s *Session) {
		if len(ext) > 0 {
			s.extensions = ext
		}
	}
}

// WithBudget sets the context budget.
func WithBudget(b filecontext.Budget) Option {
	return func(s *Session) {
		s.budget = b
	}
}

// WithReader replaces the file reader used while loading.
func WithReader(r filecontext.Reader) Option {
	return func(s *Session) {
		s.reader = r
	}
}

// WithPatchOptions tunes answer parsing.
func WithPatchOptions(o patch.Options) Option {
	return func(s *Session) {
		s.parser = o
	}
}

// WithBaseDir resolves relative patch paths against dir.
func WithBaseDir(dir string) Option {
	return func(s *Session) {
		s.baseDir = dir
	}
}

// WithWriter replaces the filesystem writer used by Apply.
func WithWriter(w apply.Writer) Option {
	return func(s *Session) {
		s.writer = w
	}
}

// WithModel records the model name in transcripts.
func WithModel(model string) Option {
	return func(s *Session) {
		s.model = model
	}
}

// WithTranscripts saves every answered question to store.
func WithTranscripts(store *artifact.Store) Option {
	return func(s *Session) {
		s.transcripts = store
	}
}

// WithLogbook records session events.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(s *Session) {
		s.journal = lb
	}
}

// New builds a Session around boundary.
func New(boundary assistant.Boundary, opts ...Option) *Session {
	s := &Session{
		boundary:   boundary,
		extensions: filecontext.NewExtensions(filecontext.DefaultExtensions...),
		budget:     filecontext.DefaultBudget(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extensions returns the directory walk filter.
func (s *Session) Extensions() filecontext.Extensions {
	return s.extensions
}

// Budget returns the context budget.
func (s *Session) Budget() filecontext.Budget {
	return s.budget
}

// LoadContext replaces the loaded context with the files found under paths.
// The previous context is discarded even when nothing new is found.
func (s *Session) LoadContext(st State, paths []string) (State, LoadReport) {
	var loaderOpts []filecontext.LoaderOption
	if s.reader != nil {
		loaderOpts = append(loaderOpts, filecontext.WithReader(s.reader))
	}
	batch := filecontext.LoadPaths(paths, s.extensions, s.budget, loaderOpts...)
	st.Loaded = batch
	st.ContextText = filecontext.BuildContextText(batch.Files)

	report := LoadReport{
		FileCount:      len(batch.Files),
		TotalChars:     batch.TotalChars,
		TruncatedCount: batch.TruncatedCount(),
		SkippedCount:   batch.SkippedCount(),
		DroppedCount:   batch.DroppedCount(),
		ContextChars:   len([]rune(st.ContextText)),
	}
	s.journal.Info("loaded %d files (%d chars, %d truncated, %d skipped) from %s",
		report.FileCount, report.TotalChars, report.TruncatedCount, report.SkippedCount, strings.Join(paths, " "))
	return st, report
}

// Ask sends the question with the loaded context, records both turns and
// replaces the held patch set with whatever the answer contains. When the
// backend fails the returned state equals st.
func (s *Session) Ask(ctx context.Context, st State, question string) (State, AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return st, AskResult{}, ErrEmptyQuestion
	}
	if s.boundary == nil {
		return st, AskResult{}, fmt.Errorf("session: no assistant configured")
	}
	conv := st.Conversation.Append(assistant.RoleUser, assistant.BuildUserPrompt(st.ContextText, question))
	answer, err := s.boundary.Chat(ctx, conv)
	if err != nil {
		s.journal.Error("ask failed: %v", err)
		return st, AskResult{}, fmt.Errorf("session: ask: %w", err)
	}

	reply := s.parser.Parse(answer)
	st.Conversation = conv.Append(assistant.RoleAssistant, answer)
	st.Patches = apply.Hold(reply.Files)

	result := AskResult{
		Summary:    reply.Summary,
		HasSummary: reply.HasSummary,
		Patches:    reply.Files,
		Notes:      reply.Notes,
		RawAnswer:  answer,
	}
	s.journal.Info("asked %q: %d patch files", question, len(reply.Files))
	result.TranscriptPath = s.saveTranscript(st, question, result)
	return st, result, nil
}

func (s *Session) saveTranscript(st State, question string, result AskResult) string {
	if s.transcripts == nil {
		return ""
	}
	inputs := make([]string, 0, len(st.Loaded.Files))
	for _, f := range st.Loaded.Files {
		inputs = append(inputs, f.Path)
	}
	patches := make([]string, 0, len(result.Patches))
	for _, f := range result.Patches {
		patches = append(patches, f.Path)
	}
	path, err := s.transcripts.Save(artifact.Transcript{
		Metadata: artifact.Metadata{
			Model:    s.model,
			Question: question,
			Summary:  result.Summary,
			Inputs:   inputs,
			Patches:  patches,
			Notes:    result.Notes,
		},
		Body: result.RawAnswer,
	})
	if err != nil {
		s.journal.Warn("transcript not saved: %v", err)
		return ""
	}
	return path
}

// Preview returns the bounded preview of the held patch set.
func (s *Session) Preview(st State) []apply.PreviewEntry {
	return st.Patches.Preview()
}

// Apply writes the held patch set when token matches apply.ConfirmToken.
// The held set is kept so the same answer can be applied again.
func (s *Session) Apply(st State, token string) ([]string, error) {
	written, err := st.Patches.Apply(token, apply.Options{BaseDir: s.baseDir, Writer: s.writer})
	switch {
	case errors.Is(err, apply.ErrCancelled):
		s.journal.Info("apply cancelled")
	case err != nil:
		s.journal.Error("apply stopped after %d files: %v", len(written), err)
	default:
		s.journal.Info("applied %d files: %s", len(written), strings.Join(written, " "))
	}
	return written, err
}

// Clear drops the loaded context and the held patch set. The conversation is
// kept so the model still remembers earlier turns.
func (s *Session) Clear(st State) State {
	s.journal.Info("cleared context and held patches")
	return State{Conversation: st.Conversation, Patches: st.Patches.Clear()}
}

// History lists saved transcripts, oldest first.
func (s *Session) History() ([]artifact.Metadata, error) {
	if s.transcripts == nil {
		return nil, nil
	}
	return s.transcripts.List()
}

// Transcript opens the n-th entry of History, counting from 1. The body
// checksum is verified; an edited transcript is still returned alongside
// artifact.ErrChecksumMismatch.
func (s *Session) Transcript(n int) (artifact.Transcript, error) {
	history, err := s.History()
	if err != nil {
		return artifact.Transcript{}, err
	}
	if n < 1 || n > len(history) {
		return artifact.Transcript{}, fmt.Errorf("%w: %d of %d", ErrNoTranscript, n, len(history))
	}
	return s.transcripts.Load(history[n-1].Path)
}
