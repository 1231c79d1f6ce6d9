package filecontext

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	DefaultMaxCharsPerFile = 8000
	DefaultMaxTotalChars   = 80000
)

// ErrBudgetExhausted is recorded on candidates dropped because the batch is full.
var ErrBudgetExhausted = errors.New("filecontext: total budget exhausted")

// Budget bounds how much text a load batch may contain.
type Budget struct {
	MaxCharsPerFile int
	MaxTotalChars   int
}

// DefaultBudget returns the stock per-file and total limits.
func DefaultBudget() Budget {
	return Budget{
		MaxCharsPerFile: DefaultMaxCharsPerFile,
		MaxTotalChars:   DefaultMaxTotalChars,
	}
}

// LoadedFile is one file as it will appear in the assistant context.
type LoadedFile struct {
	Path      string
	Content   string
	Truncated bool
}

// Chars returns the content length in characters.
func (f LoadedFile) Chars() int {
	return utf8.RuneCountInString(f.Content)
}

// Status classifies what happened to a candidate during Load.
type Status int

const (
	StatusLoaded  Status = iota // content emitted, possibly truncated
	StatusSkipped               // read failed
	StatusDropped               // total budget already exhausted
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusSkipped:
		return "skipped"
	case StatusDropped:
		return "dropped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result records the outcome for one candidate path.
type Result struct {
	Path   string
	Status Status
	Reason error
}

// Batch is the output of a single Load call.
type Batch struct {
	Files      []LoadedFile
	Results    []Result
	TotalChars int
}

// TruncatedCount returns how many loaded files were cut to fit a budget.
func (b Batch) TruncatedCount() int {
	count := 0
	for _, f := range b.Files {
		if f.Truncated {
			count++
		}
	}
	return count
}

// SkippedCount returns how many candidates could not be read.
func (b Batch) SkippedCount() int {
	return b.countStatus(StatusSkipped)
}

// DroppedCount returns how many candidates were left out once the budget ran out.
func (b Batch) DroppedCount() int {
	return b.countStatus(StatusDropped)
}

func (b Batch) countStatus(status Status) int {
	count := 0
	for _, r := range b.Results {
		if r.Status == status {
			count++
		}
	}
	return count
}

// Reader abstracts file access so tests can fail reads deterministically.
type Reader interface {
	ReadFile(name string) ([]byte, error)
}

type osReader struct{}

func (osReader) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Loader reads candidates under a Budget.
type Loader struct {
	budget Budget
	reader Reader
}

// LoaderOption customizes a Loader during construction.
type LoaderOption func(*Loader)

// WithReader overrides the file reader.
func WithReader(r Reader) LoaderOption {
	return func(l *Loader) {
		if r != nil {
			l.reader = r
		}
	}
}

// NewLoader builds a loader reading from the local filesystem by default.
func NewLoader(budget Budget, opts ...LoaderOption) *Loader {
	l := &Loader{budget: budget, reader: osReader{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads candidates from the local filesystem. See Loader.Load.
func Load(candidates []string, budget Budget) Batch {
	return NewLoader(budget).Load(candidates)
}

// Load walks candidates in order and emits at most the budgeted amount of
// text. Candidates are expected to come from Collect and therefore already be
// sorted; the order given is the order emitted.
func (l *Loader) Load(candidates []string) Batch {
	batch := Batch{}
	for i, path := range candidates {
		if batch.TotalChars >= l.budget.MaxTotalChars {
			batch.dropRest(candidates[i:])
			break
		}
		content, err := l.readText(path)
		if err != nil {
			batch.Results = append(batch.Results, Result{Path: path, Status: StatusSkipped, Reason: err})
			continue
		}
		truncated := false
		if utf8.RuneCountInString(content) > l.budget.MaxCharsPerFile {
			content = truncateChars(content, l.budget.MaxCharsPerFile)
			truncated = true
		}
		size := utf8.RuneCountInString(content)
		if batch.TotalChars+size > l.budget.MaxTotalChars {
			remaining := l.budget.MaxTotalChars - batch.TotalChars
			if remaining <= 0 {
				batch.dropRest(candidates[i:])
				break
			}
			content = truncateChars(content, remaining)
			truncated = true
			size = remaining
		}
		batch.Files = append(batch.Files, LoadedFile{Path: path, Content: content, Truncated: truncated})
		batch.Results = append(batch.Results, Result{Path: path, Status: StatusLoaded})
		batch.TotalChars += size
	}
	return batch
}

func (b *Batch) dropRest(paths []string) {
	for _, path := range paths {
		b.Results = append(b.Results, Result{Path: path, Status: StatusDropped, Reason: ErrBudgetExhausted})
	}
}

// readText decodes the file as UTF-8, replacing invalid sequences, and folds
// CRLF and lone CR line endings into LF.
func (l *Loader) readText(path string) (string, error) {
	data, err := l.reader.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("filecontext: read %s: %w", path, err)
	}
	decoded, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("filecontext: decode %s: %w", path, err)
	}
	text := string(decoded)
	if strings.Contains(text, "\r") {
		text = strings.ReplaceAll(text, "\r\n", "\n")
		text = strings.ReplaceAll(text, "\r", "\n")
	}
	return text, nil
}

// truncateChars keeps the first n characters of s.
func truncateChars(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for idx := range s {
		if count == n {
			return s[:idx]
		}
		count++
	}
	return s
}
