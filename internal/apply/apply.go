// internal/apply/apply.go
//
// The apply workflow owns the most recent patch set extracted from an
// assistant answer. It can show a bounded preview of every file and, once the
// caller supplies the exact confirmation token, overwrite the files on disk.

package apply

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/offline-coder/internal/patch"
)

const (
	// ConfirmToken is the literal a caller must pass to Apply.
	ConfirmToken = "YES"
	// PreviewLines caps how many lines of each file Preview returns.
	PreviewLines = 40
)

var (
	// ErrCancelled is returned when the confirmation token does not match.
	ErrCancelled = errors.New("apply: cancelled")
	// ErrNothingHeld is returned when Apply is called without a patch set.
	ErrNothingHeld = errors.New("apply: no patch set held")
)

// State is the lifecycle position of a PatchSet.
type State int

const (
	StateEmpty State = iota
	StateHeld
)

func (s State) String() string {
	if s == StateHeld {
		return "held"
	}
	return "empty"
}

// PatchSet is the held patch set value. The zero value is Empty.
type PatchSet struct {
	held  bool
	files []patch.File
}

// Hold returns a Held set containing files. An empty slice still yields Held.
func Hold(files []patch.File) PatchSet {
	return PatchSet{held: true, files: append([]patch.File(nil), files...)}
}

// Clear returns an Empty set.
func (s PatchSet) Clear() PatchSet {
	return PatchSet{}
}

// State reports whether the set is Empty or Held.
func (s PatchSet) State() State {
	if s.held {
		return StateHeld
	}
	return StateEmpty
}

// Len returns the number of held files.
func (s PatchSet) Len() int {
	return len(s.files)
}

// Paths returns the target paths in write order.
func (s PatchSet) Paths() []string {
	out := make([]string, len(s.files))
	for i, f := range s.files {
		out[i] = f.Path
	}
	return out
}

// PreviewEntry is the bounded view of one held file.
type PreviewEntry struct {
	Path      string
	Lines     []string
	Truncated bool
}

// Preview returns the path and at most PreviewLines lines of every held file.
func (s PatchSet) Preview() []PreviewEntry {
	out := make([]PreviewEntry, 0, len(s.files))
	for _, f := range s.files {
		lines := strings.Split(strings.TrimSuffix(f.Code, "\n"), "\n")
		entry := PreviewEntry{Path: f.Path}
		if len(lines) > PreviewLines {
			lines = lines[:PreviewLines]
			entry.Truncated = true
		}
		entry.Lines = lines
		out = append(out, entry)
	}
	return out
}

// Writer performs the filesystem side of Apply.
type Writer interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// OSWriter writes to the local filesystem.
type OSWriter struct{}

func (OSWriter) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// WriteFile writes data to a temporary sibling of name and renames it into
// place, so name holds either its old content or all of data.
func (OSWriter) WriteFile(name string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

// WriteError reports the file that stopped an Apply run. Files before Index
// were written; files after it were not attempted.
type WriteError struct {
	Index int
	Path  string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("apply: write %s (file %d): %v", e.Path, e.Index+1, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Options controls how Apply resolves and writes files.
type Options struct {
	// BaseDir resolves relative patch paths. Empty means the working directory.
	BaseDir string
	Writer  Writer
}

// Apply writes every held file in order after checking token. A mismatched
// token returns ErrCancelled without touching the filesystem. Writing stops
// at the first failure; the returned paths are the ones already written.
func (s PatchSet) Apply(token string, opts Options) ([]string, error) {
	if s.State() != StateHeld {
		return nil, ErrNothingHeld
	}
	if token != ConfirmToken {
		return nil, ErrCancelled
	}
	w := opts.Writer
	if w == nil {
		w = OSWriter{}
	}
	written := make([]string, 0, len(s.files))
	for i, f := range s.files {
		target, err := resolve(opts.BaseDir, f.Path)
		if err != nil {
			return written, &WriteError{Index: i, Path: f.Path, Err: err}
		}
		if err := w.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, &WriteError{Index: i, Path: target, Err: err}
		}
		if err := w.WriteFile(target, []byte(f.Code), 0o644); err != nil {
			return written, &WriteError{Index: i, Path: target, Err: err}
		}
		written = append(written, target)
	}
	return written, nil
}

func resolve(base, path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed), nil
	}
	if base == "" {
		return filepath.Abs(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed)), nil
}
