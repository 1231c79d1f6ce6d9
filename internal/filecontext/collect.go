package filecontext

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions lists the file types picked up from directories when the
// project config does not name its own set.
var DefaultExtensions = []string{".py", ".html", ".txt", ".md", ".js", ".css", ".go"}

// Extensions is a case-insensitive set of file extensions including the dot.
type Extensions map[string]struct{}

// NewExtensions normalizes the provided values (".PY", "py", " .py ") into a set.
func NewExtensions(values ...string) Extensions {
	set := make(Extensions, len(values))
	for _, value := range values {
		ext := NormalizeExtension(value)
		if ext == "" {
			continue
		}
		set[ext] = struct{}{}
	}
	return set
}

// NormalizeExtension lower-cases an extension and ensures the leading dot.
func NormalizeExtension(value string) string {
	ext := strings.ToLower(strings.TrimSpace(value))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Allows reports whether the path's extension is part of the set.
func (e Extensions) Allows(path string) bool {
	ext := extensionOf(path)
	if ext == "" {
		return false
	}
	_, ok := e[ext]
	return ok
}

// extensionOf mirrors the usual "name.ext" convention: dotfiles such as
// ".gitignore" have no extension.
func extensionOf(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		return ""
	}
	return strings.ToLower(ext)
}

// Collect resolves paths into the ordered candidate set. Files are taken as
// given, directories are walked recursively and filtered by allowed. Empty
// strings and paths that do not exist are skipped without error.
func Collect(paths []string, allowed Extensions) []string {
	seen := map[string]struct{}{}
	add := func(path string) {
		seen[path] = struct{}{}
	}
	for _, raw := range paths {
		if raw == "" {
			continue
		}
		abs, err := filepath.Abs(raw)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		switch {
		case info.Mode().IsRegular():
			add(abs)
		case info.IsDir():
			walkDir(abs, allowed, add)
		}
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// walkDir follows a symlinked root but reports paths under the name the
// caller gave. Links below the root are not followed.
func walkDir(root string, allowed Extensions, add func(string)) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return
	}
	_ = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != resolved && isIgnoredDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !allowed.Allows(path) {
			return nil
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return nil
		}
		add(filepath.Join(root, rel))
		return nil
	})
}

// IgnoredDirs are never descended into while walking a directory. They can
// still be loaded by naming files inside them explicitly.
var IgnoredDirs = []string{".git", ".offline"}

func isIgnoredDir(name string) bool {
	for _, ignored := range IgnoredDirs {
		if name == ignored {
			return true
		}
	}
	return false
}
