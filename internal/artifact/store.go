package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrChecksumMismatch indicates a transcript body was edited after it was saved.
var ErrChecksumMismatch = errors.New("artifact: checksum mismatch")

// Store manages transcript IO rooted at a directory.
type Store struct {
	dir   string
	now   func() time.Time
	newID func() string
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for metadata timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// WithIDSource overrides how transcript identifiers are generated.
func WithIDSource(next func() string) StoreOption {
	return func(s *Store) {
		s.newID = next
	}
}

// NewStore builds a store writing into dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	store := &Store{
		dir:   dir,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Save writes the transcript and returns its path. Missing IDs and
// timestamps are filled in and the body checksum is recorded.
func (s *Store) Save(t Transcript) (string, error) {
	if s == nil {
		return "", fmt.Errorf("artifact: nil store")
	}
	body := normalizeNewlines([]byte(t.Body))
	meta := t.Metadata.WithDefaults(s.newID(), s.now())
	meta.Checksum = checksum(body)
	if err := meta.Validate(); err != nil {
		return "", err
	}
	content, err := WriteFrontMatter(meta, body)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: ensure transcript dir: %w", err)
	}
	path := filepath.Join(s.dir, fileName(meta))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return path, nil
}

// Load reads a transcript and verifies its checksum.
func (s *Store) Load(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, fmt.Errorf("artifact: read %s: %w", path, err)
	}
	meta, body, err := ParseFrontMatter(data)
	if err != nil {
		return Transcript{}, err
	}
	meta.Path = path
	if meta.Checksum != "" && meta.Checksum != checksum(body) {
		return Transcript{Metadata: meta, Body: string(body)}, ErrChecksumMismatch
	}
	return Transcript{Metadata: meta, Body: string(body)}, nil
}

// List returns the metadata of every readable transcript, oldest first.
// Files that fail to parse are skipped.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact: list %s: %w", s.dir, err)
	}
	var out []Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		meta, _, err := ParseFrontMatter(data)
		if err != nil {
			continue
		}
		meta.Path = path
		out = append(out, meta)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func fileName(meta Metadata) string {
	id := meta.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s.md", meta.CreatedAt.UTC().Format("20060102-150405"), sanitize(id))
}

func sanitize(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}

func checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
