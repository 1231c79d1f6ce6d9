// Package artifact persists assistant exchanges as Markdown transcripts with a
// YAML frontmatter block, one file per question under .offline/transcripts.
package artifact

import (
	"fmt"
	"strings"
	"time"
)

// Metadata captures provenance stored inside transcript frontmatter.
type Metadata struct {
	ID        string
	CreatedAt time.Time
	Model     string
	Question  string
	Summary   string
	Inputs    []string
	Patches   []string
	Notes     string
	Checksum  string
	// Path is where the transcript was read from. It is not stored.
	Path string
}

// Transcript is one question/answer exchange. Body holds the raw answer.
type Transcript struct {
	Metadata Metadata
	Body     string
}

// WithDefaults fills the ID and timestamp when they are missing.
func (m Metadata) WithDefaults(id string, now time.Time) Metadata {
	clone := m
	if strings.TrimSpace(clone.ID) == "" {
		clone.ID = id
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now.UTC()
	}
	clone.Inputs = append([]string{}, m.Inputs...)
	clone.Patches = append([]string{}, m.Patches...)
	return clone
}

// Validate ensures the metadata is complete enough to be written.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("artifact: transcript id is required")
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("artifact: transcript %s missing created timestamp", m.ID)
	}
	return nil
}
