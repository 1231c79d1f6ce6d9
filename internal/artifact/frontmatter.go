package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("artifact: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("artifact: malformed frontmatter")
)

// ParseFrontMatter extracts the metadata block and body from a document that starts
// with `---` YAML fences.
func ParseFrontMatter(content []byte) (Metadata, []byte, error) {
	if len(content) == 0 {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	normalized := normalizeNewlines(content)
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	rest := normalized[4:]
	parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	metaBytes := parts[0]
	body := bytes.TrimPrefix(parts[1], []byte("\n"))
	var envelope transcriptEnvelope
	if err := yaml.Unmarshal(metaBytes, &envelope); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: parse frontmatter: %w", err)
	}
	meta, err := envelope.toMetadata()
	if err != nil {
		return Metadata{}, nil, err
	}
	return meta, body, nil
}

// WriteFrontMatter renders metadata + body with YAML fences.
func WriteFrontMatter(meta Metadata, body []byte) ([]byte, error) {
	if meta.ID == "" {
		return nil, fmt.Errorf("artifact: metadata missing transcript id")
	}
	envelope := transcriptEnvelope{}
	envelope.fromMetadata(meta)
	data, err := yaml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

type transcriptEnvelope struct {
	Transcript transcriptMetadata `yaml:"transcript"`
}

type transcriptMetadata struct {
	ID       string   `yaml:"id"`
	Created  string   `yaml:"created"`
	Model    string   `yaml:"model,omitempty"`
	Question string   `yaml:"question"`
	Summary  string   `yaml:"summary,omitempty"`
	Inputs   []string `yaml:"inputs,omitempty"`
	Patches  []string `yaml:"patches,omitempty"`
	Notes    string   `yaml:"notes,omitempty"`
	Checksum string   `yaml:"checksum,omitempty"`
}

func (e transcriptEnvelope) toMetadata() (Metadata, error) {
	if e.Transcript.ID == "" {
		return Metadata{}, ErrMalformedFrontMatter
	}
	created, err := parseTime(e.Transcript.Created)
	if err != nil {
		return Metadata{}, fmt.Errorf("artifact: parse created timestamp: %w", err)
	}
	return Metadata{
		ID:        e.Transcript.ID,
		CreatedAt: created,
		Model:     e.Transcript.Model,
		Question:  e.Transcript.Question,
		Summary:   e.Transcript.Summary,
		Inputs:    append([]string{}, e.Transcript.Inputs...),
		Patches:   append([]string{}, e.Transcript.Patches...),
		Checksum:  e.Transcript.Checksum,
		Notes:     e.Transcript.Notes,
	}, nil
}

func (e *transcriptEnvelope) fromMetadata(meta Metadata) {
	e.Transcript.ID = meta.ID
	e.Transcript.Created = meta.CreatedAt.UTC().Format(timeLayout)
	e.Transcript.Model = meta.Model
	e.Transcript.Question = meta.Question
	e.Transcript.Summary = meta.Summary
	e.Transcript.Inputs = append([]string{}, meta.Inputs...)
	e.Transcript.Patches = append([]string{}, meta.Patches...)
	e.Transcript.Checksum = meta.Checksum
	e.Transcript.Notes = meta.Notes
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func parseTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("artifact: empty created timestamp")
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func normalizeNewlines(content []byte) []byte {
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}
