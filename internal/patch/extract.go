package patch

import (
	"strings"
	"unicode"
)

// File is one proposed full-file replacement. Code always ends with exactly
// one newline.
type File struct {
	Path string
	Code string
}

// Reply is everything extracted from a single answer.
type Reply struct {
	Summary    string
	HasSummary bool
	Files      []File
	Notes      string
}

// Options tunes file block extraction.
type Options struct {
	// PatchSectionOnly restricts the scan to text after the [PATCH] marker.
	// By default the whole answer is scanned so that blocks are still found
	// when the assistant drifts from the protocol.
	PatchSectionOnly bool
}

// Parse extracts summary, files and notes with default options.
func Parse(answer string) Reply {
	return Options{}.Parse(answer)
}

// Parse extracts summary, files and notes.
func (o Options) Parse(answer string) Reply {
	summary, ok := ExtractSummary(answer)
	return Reply{
		Summary:    summary,
		HasSummary: ok,
		Files:      o.ExtractFiles(answer),
		Notes:      ExtractNotes(answer),
	}
}

// ExtractSummary returns the text between the [SUMMARY] marker and the next
// line starting with [PATCH], or the end of the answer. The second result is
// false when the answer has no [SUMMARY] marker.
func ExtractSummary(answer string) (string, bool) {
	idx := indexFold(answer, "["+SectionSummary+"]")
	if idx < 0 {
		return "", false
	}
	rest := answer[idx+len(SectionSummary)+2:]
	lines := splitLines(rest)
	end := len(lines)
	for i := 1; i < len(lines); i++ {
		if IsSectionMarker(lines[i], SectionPatch) {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[:end], "\n")), true
}

// ExtractNotes returns the trimmed text following a [NOTES] marker line.
func ExtractNotes(answer string) string {
	lines := splitLines(answer)
	for i, line := range lines {
		if !IsSectionMarker(line, SectionNotes) {
			continue
		}
		first := strings.TrimLeft(line, " \t")[len(SectionNotes)+2:]
		body := append([]string{first}, lines[i+1:]...)
		return strings.TrimSpace(strings.Join(body, "\n"))
	}
	return ""
}

// ExtractFiles returns every file block in the answer with default options.
func ExtractFiles(answer string) []File {
	return Options{}.ExtractFiles(answer)
}

type scanState int

const (
	stateScanning      scanState = iota // looking for a "# file:" marker
	stateAwaitingFence                  // marker seen, next non-blank line must open a fence
	stateInCode                         // collecting lines until the closing fence
)

// ExtractFiles scans the answer for "# file: <path>" lines followed by a
// fenced code block. Blocks are returned in the order they appear; repeated
// paths are kept. A block whose fence never closes is discarded.
func (o Options) ExtractFiles(answer string) []File {
	lines := splitLines(answer)
	if o.PatchSectionOnly {
		lines = linesAfterSection(lines, SectionPatch)
	}
	var (
		out   []File
		state = stateScanning
		path  string
		code  []string
	)
	for _, line := range lines {
		switch state {
		case stateScanning:
			if p, ok := ParseFileMarker(line); ok {
				path = p
				state = stateAwaitingFence
			}
		case stateAwaitingFence:
			switch {
			case isFence(line):
				code = code[:0]
				state = stateInCode
			case strings.TrimSpace(line) == "":
			default:
				if p, ok := ParseFileMarker(line); ok {
					path = p
				} else {
					state = stateScanning
				}
			}
		case stateInCode:
			if isFence(line) {
				out = append(out, File{Path: path, Code: finishCode(code)})
				state = stateScanning
				continue
			}
			code = append(code, line)
		}
	}
	return out
}

func finishCode(lines []string) string {
	return strings.TrimRightFunc(strings.Join(lines, "\n"), unicode.IsSpace) + "\n"
}

func linesAfterSection(lines []string, name string) []string {
	for i, line := range lines {
		if IsSectionMarker(line, name) {
			return lines[i+1:]
		}
	}
	return nil
}
