package patch

import "strings"

// Section names used by the reply protocol.
const (
	SectionSummary = "SUMMARY"
	SectionPatch   = "PATCH"
	SectionNotes   = "NOTES"
)

const (
	fence      = "```"
	fileMarker = "file:"
)

// IsSectionMarker reports whether line opens the named section, e.g. "[PATCH]".
// Leading whitespace is ignored and the name is matched case-insensitively.
func IsSectionMarker(line, name string) bool {
	return hasPrefixFold(strings.TrimLeft(line, " \t"), "["+name+"]")
}

// ParseFileMarker recognizes a "# file: <path>" line and returns the trimmed
// path. Any amount of whitespace may separate "#" from "file:".
func ParseFileMarker(line string) (string, bool) {
	rest := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(rest, "#") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if !hasPrefixFold(rest, fileMarker) {
		return "", false
	}
	path := strings.TrimSpace(rest[len(fileMarker):])
	if path == "" {
		return "", false
	}
	return path, true
}

// isFence reports whether line is a code fence. Fences must start the line.
func isFence(line string) bool {
	return strings.HasPrefix(line, fence)
}

// indexFold returns the byte offset of the first ASCII case-insensitive match
// of marker in s, or -1.
func indexFold(s, marker string) int {
	for i := 0; i+len(marker) <= len(s); i++ {
		if hasPrefixFold(s[i:], marker) {
			return i
		}
	}
	return -1
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if lowerASCII(s[i]) != lowerASCII(prefix[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
