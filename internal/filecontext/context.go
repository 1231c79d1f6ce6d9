package filecontext

import "strings"

// TruncatedMarker is appended to a block header when the file was cut.
const TruncatedMarker = " (TRUNCATED)"

// BuildContextText renders one labeled block per file, separated by a blank
// line. The result is opaque payload for the assistant.
func BuildContextText(files []LoadedFile) string {
	blocks := make([]string, 0, len(files))
	for _, f := range files {
		var b strings.Builder
		b.WriteString("# FILE: ")
		b.WriteString(f.Path)
		if f.Truncated {
			b.WriteString(TruncatedMarker)
		}
		b.WriteString("\n")
		b.WriteString(f.Content)
		b.WriteString("\n")
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// LoadPaths is the full pipeline used by the session: Collect, then Load.
func LoadPaths(paths []string, allowed Extensions, budget Budget, opts ...LoaderOption) Batch {
	return NewLoader(budget, opts...).Load(Collect(paths, allowed))
}
