// Package filecontext turns an arbitrary set of user supplied paths into a
// size-bounded context blob for the assistant.
//
// Discovery (Collect) expands directories recursively (skipping IgnoredDirs),
// filters by extension and returns a deduplicated, lexicographically sorted
// list of absolute paths.
// Loading (Load) reads the candidates in that order under a Budget:
//   - no single file contributes more than Budget.MaxCharsPerFile characters;
//   - the batch never exceeds Budget.MaxTotalChars characters in total;
//   - once the total budget is exhausted, remaining candidates are dropped.
//
// Characters are Unicode code points. Files are decoded best-effort: invalid
// UTF-8 is replaced with U+FFFD instead of failing the read. A file that cannot
// be read is recorded as skipped and never aborts the batch.
package filecontext
