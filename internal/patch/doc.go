// Package patch extracts proposed file replacements from an assistant reply.
//
// Replies follow a loose textual protocol:
//
//	[SUMMARY]
//	one paragraph describing the change
//
//	[PATCH]
//	# file: path/to/file.py
//	```python
//	<complete new file contents>
//	```
//
//	[NOTES]
//	- optional remarks
//
// Parsing is best effort. Nothing in this package returns an error: an answer
// that does not follow the protocol simply yields no summary and no files.
//
// File blocks are found by a small line scanner rather than one large regular
// expression. A code block always ends at the first closing fence after it
// opens, so file contents that themselves contain a line starting with three
// backticks are cut short at that line.
package patch
