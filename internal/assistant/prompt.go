package assistant

import (
	"fmt"
	"strings"
)

// SystemPrompt pins the reply protocol the patch extractor understands.
const SystemPrompt = `You are a senior software engineer who is good at debugging and refactoring.
You will receive the contents of several project files and a description of the user's problem.

You must answer strictly in this format:

[SUMMARY]
One sentence summarizing your understanding of the problem.

[PATCH]
# file: <path>
` + "```" + `<language>
<the complete new contents of the file>
` + "```" + `
Repeat the "# file" block for every file you change.

[NOTES]
At most 6 short points explaining why the changes were made.
`

// BuildUserPrompt wraps the loaded context and the question into one user turn.
func BuildUserPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString("Project context follows (it may contain TRUNCATED markers):\n")
	b.WriteString(contextText)
	b.WriteString("\n\nUser question:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer strictly in the required format.")
	return b.String()
}

// Options are passed through to the backend on every call.
type Options struct {
	Model       string
	NumCtx      int
	Temperature float64
	TopP        *float64
}

func (o Options) String() string {
	topP := "unset"
	if o.TopP != nil {
		topP = fmt.Sprintf("%g", *o.TopP)
	}
	return fmt.Sprintf("model=%s num_ctx=%d temperature=%g top_p=%s", o.Model, o.NumCtx, o.Temperature, topP)
}
