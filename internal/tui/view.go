package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Padding(0, 1)
)

// View renders the scrollback above the prompt and a one line status footer.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	if !a.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		a.viewport.View(),
		a.input.View(),
		a.renderFooter(),
	)
}

func (a *App) renderFooter() string {
	var parts []string
	switch a.mode {
	case modeBusy:
		parts = append(parts, a.spinner.View()+" waiting for the assistant")
	case modeConfirm:
		parts = append(parts, accentStyle.Render("confirm apply"))
	default:
		parts = append(parts, "ready")
	}
	parts = append(parts,
		pluralize(len(a.state.Loaded.Files), "file")+" loaded",
		pluralize(a.state.Patches.Len(), "patch")+" held",
		"PgUp/PgDn scroll · Ctrl+C quit",
	)
	return footerStyle.Width(max(20, a.width)).Render(strings.Join(parts, " · "))
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	if strings.HasSuffix(noun, "ch") {
		return fmt.Sprintf("%d %ses", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
