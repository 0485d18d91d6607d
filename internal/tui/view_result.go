package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

func (a *App) renderResults() string {
	var b strings.Builder

	b.WriteString(a.center(styleTitle.Render("Analysis Results")))
	b.WriteString("\n\n")

	// Tabs
	all := a.registry.All()
	var tabs []string
	for i, s := range all {
		label := fmt.Sprintf("%d", s.ID)
		switch {
		case i == a.state.activeTab:
			tabs = append(tabs, styleTabActive.Render(label))
		case a.hasResult(s.ID):
			tabs = append(tabs, styleTabDone.Render(label))
		default:
			tabs = append(tabs, styleTab.Render(label))
		}
	}
	b.WriteString(a.center(lipgloss.JoinHorizontal(lipgloss.Top, tabs...)))
	b.WriteString("\n\n")

	if len(all) > 0 {
		s := all[a.state.activeTab%len(all)]
		b.WriteString(a.center(styleTitle.Render(s.Name)))
		b.WriteString("\n")
		if s.Description != "" {
			b.WriteString(a.center(styleSubtitle.Render(truncate(s.Description, a.boxWidth()))))
			b.WriteString("\n")
		}
	}

	box := styleBox.
		Width(a.boxWidth()).
		BorderForeground(colorPrimary).
		Render(a.state.viewport.View())
	b.WriteString(a.center(box))
	b.WriteString("\n")

	if a.state.status != "" {
		b.WriteString(a.center(statusStyle(a.state.statusLevel).Render(truncate(a.state.status, a.boxWidth()))))
		b.WriteString("\n")
	}

	help := fmt.Sprintf("[tab] Next  [ctrl+r] Run skill  [ctrl+e] Save skill  [ctrl+s] Save report  [ctrl+x] Clear  [esc] Input  %d%%",
		int(a.state.viewport.ScrollPercent()*100))
	b.WriteString(a.center(styleStatusBar.Render(help)))

	return a.centerVertically(b.String())
}

func (a *App) hasResult(id int) bool {
	_, ok := a.state.session.Result(id)
	return ok
}

// refreshViewport loads the active skill's rendered output into the viewport.
func (a *App) refreshViewport() {
	all := a.registry.All()
	if len(all) == 0 {
		return
	}
	id := all[a.state.activeTab%len(all)].ID

	text, ok := a.state.session.Result(id)
	if !ok {
		a.state.viewport.SetContent(styleSubtitle.Render("Run the analysis to see results."))
		a.state.viewport.GotoTop()
		return
	}

	out, cached := a.state.rendered[id]
	if !cached {
		out = a.renderMarkdown(text)
		a.state.rendered[id] = out
	}
	a.state.viewport.SetContent(out)
	a.state.viewport.GotoTop()
}

// renderMarkdown renders skill output for the terminal, falling back to the
// raw text when glamour fails.
func (a *App) renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(20, a.state.viewport.Width-2)),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
