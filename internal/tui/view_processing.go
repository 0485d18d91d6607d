package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

func (a *App) renderProcessing() string {
	var b strings.Builder

	// Title
	title := "Running Full Analysis"
	if !a.state.runAll {
		title = "Running Skill"
	}
	b.WriteString(a.center(styleTitle.Render(title)))
	b.WriteString("\n\n")

	// Document info
	if a.state.document != nil {
		docInfo := styleSubtitle.Render(truncate(a.state.document.Metadata.Title, 60))
		b.WriteString(a.center(docInfo))
		b.WriteString("\n\n")
	}

	skills := a.registry.All()
	if !a.state.runAll && a.state.current != nil {
		s, _ := a.registry.Get(a.state.current.SkillID)
		skills = []skill.Skill{s}
	}

	var lines []string
	for _, s := range skills {
		var icon string
		var style lipgloss.Style

		switch {
		case a.state.finished[s.ID]:
			icon = "[x]"
			style = lipgloss.NewStyle().Foreground(colorSuccess)
		case a.state.current != nil && a.state.current.SkillID == s.ID:
			icon = "[" + a.state.spinner.View() + "]"
			style = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
		default:
			icon = "[ ]"
			style = lipgloss.NewStyle().Foreground(colorMuted)
		}

		lines = append(lines, style.Render(fmt.Sprintf("  %s  %2d. %s", icon, s.ID, truncate(s.ShortName(), 40))))
	}

	width := min(60, a.width-4)
	box := styleBox.Width(width).Render(strings.Join(lines, "\n"))
	b.WriteString(a.center(box))
	b.WriteString("\n\n")

	// Progress bar
	if a.state.runAll {
		var frac float64
		done := 0
		if p := a.state.current; p != nil {
			frac = p.Fraction()
			done = p.Completed
		}
		bar := a.state.progress.ViewAs(frac) + fmt.Sprintf("  %d/%d", done, a.registry.Len())
		b.WriteString(a.center(bar))
		b.WriteString("\n\n")
	}

	// Message
	if p := a.state.current; p != nil && p.Message != "" {
		b.WriteString(a.center(styleSubtitle.Render(truncate(p.Message, 60))))
	}

	return a.centerVertically(b.String())
}
