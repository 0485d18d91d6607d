package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
)

func (a *App) renderSettings() string {
	var b strings.Builder

	b.WriteString(a.center(styleTitle.Render("Select LLM Provider")))
	b.WriteString("\n\n")

	current := a.state.session.Provider()

	var lines []string
	for i, p := range config.Providers {
		cursor := "  "
		if i == a.state.settingsSelected {
			cursor = "> "
		}
		mark := ""
		if p.ID == current && a.state.engine != nil {
			mark = " (current)"
		}
		key := "key missing"
		if os.Getenv(p.EnvKey) != "" {
			key = "key set"
		}

		line := fmt.Sprintf("%s%-10s %s%s", cursor, p.Name, p.DefaultModel, mark)
		if i == a.state.settingsSelected {
			line = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Render(line)
		}
		lines = append(lines, line)
		lines = append(lines, styleSubtitle.Render(fmt.Sprintf("    %s, %s %s", p.Description, p.EnvKey, key)))
		if key == "key missing" {
			lines = append(lines, styleSubtitle.Render("    get one at "+p.SignupURL))
		}
	}

	listBox := styleBox.
		Width(min(60, a.width-4)).
		Render(strings.Join(lines, "\n"))
	b.WriteString(a.center(listBox))
	b.WriteString("\n\n")

	if a.state.status != "" && a.state.statusLevel == levelError {
		b.WriteString(a.center(statusStyle(levelError).Render(truncate(a.state.status, 70))))
		b.WriteString("\n\n")
	}

	b.WriteString(a.center(styleStatusBar.Render("[Up/Down] Navigate  [Enter] Connect  [Esc] Cancel")))

	return a.centerVertically(b.String())
}
