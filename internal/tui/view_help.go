package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

func (a *App) renderHelp() string {
	var b strings.Builder

	b.WriteString(a.center(styleTitle.Render("Help")))
	b.WriteString("\n\n")

	bindings := []key.Binding{
		keys.RunSingle, keys.RunAll, keys.Clear,
		keys.LoadFile, keys.Results, keys.NextTab, keys.PrevTab,
		keys.SaveSkill, keys.SaveReport, keys.Settings,
		keys.Back, keys.Quit,
	}
	var lines []string
	for _, kb := range bindings {
		h := kb.Help()
		lines = append(lines, fmt.Sprintf("  %-12s %s", h.Key, h.Desc))
	}

	box := styleBox.
		Width(50).
		Render(strings.Join(lines, "\n"))
	b.WriteString(a.center(box))
	b.WriteString("\n\n")

	b.WriteString(a.center(styleSubtitle.Render("Skills")))
	b.WriteString("\n\n")

	var skills []string
	for _, s := range a.registry.All() {
		skills = append(skills, fmt.Sprintf("  %2d. %s", s.ID, truncate(s.Name, 44)))
	}
	skillsBox := styleBox.
		Width(50).
		Render(strings.Join(skills, "\n"))
	b.WriteString(a.center(skillsBox))
	b.WriteString("\n\n")

	b.WriteString(a.center(styleStatusBar.Render("[Esc] Back")))

	return a.centerVertically(b.String())
}
