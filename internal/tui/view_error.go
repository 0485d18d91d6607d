package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
)

func (a *App) renderError() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Foreground(colorError).
		Bold(true).
		Render("Something went wrong")
	b.WriteString(a.center(title))
	b.WriteString("\n\n")

	errMsg := "Unknown error"
	if a.state.err != nil {
		errMsg = a.state.err.Error()
	}

	errBox := styleBox.
		Width(min(60, a.width-4)).
		BorderForeground(colorError).
		Render(errMsg)
	b.WriteString(a.center(errBox))
	b.WriteString("\n\n")

	if suggestions := suggestionsFor(errMsg); len(suggestions) > 0 {
		suggBox := styleBox.
			Width(min(60, a.width-4)).
			BorderForeground(colorMuted).
			Render("Suggestions:\n" + strings.Join(suggestions, "\n"))
		b.WriteString(a.center(suggBox))
		b.WriteString("\n\n")
	}

	b.WriteString(a.center(styleStatusBar.Render("[Esc] Back  [ctrl+p] Provider")))

	return a.centerVertically(b.String())
}

// suggestionsFor maps common failure text to next steps.
func suggestionsFor(errMsg string) []string {
	errLower := strings.ToLower(errMsg)

	switch {
	case strings.Contains(errLower, "api key") || strings.Contains(errLower, "401") || strings.Contains(errLower, "unauthorized"):
		out := []string{"Set DEEPSEEK_API_KEY or KIMI_API_KEY in the environment or a .env file"}
		for _, p := range config.Providers {
			out = append(out, fmt.Sprintf("Get a %s key at %s", p.Name, p.SignupURL))
		}
		return append(out, "Or press [ctrl+p] to switch provider")
	case strings.Contains(errLower, "unsupported provider"):
		return []string{"Supported providers are deepseek and kimi"}
	case strings.Contains(errLower, "connection") || strings.Contains(errLower, "connect") || strings.Contains(errLower, "timeout"):
		return []string{"Check your internet connection"}
	case strings.Contains(errLower, "not found") || strings.Contains(errLower, "no such file"):
		return []string{
			"Check the file path is correct",
			"Make sure the file exists and is readable",
		}
	case strings.Contains(errLower, "rate limit") || strings.Contains(errLower, "429"):
		return []string{
			"You've hit the API rate limit",
			"Wait a moment and try again",
		}
	}
	return nil
}
