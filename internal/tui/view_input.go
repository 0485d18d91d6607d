package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vincent-yangyijie/triz-agent/internal/llm"
)

// replyBudget is the room left for a skill's answer when checking the context window.
const replyBudget = 4096

const logo = `
 ████████╗██████╗ ██╗███████╗
 ╚══██╔══╝██╔══██╗██║╚══███╔╝
    ██║   ██████╔╝██║  ███╔╝
    ██║   ██╔══██╗██║ ███╔╝
    ██║   ██║  ██║██║███████╗
    ╚═╝   ╚═╝  ╚═╝╚═╝╚══════╝`

func (a *App) renderInput() string {
	var b strings.Builder

	if a.height >= 30 {
		b.WriteString(a.center(styleLogo.Render(logo)))
		b.WriteString("\n")
	} else {
		b.WriteString(a.center(styleLogo.Render("TRIZ")))
		b.WriteString("\n")
	}
	b.WriteString(a.center(styleSubtitle.Render("Ten-step TRIZ analysis of an engineering problem or patent text")))
	b.WriteString("\n\n")

	b.WriteString(a.center(a.renderProviderLine()))
	b.WriteString("\n\n")

	// Loaded document
	if doc := a.state.document; doc != nil {
		info := fmt.Sprintf("%s  %s  %s", truncate(doc.Metadata.Title, 40), strings.ToUpper(doc.Metadata.SourceFormat), doc.Metadata.Summary())
		if doc.Metadata.PageCount != nil {
			info += fmt.Sprintf("  %d pages", *doc.Metadata.PageCount)
		}
		b.WriteString(a.center(styleSubtitle.Render(info)))
		b.WriteString("\n")
	}

	if a.state.loadingFile {
		box := styleBox.
			Width(a.boxWidth()).
			BorderForeground(colorSecondary).
			Render("Load file (pdf, docx, txt, md)\n" + a.state.pathInput.View())
		b.WriteString(a.center(box))
		b.WriteString("\n\n")
	}

	inputBox := styleBox.
		Width(a.boxWidth()).
		BorderForeground(colorPrimary).
		Render(a.state.input.View())
	b.WriteString(a.center(inputBox))
	b.WriteString("\n")

	b.WriteString(a.center(a.renderTokenLine()))
	b.WriteString("\n\n")

	if a.state.status != "" {
		b.WriteString(a.center(statusStyle(a.state.statusLevel).Render(truncate(a.state.status, a.boxWidth()))))
		b.WriteString("\n")
	}

	help := "[ctrl+r] Skill 1  [ctrl+a] Full analysis  [ctrl+o] Load file  [ctrl+t] Results  [ctrl+p] Provider  [f1] Help"
	if a.state.loadingFile {
		help = "[Enter] Load  [Esc] Cancel"
	}
	b.WriteString(a.center(styleStatusBar.Render(help)))

	return a.centerVertically(b.String())
}

func (a *App) renderProviderLine() string {
	if a.state.engine == nil {
		msg := "no provider configured"
		if a.state.engineErr != nil {
			msg = a.state.engineErr.Error()
		}
		return lipgloss.NewStyle().Foreground(colorError).Render("Connection Error: " + truncate(msg, 70))
	}

	done := a.state.session.Completed()
	line := fmt.Sprintf("%s (%s)  Skills completed %d/%d", a.state.engine.Provider(), a.state.engine.Model(), done, a.registry.Len())
	return styleSubtitle.Render(line)
}

// renderTokenLine estimates the prompt size against the model's context window.
func (a *App) renderTokenLine() string {
	input := a.state.input.Value()
	if input == "" {
		return ""
	}

	tokens := llm.EstimateTokens(input)
	line := fmt.Sprintf("~%s tokens", humanize.Comma(int64(tokens)))
	if a.state.engine == nil {
		return styleSubtitle.Render(line)
	}

	model := a.state.engine.Model()
	line += fmt.Sprintf(" of %s", humanize.Comma(int64(llm.ContextLimit(model))))

	// the longest template bounds every prompt built from this input
	longest := ""
	for _, s := range a.registry.All() {
		if len(s.Template) > len(longest) {
			longest = s.Template
		}
	}
	if !llm.FitsContext(model, longest+input, replyBudget) {
		return lipgloss.NewStyle().Foreground(colorWarning).Render(line + "  input may exceed the model's context window")
	}
	return styleSubtitle.Render(line)
}
