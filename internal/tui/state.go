package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/vincent-yangyijie/triz-agent/internal/document"
	"github.com/vincent-yangyijie/triz-agent/internal/pipeline"
)

type statusLevel int

const (
	levelInfo statusLevel = iota
	levelSuccess
	levelWarning
	levelError
)

type state struct {
	// Engine and pipeline
	engine     Engine
	controller *pipeline.Controller
	session    *pipeline.Session
	converter  *document.Converter
	engineErr  error

	// Input
	input       textarea.Model
	pathInput   textinput.Model
	loadingFile bool
	document    *document.Document

	// Processing
	running    bool
	runAll     bool
	progressCh chan pipeline.Progress
	current    *pipeline.Progress
	finished   map[int]bool
	spinner    spinner.Model
	progress   progress.Model

	// Results
	activeTab int
	viewport  viewport.Model
	rendered  map[int]string
	renderedW int

	// Settings
	settingsSelected int

	// Status line
	status      string
	statusLevel statusLevel

	// Error view
	err error
}

func newState() *state {
	input := textarea.New()
	input.Placeholder = "Describe the technical problem or paste the patent text..."
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetWidth(80)
	input.SetHeight(10)
	input.Focus()

	path := textinput.New()
	path.Placeholder = "path/to/patent.pdf"
	path.CharLimit = 1024
	path.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &state{
		input:     input,
		pathInput: path,
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient()),
		viewport:  viewport.New(80, 20),
		finished:  make(map[int]bool),
		rendered:  make(map[int]string),
	}
}

func (s *state) setStatus(level statusLevel, msg string) {
	s.statusLevel = level
	s.status = msg
}
