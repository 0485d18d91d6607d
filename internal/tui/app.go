package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
	"github.com/vincent-yangyijie/triz-agent/internal/document"
	"github.com/vincent-yangyijie/triz-agent/internal/pipeline"
	"github.com/vincent-yangyijie/triz-agent/internal/report"
	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

type view int

const (
	viewInput view = iota
	viewProcessing
	viewResults
	viewSettings
	viewHelp
	viewError
)

// Engine generates text and can switch provider. *llm.Engine implements it.
type Engine interface {
	pipeline.Generator
	Provider() string
	Model() string
	Configure(provider string) error
	// Ping checks that the endpoint is reachable and accepts the key.
	Ping(ctx context.Context) error
}

const pingTimeout = 5 * time.Second

// Options configures the terminal app.
type Options struct {
	Config    *config.Config
	Registry  *skill.Registry
	NewEngine func(provider string) (Engine, error)
	// OutputDir receives saved reports; empty means the working directory.
	OutputDir string
	Logger    *slog.Logger
}

type App struct {
	width    int
	height   int
	view     view
	prevView view
	cfg      *config.Config
	registry *skill.Registry
	newEng   func(provider string) (Engine, error)
	outDir   string
	logger   *slog.Logger
	state    *state
	quitting bool
}

func NewApp(opts Options) *App {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Registry == nil {
		opts.Registry = skill.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	a := &App{
		view:     viewInput,
		cfg:      opts.Config,
		registry: opts.Registry,
		newEng:   opts.NewEngine,
		outDir:   opts.OutputDir,
		logger:   opts.Logger,
		state:    newState(),
	}
	a.state.session = pipeline.NewSession("tui", opts.Config.Provider)
	a.state.converter = document.NewConverter(opts.Config.Upload.MaxBytes)

	if a.newEng == nil {
		a.state.engineErr = errors.New("no provider factory configured")
	} else if eng, err := a.newEng(opts.Config.Provider); err != nil {
		a.logger.Warn("provider not configured", "provider", opts.Config.Provider, "error", err)
		a.state.engineErr = err
		a.state.setStatus(levelError, "Connection Error: "+err.Error())
	} else {
		a.useEngine(eng)
	}

	return a
}

func (a *App) useEngine(eng Engine) {
	a.state.engine = eng
	a.state.engineErr = nil
	a.state.controller = pipeline.NewController(a.registry, eng, pipeline.WithLogger(a.logger))
	a.state.session.SetProvider(eng.Provider())
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.WindowSize(),
		textarea.Blink,
		a.state.spinner.Tick,
		a.checkConnection(),
	)
}

// checkConnection pings the current engine in the background.
func (a *App) checkConnection() tea.Cmd {
	eng := a.state.engine
	if eng == nil {
		return nil
	}
	provider, model := eng.Provider(), eng.Model()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		return connCheckedMsg{provider: provider, model: model, err: eng.Ping(ctx)}
	}
}

type progressMsg pipeline.Progress

type runDoneMsg struct {
	all bool
	id  int
	err error
}

type connCheckedMsg struct {
	provider string
	model    string
	err      error
}

type fileLoadedMsg struct {
	path string
	doc  *document.Document
}

type fileErrorMsg struct{ error }

type savedMsg struct{ path string }

type saveErrorMsg struct{ error }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd, handled := a.handleKey(msg)
		if handled {
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.state.spinner, cmd = a.state.spinner.Update(msg)
		return a, cmd

	case progressMsg:
		if !a.state.running {
			return a, nil
		}
		p := pipeline.Progress(msg)
		a.state.current = &p
		if p.Stage == pipeline.StageFinished {
			a.state.finished[p.SkillID] = true
			delete(a.state.rendered, p.SkillID)
		}
		return a, waitForProgress(a.state.progressCh)

	case runDoneMsg:
		return a, a.finishRun(msg)

	case connCheckedMsg:
		if a.state.engine == nil || a.state.engine.Provider() != msg.provider {
			return a, nil
		}
		if msg.err != nil {
			a.logger.Warn("provider unreachable", "provider", msg.provider, "error", msg.err)
			a.state.setStatus(levelError, "Connection Error: "+msg.err.Error())
			return a, nil
		}
		a.state.setStatus(levelSuccess, fmt.Sprintf("LLM Connected! Using %s (%s)", msg.provider, msg.model))
		return a, nil

	case fileLoadedMsg:
		a.state.loadingFile = false
		a.state.pathInput.Reset()
		a.state.pathInput.Blur()
		a.state.document = msg.doc
		a.state.input.SetValue(msg.doc.Content)
		a.state.input.Focus()
		a.state.setStatus(levelSuccess, fmt.Sprintf("File '%s' loaded successfully! (%s)",
			filepath.Base(msg.path), msg.doc.Metadata.Summary()))
		a.logger.Info("upload extracted", "name", msg.path, "chars", msg.doc.Metadata.CharCount)
		return a, nil

	case fileErrorMsg:
		a.state.setStatus(levelError, "Error reading file: "+msg.Error())
		return a, nil

	case savedMsg:
		a.state.setStatus(levelSuccess, "Saved "+msg.path)
		return a, nil

	case saveErrorMsg:
		a.state.setStatus(levelError, "Save failed: "+msg.Error())
		return a, nil
	}

	// Forward to the focused component
	switch a.view {
	case viewInput:
		var cmd tea.Cmd
		if a.state.loadingFile {
			a.state.pathInput, cmd = a.state.pathInput.Update(msg)
		} else {
			a.state.input, cmd = a.state.input.Update(msg)
		}
		cmds = append(cmds, cmd)
	case viewResults:
		var cmd tea.Cmd
		a.state.viewport, cmd = a.state.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height

	w := a.boxWidth() - 4
	a.state.input.SetWidth(w)
	a.state.input.SetHeight(max(5, height-18))
	a.state.pathInput.Width = w - 2
	a.state.progress.Width = max(10, w-10)

	a.state.viewport.Width = w
	a.state.viewport.Height = max(5, height-12)
	if a.state.renderedW != w {
		a.state.rendered = make(map[int]string)
		a.state.renderedW = w
	}
	a.refreshViewport()
}

// handleKey reports whether the key was consumed by an app-level binding.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if key.Matches(msg, keys.Quit) {
		a.quitting = true
		return tea.Quit, true
	}

	if a.state.running {
		// no cancellation mid-pipeline; only quitting is possible
		return nil, true
	}

	switch {
	case key.Matches(msg, keys.Help):
		if a.view != viewHelp {
			a.prevView = a.view
			a.view = viewHelp
		}
		return nil, true

	case key.Matches(msg, keys.Back):
		return a.back(), true
	}

	switch a.view {
	case viewSettings:
		return a.handleSettingsKey(msg), true
	case viewHelp, viewError:
		return nil, true
	}

	if a.view == viewInput && a.state.loadingFile {
		if key.Matches(msg, keys.Enter) {
			return a.loadFile(a.state.pathInput.Value()), true
		}
		return nil, false
	}

	switch {
	case key.Matches(msg, keys.RunSingle):
		return a.startSingle(a.selectedSkillID()), true

	case key.Matches(msg, keys.RunAll):
		return a.startAll(), true

	case key.Matches(msg, keys.Clear):
		if a.state.controller != nil {
			a.state.controller.Clear(a.state.session)
		} else {
			a.state.session.Clear()
		}
		a.state.finished = make(map[int]bool)
		a.state.rendered = make(map[int]string)
		a.state.setStatus(levelInfo, "Results cleared.")
		a.refreshViewport()
		return nil, true

	case key.Matches(msg, keys.SaveReport):
		return a.saveReport(), true

	case key.Matches(msg, keys.SaveSkill):
		return a.saveSkill(a.selectedSkillID()), true

	case key.Matches(msg, keys.LoadFile):
		if a.view != viewInput {
			a.view = viewInput
		}
		a.state.loadingFile = true
		a.state.input.Blur()
		a.state.pathInput.Focus()
		return nil, true

	case key.Matches(msg, keys.Settings):
		a.prevView = a.view
		a.view = viewSettings
		a.state.settingsSelected = 0
		for i, p := range config.Providers {
			if p.ID == a.state.session.Provider() {
				a.state.settingsSelected = i
			}
		}
		return nil, true

	case key.Matches(msg, keys.Results):
		if a.view == viewResults {
			a.view = viewInput
			a.state.input.Focus()
		} else {
			a.view = viewResults
			a.state.input.Blur()
			a.refreshViewport()
		}
		return nil, true
	}

	if a.view == viewResults {
		switch {
		case key.Matches(msg, keys.NextTab):
			a.state.activeTab = (a.state.activeTab + 1) % a.registry.Len()
			a.refreshViewport()
			return nil, true
		case key.Matches(msg, keys.PrevTab):
			a.state.activeTab = (a.state.activeTab - 1 + a.registry.Len()) % a.registry.Len()
			a.refreshViewport()
			return nil, true
		}
	}

	return nil, false
}

func (a *App) back() tea.Cmd {
	switch a.view {
	case viewHelp, viewSettings:
		a.view = a.prevView
	case viewError:
		a.view = viewInput
		a.state.err = nil
	case viewResults:
		a.view = viewInput
	case viewInput:
		if a.state.loadingFile {
			a.state.loadingFile = false
			a.state.pathInput.Reset()
			a.state.pathInput.Blur()
		}
	}
	if a.view == viewInput {
		a.state.input.Focus()
	}
	return nil
}

// selectedSkillID is the skill under the results cursor, or the first skill
// when the results view is not showing.
func (a *App) selectedSkillID() int {
	all := a.registry.All()
	if len(all) == 0 {
		return 0
	}
	if a.view != viewResults {
		return all[0].ID
	}
	return all[a.state.activeTab%len(all)].ID
}

func (a *App) showError(err error) {
	a.state.err = err
	a.view = viewError
}

// ready reports whether a run can start, setting the status if not.
func (a *App) ready(input string) bool {
	if strings.TrimSpace(input) == "" {
		a.state.setStatus(levelWarning, "Please provide input text.")
		return false
	}
	if a.state.controller == nil {
		err := a.state.engineErr
		if err == nil {
			err = errors.New("no provider configured")
		}
		a.showError(err)
		return false
	}
	return true
}

func (a *App) startSingle(id int) tea.Cmd {
	input := a.state.input.Value()
	if !a.ready(input) {
		return nil
	}
	sk, ok := a.registry.Get(id)
	if !ok {
		return nil
	}

	a.state.running = true
	a.state.runAll = false
	a.state.current = &pipeline.Progress{
		Stage:     pipeline.StageStarted,
		SkillID:   id,
		SkillName: sk.Name,
		Total:     1,
		Message:   fmt.Sprintf("Analyzing Skill %d: %s...", id, sk.ShortName()),
	}
	a.view = viewProcessing
	a.state.input.Blur()

	ctrl, sess := a.state.controller, a.state.session
	return func() tea.Msg {
		err := ctrl.RunSingle(context.Background(), sess, id, input)
		return runDoneMsg{id: id, err: err}
	}
}

func (a *App) startAll() tea.Cmd {
	input := a.state.input.Value()
	if !a.ready(input) {
		return nil
	}

	a.state.running = true
	a.state.runAll = true
	a.state.current = nil
	a.state.finished = make(map[int]bool)
	a.view = viewProcessing
	a.state.input.Blur()

	ch := make(chan pipeline.Progress, 2*a.registry.Len()+1)
	a.state.progressCh = ch

	ctrl, sess := a.state.controller, a.state.session
	run := func() tea.Msg {
		err := ctrl.RunAll(context.Background(), sess, input, func(p pipeline.Progress) {
			ch <- p
		})
		close(ch)
		return runDoneMsg{all: true, err: err}
	}
	return tea.Batch(run, waitForProgress(ch))
}

// waitForProgress delivers the next progress event as a message.
func waitForProgress(ch <-chan pipeline.Progress) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

func (a *App) finishRun(msg runDoneMsg) tea.Cmd {
	a.state.running = false
	a.state.current = nil

	if msg.err != nil {
		a.view = viewInput
		a.state.input.Focus()
		if errors.Is(msg.err, pipeline.ErrEmptyInput) {
			a.state.setStatus(levelWarning, "Please provide input text.")
			return nil
		}
		a.showError(msg.err)
		return nil
	}

	if msg.all {
		a.state.activeTab = 0
		a.state.rendered = make(map[int]string)
		a.state.setStatus(levelSuccess, "Full Analysis Complete!")
	} else {
		for i, s := range a.registry.All() {
			if s.ID == msg.id {
				a.state.activeTab = i
			}
		}
		delete(a.state.rendered, msg.id)
		a.state.setStatus(levelSuccess, fmt.Sprintf("Skill %d Complete!", msg.id))
	}

	a.view = viewResults
	a.refreshViewport()
	return nil
}

func (a *App) loadFile(path string) tea.Cmd {
	path = strings.Trim(strings.TrimSpace(path), `"'`)
	if path == "" {
		return nil
	}
	conv := a.state.converter
	return func() tea.Msg {
		doc, err := conv.Convert(context.Background(), path)
		if err != nil {
			return fileErrorMsg{err}
		}
		return fileLoadedMsg{path: path, doc: doc}
	}
}

func (a *App) saveReport() tea.Cmd {
	results := a.state.session.Results()
	if len(results) == 0 {
		a.state.setStatus(levelWarning, "Run the analysis before exporting.")
		return nil
	}
	body := report.Build(a.registry, results, a.state.input.Value(), a.cfg.Report.InputLimit)
	return a.save(report.ReportFilename, body)
}

func (a *App) saveSkill(id int) tea.Cmd {
	text, ok := report.SkillOutput(a.state.session.Results(), id)
	if !ok {
		a.state.setStatus(levelWarning, "Run the analysis to see results.")
		return nil
	}
	return a.save(report.SkillFilename(id), text)
}

func (a *App) save(name, content string) tea.Cmd {
	dir := a.outDir
	return func() tea.Msg {
		path, err := report.Save(dir, name, content)
		if err != nil {
			return saveErrorMsg{err}
		}
		return savedMsg{path: path}
	}
}

func (a *App) handleSettingsKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Up):
		if a.state.settingsSelected > 0 {
			a.state.settingsSelected--
		}
	case key.Matches(msg, keys.Down):
		if a.state.settingsSelected < len(config.Providers)-1 {
			a.state.settingsSelected++
		}
	case key.Matches(msg, keys.Enter):
		return a.switchProvider(config.Providers[a.state.settingsSelected].ID)
	}
	return nil
}

// switchProvider configures id and then checks the connection. On failure
// the previous provider stays.
func (a *App) switchProvider(id string) tea.Cmd {
	if a.state.engine != nil {
		if err := a.state.engine.Configure(id); err != nil {
			a.state.setStatus(levelError, "Connection Error: "+err.Error())
			return nil
		}
		a.useEngine(a.state.engine)
	} else {
		if a.newEng == nil {
			return nil
		}
		eng, err := a.newEng(id)
		if err != nil {
			a.state.engineErr = err
			a.state.setStatus(levelError, "Connection Error: "+err.Error())
			return nil
		}
		a.useEngine(eng)
	}

	a.state.setStatus(levelInfo, fmt.Sprintf("Connecting to %s...", a.state.engine.Provider()))
	a.view = a.prevView
	if a.view == viewInput {
		a.state.input.Focus()
	}
	return a.checkConnection()
}

func (a *App) View() string {
	if a.quitting {
		return ""
	}

	switch a.view {
	case viewProcessing:
		return a.renderProcessing()
	case viewResults:
		return a.renderResults()
	case viewSettings:
		return a.renderSettings()
	case viewHelp:
		return a.renderHelp()
	case viewError:
		return a.renderError()
	default:
		return a.renderInput()
	}
}
