package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

var (
	ErrEmptyInput   = errors.New("please provide input text")
	ErrUnknownSkill = errors.New("unknown skill")
)

// Generator turns a prompt into text. Failures are reported inside the
// returned text, never as an error.
type Generator interface {
	Generate(ctx context.Context, prompt, systemRole string) string
}

// Stage represents where a run is
type Stage int

const (
	StageStarted Stage = iota
	StageFinished
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStarted:
		return "Started"
	case StageFinished:
		return "Finished"
	case StageDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Progress is reported while RunAll walks the registry. Completed counts
// skills finished so far out of Total.
type Progress struct {
	Stage     Stage
	SkillID   int
	SkillName string
	Completed int
	Total     int
	Message   string
}

// Fraction returns Completed/Total in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Controller runs skills from a registry against a session.
type Controller struct {
	registry   *skill.Registry
	generator  Generator
	systemRole string
	logger     *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithSystemRole sets the system role sent with every prompt. Empty means
// the generator's default.
func WithSystemRole(role string) Option {
	return func(c *Controller) { c.systemRole = role }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a controller
func NewController(registry *skill.Registry, generator Generator, opts ...Option) *Controller {
	c := &Controller{
		registry:  registry,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunSingle renders skill id with input and stores the generated text under
// id, replacing any previous result.
func (c *Controller) RunSingle(ctx context.Context, s *Session, id int, input string) error {
	if isBlank(input) {
		return ErrEmptyInput
	}
	sk, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSkill, id)
	}

	s.SetInput(input)
	s.setResult(id, c.run(ctx, sk, input))
	return nil
}

// RunAll runs every registered skill once in ascending id order. A skill
// whose generation fails stores the failure text and the run continues.
// onProgress, if set, receives a StageStarted and a StageFinished event per
// skill and a final StageDone. The walk is never cut short: a cancelled ctx
// surfaces as failure text from the generator like any other error.
func (c *Controller) RunAll(ctx context.Context, s *Session, input string, onProgress func(Progress)) error {
	if isBlank(input) {
		return ErrEmptyInput
	}
	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	s.SetInput(input)
	skills := c.registry.All()
	total := len(skills)

	for i, sk := range skills {
		report(Progress{
			Stage:     StageStarted,
			SkillID:   sk.ID,
			SkillName: sk.Name,
			Completed: i,
			Total:     total,
			Message:   fmt.Sprintf("Generating %s...", sk.Name),
		})

		s.setResult(sk.ID, c.run(ctx, sk, input))

		report(Progress{
			Stage:     StageFinished,
			SkillID:   sk.ID,
			SkillName: sk.Name,
			Completed: i + 1,
			Total:     total,
			Message:   fmt.Sprintf("%s complete", sk.ShortName()),
		})
	}

	report(Progress{
		Stage:     StageDone,
		Completed: total,
		Total:     total,
		Message:   "Full analysis complete",
	})
	return nil
}

// Clear discards every stored result.
func (c *Controller) Clear(s *Session) {
	s.Clear()
	c.logger.Info("results cleared", "session", s.ID)
}

func (c *Controller) run(ctx context.Context, sk skill.Skill, input string) string {
	c.logger.Info("skill started", "skill", sk.ID, "name", sk.ShortName())
	start := time.Now()

	out := c.generator.Generate(ctx, sk.Render(input), c.systemRole)

	c.logger.Info("skill finished",
		"skill", sk.ID,
		"duration", time.Since(start).Round(time.Millisecond),
		"chars", len(out))
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
