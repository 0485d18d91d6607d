package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

// fakeGenerator records prompts and answers from a script.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	roles   []string
	reply   func(prompt string) string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, systemRole string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.roles = append(f.roles, systemRole)
	if f.reply != nil {
		return f.reply(prompt)
	}
	return "out:" + prompt
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func testRegistry(t *testing.T) *skill.Registry {
	t.Helper()
	r, err := skill.NewRegistry(
		skill.Skill{ID: 1, Name: "One (first)", Template: "S1 {{input}}"},
		skill.Skill{ID: 2, Name: "Two", Template: "S2 {{input}}"},
		skill.Skill{ID: 3, Name: "Three", Template: "S3 {{input}}"},
	)
	require.NoError(t, err)
	return r
}

func TestRunSingle(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")

	require.NoError(t, c.RunSingle(context.Background(), s, 2, "motor heats"))

	assert.Equal(t, []string{"S2 motor heats"}, gen.prompts)
	assert.Equal(t, map[int]string{2: "out:S2 motor heats"}, s.Results())
	assert.Equal(t, "motor heats", s.Input())
}

func TestRunSingle_ReplacesPreviousResult(t *testing.T) {
	n := 0
	gen := &fakeGenerator{reply: func(string) string { n++; return strings.Repeat("x", n) }}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")

	require.NoError(t, c.RunSingle(context.Background(), s, 1, "a"))
	require.NoError(t, c.RunSingle(context.Background(), s, 1, "a"))

	text, ok := s.Result(1)
	require.True(t, ok)
	assert.Equal(t, "xx", text)
	assert.Equal(t, 1, s.Completed())
}

func TestRunSingle_EmptyInputIsNoOp(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")
	s.setResult(3, "kept")

	for _, input := range []string{"", "   ", "\n\t"} {
		err := c.RunSingle(context.Background(), s, 1, input)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}

	assert.Zero(t, gen.calls())
	assert.Equal(t, map[int]string{3: "kept"}, s.Results())
}

func TestRunSingle_UnknownSkill(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")

	err := c.RunSingle(context.Background(), s, 99, "input")
	assert.ErrorIs(t, err, ErrUnknownSkill)
	assert.Zero(t, gen.calls())
	assert.Zero(t, s.Completed())
}

func TestRunAll(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(testRegistry(t), gen, WithSystemRole("TRIZ expert"))
	s := NewSession("s1", "kimi")

	var events []Progress
	require.NoError(t, c.RunAll(context.Background(), s, "pump leaks", func(p Progress) {
		events = append(events, p)
	}))

	assert.Equal(t, []string{"S1 pump leaks", "S2 pump leaks", "S3 pump leaks"}, gen.prompts)
	assert.Equal(t, []string{"TRIZ expert", "TRIZ expert", "TRIZ expert"}, gen.roles)
	assert.Equal(t, []int{1, 2, 3}, s.CompletedIDs())

	var fractions []float64
	for _, e := range events {
		if e.Stage == StageFinished {
			fractions = append(fractions, e.Fraction())
		}
	}
	assert.InDeltaSlice(t, []float64{1.0 / 3, 2.0 / 3, 1}, fractions, 1e-9)

	require.Len(t, events, 7)
	assert.Equal(t, StageStarted, events[0].Stage)
	assert.Equal(t, 0, events[0].Completed)
	assert.Equal(t, "Generating One (first)...", events[0].Message)
	assert.Equal(t, StageDone, events[6].Stage)
	assert.Equal(t, 1.0, events[6].Fraction())
}

func TestRunAll_FailuresAreStoredAndDoNotAbort(t *testing.T) {
	gen := &fakeGenerator{reply: func(prompt string) string {
		if strings.HasPrefix(prompt, "S2") {
			return "Error calling deepseek: status 500: boom"
		}
		return "ok"
	}}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")

	require.NoError(t, c.RunAll(context.Background(), s, "x", nil))

	assert.Equal(t, 3, gen.calls())
	assert.Equal(t, map[int]string{
		1: "ok",
		2: "Error calling deepseek: status 500: boom",
		3: "ok",
	}, s.Results())
}

func TestRunAll_RerunsCompletedSkills(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")

	require.NoError(t, c.RunSingle(context.Background(), s, 1, "x"))
	require.NoError(t, c.RunAll(context.Background(), s, "x", nil))

	assert.Equal(t, 4, gen.calls())
	assert.Equal(t, 3, s.Completed())
}

func TestRunAll_EmptyInput(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")

	called := false
	err := c.RunAll(context.Background(), s, " ", func(Progress) { called = true })
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.False(t, called)
	assert.Zero(t, gen.calls())
}

func TestClear(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")
	require.NoError(t, c.RunAll(context.Background(), s, "input", nil))

	c.Clear(s)
	assert.Zero(t, s.Completed())
	assert.Empty(t, s.Results())
	assert.Equal(t, "input", s.Input())

	c.Clear(s)
	assert.Zero(t, s.Completed())
}

func TestSession_ResultsIsACopy(t *testing.T) {
	s := NewSession("s1", "deepseek")
	s.setResult(1, "a")

	got := s.Results()
	got[1] = "mutated"
	got[2] = "added"

	text, _ := s.Result(1)
	assert.Equal(t, "a", text)
	assert.Equal(t, 1, s.Completed())
}

func TestProgress_Fraction(t *testing.T) {
	assert.Equal(t, 0.0, Progress{}.Fraction())
	assert.Equal(t, 0.5, Progress{Completed: 5, Total: 10}.Fraction())
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "Started", StageStarted.String())
	assert.Equal(t, "Done", StageDone.String())
	assert.Equal(t, "Unknown", Stage(42).String())
}

func TestRunAll_CancelledContextStillVisitsEverySkill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{}
	c := NewController(testRegistry(t), gen)
	s := NewSession("s1", "deepseek")

	require.NoError(t, c.RunAll(ctx, s, "x", nil))
	assert.Equal(t, 3, gen.calls())
	assert.Equal(t, []int{1, 2, 3}, s.CompletedIDs())
}
