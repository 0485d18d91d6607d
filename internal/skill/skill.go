package skill

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrBadTemplate    = errors.New("template must contain the input placeholder exactly once")
	ErrBadFrontmatter = errors.New("invalid skill frontmatter")
)

// Skill is one numbered analysis step. Skills are values; a registry hands
// out copies and nothing mutates them after load.
type Skill struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Template    string `yaml:"-"`
}

// ShortName is the name without its parenthesised English gloss.
func (s Skill) ShortName() string {
	name, _, _ := strings.Cut(s.Name, "(")
	return strings.TrimSpace(name)
}

// Render substitutes input into the skill's template.
func (s Skill) Render(input string) string {
	return InputPlaceholder.Render(s.Template, input)
}

// Validate checks the invariants every registered skill must hold.
func (s Skill) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("skill %q: id must be positive, got %d", s.Name, s.ID)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("skill %d: name is empty", s.ID)
	}
	if n := strings.Count(s.Template, string(InputPlaceholder)); n != 1 {
		return fmt.Errorf("skill %d: %w (found %d)", s.ID, ErrBadTemplate, n)
	}
	return nil
}

// Parse reads a SKILL.md document: YAML frontmatter between "---" lines
// followed by the prompt template as the body.
func Parse(content []byte) (Skill, error) {
	text := strings.TrimPrefix(string(content), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if !strings.HasPrefix(text, "---\n") {
		return Skill{}, fmt.Errorf("%w: missing opening ---", ErrBadFrontmatter)
	}

	// parts[0] is "---\n" + frontmatter, parts[1] is the body
	parts := strings.SplitN(text, "\n---", 2)
	if len(parts) < 2 {
		return Skill{}, fmt.Errorf("%w: missing closing ---", ErrBadFrontmatter)
	}
	frontmatter := strings.TrimPrefix(parts[0], "---\n")
	body := strings.TrimPrefix(parts[1], "\n")

	var s Skill
	if err := yaml.Unmarshal([]byte(frontmatter), &s); err != nil {
		return Skill{}, fmt.Errorf("%w: %v", ErrBadFrontmatter, err)
	}
	s.Template = strings.TrimSpace(body)

	return s, nil
}
