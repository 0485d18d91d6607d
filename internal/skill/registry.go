package skill

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
)

//go:embed skills/*/SKILL.md
var builtin embed.FS

// Registry is the ordered, read-only set of skills a pipeline runs.
type Registry struct {
	skills []Skill      // ascending by ID
	byID   map[int]int // ID -> index into skills
}

// NewRegistry validates skills and orders them by id. Ids must be unique.
func NewRegistry(skills ...Skill) (*Registry, error) {
	r := &Registry{
		skills: make([]Skill, 0, len(skills)),
		byID:   make(map[int]int, len(skills)),
	}

	for _, s := range skills {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate skill id %d", s.ID)
		}
		r.byID[s.ID] = -1
		r.skills = append(r.skills, s)
	}

	sort.Slice(r.skills, func(i, j int) bool { return r.skills[i].ID < r.skills[j].ID })
	for i, s := range r.skills {
		r.byID[s.ID] = i
	}

	return r, nil
}

// Load reads every */SKILL.md in fsys.
func Load(fsys fs.FS) (*Registry, error) {
	skills, err := readSkills(fsys)
	if err != nil {
		return nil, err
	}
	return NewRegistry(skills...)
}

// Default returns the built-in TRIZ skills.
func Default() *Registry {
	r, err := Load(builtinFS())
	if err != nil {
		panic(fmt.Sprintf("skill: embedded skills are invalid: %v", err))
	}
	return r
}

// LoadWithOverrides returns the built-in skills with any skill in dir
// replacing the built-in of the same id, or adding a new one. An empty dir
// yields Default().
func LoadWithOverrides(dir string) (*Registry, error) {
	base, err := readSkills(builtinFS())
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return NewRegistry(base...)
	}

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("skills dir: %w", err)
	}
	extra, err := readSkills(os.DirFS(dir))
	if err != nil {
		return nil, err
	}

	merged := make(map[int]Skill, len(base)+len(extra))
	for _, s := range base {
		merged[s.ID] = s
	}
	for _, s := range extra {
		merged[s.ID] = s
	}

	all := make([]Skill, 0, len(merged))
	for _, s := range merged {
		all = append(all, s)
	}
	return NewRegistry(all...)
}

func builtinFS() fs.FS {
	sub, err := fs.Sub(builtin, "skills")
	if err != nil {
		panic(err)
	}
	return sub
}

func readSkills(fsys fs.FS) ([]Skill, error) {
	paths, err := fs.Glob(fsys, "*/SKILL.md")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	skills := make([]Skill, 0, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Dir(p), err)
		}
		skills = append(skills, s)
	}
	return skills, nil
}

// Get returns the skill with id and whether it exists.
func (r *Registry) Get(id int) (Skill, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Skill{}, false
	}
	return r.skills[i], true
}

// Has reports whether id is registered.
func (r *Registry) Has(id int) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns the skills in ascending id order.
func (r *Registry) All() []Skill {
	out := make([]Skill, len(r.skills))
	copy(out, r.skills)
	return out
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int {
	ids := make([]int, len(r.skills))
	for i, s := range r.skills {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of loaded skills
func (r *Registry) Len() int {
	return len(r.skills)
}
