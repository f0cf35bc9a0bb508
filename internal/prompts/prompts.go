// Package prompts holds the agent personas for each pipeline stage.
//
// Prompt text is configuration data, not control flow: the pipeline only
// knows stage names; everything the collaborator is told lives in markdown
// files with YAML frontmatter (description, tool allow-list). Built-in
// definitions are embedded; a prompts directory can override any of them.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Stage agent names.
const (
	Triage         = "issue-triage"
	Clustering     = "issue-clustering"
	Prioritization = "issue-prioritization"
	Resolution     = "issue-resolution"
)

//go:embed defaults/*.md
var defaultFS embed.FS

// Definition is one agent persona.
type Definition struct {
	Name        string
	Description string
	Tools       []string
	Prompt      string
}

// TaskPrompt assembles the full prompt for one invocation: persona
// instructions plus the serialized task context. The approved flag appends
// the explicit proceed directive used after a human approves a fix plan.
func (d *Definition) TaskPrompt(taskContext string, approved bool) string {
	var b strings.Builder
	b.WriteString(d.Prompt)
	b.WriteString("\n\n## Current Task\n\n")
	b.WriteString(taskContext)
	if approved {
		b.WriteString("\n\nHuman approved the plan. Proceed with implementation.")
	}
	return b.String()
}

// Library resolves stage names to definitions.
type Library struct {
	defs map[string]*Definition
}

// Defaults loads the embedded agent definitions.
func Defaults() (*Library, error) {
	lib := &Library{defs: map[string]*Definition{}}
	entries, err := defaultFS.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("read embedded prompts: %w", err)
	}
	for _, e := range entries {
		data, err := defaultFS.ReadFile("defaults/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded prompt %s: %w", e.Name(), err)
		}
		def, err := parseDefinition(e.Name(), data)
		if err != nil {
			return nil, err
		}
		lib.defs[def.Name] = def
	}
	return lib, nil
}

// Load returns the embedded defaults with any *.md files from dir layered
// on top. A missing dir is fine: defaults apply unchanged.
func Load(dir string) (*Library, error) {
	lib, err := Defaults()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return lib, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("read prompts directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name())) // #nosec G304 - enumerated from config dir
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", e.Name(), err)
		}
		def, err := parseDefinition(e.Name(), data)
		if err != nil {
			return nil, err
		}
		lib.defs[def.Name] = def
	}
	return lib, nil
}

// Get resolves a stage agent by name.
func (l *Library) Get(name string) (*Definition, error) {
	def, ok := l.defs[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", name)
	}
	return def, nil
}

// frontmatter is the YAML header of a prompt file. Tools accepts either a
// YAML list or a comma-separated scalar.
type frontmatter struct {
	Description string    `yaml:"description"`
	Tools       toolsList `yaml:"tools"`
}

type toolsList []string

func (t *toolsList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*t = list
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		for _, part := range strings.Split(s, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				*t = append(*t, trimmed)
			}
		}
	default:
		return fmt.Errorf("tools must be a list or comma-separated string")
	}
	return nil
}

// parseDefinition splits frontmatter from body. A file without
// frontmatter is all body with no tools.
func parseDefinition(filename string, data []byte) (*Definition, error) {
	name := strings.TrimSuffix(filepath.Base(filename), ".md")
	def := &Definition{Name: name}

	content := string(data)
	if strings.HasPrefix(content, "---\n") {
		rest := content[len("---\n"):]
		end := strings.Index(rest, "\n---\n")
		if end < 0 {
			return nil, fmt.Errorf("prompt %s: unterminated frontmatter", filename)
		}
		var fm frontmatter
		if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
			return nil, fmt.Errorf("prompt %s: parse frontmatter: %w", filename, err)
		}
		def.Description = fm.Description
		def.Tools = fm.Tools
		content = rest[end+len("\n---\n"):]
	}
	def.Prompt = strings.TrimSpace(content)
	if def.Prompt == "" {
		return nil, fmt.Errorf("prompt %s: empty body", filename)
	}
	return def, nil
}
