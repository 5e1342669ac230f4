package installer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/agora/internal/config"
)

var defaultModels = map[string][]string{
	"openrouter": {"openai/gpt-4o-mini", "anthropic/claude-3.5-haiku", "google/gemini-2.0-flash-001"},
	"openai":     {"gpt-4o-mini", "gpt-4o", "o3-mini"},
	"anthropic":  {"claude-3-5-haiku-latest", "claude-3-7-sonnet-latest"},
	"ollama":     {"llama3.1", "mistral", "qwen2.5"},
}

// ThinkersStep asks for the models taking part in the debate, one thinker
// per model.
type ThinkersStep struct {
	input    textinput.Model
	provider string
	err      error
}

func NewThinkersStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 60
	return &ThinkersStep{input: ti}
}

func (s *ThinkersStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *ThinkersStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	s.prepare(state)

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		models := splitModels(s.input.Value())
		if len(models) == 0 {
			models = defaultModels[state.Provider]
		}

		entries, names, err := BuildThinkers(state.Provider, models)
		if err != nil {
			s.err = err
			return s, cmd
		}
		state.Thinkers = names
		state.EnvVars["THINKERS"] = strings.Join(entries, ",")
		return nil, nil
	}
	return s, cmd
}

func (s *ThinkersStep) prepare(state *InstallState) {
	if s.provider == state.Provider {
		return
	}
	s.provider = state.Provider
	if defaults, ok := defaultModels[s.provider]; ok {
		s.input.Placeholder = strings.Join(defaults, ", ")
	} else {
		s.input.Placeholder = "model-a, model-b"
	}
}

func (s *ThinkersStep) View(state *InstallState) string {
	s.prepare(state)

	var b strings.Builder
	b.WriteString("Which models should debate? (comma separated, Enter for the suggestion)\n\n")
	b.WriteString(s.input.View() + "\n\n")
	if s.err != nil {
		b.WriteString(errorStyle.Render(s.err.Error()) + "\n\n")
	}
	b.WriteString("(press enter to confirm)\n")
	return b.String()
}

func splitModels(raw string) []string {
	var out []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// BuildThinkers turns models into THINKERS entries named after the model
// family, e.g. openai/gpt-4o-mini becomes gpt.
func BuildThinkers(provider string, models []string) ([]string, []string, error) {
	if len(models) < 2 {
		return nil, nil, fmt.Errorf("a debate needs at least two thinkers, got %d", len(models))
	}

	seen := make(map[string]int)
	entries := make([]string, 0, len(models))
	names := make([]string, 0, len(models))
	for _, m := range models {
		name := thinkerName(m)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		names = append(names, name)
		entries = append(entries, config.ThinkerSpec{Name: name, Provider: provider, Model: m}.String())
	}

	cfg := config.ThinkersConfig{Thinkers: entries}
	if _, err := cfg.Specs(); err != nil {
		return nil, nil, err
	}
	return entries, names, nil
}

func thinkerName(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	if i := strings.IndexAny(model, "-:."); i > 0 {
		model = model[:i]
	}
	if model == "" {
		return "thinker"
	}
	return strings.ToLower(model)
}
