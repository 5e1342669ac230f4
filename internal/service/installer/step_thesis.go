package installer

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const defaultThesis = "Can AI create its own religion?"

// ThesisStep asks for the question that opens the debate
type ThesisStep struct {
	input textinput.Model
}

func NewThesisStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	ti.Placeholder = defaultThesis
	return &ThesisStep{input: ti}
}

func (s *ThesisStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *ThesisStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if val := strings.TrimSpace(s.input.Value()); val != "" {
			state.EnvVars["AGORA_THESIS"] = val
		}
		return nil, nil
	}
	return s, cmd
}

func (s *ThesisStep) View(state *InstallState) string {
	return "What should the thinkers debate?\n\n" + s.input.View() + "\n\n(press enter to keep the suggestion)\n"
}
