package installer

import (
	tea "github.com/charmbracelet/bubbletea"
)

// FinalizationStep sets the values derived from earlier answers
type FinalizationStep struct{}

func NewFinalizationStep() Step {
	return &FinalizationStep{}
}

func (s *FinalizationStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *FinalizationStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if state.EnvVars["TELEGRAM_TOKEN"] != "" {
		state.EnvVars["ENABLE_TELEGRAM"] = "true"
	} else {
		state.EnvVars["ENABLE_TELEGRAM"] = "false"
	}

	if state.EnvVars["AGORA_DEBUG"] == "" {
		state.EnvVars["AGORA_DEBUG"] = "0"
	}

	return nil, nil
}

func (s *FinalizationStep) View(state *InstallState) string {
	return "Finalizing configuration...\n"
}
