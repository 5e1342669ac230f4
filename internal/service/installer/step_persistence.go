package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sandevgo/agora/internal/providers/llm"
)

// SaveEnvStep writes the collected configuration to the .env file
type SaveEnvStep struct {
	err   error
	saved bool
}

func NewSaveEnvStep() Step {
	return &SaveEnvStep{}
}

func (s *SaveEnvStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveEnvStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.saved {
		return nil, nil
	}
	if s.err = SaveEnv(state); s.err != nil {
		return s, nil
	}
	s.saved = true
	return nil, nil
}

// SaveEnv writes state.EnvVars to <runtime>/.env. An existing file is left
// untouched.
func SaveEnv(state *InstallState) error {
	if err := os.MkdirAll(state.RuntimePath, 0o700); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	envPath := filepath.Join(state.RuntimePath, ".env")
	if _, err := os.Stat(envPath); err == nil {
		return fmt.Errorf(".env file already exists at %s", envPath)
	}

	content, err := godotenv.Marshal(state.EnvVars)
	if err != nil {
		return fmt.Errorf("failed to marshal env: %w", err)
	}
	return os.WriteFile(envPath, []byte(content+"\n"), 0o600)
}

func (s *SaveEnvStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.saved {
		return "Configuration saved successfully!\n"
	}
	return "Saving configuration...\n"
}

// InitializeFilesStep writes an editable persona file for every thinker
type InitializeFilesStep struct {
	err  error
	done bool
}

func NewInitializeFilesStep() Step {
	return &InitializeFilesStep{}
}

func (s *InitializeFilesStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *InitializeFilesStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.done {
		return nil, nil
	}
	if s.err = WritePersonas(state); s.err != nil {
		return s, nil
	}
	s.done = true
	return nil, nil
}

// WritePersonas creates personas/<name>.md with the built-in prompt for
// each thinker that has no file yet.
func WritePersonas(state *InstallState) error {
	dir := filepath.Join(state.RuntimePath, "personas")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create personas directory: %w", err)
	}

	for _, name := range state.Thinkers {
		dst := filepath.Join(dir, name+".md")
		if _, err := os.Stat(dst); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := os.WriteFile(dst, []byte(llm.DefaultPersona(name)+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
	}
	return nil
}

func (s *InitializeFilesStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.done {
		return "Persona files initialized successfully!\n"
	}
	return "Initializing persona files...\n"
}
