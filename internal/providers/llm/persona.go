package llm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const defaultPersona = `You are %s, one of several thinkers in a philosophical debate.
Argue in your own voice and engage with what the others said.
Open with your position: I agree, I disagree, or I propose.
Keep it under 200 words. Raise at most one open question, ending it with '?'.`

const moderatorPersona = `You are %s, the moderator of a philosophical debate.
You read settled points and propose what the thinkers should debate next.
Answer with a single question and nothing else.`

// LoadPersona returns the system prompt for name. A file personas/<name>.md
// under dir overrides the built-in text.
func LoadPersona(dir, name string) (string, error) {
	return loadPersona(dir, name, defaultPersona)
}

func LoadModeratorPersona(dir, name string) (string, error) {
	return loadPersona(dir, name, moderatorPersona)
}

func loadPersona(dir, name, fallback string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name+".md"))
		switch {
		case err == nil:
			if text := strings.TrimSpace(string(data)); text != "" {
				return text, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("failed to read persona %s: %w", name, err)
		}
	}
	return fmt.Sprintf(fallback, name), nil
}

// DefaultPersona is the built-in system prompt for a thinker called name.
func DefaultPersona(name string) string {
	return fmt.Sprintf(defaultPersona, name)
}
