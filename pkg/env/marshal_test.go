package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Thesis   string        `env:"AGORA_THESIS"`
	Rounds   int           `env:"MAX_ROUNDS,required"`
	Ratio    float64       `env:"RESOLVE_THRESHOLD"`
	Timeout  time.Duration `env:"THINKER_TIMEOUT"`
	Thinkers []string      `env:"THINKERS" envSeparator:","`
	APIKey   string        `env:"OPENROUTER_API_KEY"`
	Enabled  bool          `env:"ENABLE_HTTP"`
	Skipped  string
	empty    string `env:"HIDDEN"`
}

func TestMarshalEnv(t *testing.T) {
	c := &sample{
		Thesis:   "Can AI create its own religion?",
		Rounds:   10,
		Ratio:    0.7,
		Timeout:  90 * time.Second,
		Thinkers: []string{"gpt:openrouter:x", "claude:openrouter:y"},
		APIKey:   "sk-secret",
		Skipped:  "ignored",
	}

	out, err := MarshalEnv(c, WithMask(IsSecretKey))
	require.NoError(t, err)

	assert.Equal(t, `AGORA_THESIS="Can AI create its own religion?"
MAX_ROUNDS=10
RESOLVE_THRESHOLD=0.7
THINKER_TIMEOUT=1m30s
THINKERS=gpt:openrouter:x,claude:openrouter:y
OPENROUTER_API_KEY=****
`, out)
}

func TestMarshalEnv_Unmasked(t *testing.T) {
	out, err := MarshalEnv(&sample{APIKey: "sk-secret"})
	require.NoError(t, err)
	assert.Equal(t, "OPENROUTER_API_KEY=sk-secret\n", out)
}

func TestMarshalEnv_NotAStructPointer(t *testing.T) {
	_, err := MarshalEnv(sample{})
	assert.Error(t, err)
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, IsSecretKey("ANTHROPIC_API_KEY"))
	assert.True(t, IsSecretKey("TELEGRAM_TOKEN"))
	assert.False(t, IsSecretKey("MAX_ROUNDS"))
}
