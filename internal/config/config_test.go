package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDebateConfig_Defaults(t *testing.T) {
	c, err := ParseDebateConfig()
	require.NoError(t, err)

	assert.Equal(t, 10, c.MaxRounds)
	assert.Equal(t, 1, c.PointsPerRound)
	assert.Equal(t, 90*time.Second, c.ThinkerTimeout)
	assert.Equal(t, 3, c.ResolveMinResponses)
	assert.InDelta(t, 0.7, c.ResolveThreshold, 1e-9)
	assert.Equal(t, 5, c.MaxPointRounds)
	assert.Equal(t, 8000, c.MessageMaxChars)
	assert.Equal(t, "chars", c.ContextBudgetUnit)
}

func TestParseDebateConfig_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"MAX_ROUNDS", "0"},
		{"POINTS_PER_ROUND", "-1"},
		{"RESOLVE_THRESHOLD", "1.5"},
		{"THINKER_TIMEOUT", "0s"},
		{"THINKER_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := ParseDebateConfig()
			assert.Error(t, err)
		})
	}
}

func TestParseThinkerSpec(t *testing.T) {
	tests := []struct {
		raw     string
		want    ThinkerSpec
		wantErr bool
	}{
		{raw: "gpt:openrouter:openai/gpt-4o", want: ThinkerSpec{"gpt", "openrouter", "openai/gpt-4o"}},
		{raw: " llama : Ollama : llama3.1:8b ", want: ThinkerSpec{"llama", "ollama", "llama3.1:8b"}},
		{raw: "gpt:openrouter", wantErr: true},
		{raw: "gpt::model", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseThinkerSpec(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThinkersConfig_Specs(t *testing.T) {
	c := &ThinkersConfig{Thinkers: []string{"a:openai:gpt-4o", "", "b:anthropic:claude"}}
	specs, err := c.Specs()
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "b:anthropic:claude", specs[1].String())

	c.Thinkers = append(c.Thinkers, "a:ollama:llama3")
	_, err = c.Specs()
	assert.ErrorContains(t, err, "duplicate")

	_, err = (&ThinkersConfig{}).Specs()
	assert.Error(t, err)
}

func TestThinkersConfig_ModeratorSpec(t *testing.T) {
	_, ok, err := (&ThinkersConfig{}).ModeratorSpec()
	require.NoError(t, err)
	assert.False(t, ok)

	spec, ok, err := (&ThinkersConfig{Moderator: "mod:openai:gpt-4o-mini"}).ModeratorSpec()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mod", spec.Name)
}
