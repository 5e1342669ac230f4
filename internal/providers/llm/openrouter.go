package llm

import "github.com/sandevgo/agora/internal/core"

const openRouterURL = "https://openrouter.ai/api"

type OpenRouter struct {
	*OpenAICompatible
}

// NewOpenRouter attributes requests to the project through the
// HTTP-Referer and X-Title headers OpenRouter uses for app rankings.
func NewOpenRouter(apiKey, model string) *OpenRouter {
	return &OpenRouter{
		OpenAICompatible: NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    openRouterURL,
			APIKey:     apiKey,
			Model:      model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
			ExtraHeaders: map[string]string{
				"HTTP-Referer": core.AgoraRepositoryURL,
				"X-Title":      core.AgoraName,
			},
		}),
	}
}
