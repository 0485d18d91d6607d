package llm

// KimiProvider is Moonshot's OpenAI-compatible endpoint.
type KimiProvider struct {
	*OpenAIProvider
}

func NewKimiProvider(baseURL, apiKey, model string) *KimiProvider {
	if baseURL == "" {
		baseURL = "https://api.moonshot.cn/v1"
	}
	if model == "" {
		model = "moonshot-v1-8k"
	}
	return &KimiProvider{
		OpenAIProvider: NewOpenAIProvider("kimi", baseURL, apiKey, model),
	}
}
