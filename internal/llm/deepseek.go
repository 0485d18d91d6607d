package llm

type DeepSeekProvider struct {
	*OpenAIProvider
}

func NewDeepSeekProvider(baseURL, apiKey, model string) *DeepSeekProvider {
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	if model == "" {
		model = "deepseek-chat"
	}
	return &DeepSeekProvider{
		OpenAIProvider: NewOpenAIProvider("deepseek", baseURL, apiKey, model),
	}
}
