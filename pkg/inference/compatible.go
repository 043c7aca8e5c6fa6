package inference

import "cmp"

// Provider describes an OpenAI-compatible chat endpoint.
type Provider struct {
	Name         string
	BaseURL      string
	DefaultModel string
}

var (
	Grok     = Provider{Name: "grok", BaseURL: "https://api.x.ai/v1", DefaultModel: "grok-4-fast-reasoning"}
	Kimi     = Provider{Name: "kimi", BaseURL: "https://api.kimi.com/coding/v1", DefaultModel: "kimi-for-coding"}
	Moonshot = Provider{Name: "moonshot", BaseURL: "https://api.moonshot.ai/v1", DefaultModel: "kimi-k2-5"}
)

func NewCompatibleInferencer(p Provider, apiKey, model string) *OpenAIInferencer {
	o := NewOpenAIInferencer(apiKey, cmp.Or(model, p.DefaultModel))
	o.ChangeBaseURL(p.BaseURL)
	o.name = p.Name
	return o
}

// NewGrokInferencer creates an inferencer for xAI's OpenAI-compatible API.
func NewGrokInferencer(apiKey, model string) *OpenAIInferencer {
	return NewCompatibleInferencer(Grok, apiKey, model)
}

// NewKimiInferencer creates an inferencer for the Kimi (Moonshot AI) coding API.
func NewKimiInferencer(apiKey, model string) *OpenAIInferencer {
	return NewCompatibleInferencer(Kimi, apiKey, model)
}

func NewMoonshotInferencer(apiKey, model string) *OpenAIInferencer {
	return NewCompatibleInferencer(Moonshot, apiKey, model)
}
