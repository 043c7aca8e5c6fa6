package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"plotweave/pkg/schema"
)

// OpenAIInferencer implements Inferencer using OpenAI's official Go SDK. It
// also serves OpenAI-compatible providers through a different base URL.
type OpenAIInferencer struct {
	client  *openai.Client
	name    string
	apiKey  string
	baseURL string
	model   string
	Options Options
}

// NewOpenAIInferencer creates a new inferencer instance using OpenAI client.
func NewOpenAIInferencer(apiKey string, model string) *OpenAIInferencer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIInferencer{
		client: &client,
		name:   "openai",
		apiKey: apiKey,
		model:  cmp.Or(model, "gpt-4o-mini"),
	}
}

func (o *OpenAIInferencer) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
	o.baseURL = baseURL
}

func (o *OpenAIInferencer) SetModel(model string) {
	o.model = model
}

func (o *OpenAIInferencer) Model() string { return o.model }

func messages(conv *schema.Conversation) []openai.ChatCompletionMessageParamUnion {
	turns := conv.Turns()
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case schema.RoleSystem:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role: "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.Opt[string]{Value: t.Content},
					},
				}})
		case schema.RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role: "assistant",
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: param.Opt[string]{Value: t.Content},
					},
				}})
		default:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.Opt[string]{Value: t.Content},
					},
				}})
		}
	}
	return out
}

// Generate sends the whole conversation to the chat completion endpoint.
func (o *OpenAIInferencer) Generate(ctx context.Context, conv *schema.Conversation) (string, error) {
	if conv.Len() == 0 {
		return "", errors.New("empty conversation")
	}
	logRequest(o.name, o.model, conv)

	params := openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            messages(conv),
		MaxCompletionTokens: openai.Int(cmp.Or(o.Options.MaxTokens, 1024)),
	}
	if o.Options.Temperature != nil {
		params.Temperature = openai.Float(*o.Options.Temperature)
	}
	if o.Options.TopP != nil {
		params.TopP = openai.Float(*o.Options.TopP)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s inference error: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	content := resp.Choices[0].Message.Content
	if idx := strings.LastIndex(content, "</think>"); idx != -1 {
		content = content[idx+len("</think>"):]
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.New("empty completion content")
	}
	return content, nil
}
