package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"plotweave/pkg/schema"
)

type GeminiInferencer struct {
	client  *genai.Client
	apiKey  string
	model   string
	Options Options
}

// NewGeminiInferencer creates a new inferencer instance using the genai client.
func NewGeminiInferencer(ctx context.Context, apiKey string, model string) (*GeminiInferencer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiInferencer{
		client: client,
		apiKey: apiKey,
		model:  cmp.Or(model, "gemini-2.5-flash"),
	}, nil
}

func (o *GeminiInferencer) SetModel(model string) {
	o.model = model
}

// contents splits a conversation into the system instruction and the
// user/model turns genai expects.
func contents(conv *schema.Conversation) (system *genai.Content, out []*genai.Content) {
	var sys []string
	for _, t := range conv.Turns() {
		switch t.Role {
		case schema.RoleSystem:
			sys = append(sys, t.Content)
		case schema.RoleAssistant:
			out = append(out, genai.NewContentFromText(t.Content, genai.RoleModel))
		default:
			out = append(out, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}
	if len(sys) > 0 {
		system = genai.NewContentFromText(strings.Join(sys, "\n\n"), genai.RoleUser)
	}
	return system, out
}

// maxOutputTokens narrows n to the int32 the Gemini API takes.
func maxOutputTokens(n int64) int32 {
	return int32(min(cmp.Or(n, 1024), math.MaxInt32))
}

// Generate sends the conversation to the Gemini generate content endpoint.
func (o *GeminiInferencer) Generate(ctx context.Context, conv *schema.Conversation) (string, error) {
	system, turns := contents(conv)
	if len(turns) == 0 {
		return "", errors.New("empty conversation")
	}
	logRequest("gemini", o.model, conv)

	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		MaxOutputTokens:   maxOutputTokens(o.Options.MaxTokens),
	}
	if o.Options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*o.Options.Temperature))
	}
	if o.Options.TopP != nil {
		config.TopP = genai.Ptr(float32(*o.Options.TopP))
	}

	result, err := o.client.Models.GenerateContent(ctx, o.model, turns, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty result")
	}
	return text, nil
}
