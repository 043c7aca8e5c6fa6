package inference

import (
	"context"

	"github.com/charmbracelet/log"

	"plotweave/pkg/schema"
	"plotweave/pkg/utils"
)

// Inferencer generates the next turn of a conversation. Implementations must
// not retain or modify the conversation.
type Inferencer interface {
	Generate(ctx context.Context, conv *schema.Conversation) (string, error)
}

// Func adapts a plain function to Inferencer.
type Func func(ctx context.Context, conv *schema.Conversation) (string, error)

func (f Func) Generate(ctx context.Context, conv *schema.Conversation) (string, error) {
	return f(ctx, conv)
}

// Options are the sampling parameters shared by the hosted providers.
// MaxTokens 0 means 1024; nil Temperature and TopP use the provider default.
type Options struct {
	MaxTokens   int64
	Temperature *float64
	TopP        *float64
}

func logRequest(provider, model string, conv *schema.Conversation) {
	if log.GetLevel() > log.DebugLevel {
		return
	}
	var text string
	for _, t := range conv.Turns() {
		text += t.Content
	}
	tokens, err := utils.NumTokens(text)
	if err != nil {
		log.Debug("generating", "provider", provider, "model", model, "turns", conv.Len(), "chars", len(text))
		return
	}
	log.Debug("generating", "provider", provider, "model", model, "turns", conv.Len(), "chars", len(text), "tokens", tokens)
}
