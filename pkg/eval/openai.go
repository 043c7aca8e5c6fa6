package eval

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"plotweave/pkg/flight"
)

const DefaultEmbeddingModel = "text-embedding-3-small"

// OpenAIEmbedder embeds passages with the OpenAI embeddings endpoint. Each
// distinct text is embedded once; batches only send the texts not cached.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	cache  *flight.Cache[string, []float64]
}

func NewOpenAIEmbedder(apiKey, model string, opts ...option.RequestOption) *OpenAIEmbedder {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	e := &OpenAIEmbedder{client: &client, model: cmp.Or(model, DefaultEmbeddingModel)}
	e.cache = flight.New(e.embed)
	e.cache.Expiry(24 * time.Hour)
	return e
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return e.cache.GetAll(ctx, texts)
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
	}
	return out, nil
}
