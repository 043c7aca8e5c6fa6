package inference

import (
	"context"
	"errors"
	"fmt"

	"plotweave/pkg/schema"
)

// Echo answers with a fixed echo of the last user turn. It needs no network
// and is used for dry runs.
type Echo struct {
	Prefix string
}

func (e Echo) Generate(ctx context.Context, conv *schema.Conversation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	last, ok := conv.Last(schema.RoleUser)
	if !ok {
		return "", errors.New("echo: no user turn")
	}
	prefix := e.Prefix
	if prefix == "" {
		prefix = "echo"
	}
	return fmt.Sprintf("%s %d: %s", prefix, conv.Count(schema.RoleUser), last.Content), nil
}
