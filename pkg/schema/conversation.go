package schema

import "slices"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an append-only turn history. The zero value is an empty
// conversation without a system turn.
type Conversation struct {
	turns []Turn
}

// NewConversation starts a conversation, seeded with a system turn when system is non-empty.
func NewConversation(system string) *Conversation {
	c := new(Conversation)
	if system != "" {
		c.Append(RoleSystem, system)
	}
	return c
}

func (c *Conversation) Append(role Role, content string) {
	c.turns = append(c.turns, Turn{Role: role, Content: content})
}

// Turns returns a copy of the history so callers cannot rewrite it.
func (c *Conversation) Turns() []Turn {
	return slices.Clone(c.turns)
}

func (c *Conversation) Len() int { return len(c.turns) }

// Last returns the most recent turn of the given role.
func (c *Conversation) Last(role Role) (Turn, bool) {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == role {
			return c.turns[i], true
		}
	}
	return Turn{}, false
}

// Generated returns the assistant turn contents in order.
func (c *Conversation) Generated() []string {
	var out []string
	for _, t := range c.turns {
		if t.Role == RoleAssistant {
			out = append(out, t.Content)
		}
	}
	return out
}

// Count returns the number of turns with the given role.
func (c *Conversation) Count(role Role) int {
	var n int
	for _, t := range c.turns {
		if t.Role == role {
			n++
		}
	}
	return n
}
