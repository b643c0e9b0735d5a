package chat

import (
	"time"

	"chatbridge/internal/agent"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AllSessions is the administrative sentinel accepted by session deletion
// and inspection. It is never a real session id.
const AllSessions = "ALL_CHATS"

// Turn is one conversation turn. Immutable once appended to a history.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at,omitempty"`
}

// History is the ordered turn sequence of one session. Values returned by
// the store are snapshots owned by the caller.
type History []Turn

// Messages converts a history into the wire shape generators consume.
func (h History) Messages() []agent.Message {
	msgs := make([]agent.Message, 0, len(h))
	for _, t := range h {
		msgs = append(msgs, agent.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
