package assistant

import "time"

// Role identifies who produced a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Conversation is a chat thread owned by one user.
type Conversation struct {
	ID        int
	UserID    int
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is one turn in a conversation. ToolName is set only on tool
// result messages, which are kept for auditability.
type ChatMessage struct {
	ID             int
	ConversationID int
	Role           Role
	Content        string
	ToolName       *string
	CreatedAt      time.Time
}

// Reply is the assistant's answer to one user message. HTML carries the
// markdown-rendered content for direct display.
type Reply struct {
	ConversationID int
	Message        ChatMessage
	HTML           string
	ToolsUsed      []string
}
