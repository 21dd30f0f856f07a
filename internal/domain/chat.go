package domain

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one immutable entry in a conversation. It is also the wire shape
// of a message sent to the retrieval backend.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserTurn(content string) ChatTurn {
	return ChatTurn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string) ChatTurn {
	return ChatTurn{Role: RoleAssistant, Content: content}
}
