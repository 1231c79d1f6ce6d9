package assistant

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an append-only list of turns that always starts with the
// system prompt. Append never mutates the receiver, so a Conversation can be
// held inside a session state value and rolled back by keeping the old value.
type Conversation struct {
	messages []Message
}

// NewConversation starts a conversation with the given system prompt.
func NewConversation(systemPrompt string) Conversation {
	return Conversation{messages: []Message{{Role: RoleSystem, Content: systemPrompt}}}
}

// Append returns a new conversation with the turn added at the end.
func (c Conversation) Append(role Role, content string) Conversation {
	next := make([]Message, len(c.messages), len(c.messages)+1)
	copy(next, c.messages)
	return Conversation{messages: append(next, Message{Role: role, Content: content})}
}

// Messages returns a copy of every turn in order.
func (c Conversation) Messages() []Message {
	return append([]Message(nil), c.messages...)
}

// Len returns the number of turns, including the system prompt.
func (c Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent turn.
func (c Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}
