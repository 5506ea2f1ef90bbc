package event

type Type string

const (
	TypeSessionEnded    Type = "session.ended"
	TypeProfileCreated  Type = "profile.created"
	TypeProfileUpdated  Type = "profile.updated"
	TypeAIUsageChanged  Type = "ai_usage.changed"
	TypeEntryCreated    Type = "entry.created"
	TypeEntryUpdated    Type = "entry.updated"
	TypeEntryDeleted    Type = "entry.deleted"
	TypeReflectionReady Type = "entry.reflection_ready"
)

// Event is scoped to one user; only that user's sockets receive it.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	UserID    string `json:"-"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
