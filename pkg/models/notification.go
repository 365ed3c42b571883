package models

// EventKind names a committed state change broadcast to room subscribers.
type EventKind string

const (
	EventMessageNew      EventKind = "message.new"
	EventMessageEdited   EventKind = "message.edited"
	EventMessageDeleted  EventKind = "message.deleted"
	EventReactionAdded   EventKind = "reaction.added"
	EventReactionRemoved EventKind = "reaction.removed"
	EventMessagePinned   EventKind = "message.pinned"
	EventMessageUnpinned EventKind = "message.unpinned"
	EventMemberAdded     EventKind = "member.added"
	EventMemberRemoved   EventKind = "member.removed"
	EventRoomUpdated     EventKind = "room.updated"
	EventRoomDeactivated EventKind = "room.deactivated"
	EventRoomRead        EventKind = "room.read"
	// EventTyping is ephemeral: relayed to live subscribers, never
	// persisted to the outbox.
	EventTyping EventKind = "typing"
)

// Notification is the post-change fact fanned out to the subscribers of
// a room. Seq is assigned per room in commit order. For deletions and
// unpins only the entity identity is carried.
type Notification struct {
	Kind EventKind `json:"kind"`
	Room string    `json:"room"`
	Seq  uint64    `json:"seq"`
	TS   int64     `json:"ts"`
	// Actor is the user whose operation produced the event.
	Actor string `json:"actor,omitempty"`
	// Entity identities; which are set depends on Kind.
	MessageID string `json:"message_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	// Payload is the post-change representation of the affected entity
	// (absent for delete/unpin events).
	Message  *Message  `json:"message,omitempty"`
	RoomMeta *Room     `json:"room_meta,omitempty"`
	Reaction *Reaction `json:"reaction,omitempty"`
	Pin      *Pin      `json:"pin,omitempty"`
}
