package models

// RoomKind distinguishes pairwise rooms from administered group rooms.
type RoomKind string

const (
	RoomPrivate RoomKind = "PRIVATE"
	RoomGroup   RoomKind = "GROUP"
)

// Room is a messaging context with a bounded member set. Membership is
// owned here; users carry no back-pointer to their rooms (the
// userroom index answers "rooms of a user").
// Invariants: the creator is always a member; a PRIVATE room has exactly
// two members and is unique per unordered user pair; removal is a soft
// deactivation so history stays addressable.
type Room struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Kind        RoomKind `json:"kind"`
	Creator     string   `json:"creator"`
	Active      bool     `json:"active"`
	// Members is the unordered member set (user ids, unique).
	Members   []string `json:"members"`
	CreatedTS int64    `json:"created_ts"`
	UpdatedTS int64    `json:"updated_ts,omitempty"`
}

// IsMember reports whether userID is in the member set.
func (r *Room) IsMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// RoomSummary is the room representation rendered for room listings:
// the room plus per-requester read-state and the latest message.
type RoomSummary struct {
	Room
	UnreadCount int64    `json:"unread_count"`
	LastMessage *Message `json:"last_message,omitempty"`
}
