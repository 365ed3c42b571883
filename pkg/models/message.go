package models

// MessageKind is the payload type of a message.
type MessageKind string

const (
	KindText  MessageKind = "TEXT"
	KindImage MessageKind = "IMAGE"
	KindFile  MessageKind = "FILE"
)

// MessageStatus is the delivery state, monotonic SENT -> READ.
type MessageStatus string

const (
	StatusSent MessageStatus = "SENT"
	StatusRead MessageStatus = "READ"
)

// DeletedContent replaces the content of a soft-deleted message. The
// original text is unrecoverable afterwards.
const DeletedContent = "[deleted]"

// FileMeta is the optional attachment metadata carried by IMAGE/FILE
// messages. Cleared on soft delete.
type FileMeta struct {
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Message belongs to exactly one room for its whole life; forwarding
// creates a new message in the target room. CreatedTS never changes and
// defines the room ordering.
type Message struct {
	ID      string        `json:"id"`
	Room    string        `json:"room"`
	Sender  string        `json:"sender"`
	Content string        `json:"content"`
	Kind    MessageKind   `json:"kind"`
	Status  MessageStatus `json:"status"`
	// ReplyTo is an optional parent message id (an index, not an
	// embedded object; the reply graph is a tree, never a cycle).
	ReplyTo   string    `json:"reply_to,omitempty"`
	File      *FileMeta `json:"file,omitempty"`
	Edited    bool      `json:"edited,omitempty"`
	EditedTS  int64     `json:"edited_ts,omitempty"`
	Deleted   bool      `json:"deleted,omitempty"`
	DeletedTS int64     `json:"deleted_ts,omitempty"`
	CreatedTS int64     `json:"created_ts"`
}

// Reaction is a (message, user, kind) fact. At most one per
// (message, user); a later reaction replaces the earlier one.
type Reaction struct {
	Message string `json:"message"`
	User    string `json:"user"`
	Kind    string `json:"kind"`
	TS      int64  `json:"ts"`
}

// Pin is a (message, room) fact. At most one active pin per message per
// room; unpin then re-pin is allowed.
type Pin struct {
	Message  string `json:"message"`
	Room     string `json:"room"`
	PinnedBy string `json:"pinned_by"`
	PinnedTS int64  `json:"pinned_ts"`
}

// MessagePage is one page of a room's history, newest first.
type MessagePage struct {
	Content       []Message `json:"content"`
	PageNumber    int       `json:"page_number"`
	PageSize      int       `json:"page_size"`
	TotalElements int64     `json:"total_elements"`
	TotalPages    int       `json:"total_pages"`
	Last          bool      `json:"last"`
}
