package models

// UserStatus is the mutable presence state of a user.
type UserStatus string

const (
	StatusOnline  UserStatus = "ONLINE"
	StatusOffline UserStatus = "OFFLINE"
	StatusAway    UserStatus = "AWAY"
)

// User is owned by the directory. Users are never hard-deleted; Active
// flips to false instead.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	FullName  string     `json:"full_name,omitempty"`
	Bio       string     `json:"bio,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	Status    UserStatus `json:"status"`
	Active    bool       `json:"active"`
	// CreatedTS / LastSeenTS are nanosecond timestamps.
	CreatedTS  int64 `json:"created_ts"`
	LastSeenTS int64 `json:"last_seen_ts,omitempty"`
}
