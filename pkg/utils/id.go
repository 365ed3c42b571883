package utils

import "github.com/google/uuid"

// Entity ids are opaque UUIDs with a short type prefix so raw keys in
// the store remain readable during debugging.

func GenUserID() string    { return "u-" + uuid.NewString() }
func GenRoomID() string    { return "r-" + uuid.NewString() }
func GenMessageID() string { return "m-" + uuid.NewString() }
func GenConnID() string    { return "c-" + uuid.NewString() }
