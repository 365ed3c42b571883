package store

import "fmt"

func userKey(id string) string     { return "user:" + id }
func usernameKey(n string) string  { return "username:" + n }
func emailKey(e string) string     { return "email:" + e }
func roomMetaKey(id string) string { return "room:" + id + ":meta" }
func msgKey(id string) string      { return "msg:" + id }

func userRoomKey(userID, roomID string) string {
	return "userroom:" + userID + ":" + roomID
}

// PairKey builds the uniqueness key for a PRIVATE room's unordered user
// pair. The ids are sorted so (a,b) and (b,a) collapse to one key.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "pair:" + a + "|" + b
}

// MsgOrderKey builds the room-scoped ordering key. The zero-padded
// nanosecond timestamp plus sequence sorts lexicographically in
// insertion order.
func MsgOrderKey(roomID string, ts int64, s uint64) string {
	return fmt.Sprintf("room:%s:msg:%020d-%06d", roomID, ts, s)
}

func msgOrderPrefix(roomID string) string { return "room:" + roomID + ":msg:" }

func reactionKey(msgID, userID string) string {
	return "reaction:" + msgID + ":" + userID
}

func pinKey(roomID, msgID string) string {
	return "pin:" + roomID + ":" + msgID
}
