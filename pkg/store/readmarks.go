package store

// Read watermarks record, per (room, user), the highest order key the
// user has acknowledged. Unread counting scans strictly past it.

func readMarkKey(roomID, userID string) string {
	return "read:" + roomID + ":" + userID
}

// SaveReadMark stores the user's watermark for a room.
func SaveReadMark(roomID, userID, orderKey string) error {
	return SaveKey(readMarkKey(roomID, userID), []byte(orderKey))
}

// GetReadMark returns the user's watermark for a room, or "" when the
// user has never read the room.
func GetReadMark(roomID, userID string) (string, error) {
	v, err := GetKey(readMarkKey(roomID, userID))
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return string(v), nil
}
