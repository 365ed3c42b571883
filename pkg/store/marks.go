package store

import (
	"encoding/json"

	"parley/pkg/models"
)

// Reaction and pin uniqueness is enforced by key construction: one
// reaction key per (message, user), one pin key per (room, message).

// SaveReaction upserts the reaction of a user on a message.
func SaveReaction(r models.Reaction) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return SaveKey(reactionKey(r.Message, r.User), data)
}

// GetReaction returns the reaction of a user on a message, if any.
func GetReaction(msgID, userID string) (models.Reaction, error) {
	var r models.Reaction
	v, err := GetKey(reactionKey(msgID, userID))
	if err != nil {
		return r, err
	}
	err = json.Unmarshal(v, &r)
	return r, err
}

// DeleteReaction removes a user's reaction; absent keys are a no-op.
func DeleteReaction(msgID, userID string) error {
	return DeleteKey(reactionKey(msgID, userID))
}

// ListReactions returns all reactions on a message.
func ListReactions(msgID string) ([]models.Reaction, error) {
	vals, err := ScanValues("reaction:" + msgID + ":")
	if err != nil {
		return nil, err
	}
	out := make([]models.Reaction, 0, len(vals))
	for _, v := range vals {
		var r models.Reaction
		if err := json.Unmarshal(v, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// SavePin records an active pin for a message in a room.
func SavePin(p models.Pin) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return SaveKey(pinKey(p.Room, p.Message), data)
}

// HasPin reports whether the message is currently pinned in the room.
func HasPin(roomID, msgID string) (bool, error) {
	return HasKey(pinKey(roomID, msgID))
}

// DeletePin removes a pin; absent keys are a no-op.
func DeletePin(roomID, msgID string) error {
	return DeleteKey(pinKey(roomID, msgID))
}

// ListPins returns all active pins of a room.
func ListPins(roomID string) ([]models.Pin, error) {
	vals, err := ScanValues("pin:" + roomID + ":")
	if err != nil {
		return nil, err
	}
	out := make([]models.Pin, 0, len(vals))
	for _, v := range vals {
		var p models.Pin
		if err := json.Unmarshal(v, &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
