package store

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/pebble"

	"parley/pkg/logger"
	"parley/pkg/models"
)

// AppendMessage writes a new message and its room order key in one
// atomic batch. Only this path establishes room order; updates go
// through UpdateMessage and never touch the order key.
func AppendMessage(m models.Message) error {
	if db == nil {
		return errNotOpen()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	orderKey := MsgOrderKey(m.Room, m.CreatedTS, NextSeq())
	b := NewBatch()
	_ = b.Set([]byte(orderKey), []byte(m.ID), nil)
	_ = b.Set([]byte(msgKey(m.ID)), data, nil)
	if err := ApplyBatch(b, true); err != nil {
		logger.Error("append_message_failed", "room", m.Room, "id", m.ID, "error", err)
		return err
	}
	return nil
}

// UpdateMessage overwrites the latest state of an existing message. The
// room order key is untouched so CreatedTS ordering is preserved.
func UpdateMessage(m models.Message) error {
	if db == nil {
		return errNotOpen()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return SaveKey(msgKey(m.ID), data)
}

// GetMessage returns the latest state for a message id.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	v, err := GetKey(msgKey(id))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(v, &m)
	return m, err
}

// LastRoomOrderKey returns the highest order key of a room, or ok=false
// for a room with no messages.
func LastRoomOrderKey(roomID string) (string, bool, error) {
	if db == nil {
		return "", false, errNotOpen()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return "", false, err
	}
	defer iter.Close()
	pfx := msgOrderPrefix(roomID)
	if !iter.SeekLT([]byte(pfx + "\xff")) {
		return "", false, iter.Error()
	}
	k := string(iter.Key())
	if !strings.HasPrefix(k, pfx) {
		return "", false, iter.Error()
	}
	return k, true, iter.Error()
}

// LastRoomMessage returns the newest message of a room, or ok=false for
// a room with no messages.
func LastRoomMessage(roomID string) (models.Message, bool, error) {
	if db == nil {
		return models.Message{}, false, errNotOpen()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return models.Message{}, false, err
	}
	defer iter.Close()
	pfx := msgOrderPrefix(roomID)
	if !iter.SeekLT([]byte(pfx + "\xff")) {
		return models.Message{}, false, iter.Error()
	}
	if !strings.HasPrefix(string(iter.Key()), pfx) {
		return models.Message{}, false, iter.Error()
	}
	m, err := GetMessage(string(iter.Value()))
	if err != nil {
		return models.Message{}, false, err
	}
	return m, true, nil
}

// RoomMessagesAfter returns the messages of a room whose order key sorts
// strictly after afterKey, oldest first. An empty afterKey yields the
// whole room.
func RoomMessagesAfter(roomID, afterKey string) ([]models.Message, error) {
	if db == nil {
		return nil, errNotOpen()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := msgOrderPrefix(roomID)
	start := pfx
	if afterKey != "" {
		start = afterKey + "\x00"
	}
	var out []models.Message
	for iter.SeekGE([]byte(start)); iter.Valid(); iter.Next() {
		k := string(iter.Key())
		if !strings.HasPrefix(k, pfx) {
			break
		}
		m, err := GetMessage(string(iter.Value()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// ListRoomMessages returns all messages of a room in insertion order
// (oldest first), resolving order keys to their latest message state.
func ListRoomMessages(roomID string) ([]models.Message, error) {
	ids, err := ScanValues(msgOrderPrefix(roomID))
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		m, err := GetMessage(string(id))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
