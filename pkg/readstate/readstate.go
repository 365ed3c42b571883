// Package readstate tracks, per (room, user), how far the user has
// read. The state is a watermark over the room's order keys: marking a
// room read moves the watermark to the newest message, and the unread
// count is the number of other users' live messages past it. Marking
// also flips acknowledged messages SENT to READ; unread accounting uses
// the per-user watermark rather than the shared status field, so one
// reader's acknowledgement never zeroes another reader's count.
package readstate

import (
	"parley/pkg/fanout"
	"parley/pkg/faults"
	"parley/pkg/locks"
	"parley/pkg/models"
	"parley/pkg/store"
)

// MarkRead acknowledges everything currently in the room for userID and
// returns how many messages the watermark moved past. Only members may
// mark a room read. The count excludes the user's own messages and
// deleted ones, matching what Unread reports. Acknowledged messages
// transition SENT to READ; the transition is monotonic and never
// reversed.
func MarkRead(userID, roomID string) (int64, error) {
	r, err := store.GetRoom(roomID)
	if err != nil {
		if store.IsNotFound(err) {
			return 0, faults.NotFoundf("room %s", roomID)
		}
		return 0, err
	}
	if !r.IsMember(userID) {
		return 0, faults.Forbiddenf("user %s is not a member of room %s", userID, roomID)
	}

	unlock := locks.Rooms.Lock(roomID)
	defer unlock()

	mark, err := store.GetReadMark(roomID, userID)
	if err != nil {
		return 0, err
	}
	msgs, err := store.RoomMessagesAfter(roomID, mark)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, m := range msgs {
		if m.Sender == userID || m.Deleted {
			continue
		}
		n++
		if m.Status == models.StatusSent {
			m.Status = models.StatusRead
			if err := store.UpdateMessage(m); err != nil {
				return 0, err
			}
		}
	}
	last, ok, err := store.LastRoomOrderKey(roomID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if err := store.SaveReadMark(roomID, userID, last); err != nil {
		return 0, err
	}
	if n > 0 {
		fanout.Publish(models.Notification{
			Kind:   models.EventRoomRead,
			Room:   roomID,
			Actor:  userID,
			UserID: userID,
		})
	}
	return n, nil
}

// Unread returns the user's unread count for a room: messages past the
// watermark authored by someone else and not deleted. Only members may
// query a room's count.
func Unread(userID, roomID string) (int64, error) {
	r, err := store.GetRoom(roomID)
	if err != nil {
		if store.IsNotFound(err) {
			return 0, faults.NotFoundf("room %s", roomID)
		}
		return 0, err
	}
	if !r.IsMember(userID) {
		return 0, faults.Forbiddenf("user %s is not a member of room %s", userID, roomID)
	}
	mark, err := store.GetReadMark(roomID, userID)
	if err != nil {
		return 0, err
	}
	msgs, err := store.RoomMessagesAfter(roomID, mark)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, m := range msgs {
		if m.Sender == userID || m.Deleted {
			continue
		}
		n++
	}
	return n, nil
}
