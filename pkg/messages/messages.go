// Package messages owns the message lifecycle inside a room: send,
// edit, soft delete, forward, and the read paths (get, page, search).
// Mutations run under the room's stripe lock and publish their fan-out
// notification before releasing it, so subscribers observe changes in
// commit order.
package messages

import (
	"strings"
	"time"

	"parley/pkg/fanout"
	"parley/pkg/faults"
	"parley/pkg/locks"
	"parley/pkg/logger"
	"parley/pkg/models"
	"parley/pkg/store"
	"parley/pkg/utils"
	"parley/pkg/validation"
)

// SendInput is the payload for a new message.
type SendInput struct {
	Content string
	Kind    models.MessageKind
	ReplyTo string
	File    *models.FileMeta
}

// writableRoom loads a room and checks that it accepts writes from the
// actor: it exists, is active, and the actor is a member.
func writableRoom(actorID, roomID string) (models.Room, error) {
	r, err := store.GetRoom(roomID)
	if err != nil {
		if store.IsNotFound(err) {
			return r, faults.NotFoundf("room %s", roomID)
		}
		return r, err
	}
	if !r.IsMember(actorID) {
		return r, faults.Forbiddenf("user %s is not a member of room %s", actorID, roomID)
	}
	if !r.Active {
		return r, faults.Conflictf("room %s is deactivated", roomID)
	}
	return r, nil
}

// Send appends a new message to a room.
func Send(senderID, roomID string, in SendInput) (models.Message, error) {
	var m models.Message
	if in.Kind == "" {
		in.Kind = models.KindText
	}
	if err := validation.MessageInput(in.Content, in.Kind, in.File); err != nil {
		return m, err
	}

	unlock := locks.Rooms.Lock(roomID)
	defer unlock()

	if _, err := writableRoom(senderID, roomID); err != nil {
		return m, err
	}
	if in.ReplyTo != "" {
		parent, err := store.GetMessage(in.ReplyTo)
		if err != nil {
			if store.IsNotFound(err) {
				return m, faults.NotFoundf("reply target %s", in.ReplyTo)
			}
			return m, err
		}
		if parent.Room != roomID {
			return m, faults.Invalidf("reply target belongs to another room")
		}
		if parent.Deleted {
			return m, faults.Conflictf("reply target was deleted")
		}
	}

	m = models.Message{
		ID:        utils.GenMessageID(),
		Room:      roomID,
		Sender:    senderID,
		Content:   in.Content,
		Kind:      in.Kind,
		Status:    models.StatusSent,
		ReplyTo:   in.ReplyTo,
		File:      in.File,
		CreatedTS: time.Now().UTC().UnixNano(),
	}
	if err := store.AppendMessage(m); err != nil {
		return models.Message{}, err
	}
	logger.Info("message_sent", "room", roomID, "id", m.ID, "sender", senderID, "kind", string(m.Kind))
	fanout.Publish(models.Notification{
		Kind:      models.EventMessageNew,
		Room:      roomID,
		Actor:     senderID,
		MessageID: m.ID,
		Message:   &m,
	})
	return m, nil
}

// Edit replaces the content of a message. Sender only; a deleted
// message cannot be edited.
func Edit(actorID, msgID, content string) (models.Message, error) {
	var m models.Message
	cur, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return m, faults.NotFoundf("message %s", msgID)
		}
		return m, err
	}

	unlock := locks.Rooms.Lock(cur.Room)
	defer unlock()

	// reload under the lock
	cur, err = store.GetMessage(msgID)
	if err != nil {
		return m, err
	}
	if cur.Sender != actorID {
		return m, faults.Forbiddenf("only the sender may edit message %s", msgID)
	}
	if cur.Deleted {
		return m, faults.Conflictf("message %s was deleted", msgID)
	}
	if err := validation.MessageInput(content, cur.Kind, cur.File); err != nil {
		return m, err
	}
	if _, err := writableRoom(actorID, cur.Room); err != nil {
		return m, err
	}

	cur.Content = content
	cur.Edited = true
	cur.EditedTS = time.Now().UTC().UnixNano()
	if err := store.UpdateMessage(cur); err != nil {
		return m, err
	}
	logger.Info("message_edited", "room", cur.Room, "id", msgID, "actor", actorID)
	fanout.Publish(models.Notification{
		Kind:      models.EventMessageEdited,
		Room:      cur.Room,
		Actor:     actorID,
		MessageID: msgID,
		Message:   &cur,
	})
	return cur, nil
}

// SoftDelete tombstones a message: the record stays in room order with
// its content blanked. Sender only; deleting twice is a conflict.
func SoftDelete(actorID, msgID string) (models.Message, error) {
	var m models.Message
	cur, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return m, faults.NotFoundf("message %s", msgID)
		}
		return m, err
	}

	unlock := locks.Rooms.Lock(cur.Room)
	defer unlock()

	cur, err = store.GetMessage(msgID)
	if err != nil {
		return m, err
	}
	if cur.Sender != actorID {
		return m, faults.Forbiddenf("only the sender may delete message %s", msgID)
	}
	if cur.Deleted {
		return m, faults.Conflictf("message %s is already deleted", msgID)
	}

	cur.Content = models.DeletedContent
	cur.File = nil
	cur.Deleted = true
	cur.DeletedTS = time.Now().UTC().UnixNano()
	if err := store.UpdateMessage(cur); err != nil {
		return m, err
	}
	logger.Info("message_deleted", "room", cur.Room, "id", msgID, "actor", actorID)
	fanout.Publish(models.Notification{
		Kind:      models.EventMessageDeleted,
		Room:      cur.Room,
		Actor:     actorID,
		MessageID: msgID,
	})
	return cur, nil
}

// Forward copies a message into another room as a fresh send by the
// actor. The actor must be able to read the source and write the
// target; a deleted message cannot be forwarded.
func Forward(actorID, msgID, targetRoomID string) (models.Message, error) {
	var m models.Message
	src, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return m, faults.NotFoundf("message %s", msgID)
		}
		return m, err
	}
	srcRoom, err := store.GetRoom(src.Room)
	if err != nil {
		return m, err
	}
	if !srcRoom.IsMember(actorID) {
		return m, faults.Forbiddenf("user %s is not a member of room %s", actorID, src.Room)
	}
	if src.Deleted {
		return m, faults.Conflictf("message %s was deleted", msgID)
	}
	return Send(actorID, targetRoomID, SendInput{
		Content: src.Content,
		Kind:    src.Kind,
		File:    src.File,
	})
}

// Get returns a message to a member of its room.
func Get(actorID, msgID string) (models.Message, error) {
	m, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return m, faults.NotFoundf("message %s", msgID)
		}
		return m, err
	}
	r, err := store.GetRoom(m.Room)
	if err != nil {
		return models.Message{}, err
	}
	if !r.IsMember(actorID) {
		return models.Message{}, faults.Forbiddenf("user %s is not a member of room %s", actorID, m.Room)
	}
	return m, nil
}

// Page returns one page of a room's live history, newest first.
// Tombstones drop out of paging; they stay retrievable by id.
func Page(actorID, roomID string, page, size int) (models.MessagePage, error) {
	var out models.MessagePage
	if err := validation.Page(page, size); err != nil {
		return out, err
	}
	if err := readableRoom(actorID, roomID); err != nil {
		return out, err
	}

	stored, err := store.ListRoomMessages(roomID)
	if err != nil {
		return out, err
	}
	// store order is oldest first; pages are newest first
	all := make([]models.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		if stored[i].Deleted {
			continue
		}
		all = append(all, stored[i])
	}

	total := int64(len(all))
	pages := int(total) / size
	if int(total)%size != 0 || pages == 0 {
		pages++
	}
	start := page * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	out = models.MessagePage{
		Content:       all[start:end],
		PageNumber:    page,
		PageSize:      size,
		TotalElements: total,
		TotalPages:    pages,
		Last:          page >= pages-1,
	}
	return out, nil
}

// Search finds a room's live messages whose content contains q,
// case-insensitively, newest first. Tombstones never match.
func Search(actorID, roomID, q string) ([]models.Message, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil, faults.Invalidf("search query required")
	}
	if err := readableRoom(actorID, roomID); err != nil {
		return nil, err
	}
	all, err := store.ListRoomMessages(roomID)
	if err != nil {
		return nil, err
	}
	var out []models.Message
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if m.Deleted {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), q) {
			out = append(out, m)
		}
	}
	return out, nil
}

// readableRoom checks existence and membership only; inactive rooms
// stay readable.
func readableRoom(actorID, roomID string) error {
	r, err := store.GetRoom(roomID)
	if err != nil {
		if store.IsNotFound(err) {
			return faults.NotFoundf("room %s", roomID)
		}
		return err
	}
	if !r.IsMember(actorID) {
		return faults.Forbiddenf("user %s is not a member of room %s", actorID, roomID)
	}
	return nil
}
