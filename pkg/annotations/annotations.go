// Package annotations covers the two markers attached to messages:
// reactions (any member, one per user per message, re-reacting
// replaces) and pins (room creator only, at most one active pin per
// message). Tombstoned messages accept neither.
package annotations

import (
	"sort"
	"strings"
	"time"

	"parley/pkg/fanout"
	"parley/pkg/faults"
	"parley/pkg/locks"
	"parley/pkg/logger"
	"parley/pkg/models"
	"parley/pkg/store"
)

// liveRoomMessage loads a message and its room, checks the actor is a
// member and the message is not a tombstone.
func liveRoomMessage(actorID, msgID string) (models.Message, models.Room, error) {
	var zm models.Message
	var zr models.Room
	m, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return zm, zr, faults.NotFoundf("message %s", msgID)
		}
		return zm, zr, err
	}
	r, err := store.GetRoom(m.Room)
	if err != nil {
		return zm, zr, err
	}
	if !r.IsMember(actorID) {
		return zm, zr, faults.Forbiddenf("user %s is not a member of room %s", actorID, m.Room)
	}
	if m.Deleted {
		return zm, zr, faults.Conflictf("message %s was deleted", msgID)
	}
	return m, r, nil
}

// React sets the actor's reaction on a message. A second reaction from
// the same user replaces the first.
func React(actorID, msgID, kind string) (models.Reaction, error) {
	var rc models.Reaction
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return rc, faults.Invalidf("reaction kind required")
	}
	cur, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return rc, faults.NotFoundf("message %s", msgID)
		}
		return rc, err
	}

	// a message's room never changes, so the lock key is stable
	unlock := locks.Rooms.Lock(cur.Room)
	defer unlock()

	m, _, err := liveRoomMessage(actorID, msgID)
	if err != nil {
		return rc, err
	}

	rc = models.Reaction{
		Message: msgID,
		User:    actorID,
		Kind:    kind,
		TS:      time.Now().UTC().UnixNano(),
	}
	if err := store.SaveReaction(rc); err != nil {
		return models.Reaction{}, err
	}
	logger.Info("reaction_added", "room", m.Room, "message", msgID, "user", actorID, "kind", kind)
	fanout.Publish(models.Notification{
		Kind:      models.EventReactionAdded,
		Room:      m.Room,
		Actor:     actorID,
		MessageID: msgID,
		Reaction:  &rc,
	})
	return rc, nil
}

// Unreact removes the actor's reaction. Removing a reaction that does
// not exist is a no-op.
func Unreact(actorID, msgID string) error {
	m, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return faults.NotFoundf("message %s", msgID)
		}
		return err
	}

	unlock := locks.Rooms.Lock(m.Room)
	defer unlock()

	if _, err := store.GetReaction(msgID, actorID); err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err := store.DeleteReaction(msgID, actorID); err != nil {
		return err
	}
	logger.Info("reaction_removed", "room", m.Room, "message", msgID, "user", actorID)
	fanout.Publish(models.Notification{
		Kind:      models.EventReactionRemoved,
		Room:      m.Room,
		Actor:     actorID,
		MessageID: msgID,
		UserID:    actorID,
	})
	return nil
}

// Reactions lists all reactions on a message for a room member.
func Reactions(actorID, msgID string) ([]models.Reaction, error) {
	m, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, faults.NotFoundf("message %s", msgID)
		}
		return nil, err
	}
	r, err := store.GetRoom(m.Room)
	if err != nil {
		return nil, err
	}
	if !r.IsMember(actorID) {
		return nil, faults.Forbiddenf("user %s is not a member of room %s", actorID, m.Room)
	}
	return store.ListReactions(msgID)
}

// Pin marks a message as pinned in its room. Room creator only; pinning
// an already pinned message is a conflict.
func Pin(actorID, msgID string) (models.Pin, error) {
	var p models.Pin
	cur, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return p, faults.NotFoundf("message %s", msgID)
		}
		return p, err
	}

	unlock := locks.Rooms.Lock(cur.Room)
	defer unlock()

	m, r, err := liveRoomMessage(actorID, msgID)
	if err != nil {
		return p, err
	}
	if actorID != r.Creator {
		return p, faults.Forbiddenf("only the room creator may pin messages")
	}

	if on, err := store.HasPin(m.Room, msgID); err != nil {
		return p, err
	} else if on {
		return p, faults.Conflictf("message %s is already pinned", msgID)
	}
	p = models.Pin{
		Message:  msgID,
		Room:     m.Room,
		PinnedBy: actorID,
		PinnedTS: time.Now().UTC().UnixNano(),
	}
	if err := store.SavePin(p); err != nil {
		return models.Pin{}, err
	}
	logger.Info("message_pinned", "room", m.Room, "message", msgID, "user", actorID)
	fanout.Publish(models.Notification{
		Kind:      models.EventMessagePinned,
		Room:      m.Room,
		Actor:     actorID,
		MessageID: msgID,
		Pin:       &p,
	})
	return p, nil
}

// Unpin removes a pin. Room creator only; unpinning a message that is
// not pinned is a no-op.
func Unpin(actorID, msgID string) error {
	m, err := store.GetMessage(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return faults.NotFoundf("message %s", msgID)
		}
		return err
	}
	r, err := store.GetRoom(m.Room)
	if err != nil {
		return err
	}
	if actorID != r.Creator {
		return faults.Forbiddenf("only the room creator may unpin messages")
	}

	unlock := locks.Rooms.Lock(m.Room)
	defer unlock()

	if on, err := store.HasPin(m.Room, msgID); err != nil {
		return err
	} else if !on {
		return nil
	}
	if err := store.DeletePin(m.Room, msgID); err != nil {
		return err
	}
	logger.Info("message_unpinned", "room", m.Room, "message", msgID, "user", actorID)
	fanout.Publish(models.Notification{
		Kind:      models.EventMessageUnpinned,
		Room:      m.Room,
		Actor:     actorID,
		MessageID: msgID,
	})
	return nil
}

// Pins lists a room's active pins for a member, newest pin first.
func Pins(actorID, roomID string) ([]models.Pin, error) {
	r, err := store.GetRoom(roomID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, faults.NotFoundf("room %s", roomID)
		}
		return nil, err
	}
	if !r.IsMember(actorID) {
		return nil, faults.Forbiddenf("user %s is not a member of room %s", actorID, roomID)
	}
	ps, err := store.ListPins(roomID)
	if err != nil {
		return nil, err
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].PinnedTS > ps[j].PinnedTS })
	return ps, nil
}
