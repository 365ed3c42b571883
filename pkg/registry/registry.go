// Package registry manages chat rooms: creation, the one-room-per-pair
// rule for direct conversations, membership, and deactivation. Every
// mutation of one room runs under that room's stripe lock so membership
// checks, the write, and the fan-out publish form one serialized unit.
package registry

import (
	"sort"
	"strings"
	"time"

	"parley/pkg/directory"
	"parley/pkg/fanout"
	"parley/pkg/faults"
	"parley/pkg/locks"
	"parley/pkg/logger"
	"parley/pkg/models"
	"parley/pkg/readstate"
	"parley/pkg/store"
	"parley/pkg/utils"
)

// resolveActive loads a user and rejects unknown or deactivated ids.
func resolveActive(userID string) (models.User, error) {
	u, err := directory.FindUser(userID)
	if err != nil {
		return u, err
	}
	if !u.Active {
		return u, faults.Conflictf("user %s is deactivated", userID)
	}
	return u, nil
}

// CreateRoom creates a GROUP room owned by creatorID. The creator is
// always a member; memberIDs are deduplicated and must all resolve to
// active users.
func CreateRoom(creatorID, name, description string, memberIDs []string) (models.Room, error) {
	var r models.Room
	name = strings.TrimSpace(name)
	if name == "" {
		return r, faults.Invalidf("room name required")
	}
	if _, err := resolveActive(creatorID); err != nil {
		return r, err
	}

	members := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		if _, err := resolveActive(id); err != nil {
			return r, err
		}
		seen[id] = true
		members = append(members, id)
	}

	now := time.Now().UTC().UnixNano()
	r = models.Room{
		ID:          utils.GenRoomID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Kind:        models.RoomGroup,
		Creator:     creatorID,
		Active:      true,
		Members:     members,
		CreatedTS:   now,
		UpdatedTS:   now,
	}
	if err := store.SaveRoom(r); err != nil {
		return models.Room{}, err
	}
	logger.Info("room_created", "room", r.ID, "creator", creatorID, "members", len(members))
	return r, nil
}

// GetOrCreatePrivateRoom returns the single PRIVATE room for the
// unordered pair (a, b), creating it on first use. Concurrent callers
// for the same pair serialize on the pair lock; the pair index key is
// written atomically with the room record, so at most one room can ever
// claim a pair.
func GetOrCreatePrivateRoom(a, b string) (models.Room, error) {
	var r models.Room
	if a == b {
		return r, faults.Invalidf("a private room needs two distinct users")
	}
	if _, err := resolveActive(a); err != nil {
		return r, err
	}
	peer, err := resolveActive(b)
	if err != nil {
		return r, err
	}

	unlock := locks.Pairs.Lock(store.PairKey(a, b))
	defer unlock()

	if id, err := store.GetPairRoom(a, b); err == nil {
		return store.GetRoom(id)
	} else if !store.IsNotFound(err) {
		return r, err
	}

	now := time.Now().UTC().UnixNano()
	// named after the peer, from the opener's point of view
	r = models.Room{
		ID:        utils.GenRoomID(),
		Name:      peer.Username,
		Kind:      models.RoomPrivate,
		Creator:   a,
		Active:    true,
		Members:   []string{a, b},
		CreatedTS: now,
		UpdatedTS: now,
	}
	if err := store.SaveRoomWithPair(r, a, b); err != nil {
		return models.Room{}, err
	}
	logger.Info("private_room_created", "room", r.ID, "a", a, "b", b)
	return r, nil
}

// GetRoom returns a room to one of its members.
func GetRoom(actorID, roomID string) (models.Room, error) {
	r, err := loadRoom(roomID)
	if err != nil {
		return r, err
	}
	if !r.IsMember(actorID) {
		return models.Room{}, faults.Forbiddenf("user %s is not a member of room %s", actorID, roomID)
	}
	return r, nil
}

func loadRoom(roomID string) (models.Room, error) {
	r, err := store.GetRoom(roomID)
	if err != nil {
		if store.IsNotFound(err) {
			return r, faults.NotFoundf("room %s", roomID)
		}
		return r, err
	}
	return r, nil
}

// AddMember adds userID to a GROUP room. Creator only; adding an
// existing member is a conflict. PRIVATE rooms have a fixed pair and
// reject membership changes.
func AddMember(actorID, roomID, userID string) (models.Room, error) {
	unlock := locks.Rooms.Lock(roomID)
	defer unlock()

	r, err := loadRoom(roomID)
	if err != nil {
		return r, err
	}
	if !r.Active {
		return models.Room{}, faults.Conflictf("room %s is deactivated", roomID)
	}
	if r.Kind != models.RoomGroup {
		return models.Room{}, faults.Conflictf("private room membership is fixed")
	}
	if actorID != r.Creator {
		return models.Room{}, faults.Forbiddenf("only the creator may add members to room %s", roomID)
	}
	if _, err := resolveActive(userID); err != nil {
		return models.Room{}, err
	}
	if r.IsMember(userID) {
		return models.Room{}, faults.Conflictf("user %s is already a member of room %s", userID, roomID)
	}

	r.Members = append(r.Members, userID)
	r.UpdatedTS = time.Now().UTC().UnixNano()
	if err := store.SaveRoom(r); err != nil {
		return models.Room{}, err
	}
	logger.Info("member_added", "room", roomID, "user", userID, "actor", actorID)
	fanout.Publish(models.Notification{
		Kind:     models.EventMemberAdded,
		Room:     roomID,
		Actor:    actorID,
		UserID:   userID,
		RoomMeta: &r,
	})
	return r, nil
}

// RemoveMember removes userID from a GROUP room. A member may remove
// themselves ("leave"); only the creator may remove someone else. The
// creator can never be removed, so a group always keeps at least one
// member. Removing a non-member is a no-op.
func RemoveMember(actorID, roomID, userID string) (models.Room, error) {
	unlock := locks.Rooms.Lock(roomID)
	defer unlock()

	r, err := loadRoom(roomID)
	if err != nil {
		return r, err
	}
	if !r.Active {
		return models.Room{}, faults.Conflictf("room %s is deactivated", roomID)
	}
	if r.Kind != models.RoomGroup {
		return models.Room{}, faults.Conflictf("private room membership is fixed")
	}
	if userID == r.Creator {
		return models.Room{}, faults.Forbiddenf("creator cannot leave room %s", roomID)
	}
	if actorID != userID && actorID != r.Creator {
		return models.Room{}, faults.Forbiddenf("only the creator may remove other members")
	}
	if !r.IsMember(userID) {
		return r, nil
	}

	kept := r.Members[:0]
	for _, m := range r.Members {
		if m != userID {
			kept = append(kept, m)
		}
	}
	r.Members = kept
	r.UpdatedTS = time.Now().UTC().UnixNano()
	if err := store.SaveRoom(r, userID); err != nil {
		return models.Room{}, err
	}
	logger.Info("member_removed", "room", roomID, "user", userID, "actor", actorID)
	fanout.Publish(models.Notification{
		Kind:     models.EventMemberRemoved,
		Room:     roomID,
		Actor:    actorID,
		UserID:   userID,
		RoomMeta: &r,
	})
	return r, nil
}

// RoomUpdate carries the mutable GROUP room fields; nil means unchanged.
type RoomUpdate struct {
	Name        *string
	Description *string
}

// UpdateRoom renames or re-describes a GROUP room. Creator only.
func UpdateRoom(actorID, roomID string, upd RoomUpdate) (models.Room, error) {
	unlock := locks.Rooms.Lock(roomID)
	defer unlock()

	r, err := loadRoom(roomID)
	if err != nil {
		return r, err
	}
	if !r.Active {
		return models.Room{}, faults.Conflictf("room %s is deactivated", roomID)
	}
	if r.Kind != models.RoomGroup {
		return models.Room{}, faults.Conflictf("private rooms carry no metadata")
	}
	if actorID != r.Creator {
		return models.Room{}, faults.Forbiddenf("only the creator may update room %s", roomID)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return models.Room{}, faults.Invalidf("room name required")
		}
		r.Name = name
	}
	if upd.Description != nil {
		r.Description = strings.TrimSpace(*upd.Description)
	}
	r.UpdatedTS = time.Now().UTC().UnixNano()
	if err := store.SaveRoom(r); err != nil {
		return models.Room{}, err
	}
	logger.Info("room_updated", "room", roomID, "actor", actorID)
	fanout.Publish(models.Notification{
		Kind:     models.EventRoomUpdated,
		Room:     roomID,
		Actor:    actorID,
		RoomMeta: &r,
	})
	return r, nil
}

// DeactivateRoom retires a room. Creator only; already-inactive rooms
// conflict. History stays readable, new writes are refused.
func DeactivateRoom(actorID, roomID string) (models.Room, error) {
	unlock := locks.Rooms.Lock(roomID)
	defer unlock()

	r, err := loadRoom(roomID)
	if err != nil {
		return r, err
	}
	if actorID != r.Creator {
		return models.Room{}, faults.Forbiddenf("only the creator may deactivate room %s", roomID)
	}
	if !r.Active {
		return models.Room{}, faults.Conflictf("room %s is already deactivated", roomID)
	}
	r.Active = false
	r.UpdatedTS = time.Now().UTC().UnixNano()
	if err := store.SaveRoom(r); err != nil {
		return models.Room{}, err
	}
	logger.Info("room_deactivated", "room", roomID, "actor", actorID)
	fanout.Publish(models.Notification{
		Kind:     models.EventRoomDeactivated,
		Room:     roomID,
		Actor:    actorID,
		RoomMeta: &r,
	})
	return r, nil
}

// RoomsForUser lists the rooms the user belongs to, newest activity
// first, each with the user's unread count and the room's last message.
func RoomsForUser(userID string) ([]models.RoomSummary, error) {
	if _, err := directory.FindUser(userID); err != nil {
		return nil, err
	}
	rooms, err := store.RoomsForUser(userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		s := models.RoomSummary{Room: r}
		if last, ok, err := store.LastRoomMessage(r.ID); err == nil && ok {
			s.LastMessage = &last
		}
		n, err := readstate.Unread(userID, r.ID)
		if err != nil {
			return nil, err
		}
		s.UnreadCount = n
		out = append(out, s)
	}
	sortSummaries(out)
	return out, nil
}

func sortSummaries(s []models.RoomSummary) {
	// newest activity first; falls back to room update time
	at := func(x models.RoomSummary) int64 {
		if x.LastMessage != nil {
			return x.LastMessage.CreatedTS
		}
		return x.UpdatedTS
	}
	sort.Slice(s, func(i, j int) bool { return at(s[i]) > at(s[j]) })
}

// SearchGroupRooms finds active GROUP rooms whose name or description
// contains q, case-insensitively.
func SearchGroupRooms(q string) ([]models.Room, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil, faults.Invalidf("search query required")
	}
	rooms, err := store.ListRooms()
	if err != nil {
		return nil, err
	}
	var out []models.Room
	for _, r := range rooms {
		if !r.Active || r.Kind != models.RoomGroup {
			continue
		}
		if strings.Contains(strings.ToLower(r.Name), q) ||
			strings.Contains(strings.ToLower(r.Description), q) {
			out = append(out, r)
		}
	}
	return out, nil
}
