package store

import (
	"encoding/json"

	"parley/pkg/logger"
	"parley/pkg/models"
)

// SaveRoom persists the room record and reconciles the userroom
// membership index in one atomic batch: index keys are written for
// every current member and removed for anyone in `removed`.
func SaveRoom(r models.Room, removed ...string) error {
	if db == nil {
		return errNotOpen()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	b := NewBatch()
	_ = b.Set([]byte(roomMetaKey(r.ID)), data, nil)
	for _, m := range r.Members {
		_ = b.Set([]byte(userRoomKey(m, r.ID)), []byte(r.ID), nil)
	}
	for _, m := range removed {
		_ = b.Delete([]byte(userRoomKey(m, r.ID)), nil)
	}
	if err := ApplyBatch(b, true); err != nil {
		logger.Error("save_room_failed", "room", r.ID, "error", err)
		return err
	}
	return nil
}

// SaveRoomWithPair persists a PRIVATE room together with its pair index
// key, atomically, so a crash cannot leave the pair claimable twice.
func SaveRoomWithPair(r models.Room, a, bID string) error {
	if db == nil {
		return errNotOpen()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	b := NewBatch()
	_ = b.Set([]byte(roomMetaKey(r.ID)), data, nil)
	_ = b.Set([]byte(PairKey(a, bID)), []byte(r.ID), nil)
	for _, m := range r.Members {
		_ = b.Set([]byte(userRoomKey(m, r.ID)), []byte(r.ID), nil)
	}
	return ApplyBatch(b, true)
}

// GetRoom returns the room record for id.
func GetRoom(id string) (models.Room, error) {
	var r models.Room
	v, err := GetKey(roomMetaKey(id))
	if err != nil {
		return r, err
	}
	err = json.Unmarshal(v, &r)
	return r, err
}

// GetPairRoom resolves the PRIVATE room id for an unordered user pair.
func GetPairRoom(a, b string) (string, error) {
	v, err := GetKey(PairKey(a, b))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// RoomsForUser returns the rooms the user is a member of, resolved via
// the membership index rather than a back-pointer on the user record.
func RoomsForUser(userID string) ([]models.Room, error) {
	ids, err := ScanValues("userroom:" + userID + ":")
	if err != nil {
		return nil, err
	}
	out := make([]models.Room, 0, len(ids))
	for _, id := range ids {
		r, err := GetRoom(string(id))
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ListRooms returns all room records.
func ListRooms() ([]models.Room, error) {
	keys, err := ListKeys("room:")
	if err != nil {
		return nil, err
	}
	var out []models.Room
	for _, k := range keys {
		if len(k) < 5 || k[len(k)-5:] != ":meta" {
			continue
		}
		v, err := GetKey(k)
		if err != nil {
			continue
		}
		var r models.Room
		if err := json.Unmarshal(v, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
