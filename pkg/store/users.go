package store

import (
	"encoding/json"
	"errors"

	"github.com/cockroachdb/pebble"

	"parley/pkg/logger"
	"parley/pkg/models"
)

// SaveUser persists a user record together with its username and email
// index keys in one atomic batch.
func SaveUser(u models.User) error {
	if db == nil {
		return errNotOpen()
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	b := NewBatch()
	_ = b.Set([]byte(userKey(u.ID)), data, nil)
	if u.Username != "" {
		_ = b.Set([]byte(usernameKey(u.Username)), []byte(u.ID), nil)
	}
	if u.Email != "" {
		_ = b.Set([]byte(emailKey(u.Email)), []byte(u.ID), nil)
	}
	if err := ApplyBatch(b, true); err != nil {
		logger.Error("save_user_failed", "user", u.ID, "error", err)
		return err
	}
	return nil
}

// GetUser returns the user record for id, or pebble.ErrNotFound.
func GetUser(id string) (models.User, error) {
	var u models.User
	v, err := GetKey(userKey(id))
	if err != nil {
		return u, err
	}
	err = json.Unmarshal(v, &u)
	return u, err
}

// GetUserIDByUsername resolves a username to a user id.
func GetUserIDByUsername(name string) (string, error) {
	v, err := GetKey(usernameKey(name))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// GetUserIDByEmail resolves an email address to a user id.
func GetUserIDByEmail(email string) (string, error) {
	v, err := GetKey(emailKey(email))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// ListUsers returns all user records.
func ListUsers() ([]models.User, error) {
	vals, err := ScanValues("user:")
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(vals))
	for _, v := range vals {
		var u models.User
		if err := json.Unmarshal(v, &u); err != nil {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// IsNotFound reports whether err is the store's missing-key error.
func IsNotFound(err error) bool { return errors.Is(err, pebble.ErrNotFound) }
