// Package directory owns user identity: registration, lookup by id or
// username, profile updates and the mutable presence status. Users are
// deactivated, never hard-deleted.
package directory

import (
	"strings"
	"time"

	"parley/pkg/faults"
	"parley/pkg/logger"
	"parley/pkg/models"
	"parley/pkg/store"
	"parley/pkg/utils"
)

// Register creates a new user. Username and email must be unused.
func Register(username, email, fullName string) (models.User, error) {
	var u models.User
	if strings.TrimSpace(username) == "" {
		return u, faults.Invalidf("username is required")
	}
	if ok, err := ExistsByUsername(username); err != nil {
		return u, err
	} else if ok {
		return u, faults.Conflictf("username %q is taken", username)
	}
	if email != "" {
		if ok, err := ExistsByEmail(email); err != nil {
			return u, err
		} else if ok {
			return u, faults.Conflictf("email %q is taken", email)
		}
	}
	u = models.User{
		ID:        utils.GenUserID(),
		Username:  username,
		Email:     email,
		FullName:  fullName,
		Status:    models.StatusOffline,
		Active:    true,
		CreatedTS: time.Now().UTC().UnixNano(),
	}
	if err := store.SaveUser(u); err != nil {
		return u, err
	}
	logger.Info("user_registered", "user", u.ID, "username", username)
	return u, nil
}

// FindUser returns the user for id.
func FindUser(id string) (models.User, error) {
	u, err := store.GetUser(id)
	if store.IsNotFound(err) {
		return u, faults.NotFoundf("user %s", id)
	}
	return u, err
}

// FindUserByUsername resolves a username to its user record.
func FindUserByUsername(name string) (models.User, error) {
	id, err := store.GetUserIDByUsername(name)
	if store.IsNotFound(err) {
		return models.User{}, faults.NotFoundf("user %q", name)
	}
	if err != nil {
		return models.User{}, err
	}
	return FindUser(id)
}

// ExistsByUsername reports whether a username is registered.
func ExistsByUsername(name string) (bool, error) {
	_, err := store.GetUserIDByUsername(name)
	if store.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// ExistsByEmail reports whether an email address is registered.
func ExistsByEmail(email string) (bool, error) {
	_, err := store.GetUserIDByEmail(email)
	if store.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// SetStatus mutates a user's presence and bumps LastSeen.
func SetStatus(userID string, status models.UserStatus) (models.User, error) {
	switch status {
	case models.StatusOnline, models.StatusOffline, models.StatusAway:
	default:
		return models.User{}, faults.Invalidf("unknown status %q", status)
	}
	u, err := FindUser(userID)
	if err != nil {
		return u, err
	}
	u.Status = status
	u.LastSeenTS = time.Now().UTC().UnixNano()
	if err := store.SaveUser(u); err != nil {
		return u, err
	}
	logger.Debug("user_status_changed", "user", userID, "status", string(status))
	return u, nil
}

// ProfileUpdate carries the optional fields of UpdateProfile; nil means
// leave unchanged.
type ProfileUpdate struct {
	FullName  *string
	Bio       *string
	AvatarURL *string
	Status    *models.UserStatus
}

// UpdateProfile applies a partial profile update.
func UpdateProfile(userID string, upd ProfileUpdate) (models.User, error) {
	u, err := FindUser(userID)
	if err != nil {
		return u, err
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.AvatarURL != nil {
		u.AvatarURL = *upd.AvatarURL
	}
	if upd.Status != nil {
		switch *upd.Status {
		case models.StatusOnline, models.StatusOffline, models.StatusAway:
			u.Status = *upd.Status
		default:
			return u, faults.Invalidf("unknown status %q", *upd.Status)
		}
	}
	if err := store.SaveUser(u); err != nil {
		return u, err
	}
	return u, nil
}

// Deactivate soft-deletes a user.
func Deactivate(userID string) error {
	u, err := FindUser(userID)
	if err != nil {
		return err
	}
	u.Active = false
	return store.SaveUser(u)
}

// SearchUsers matches username or full name by case-insensitive
// substring over active users.
func SearchUsers(q string) ([]models.User, error) {
	all, err := store.ListUsers()
	if err != nil {
		return nil, err
	}
	lq := strings.ToLower(q)
	var out []models.User
	for _, u := range all {
		if !u.Active {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), lq) ||
			strings.Contains(strings.ToLower(u.FullName), lq) {
			out = append(out, u)
		}
	}
	return out, nil
}

// OnlineUsers lists active users whose presence is ONLINE.
func OnlineUsers() ([]models.User, error) {
	all, err := store.ListUsers()
	if err != nil {
		return nil, err
	}
	var out []models.User
	for _, u := range all {
		if u.Active && u.Status == models.StatusOnline {
			out = append(out, u)
		}
	}
	return out, nil
}
