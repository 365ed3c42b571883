// Package validation checks inbound payloads before any state change.
// Checks aggregate everything wrong with the input into one error so a
// client can fix a payload in a single round trip.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"parley/pkg/faults"
	"parley/pkg/models"
)

const (
	MaxContentLen  = 4096
	MaxNameLen     = 128
	MaxUsernameLen = 32
	MaxBioLen      = 512
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)

func invalid(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return faults.Invalidf("%s", strings.Join(errs, "; "))
}

// Username checks the registration username rules.
func Username(name string) error {
	var errs []string
	if name == "" {
		errs = append(errs, "username is required")
	} else {
		if len(name) > MaxUsernameLen {
			errs = append(errs, fmt.Sprintf("username exceeds %d chars", MaxUsernameLen))
		}
		if !usernameRe.MatchString(name) {
			errs = append(errs, "username may contain only lowercase letters, digits, '_', '.' and '-'")
		}
	}
	return invalid(errs)
}

// Email checks address syntax; an empty address is allowed.
func Email(addr string) error {
	if addr == "" {
		return nil
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return faults.Invalidf("invalid email address")
	}
	return nil
}

// MessageInput checks a message payload prior to send or edit.
func MessageInput(content string, kind models.MessageKind, file *models.FileMeta) error {
	var errs []string
	switch kind {
	case models.KindText, models.KindImage, models.KindFile:
	case "":
		errs = append(errs, "kind is required")
	default:
		errs = append(errs, fmt.Sprintf("unknown message kind %q", kind))
	}
	if kind == models.KindText && strings.TrimSpace(content) == "" {
		errs = append(errs, "content is required for TEXT messages")
	}
	if len(content) > MaxContentLen {
		errs = append(errs, fmt.Sprintf("content exceeds %d chars", MaxContentLen))
	}
	if (kind == models.KindImage || kind == models.KindFile) && (file == nil || file.URL == "") {
		errs = append(errs, "file url is required for IMAGE and FILE messages")
	}
	return invalid(errs)
}

// RoomName checks a group room name.
func RoomName(name string) error {
	var errs []string
	if strings.TrimSpace(name) == "" {
		errs = append(errs, "room name is required")
	}
	if len(name) > MaxNameLen {
		errs = append(errs, fmt.Sprintf("room name exceeds %d chars", MaxNameLen))
	}
	return invalid(errs)
}

// Page checks paging parameters.
func Page(page, size int) error {
	var errs []string
	if page < 0 {
		errs = append(errs, "page must be >= 0")
	}
	if size < 1 || size > 200 {
		errs = append(errs, "size must be in [1,200]")
	}
	return invalid(errs)
}
