package readstate

import (
	"errors"
	"fmt"
	"testing"

	"parley/pkg/faults"
	"parley/pkg/messages"
	"parley/pkg/models"
	"parley/pkg/store"
)

func setup(t *testing.T) models.Room {
	t.Helper()
	if err := store.Open(t.TempDir() + "/db"); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	r := models.Room{ID: "r-1", Name: "ops", Kind: models.RoomGroup, Creator: "u-1",
		Members: []string{"u-1", "u-2"}, Active: true}
	if err := store.SaveRoom(r); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	return r
}

func TestUnreadExcludesOwnAndDeleted(t *testing.T) {
	r := setup(t)
	for i := 0; i < 3; i++ {
		if _, err := messages.Send("u-1", r.ID, messages.SendInput{Content: fmt.Sprintf("m %d", i)}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	gone, err := messages.Send("u-1", r.ID, messages.SendInput{Content: "oops"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := messages.SoftDelete("u-1", gone.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, err := messages.Send("u-2", r.ID, messages.SendInput{Content: "mine"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	n, err := Unread("u-2", r.ID)
	if err != nil {
		t.Fatalf("Unread: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 unread for u-2 (own and deleted excluded), got %d", n)
	}
	n, err = Unread("u-1", r.ID)
	if err != nil {
		t.Fatalf("Unread: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 unread for u-1, got %d", n)
	}
}

func TestMarkReadMovesWatermark(t *testing.T) {
	r := setup(t)
	var sent []models.Message
	for i := 0; i < 2; i++ {
		m, err := messages.Send("u-1", r.ID, messages.SendInput{Content: "x"})
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		sent = append(sent, m)
	}
	n, err := MarkRead("u-2", r.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 newly read, got %d", n)
	}
	for _, m := range sent {
		got, err := store.GetMessage(m.ID)
		if err != nil {
			t.Fatalf("GetMessage: %v", err)
		}
		if got.Status != models.StatusRead {
			t.Fatalf("message %s not transitioned to READ: %s", m.ID, got.Status)
		}
	}
	// Idempotent until something new arrives.
	n, err = MarkRead("u-2", r.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 on repeat, got %d", n)
	}
	if _, err := messages.Send("u-1", r.ID, messages.SendInput{Content: "new"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	n, err = Unread("u-2", r.ID)
	if err != nil {
		t.Fatalf("Unread: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 unread after new message, got %d", n)
	}
}

func TestUnreadMembership(t *testing.T) {
	r := setup(t)
	if _, err := messages.Send("u-1", r.ID, messages.SendInput{Content: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := Unread("u-1", "r-ghost"); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("unknown room: want not-found, got %v", err)
	}
	if _, err := Unread("u-ghost", r.ID); !errors.Is(err, faults.ErrForbidden) {
		t.Fatalf("non-member: want forbidden, got %v", err)
	}
}

func TestMarkReadMembership(t *testing.T) {
	r := setup(t)
	if _, err := MarkRead("u-ghost", r.ID); !errors.Is(err, faults.ErrForbidden) {
		t.Fatalf("non-member: want forbidden, got %v", err)
	}
	if _, err := MarkRead("u-1", "r-ghost"); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("unknown room: want not-found, got %v", err)
	}
	// Empty room is a no-op.
	n, err := MarkRead("u-1", r.ID)
	if err != nil || n != 0 {
		t.Fatalf("empty room MarkRead: n=%d err=%v", n, err)
	}
}
