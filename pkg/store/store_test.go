package store

import (
	"fmt"
	"testing"

	"parley/pkg/models"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir() + "/db"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestUserIndexes(t *testing.T) {
	openTestStore(t)
	u := models.User{ID: "u-1", Username: "alice", Email: "alice@example.com", Active: true}
	if err := SaveUser(u); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	got, err := GetUser("u-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("expected username alice, got %q", got.Username)
	}
	id, err := GetUserIDByUsername("alice")
	if err != nil || id != "u-1" {
		t.Fatalf("username index: id=%q err=%v", id, err)
	}
	id, err = GetUserIDByEmail("alice@example.com")
	if err != nil || id != "u-1" {
		t.Fatalf("email index: id=%q err=%v", id, err)
	}
	if _, err := GetUser("u-missing"); !IsNotFound(err) {
		t.Fatalf("expected not-found for unknown user, got %v", err)
	}
}

func TestRoomMembershipIndex(t *testing.T) {
	openTestStore(t)
	r := models.Room{ID: "r-1", Name: "ops", Kind: models.RoomGroup, Creator: "u-1",
		Members: []string{"u-1", "u-2"}, Active: true}
	if err := SaveRoom(r); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	rooms, err := RoomsForUser("u-2")
	if err != nil {
		t.Fatalf("RoomsForUser: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "r-1" {
		t.Fatalf("expected [r-1], got %v", rooms)
	}

	// Dropping u-2 must also drop its membership index entry.
	r.Members = []string{"u-1"}
	if err := SaveRoom(r, "u-2"); err != nil {
		t.Fatalf("SaveRoom with removal: %v", err)
	}
	rooms, err = RoomsForUser("u-2")
	if err != nil {
		t.Fatalf("RoomsForUser after removal: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("expected no rooms for removed member, got %v", rooms)
	}
}

func TestPairRoomLookup(t *testing.T) {
	openTestStore(t)
	r := models.Room{ID: "r-dm", Kind: models.RoomPrivate, Creator: "u-1",
		Members: []string{"u-1", "u-2"}, Active: true}
	if err := SaveRoomWithPair(r, "u-1", "u-2"); err != nil {
		t.Fatalf("SaveRoomWithPair: %v", err)
	}
	// Lookup is order-independent.
	for _, pair := range [][2]string{{"u-1", "u-2"}, {"u-2", "u-1"}} {
		id, err := GetPairRoom(pair[0], pair[1])
		if err != nil {
			t.Fatalf("GetPairRoom(%v): %v", pair, err)
		}
		if id != "r-dm" {
			t.Fatalf("GetPairRoom(%v) = %q, want r-dm", pair, id)
		}
	}
	if _, err := GetPairRoom("u-1", "u-3"); !IsNotFound(err) {
		t.Fatalf("expected not-found for unknown pair, got %v", err)
	}
}

func TestMessageOrdering(t *testing.T) {
	openTestStore(t)
	for i := 0; i < 5; i++ {
		m := models.Message{ID: fmt.Sprintf("m-%d", i), Room: "r-1", Sender: "u-1",
			Content: fmt.Sprintf("msg %d", i), Kind: models.KindText,
			CreatedTS: int64(1000 + i)}
		if err := AppendMessage(m); err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}
	msgs, err := ListRoomMessages("r-1")
	if err != nil {
		t.Fatalf("ListRoomMessages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.ID != fmt.Sprintf("m-%d", i) {
			t.Fatalf("out of order at %d: got %s", i, m.ID)
		}
	}
	last, ok, err := LastRoomMessage("r-1")
	if err != nil || !ok {
		t.Fatalf("LastRoomMessage: ok=%v err=%v", ok, err)
	}
	if last.ID != "m-4" {
		t.Fatalf("expected last m-4, got %s", last.ID)
	}
}

func TestRoomMessagesAfterIsExclusive(t *testing.T) {
	openTestStore(t)
	for i := 0; i < 3; i++ {
		m := models.Message{ID: fmt.Sprintf("m-%d", i), Room: "r-1", Sender: "u-1",
			Content: "x", Kind: models.KindText, CreatedTS: int64(100 + i)}
		if err := AppendMessage(m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	mark, ok, err := LastRoomOrderKey("r-1")
	if err != nil || !ok {
		t.Fatalf("LastRoomOrderKey: ok=%v err=%v", ok, err)
	}
	after, err := RoomMessagesAfter("r-1", mark)
	if err != nil {
		t.Fatalf("RoomMessagesAfter: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("watermark at last key should yield nothing, got %d", len(after))
	}
	m := models.Message{ID: "m-new", Room: "r-1", Sender: "u-2", Content: "x",
		Kind: models.KindText, CreatedTS: 200}
	if err := AppendMessage(m); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	after, err = RoomMessagesAfter("r-1", mark)
	if err != nil {
		t.Fatalf("RoomMessagesAfter: %v", err)
	}
	if len(after) != 1 || after[0].ID != "m-new" {
		t.Fatalf("expected [m-new], got %v", after)
	}
	// Empty watermark covers the whole room.
	all, err := RoomMessagesAfter("r-1", "")
	if err != nil {
		t.Fatalf("RoomMessagesAfter(empty): %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 messages from empty watermark, got %d", len(all))
	}
}

func TestReadMarks(t *testing.T) {
	openTestStore(t)
	mark, err := GetReadMark("r-1", "u-1")
	if err != nil {
		t.Fatalf("GetReadMark on empty store: %v", err)
	}
	if mark != "" {
		t.Fatalf("expected empty mark, got %q", mark)
	}
	if err := SaveReadMark("r-1", "u-1", "room:r-1:msg:00000000000000000100-000001"); err != nil {
		t.Fatalf("SaveReadMark: %v", err)
	}
	mark, err = GetReadMark("r-1", "u-1")
	if err != nil || mark == "" {
		t.Fatalf("GetReadMark after save: mark=%q err=%v", mark, err)
	}
}

func TestScanValues(t *testing.T) {
	openTestStore(t)
	for i := 0; i < 3; i++ {
		k := fmt.Sprintf("outbox:chat.message:%020d-%06d", 100+i, i)
		if err := SaveKey(k, []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("SaveKey: %v", err)
		}
	}
	_ = SaveKey("outbox:chat.notification:x", []byte("other"))
	vals, err := ScanValues("outbox:chat.message:")
	if err != nil {
		t.Fatalf("ScanValues: %v", err)
	}
	if len(vals) != 3 {
		t.Fatalf("expected 3 values, got %d", len(vals))
	}
	if string(vals[0]) != "v0" {
		t.Fatalf("expected v0 first, got %s", vals[0])
	}
}
