package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"parley/pkg/faults"
	"parley/pkg/models"
	"parley/pkg/store"
)

func setup(t *testing.T, users ...string) {
	t.Helper()
	if err := store.Open(t.TempDir() + "/db"); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	for _, id := range users {
		u := models.User{ID: id, Username: id, Active: true}
		if err := store.SaveUser(u); err != nil {
			t.Fatalf("SaveUser %s: %v", id, err)
		}
	}
}

func TestCreateRoomCreatorAlwaysMember(t *testing.T) {
	setup(t, "u-1", "u-2")
	r, err := CreateRoom("u-1", "ops", "", []string{"u-2", "u-2"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if r.Kind != models.RoomGroup || !r.Active {
		t.Fatalf("unexpected room: %+v", r)
	}
	if !r.IsMember("u-1") || !r.IsMember("u-2") {
		t.Fatalf("expected both members, got %v", r.Members)
	}
	if len(r.Members) != 2 {
		t.Fatalf("duplicate member ids must be collapsed, got %v", r.Members)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	setup(t, "u-1")
	if _, err := CreateRoom("u-1", "  ", "", nil); !errors.Is(err, faults.ErrInvalid) {
		t.Fatalf("expected invalid for blank name, got %v", err)
	}
	if _, err := CreateRoom("u-1", "ok", "", []string{"u-ghost"}); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected not-found for unknown member, got %v", err)
	}
}

func TestPrivateRoomIsUnique(t *testing.T) {
	setup(t, "u-1", "u-2")
	r1, err := GetOrCreatePrivateRoom("u-1", "u-2")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	r2, err := GetOrCreatePrivateRoom("u-2", "u-1")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if r1.ID != r2.ID {
		t.Fatalf("pair produced two rooms: %s vs %s", r1.ID, r2.ID)
	}
	if _, err := GetOrCreatePrivateRoom("u-1", "u-1"); !errors.Is(err, faults.ErrInvalid) {
		t.Fatalf("expected invalid for self pair, got %v", err)
	}
}

func TestPrivateRoomConcurrentOpen(t *testing.T) {
	setup(t, "u-1", "u-2")
	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "u-1", "u-2"
			if i%2 == 1 {
				a, b = b, a
			}
			r, err := GetOrCreatePrivateRoom(a, b)
			if err != nil {
				t.Errorf("open %d: %v", i, err)
				return
			}
			ids[i] = r.ID
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("race created distinct rooms: %s vs %s", ids[0], ids[i])
		}
	}
}

func TestAddMemberInvariants(t *testing.T) {
	setup(t, "u-1", "u-2", "u-3")
	r, err := CreateRoom("u-1", "ops", "", []string{"u-2"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := AddMember("u-1", r.ID, "u-2"); !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("adding an existing member: want conflict, got %v", err)
	}
	if _, err := AddMember("u-2", r.ID, "u-3"); !errors.Is(err, faults.ErrForbidden) {
		t.Fatalf("add by non-creator: want forbidden, got %v", err)
	}
	if _, err := AddMember("u-1", r.ID, "u-ghost"); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("adding unknown user: want not-found, got %v", err)
	}
	got, err := AddMember("u-1", r.ID, "u-3")
	if err != nil {
		t.Fatalf("AddMember by creator: %v", err)
	}
	if !got.IsMember("u-3") {
		t.Fatalf("u-3 missing after add: %v", got.Members)
	}

	dm, err := GetOrCreatePrivateRoom("u-1", "u-2")
	if err != nil {
		t.Fatalf("private room: %v", err)
	}
	if _, err := AddMember("u-1", dm.ID, "u-3"); !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("private membership is fixed: want conflict, got %v", err)
	}
}

func TestRemoveMemberRules(t *testing.T) {
	setup(t, "u-1", "u-2", "u-3")
	r, err := CreateRoom("u-1", "ops", "", []string{"u-2", "u-3"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	// A plain member may only remove themself.
	if _, err := RemoveMember("u-2", r.ID, "u-3"); !errors.Is(err, faults.ErrForbidden) {
		t.Fatalf("member removing another: want forbidden, got %v", err)
	}
	if _, err := RemoveMember("u-2", r.ID, "u-2"); err != nil {
		t.Fatalf("self leave: %v", err)
	}
	// Removing someone who is not a member is a no-op.
	got, err := RemoveMember("u-1", r.ID, "u-2")
	if err != nil {
		t.Fatalf("removing a non-member: %v", err)
	}
	if got.IsMember("u-2") {
		t.Fatalf("u-2 still present: %v", got.Members)
	}
	// The creator may remove anyone but themself.
	if _, err := RemoveMember("u-1", r.ID, "u-3"); err != nil {
		t.Fatalf("creator removal: %v", err)
	}
	rooms, err := store.RoomsForUser("u-3")
	if err != nil {
		t.Fatalf("RoomsForUser: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("membership index not cleaned: %v", rooms)
	}
}

func TestCreatorCannotLeave(t *testing.T) {
	setup(t, "u-1", "u-2")
	r, err := CreateRoom("u-1", "ops", "", []string{"u-2"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := RemoveMember("u-1", r.ID, "u-1"); !errors.Is(err, faults.ErrForbidden) {
		t.Fatalf("creator self-leave: want forbidden, got %v", err)
	}
	if _, err := RemoveMember("u-2", r.ID, "u-1"); !errors.Is(err, faults.ErrForbidden) {
		t.Fatalf("removing the creator: want forbidden, got %v", err)
	}
	got, err := store.GetRoom(r.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if !got.IsMember("u-1") {
		t.Fatalf("creator fell out of members: %v", got.Members)
	}
}

func TestUpdateRoomCreatorOnly(t *testing.T) {
	setup(t, "u-1", "u-2")
	r, err := CreateRoom("u-1", "ops", "old", []string{"u-2"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	name := "oncall"
	if _, err := UpdateRoom("u-2", r.ID, RoomUpdate{Name: &name}); !errors.Is(err, faults.ErrForbidden) {
		t.Fatalf("non-creator update: want forbidden, got %v", err)
	}
	desc := "new"
	got, err := UpdateRoom("u-1", r.ID, RoomUpdate{Name: &name, Description: &desc})
	if err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}
	if got.Name != "oncall" || got.Description != "new" {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestDeactivateRoom(t *testing.T) {
	setup(t, "u-1", "u-2")
	r, err := CreateRoom("u-1", "ops", "", []string{"u-2"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := DeactivateRoom("u-2", r.ID); !errors.Is(err, faults.ErrForbidden) {
		t.Fatalf("non-creator deactivate: want forbidden, got %v", err)
	}
	if _, err := DeactivateRoom("u-1", r.ID); err != nil {
		t.Fatalf("DeactivateRoom: %v", err)
	}
	if _, err := DeactivateRoom("u-1", r.ID); !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("double deactivate: want conflict, got %v", err)
	}
	// History stays readable for members.
	if _, err := GetRoom("u-2", r.ID); err != nil {
		t.Fatalf("member read of inactive room: %v", err)
	}
}

func TestSearchGroupRooms(t *testing.T) {
	setup(t, "u-1")
	for _, name := range []string{"go help", "go news", "random"} {
		if _, err := CreateRoom("u-1", name, "", nil); err != nil {
			t.Fatalf("CreateRoom %q: %v", name, err)
		}
	}
	dead, err := CreateRoom("u-1", "go graveyard", "", nil)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := DeactivateRoom("u-1", dead.ID); err != nil {
		t.Fatalf("DeactivateRoom: %v", err)
	}
	got, err := SearchGroupRooms("go")
	if err != nil {
		t.Fatalf("SearchGroupRooms: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 active matches, got %d: %v", len(got), got)
	}
	if _, err := CreateRoom("u-1", "offtopic", "all things Gophers", nil); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	got, err = SearchGroupRooms("gopher")
	if err != nil {
		t.Fatalf("SearchGroupRooms: %v", err)
	}
	if len(got) != 1 || got[0].Name != "offtopic" {
		t.Fatalf("description match: got %v", got)
	}
	if _, err := SearchGroupRooms("  "); !errors.Is(err, faults.ErrInvalid) {
		t.Fatalf("blank query: want invalid, got %v", err)
	}
}

func TestRoomsForUserSummaries(t *testing.T) {
	setup(t, "u-1", "u-2")
	quiet, err := CreateRoom("u-1", "quiet", "", []string{"u-2"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	busy, err := CreateRoom("u-1", "busy", "", []string{"u-2"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	base := time.Now().UTC().UnixNano()
	for i := 0; i < 3; i++ {
		m := models.Message{ID: fmt.Sprintf("m-%d", i), Room: busy.ID, Sender: "u-2",
			Content: "x", Kind: models.KindText, CreatedTS: base + int64(i)}
		if err := store.AppendMessage(m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	sums, err := RoomsForUser("u-1")
	if err != nil {
		t.Fatalf("RoomsForUser: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(sums))
	}
	if sums[0].ID != busy.ID {
		t.Fatalf("expected room with latest activity first, got %s", sums[0].ID)
	}
	if sums[0].UnreadCount != 3 {
		t.Fatalf("expected 3 unread, got %d", sums[0].UnreadCount)
	}
	if sums[0].LastMessage == nil || sums[0].LastMessage.ID != "m-2" {
		t.Fatalf("unexpected last message: %+v", sums[0].LastMessage)
	}
	if sums[1].ID != quiet.ID || sums[1].UnreadCount != 0 || sums[1].LastMessage != nil {
		t.Fatalf("unexpected quiet summary: %+v", sums[1])
	}
}
