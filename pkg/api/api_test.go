package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"parley/pkg/auth"
	"parley/pkg/models"
	"parley/pkg/store"
)

func setupHandler(t *testing.T) http.Handler {
	t.Helper()
	if err := store.Open(t.TempDir() + "/db"); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return auth.Middleware(auth.SecConfig{})(Router())
}

func do(t *testing.T, h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(auth.HeaderUserID, userID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return out
}

func registerTestUser(t *testing.T, h http.Handler, username string) models.User {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/users", "", map[string]string{
		"username": username, "email": username + "@example.com"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, rr.Code, rr.Body.String())
	}
	return decode[models.User](t, rr)
}

func TestHealthEndpoints(t *testing.T) {
	h := setupHandler(t)
	if rr := do(t, h, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("readyz without identity: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/readyz", "u-1", nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rr.Code)
	}
}

func TestMessagingFlow(t *testing.T) {
	h := setupHandler(t)
	alice := registerTestUser(t, h, "alice")
	bob := registerTestUser(t, h, "bob")

	// Alice opens a room with Bob.
	rr := do(t, h, http.MethodPost, "/v1/rooms", alice.ID, map[string]any{
		"name": "ops", "members": []string{bob.ID}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create room: %d %s", rr.Code, rr.Body.String())
	}
	room := decode[models.Room](t, rr)

	// Alice sends, Bob sees it unread, pages it, marks it read.
	rr = do(t, h, http.MethodPost, "/v1/rooms/"+room.ID+"/messages", alice.ID,
		map[string]string{"content": "hello bob"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", rr.Code, rr.Body.String())
	}
	msg := decode[models.Message](t, rr)

	rr = do(t, h, http.MethodGet, "/v1/rooms", bob.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list rooms: %d %s", rr.Code, rr.Body.String())
	}
	sums := decode[struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}](t, rr)
	if len(sums.Rooms) != 1 || sums.Rooms[0].UnreadCount != 1 {
		t.Fatalf("unexpected summaries: %+v", sums.Rooms)
	}

	rr = do(t, h, http.MethodGet, "/v1/rooms/"+room.ID+"/messages?page=0&size=10", bob.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("page: %d %s", rr.Code, rr.Body.String())
	}
	page := decode[models.MessagePage](t, rr)
	if page.TotalElements != 1 || page.Content[0].ID != msg.ID {
		t.Fatalf("unexpected page: %+v", page)
	}

	rr = do(t, h, http.MethodPost, "/v1/rooms/"+room.ID+"/read", bob.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("mark read: %d %s", rr.Code, rr.Body.String())
	}
	read := decode[struct {
		Read int64 `json:"read"`
	}](t, rr)
	if read.Read != 1 {
		t.Fatalf("expected 1 read, got %d", read.Read)
	}

	// Bob reacts and pins; Alice edits then deletes.
	rr = do(t, h, http.MethodPut, "/v1/messages/"+msg.ID+"/reactions", bob.ID,
		map[string]string{"kind": "👍"})
	if rr.Code != http.StatusOK {
		t.Fatalf("react: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodPost, "/v1/messages/"+msg.ID+"/pin", bob.ID, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("pin by non-creator: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodPost, "/v1/messages/"+msg.ID+"/pin", alice.ID, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("pin: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodPut, "/v1/messages/"+msg.ID, alice.ID,
		map[string]string{"content": "hello robert"})
	if rr.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodDelete, "/v1/messages/"+msg.ID, bob.ID, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("delete by non-sender: %d", rr.Code)
	}
	rr = do(t, h, http.MethodDelete, "/v1/messages/"+msg.ID, alice.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodDelete, "/v1/messages/"+msg.ID, alice.ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("double delete: %d", rr.Code)
	}
}

func TestPrivateRoomFlow(t *testing.T) {
	h := setupHandler(t)
	alice := registerTestUser(t, h, "alice")
	bob := registerTestUser(t, h, "bob")
	carol := registerTestUser(t, h, "carol")

	rr := do(t, h, http.MethodPost, "/v1/rooms/private", alice.ID,
		map[string]string{"peer": bob.ID})
	if rr.Code != http.StatusOK {
		t.Fatalf("open private: %d %s", rr.Code, rr.Body.String())
	}
	dm := decode[models.Room](t, rr)
	if dm.Kind != models.RoomPrivate {
		t.Fatalf("expected PRIVATE room: %+v", dm)
	}

	rr = do(t, h, http.MethodPost, "/v1/rooms/private", bob.ID,
		map[string]string{"peer": alice.ID})
	again := decode[models.Room](t, rr)
	if again.ID != dm.ID {
		t.Fatalf("pair must map to one room: %s vs %s", dm.ID, again.ID)
	}

	rr = do(t, h, http.MethodPost, "/v1/rooms/"+dm.ID+"/members", alice.ID,
		map[string]string{"user": carol.ID})
	if rr.Code != http.StatusConflict {
		t.Fatalf("private membership must be fixed: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodGet, "/v1/rooms/"+dm.ID, carol.ID, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("outsider read: %d", rr.Code)
	}
}

func TestErrorShape(t *testing.T) {
	h := setupHandler(t)
	alice := registerTestUser(t, h, "alice")
	rr := do(t, h, http.MethodGet, "/v1/rooms/r-ghost", alice.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown room: %d", rr.Code)
	}
	body := decode[map[string]string](t, rr)
	if body["error"] == "" {
		t.Fatalf(`expected {"error": ...}, got %q`, rr.Body.String())
	}
}

func TestUserSearchRequiresQuery(t *testing.T) {
	h := setupHandler(t)
	alice := registerTestUser(t, h, "alice")
	if rr := do(t, h, http.MethodGet, "/v1/users", alice.ID, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("bare list: %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/v1/users?q=ali", alice.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rr.Code, rr.Body.String())
	}
	users := decode[struct {
		Users []models.User `json:"users"`
	}](t, rr)
	if len(users.Users) != 1 || users.Users[0].ID != alice.ID {
		t.Fatalf("unexpected result: %+v", users.Users)
	}
}
