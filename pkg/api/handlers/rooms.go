package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"parley/pkg/annotations"
	"parley/pkg/auth"
	"parley/pkg/models"
	"parley/pkg/readstate"
	"parley/pkg/registry"
	"parley/pkg/utils"
	"parley/pkg/validation"
)

// RegisterRooms registers all room-related HTTP routes on the router.
func RegisterRooms(r *mux.Router) {
	r.HandleFunc("/rooms", createRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms", listRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/private", openPrivateRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms/search", searchRooms).Methods(http.MethodGet)

	r.HandleFunc("/rooms/{id}", getRoom).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}", updateRoom).Methods(http.MethodPatch)
	r.HandleFunc("/rooms/{id}", deactivateRoom).Methods(http.MethodDelete)

	r.HandleFunc("/rooms/{id}/members", addMember).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/members/{userID}", removeMember).Methods(http.MethodDelete)

	r.HandleFunc("/rooms/{id}/read", markRead).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/unread", unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}/pins", listPins).Methods(http.MethodGet)
}

// createRoom handles POST /rooms to create a GROUP room. The caller
// becomes the creator and is always a member.
func createRoom(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Members     []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.RoomName(in.Name); err != nil {
		utils.JSONFault(w, err)
		return
	}
	room, err := registry.CreateRoom(auth.UserID(r), in.Name, in.Description, in.Members)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, room)
}

// openPrivateRoom handles POST /rooms/private: returns the single direct
// room between the caller and peer, creating it on first use.
func openPrivateRoom(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Peer string `json:"peer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	room, err := registry.GetOrCreatePrivateRoom(auth.UserID(r), in.Peer)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, room)
}

// listRooms handles GET /rooms: the caller's rooms with unread counts,
// most recently active first.
func listRooms(w http.ResponseWriter, r *http.Request) {
	sums, err := registry.RoomsForUser(auth.UserID(r))
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}{Rooms: sums})
}

// searchRooms handles GET /rooms/search?q= over active group rooms.
func searchRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := registry.SearchGroupRooms(r.URL.Query().Get("q"))
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Rooms []models.Room `json:"rooms"`
	}{Rooms: rooms})
}

func getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := registry.GetRoom(auth.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, room)
}

// updateRoom handles PATCH /rooms/{id}; creator only.
func updateRoom(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	room, err := registry.UpdateRoom(auth.UserID(r), mux.Vars(r)["id"], registry.RoomUpdate{
		Name:        in.Name,
		Description: in.Description,
	})
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, room)
}

// deactivateRoom handles DELETE /rooms/{id}; history stays readable.
func deactivateRoom(w http.ResponseWriter, r *http.Request) {
	if _, err := registry.DeactivateRoom(auth.UserID(r), mux.Vars(r)["id"]); err != nil {
		utils.JSONFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addMember handles POST /rooms/{id}/members.
func addMember(w http.ResponseWriter, r *http.Request) {
	var in struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	room, err := registry.AddMember(auth.UserID(r), mux.Vars(r)["id"], in.User)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, room)
}

// removeMember handles DELETE /rooms/{id}/members/{userID}. Members may
// remove themselves; the creator may remove anyone.
func removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := registry.RemoveMember(auth.UserID(r), vars["id"], vars["userID"]); err != nil {
		utils.JSONFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// markRead handles POST /rooms/{id}/read and reports how many messages
// the caller's watermark moved past.
func markRead(w http.ResponseWriter, r *http.Request) {
	n, err := readstate.MarkRead(auth.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Read int64 `json:"read"`
	}{Read: n})
}

// unreadCount handles GET /rooms/{id}/unread for the caller.
func unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := readstate.Unread(auth.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Unread int64 `json:"unread"`
	}{Unread: n})
}

// listPins handles GET /rooms/{id}/pins, newest pin first.
func listPins(w http.ResponseWriter, r *http.Request) {
	pins, err := annotations.Pins(auth.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Pins []models.Pin `json:"pins"`
	}{Pins: pins})
}
