package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"parley/pkg/annotations"
	"parley/pkg/auth"
	"parley/pkg/messages"
	"parley/pkg/models"
	"parley/pkg/telemetry"
	"parley/pkg/utils"
)

// RegisterMessages registers message, reaction and pin routes.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/rooms/{roomID}/messages", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomID}/messages", pageMessages).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomID}/messages/search", searchMessages).Methods(http.MethodGet)

	r.HandleFunc("/messages/{id}", getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", editMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/forward", forwardMessage).Methods(http.MethodPost)

	r.HandleFunc("/messages/{id}/reactions", react).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}/reactions", unreact).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/reactions", listReactions).Methods(http.MethodGet)

	r.HandleFunc("/messages/{id}/pin", pinMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/pin", unpinMessage).Methods(http.MethodDelete)
}

// sendMessage handles POST /rooms/{roomID}/messages.
func sendMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string             `json:"content"`
		Kind    models.MessageKind `json:"kind"`
		ReplyTo string             `json:"reply_to"`
		File    *models.FileMeta   `json:"file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := messages.Send(auth.UserID(r), mux.Vars(r)["roomID"], messages.SendInput{
		Content: in.Content,
		Kind:    in.Kind,
		ReplyTo: in.ReplyTo,
		File:    in.File,
	})
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	telemetry.MessagesSent.Inc()
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

// pageMessages handles GET /rooms/{roomID}/messages?page=&size=, newest
// first. Defaults are page 0, size 50.
func pageMessages(w http.ResponseWriter, r *http.Request) {
	page, size := 0, 50
	if v := r.URL.Query().Get("page"); v != "" {
		page, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("size"); v != "" {
		size, _ = strconv.Atoi(v)
	}
	out, err := messages.Page(auth.UserID(r), mux.Vars(r)["roomID"], page, size)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

// searchMessages handles GET /rooms/{roomID}/messages/search?q=.
func searchMessages(w http.ResponseWriter, r *http.Request) {
	found, err := messages.Search(auth.UserID(r), mux.Vars(r)["roomID"], r.URL.Query().Get("q"))
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Messages []models.Message `json:"messages"`
	}{Messages: found})
}

func getMessage(w http.ResponseWriter, r *http.Request) {
	m, err := messages.Get(auth.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

// editMessage handles PUT /messages/{id}; sender only.
func editMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := messages.Edit(auth.UserID(r), mux.Vars(r)["id"], in.Content)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

// deleteMessage handles DELETE /messages/{id}: a soft delete that leaves
// a tombstone in room order.
func deleteMessage(w http.ResponseWriter, r *http.Request) {
	if _, err := messages.SoftDelete(auth.UserID(r), mux.Vars(r)["id"]); err != nil {
		utils.JSONFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// forwardMessage handles POST /messages/{id}/forward.
func forwardMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Room string `json:"room"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := messages.Forward(auth.UserID(r), mux.Vars(r)["id"], in.Room)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	telemetry.MessagesSent.Inc()
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

// react handles PUT /messages/{id}/reactions; re-reacting replaces the
// caller's previous reaction.
func react(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	rc, err := annotations.React(auth.UserID(r), mux.Vars(r)["id"], in.Kind)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, rc)
}

func unreact(w http.ResponseWriter, r *http.Request) {
	if err := annotations.Unreact(auth.UserID(r), mux.Vars(r)["id"]); err != nil {
		utils.JSONFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func listReactions(w http.ResponseWriter, r *http.Request) {
	rs, err := annotations.Reactions(auth.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Reactions []models.Reaction `json:"reactions"`
	}{Reactions: rs})
}

func pinMessage(w http.ResponseWriter, r *http.Request) {
	p, err := annotations.Pin(auth.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, p)
}

func unpinMessage(w http.ResponseWriter, r *http.Request) {
	if err := annotations.Unpin(auth.UserID(r), mux.Vars(r)["id"]); err != nil {
		utils.JSONFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
