package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"parley/pkg/auth"
	"parley/pkg/directory"
	"parley/pkg/faults"
	"parley/pkg/models"
	"parley/pkg/utils"
	"parley/pkg/validation"
)

// RegisterUsers registers all user-related HTTP routes on the router.
func RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users", registerUser).Methods(http.MethodPost)
	r.HandleFunc("/users", listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/me", updateProfile).Methods(http.MethodPatch)
	r.HandleFunc("/users/me", deactivateUser).Methods(http.MethodDelete)
	r.HandleFunc("/users/me/status", setStatus).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", getUser).Methods(http.MethodGet)
}

// registerUser handles POST /users. This is the only unauthenticated
// mutation: it mints the identity the gateway will forward afterwards.
func registerUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.Username(in.Username); err != nil {
		utils.JSONFault(w, err)
		return
	}
	if err := validation.Email(in.Email); err != nil {
		utils.JSONFault(w, err)
		return
	}
	u, err := directory.Register(in.Username, in.Email, in.FullName)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, u)
}

// listUsers handles GET /users. With ?username= it resolves an exact
// username, with ?q= it searches by username or full name, and with
// ?online=true it lists users currently online.
func listUsers(w http.ResponseWriter, r *http.Request) {
	var (
		users []models.User
		err   error
	)
	switch {
	case r.URL.Query().Get("username") != "":
		var u models.User
		if u, err = directory.FindUserByUsername(r.URL.Query().Get("username")); err == nil {
			users = []models.User{u}
		}
	case r.URL.Query().Get("q") != "":
		users, err = directory.SearchUsers(r.URL.Query().Get("q"))
	case r.URL.Query().Get("online") == "true":
		users, err = directory.OnlineUsers()
	default:
		err = faults.Invalidf("provide username, q, or online=true")
	}
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Users []models.User `json:"users"`
	}{Users: users})
}

func getUser(w http.ResponseWriter, r *http.Request) {
	u, err := directory.FindUser(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

// updateProfile handles PATCH /users/me. Absent fields stay unchanged.
func updateProfile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FullName  *string            `json:"full_name"`
		Bio       *string            `json:"bio"`
		AvatarURL *string            `json:"avatar_url"`
		Status    *models.UserStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := directory.UpdateProfile(auth.UserID(r), directory.ProfileUpdate{
		FullName:  in.FullName,
		Bio:       in.Bio,
		AvatarURL: in.AvatarURL,
		Status:    in.Status,
	})
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

// setStatus handles PUT /users/me/status.
func setStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status models.UserStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := directory.SetStatus(auth.UserID(r), in.Status)
	if err != nil {
		utils.JSONFault(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

// deactivateUser handles DELETE /users/me.
func deactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := directory.Deactivate(auth.UserID(r)); err != nil {
		utils.JSONFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
