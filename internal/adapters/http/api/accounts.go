package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/foursigma/foursigma/internal/app"
	"github.com/foursigma/foursigma/internal/domain/model"
)

// editableProfileFields are the only keys PUT /api/users/{userId} accepts.
var editableProfileFields = map[string]bool{"username": true, "displayName": true, "avatarUrl": true}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	const op = "api.signup"

	var in service.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	res, err := s.deps.SignUp(r.Context(), in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	const op = "api.signin"

	var in service.SignInInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	res, err := s.deps.SignIn(r.Context(), in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	const op = "api.oauth_callback"

	var in model.OAuthIdentity
	if err := decodeJSON(w, r, &in); err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	res, err := s.deps.OAuthCallback(r.Context(), in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Me(r.Context(), callerID(r))
	if err != nil {
		s.fail(w, r, Wrap("api.me", err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Profile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.fail(w, r, Wrap("api.get_profile", err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateProfile rejects any field outside editableProfileFields with
// 403 before touching the store.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_profile"

	var raw map[string]json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	for key := range raw {
		if !editableProfileFields[key] {
			s.fail(w, r, WrapKind(op, service.ErrForbidden, fmt.Errorf("field %q cannot be changed", key)))
			return
		}
	}

	var upd model.ProfileUpdate
	for key, dst := range map[string]**string{"username": &upd.Username, "displayName": &upd.DisplayName, "avatarUrl": &upd.AvatarURL} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			s.badRequest(w, r, op, errors.New(key+" must be a string"))
			return
		}
		*dst = &str
	}

	user, err := s.deps.UpdateProfile(r.Context(), callerID(r), chi.URLParam(r, "userId"), upd)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}
