package handler

import (
	"net/http"

	"github.com/askline-dev/askline/shared/errors"
)

type displayNameRequest struct {
	DisplayName string `validate:"required" json:"displayName"`
}

func (h *Handler) SaveDisplayName(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		writeErrorAndStatusCode(w, errors.ErrNotAuthenticated)
		return
	}
	var req displayNameRequest
	if err := loadAndValidateRequestBody(w, r, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	if err := h.profile.SaveDisplayName(r.Context(), actor.Id, req.DisplayName); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SetAvatar replaces the viewer's avatar from a multipart "avatar" file.
func (h *Handler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		writeErrorAndStatusCode(w, errors.ErrNotAuthenticated)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErrorAndStatusCode(w, &errors.ErrorWithStatusCode{Message: "Invalid multipart form", StatusCode: 400})
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeErrorAndStatusCode(w, &errors.ErrorWithStatusCode{Message: "avatar file is required", StatusCode: 400})
		return
	}
	defer file.Close()

	url, err := h.profile.SetAvatar(r.Context(), actor.Id, header.Filename, header.Size, file)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"photoURL": url})
}

// MarkPremium records the plan upgrade after checkout completes.
func (h *Handler) MarkPremium(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		writeErrorAndStatusCode(w, errors.ErrNotAuthenticated)
		return
	}
	if err := h.profile.MarkPremium(r.Context(), actor.Id); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
