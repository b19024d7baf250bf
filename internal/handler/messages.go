package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/askline-dev/askline/shared/errors"
)

// LookupPeer resolves an account by email for starting a conversation.
// Matching is exact on the normalized address.
func (h *Handler) LookupPeer(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeErrorAndStatusCode(w, &errors.ErrorWithStatusCode{Message: "email query parameter is required", StatusCode: 400})
		return
	}
	peer, err := h.messaging.LookupActorByEmail(r.Context(), email)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, peer)
}

type conversationRequest struct {
	PeerEmail string `validate:"required" json:"peerEmail"`
}

// EnsureConversation returns the direct conversation with the peer,
// creating it on first contact.
func (h *Handler) EnsureConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := loadAndValidateRequestBody(w, r, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	conv, err := h.messaging.EnsureConversation(r.Context(), h.actor(r), req.PeerEmail)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type messagePayload struct {
	Text string `json:"text"`
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var payload messagePayload
	if err := loadAndValidateRequestBody(w, r, &payload); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	id, err := h.messaging.SendMessage(r.Context(), h.actor(r), chi.URLParam(r, "conversationId"), payload.Text)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	if id == "" {
		// blank input is skipped, not an error
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}
