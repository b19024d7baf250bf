// Package handler exposes the HTTP surface. Handlers stay thin: decode,
// call the service layer, map errors to status codes.
package handler

import (
	"io"
	"net/http"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/internal/identity"
	"github.com/askline-dev/askline/internal/middleware"
	"github.com/askline-dev/askline/internal/reconcile"
	"github.com/askline-dev/askline/internal/service"
	"github.com/askline-dev/askline/shared/config"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/utils"
)

type Handler struct {
	auth      identity.Provider
	posts     service.PostsService
	messaging service.MessagingService
	profile   service.ProfileService
	store     docstore.Client
	cfg       *config.Config
}

func New(auth identity.Provider, posts service.PostsService, messaging service.MessagingService, profile service.ProfileService, store docstore.Client, cfg *config.Config) *Handler {
	return &Handler{auth, posts, messaging, profile, store, cfg}
}

func writeErrorAndStatusCode(w http.ResponseWriter, err error) {
	utils.WriteErrorAndStatusCode(w, err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	utils.WriteJSON(w, status, body)
}

func loadAndValidateRequestBody(w http.ResponseWriter, r *http.Request, body any) error {
	return utils.DecodeValidate(limitedBody(w, r), body)
}

// actorView is the public shape of an account. Credential material never
// leaves the service boundary.
type actorView struct {
	Uid         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Premium     bool   `json:"premium"`
}

func toActorView(a domain.Actor) actorView {
	return actorView{
		Uid:         a.Id,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
		Premium:     a.Premium,
	}
}

func (h *Handler) actor(r *http.Request) *domain.Actor {
	if authed := middleware.GetActorFromContext(r); authed != nil {
		return &authed.Actor
	}
	return nil
}

func (h *Handler) newView() *reconcile.Manager {
	return reconcile.NewManager(h.store)
}

// limitedBody caps JSON request bodies; multipart uploads enforce their
// own limit when parsed.
func limitedBody(w http.ResponseWriter, r *http.Request) io.ReadCloser {
	return http.MaxBytesReader(w, r.Body, 1<<20)
}
