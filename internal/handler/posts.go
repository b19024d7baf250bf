package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/askline-dev/askline/internal/service"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/utils"
)

const maxUploadBytes = 8 << 20

type questionPayload struct {
	Title string `validate:"required" json:"title"`
	Body  string `validate:"required" json:"body"`
	Tags  string `json:"tags"`
}

// CreateQuestion accepts a multipart form: a "json" field with the draft
// and an optional "image" file.
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var payload questionPayload
	image, cleanup, err := parseDraftForm(w, r, &payload)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	defer cleanup()

	id, err := h.posts.CreateQuestion(r.Context(), h.actor(r), service.QuestionDraft{
		Title: payload.Title,
		Body:  payload.Body,
		Tags:  payload.Tags,
		Image: image,
	})
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type articlePayload struct {
	Title    string `validate:"required" json:"title"`
	Abstract string `validate:"required" json:"abstract"`
	Text     string `json:"text"`
	Tags     string `json:"tags"`
}

func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var payload articlePayload
	image, cleanup, err := parseDraftForm(w, r, &payload)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	defer cleanup()

	id, err := h.posts.CreateArticle(r.Context(), service.ArticleDraft{
		Title:    payload.Title,
		Abstract: payload.Abstract,
		Text:     payload.Text,
		Tags:     payload.Tags,
		Image:    image,
	})
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// ListQuestions returns the feed, newest first. For a signed-in viewer
// each item carries whether they have liked it.
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.posts.ListQuestions(r.Context())
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	if actor := h.actor(r); actor != nil {
		for i := range questions {
			liked, err := h.posts.HasLiked(r.Context(), questions[i].Id, actor.Id)
			if err != nil {
				writeErrorAndStatusCode(w, err)
				return
			}
			questions[i].LikedByViewer = liked
		}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.DeleteQuestion(r.Context(), chi.URLParam(r, "questionId")); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ToggleLike flips the viewer's like on a question and reports the new
// membership state.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		writeErrorAndStatusCode(w, errors.ErrNotAuthenticated)
		return
	}
	liked, err := h.posts.ToggleLike(r.Context(), chi.URLParam(r, "questionId"), actor.Id)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

type commentPayload struct {
	Text string `validate:"required" json:"text"`
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var payload commentPayload
	if err := loadAndValidateRequestBody(w, r, &payload); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	id, err := h.posts.AddComment(r.Context(), h.actor(r), chi.URLParam(r, "questionId"), payload.Text)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	err := h.posts.DeleteComment(r.Context(), h.actor(r),
		chi.URLParam(r, "questionId"), chi.URLParam(r, "commentId"))
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// parseDraftForm parses a multipart compose form: JSON payload in the
// "json" field, optional upload in the "image" field.
func parseDraftForm(w http.ResponseWriter, r *http.Request, payload any) (*service.Upload, func(), error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, &errors.ErrorWithStatusCode{Message: "Invalid multipart form", StatusCode: 400}
	}

	jsonPayload := r.FormValue("json")
	if jsonPayload == "" {
		return nil, nil, &errors.ErrorWithStatusCode{Message: "Missing json payload", StatusCode: 400}
	}
	if err := utils.DecodeValidate(io.NopCloser(strings.NewReader(jsonPayload)), payload); err != nil {
		return nil, nil, err
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, &errors.ErrorWithStatusCode{Message: "Invalid image upload", StatusCode: 400}
	}
	upload := &service.Upload{Filename: header.Filename, Data: file}
	return upload, func() { file.Close() }, nil
}
