package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/askline-dev/askline/internal/middleware"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/logger"
)

type credentials struct {
	Email       string `validate:"required" json:"email"`
	Password    string `validate:"required" json:"password"`
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	Token string    `json:"token"`
	Actor actorView `json:"actor"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := loadAndValidateRequestBody(w, r, &creds); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	session, err := h.auth.SignUp(r.Context(), creds.Email, creds.Password, creds.DisplayName)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	h.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: session.Token, Actor: toActorView(session.Actor)})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := loadAndValidateRequestBody(w, r, &creds); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	session, err := h.auth.SignIn(r.Context(), creds.Email, creds.Password)
	if err != nil {
		var mfa *errors.MultiFactorRequired
		if stderrors.As(err, &mfa) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"mfaRequired": true,
				"challengeId": mfa.ChallengeId,
			})
			return
		}
		writeErrorAndStatusCode(w, err)
		return
	}

	h.refreshSelfDoc(r, session.Actor)
	h.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, sessionResponse{Token: session.Token, Actor: toActorView(session.Actor)})
}

// refreshSelfDoc keeps the signed-in actor's user document current so email
// lookups and denormalized member snapshots see the latest profile fields.
// Best effort: a failed upsert must not fail the sign-in.
func (h *Handler) refreshSelfDoc(r *http.Request, actor domain.Actor) {
	if err := h.profile.EnsureSelfDoc(r.Context(), &actor); err != nil {
		logger.Log.Error("failed to refresh user document", "uid", actor.Id, "error", err)
	}
}

type challengeAnswer struct {
	ChallengeId string `validate:"required" json:"challengeId"`
	Code        string `validate:"required" json:"code"`
}

// ResolveMfa finishes a sign-in that was interrupted by a second factor.
func (h *Handler) ResolveMfa(w http.ResponseWriter, r *http.Request) {
	var answer challengeAnswer
	if err := loadAndValidateRequestBody(w, r, &answer); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	session, err := h.auth.ResolveChallenge(r.Context(), answer.ChallengeId, answer.Code)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	h.refreshSelfDoc(r, session.Actor)
	h.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, sessionResponse{Token: session.Token, Actor: toActorView(session.Actor)})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie := &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
	}
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		writeErrorAndStatusCode(w, errors.ErrNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, toActorView(*actor))
}

type resetRequest struct {
	Email string `validate:"required" json:"email"`
}

// PasswordReset always reports success so responses cannot be used to
// probe which emails have accounts.
func (h *Handler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := loadAndValidateRequestBody(w, r, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	if err := h.auth.SendPasswordReset(r.Context(), req.Email); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("If the account exists, a reset email has been sent"))
}

type enrollStartRequest struct {
	PhoneNumber string `validate:"required" json:"phoneNumber"`
}

func (h *Handler) StartMfaEnrollment(w http.ResponseWriter, r *http.Request) {
	var req enrollStartRequest
	if err := loadAndValidateRequestBody(w, r, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	enrollmentId, err := h.auth.StartEnrollment(r.Context(), h.actor(r), req.PhoneNumber)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"enrollmentId": enrollmentId})
}

type enrollVerifyRequest struct {
	EnrollmentId string `validate:"required" json:"enrollmentId"`
	Code         string `validate:"required" json:"code"`
	DisplayName  string `json:"displayName"`
}

func (h *Handler) VerifyMfaEnrollment(w http.ResponseWriter, r *http.Request) {
	var req enrollVerifyRequest
	if err := loadAndValidateRequestBody(w, r, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	err := h.auth.VerifyEnrollment(r.Context(), h.actor(r), req.EnrollmentId, req.Code, req.DisplayName)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type unenrollRequest struct {
	FactorUid string `validate:"required" json:"factorUid"`
}

// Unenroll removes a second factor. Requires a recently issued token;
// stale sessions get 401 and must sign in again first.
func (h *Handler) Unenroll(w http.ResponseWriter, r *http.Request) {
	var req unenrollRequest
	if err := loadAndValidateRequestBody(w, r, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	authed := middleware.GetActorFromContext(r)
	if authed == nil {
		writeErrorAndStatusCode(w, errors.ErrNotAuthenticated)
		return
	}
	err := h.auth.Unenroll(r.Context(), &authed.Actor, authed.IssuedAt, req.FactorUid)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    token,
		MaxAge:   int(h.cfg.JwtTTL().Seconds()),
		HttpOnly: true,
	})
}
