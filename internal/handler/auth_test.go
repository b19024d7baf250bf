package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askline-dev/askline/internal/identity"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
)

func TestLoginHandler(t *testing.T) {
	session := identity.Session{
		Token: "jwt-token",
		Actor: domain.Actor{Id: "u1", Email: "ann@example.com", DisplayName: "Ann"},
	}

	t.Run("success sets cookie and returns session", func(t *testing.T) {
		auth := &mockProvider{
			SignInFunc: func(ctx context.Context, email, password string) (identity.Session, error) {
				assert.Equal(t, "ann@example.com", email)
				return session, nil
			},
		}
		h := newTestHandler(auth, nil)
		r := newRouter(func(r chi.Router) { r.Post("/login", h.Login) })

		rec := serve(r, http.MethodPost, "/login", jsonBody(`{"email":"ann@example.com","password":"pw"}`))
		requireStatus(t, rec, http.StatusOK)

		var resp sessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "jwt-token", resp.Token)
		assert.Equal(t, "u1", resp.Actor.Uid)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "accessToken", cookies[0].Name)
		assert.Equal(t, "jwt-token", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("second factor interrupts sign-in", func(t *testing.T) {
		auth := &mockProvider{
			SignInFunc: func(ctx context.Context, email, password string) (identity.Session, error) {
				return identity.Session{}, &errors.MultiFactorRequired{ChallengeId: "ch-1"}
			},
		}
		h := newTestHandler(auth, nil)
		r := newRouter(func(r chi.Router) { r.Post("/login", h.Login) })

		rec := serve(r, http.MethodPost, "/login", jsonBody(`{"email":"a@b.c","password":"pw"}`))
		requireStatus(t, rec, http.StatusUnauthorized)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["mfaRequired"])
		assert.Equal(t, "ch-1", resp["challengeId"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		auth := &mockProvider{
			SignInFunc: func(ctx context.Context, email, password string) (identity.Session, error) {
				return identity.Session{}, errors.ErrWrongPassword
			},
		}
		h := newTestHandler(auth, nil)
		r := newRouter(func(r chi.Router) { r.Post("/login", h.Login) })

		rec := serve(r, http.MethodPost, "/login", jsonBody(`{"email":"a@b.c","password":"pw"}`))
		requireStatus(t, rec, http.StatusUnauthorized)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		h := newTestHandler(&mockProvider{}, nil)
		r := newRouter(func(r chi.Router) { r.Post("/login", h.Login) })
		rec := serve(r, http.MethodPost, "/login", jsonBody(`{"email":"a@b.c"}`))
		requireStatus(t, rec, http.StatusBadRequest)
	})
}

func TestRegisterHandler(t *testing.T) {
	auth := &mockProvider{
		SignUpFunc: func(ctx context.Context, email, password, displayName string) (identity.Session, error) {
			assert.Equal(t, "Ann", displayName)
			return identity.Session{Token: "t", Actor: domain.Actor{Id: "u1", Email: email}}, nil
		},
	}
	h := newTestHandler(auth, nil)
	r := newRouter(func(r chi.Router) { r.Post("/register", h.Register) })

	rec := serve(r, http.MethodPost, "/register", jsonBody(`{"email":"ann@example.com","password":"pw","displayName":"Ann"}`))
	requireStatus(t, rec, http.StatusCreated)

	t.Run("duplicate account status passes through", func(t *testing.T) {
		auth.SignUpFunc = func(ctx context.Context, email, password, displayName string) (identity.Session, error) {
			return identity.Session{}, &errors.ErrorWithStatusCode{Message: "Account already exists", StatusCode: 409}
		}
		rec := serve(r, http.MethodPost, "/register", jsonBody(`{"email":"ann@example.com","password":"pw"}`))
		requireStatus(t, rec, http.StatusConflict)
	})
}

func TestLoginRefreshesSelfDoc(t *testing.T) {
	auth := &mockProvider{
		SignInFunc: func(ctx context.Context, email, password string) (identity.Session, error) {
			return identity.Session{Token: "t", Actor: domain.Actor{Id: "u1", Email: "ann@example.com"}}, nil
		},
	}
	var upserted *domain.Actor
	profile := &mockProfile{
		EnsureSelfDocFunc: func(ctx context.Context, actor *domain.Actor) error {
			upserted = actor
			return nil
		},
	}
	h := New(auth, nil, nil, profile, nil, testConfig())
	r := newRouter(func(r chi.Router) { r.Post("/login", h.Login) })

	rec := serve(r, http.MethodPost, "/login", jsonBody(`{"email":"ann@example.com","password":"pw"}`))
	requireStatus(t, rec, http.StatusOK)
	require.NotNil(t, upserted)
	assert.Equal(t, "u1", upserted.Id)

	t.Run("upsert failure does not fail the sign-in", func(t *testing.T) {
		profile.EnsureSelfDocFunc = func(ctx context.Context, actor *domain.Actor) error {
			return errors.ErrTransient
		}
		rec := serve(r, http.MethodPost, "/login", jsonBody(`{"email":"ann@example.com","password":"pw"}`))
		requireStatus(t, rec, http.StatusOK)
	})
}

func TestOversizedBodyRejected(t *testing.T) {
	h := newTestHandler(&mockProvider{}, nil)
	r := newRouter(func(r chi.Router) { r.Post("/login", h.Login) })

	huge := `{"email":"a@b.c","password":"` + strings.Repeat("x", 2<<20) + `"}`
	rec := serve(r, http.MethodPost, "/login", jsonBody(huge))
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestResolveMfaHandler(t *testing.T) {
	auth := &mockProvider{
		ResolveChallengeFunc: func(ctx context.Context, challengeId, code string) (identity.Session, error) {
			assert.Equal(t, "ch-1", challengeId)
			assert.Equal(t, "123456", code)
			return identity.Session{Token: "t2", Actor: domain.Actor{Id: "u1"}}, nil
		},
	}
	h := newTestHandler(auth, nil)
	r := newRouter(func(r chi.Router) { r.Post("/mfa/resolve", h.ResolveMfa) })

	rec := serve(r, http.MethodPost, "/mfa/resolve", jsonBody(`{"challengeId":"ch-1","code":"123456"}`))
	requireStatus(t, rec, http.StatusOK)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "t2", resp.Token)
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newTestHandler(&mockProvider{}, nil)
	r := newRouter(func(r chi.Router) { r.Post("/logout", h.Logout) })

	rec := serve(r, http.MethodPost, "/logout", nil)
	requireStatus(t, rec, http.StatusOK)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
