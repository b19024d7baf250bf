// Package identity fronts the authenticated identity provider: sign-in,
// sign-up, password reset dispatch, and phone-factor enrollment with
// challenge-response verification.
package identity

import (
	"context"
	"time"

	"github.com/askline-dev/askline/shared/domain"
)

// Session is an authenticated actor plus the bearer token that proves it.
type Session struct {
	Token    string
	Actor    domain.Actor
	IssuedAt time.Time
}

// Provider is the capability contract the rest of the system consumes.
// Sign-in against an account with an enrolled second factor fails with
// *errors.MultiFactorRequired; the caller resumes via ResolveChallenge.
type Provider interface {
	SignUp(ctx context.Context, email, password, displayName string) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	ResolveChallenge(ctx context.Context, challengeId, code string) (Session, error)
	CurrentActor(ctx context.Context, token string) (domain.Actor, time.Time, error)

	// SendPasswordReset reports the same generic outcome whether or not
	// the email maps to an account.
	SendPasswordReset(ctx context.Context, email string) error

	StartEnrollment(ctx context.Context, actor *domain.Actor, phoneNumber string) (string, error)
	VerifyEnrollment(ctx context.Context, actor *domain.Actor, enrollmentId, code, displayName string) error
	// Unenroll demands a fresh sign-in; a stale token fails with
	// errors.ErrRecentLoginRequired.
	Unenroll(ctx context.Context, actor *domain.Actor, tokenIssuedAt time.Time, factorUid string) error
}

// SMSSender delivers factor-verification codes.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, body string) error
}

// EmailSender delivers password-reset mail.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}
