package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/config"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/logger"
)

const (
	colChallenges  = "mfaChallenges"
	colEnrollments = "mfaEnrollments"
)

// Service implements Provider on top of the document store's users
// collection.
type Service struct {
	store  docstore.Client
	tokens TokenService
	sms    SMSSender
	email  EmailSender
	cfg    *config.Public
}

var _ Provider = (*Service)(nil)

func NewService(store docstore.Client, tokens TokenService, sms SMSSender, email EmailSender, cfg *config.Public) *Service {
	return &Service{store: store, tokens: tokens, sms: sms, email: email, cfg: cfg}
}

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	norm := domain.NormalizeEmail(email)
	if norm == "" || password == "" {
		return Session{}, &errors.ValidationError{Message: "email and password are required"}
	}

	existing, err := s.findByEmail(ctx, norm)
	if err != nil && !errors.IsNotFound(err) {
		return Session{}, err
	}
	if existing != nil {
		return Session{}, &errors.ErrorWithStatusCode{Message: "Account already exists", StatusCode: 409}
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return Session{}, err
	}

	actor := domain.Actor{
		Email:           email,
		NormalizedEmail: norm,
		DisplayName:     displayName,
		PassHash:        string(passHash),
	}
	data := actor.ToData()
	data["createdAt"] = docstore.ServerTimestamp()
	data["updatedAt"] = docstore.ServerTimestamp()

	path, err := s.store.Create(ctx, domain.ColUsers, data)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create user: %w", err)
	}
	actor.Id = docstore.Doc{Path: path}.Id()
	return s.newSession(actor)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	actor, err := s.findByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.IsNotFound(err) {
			return Session{}, errors.ErrWrongPassword
		}
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(actor.PassHash), []byte(password)) != nil {
		return Session{}, errors.ErrWrongPassword
	}

	if len(actor.EnrolledFactors) > 0 {
		challengeId, err := s.stageChallenge(ctx, actor)
		if err != nil {
			return Session{}, err
		}
		return Session{}, &errors.MultiFactorRequired{ChallengeId: challengeId}
	}
	return s.newSession(*actor)
}

// ResolveChallenge completes a sign-in that hit the second factor.
func (s *Service) ResolveChallenge(ctx context.Context, challengeId, code string) (Session, error) {
	path := docstore.DocPath(colChallenges, challengeId)
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		if errors.IsNotFound(err) {
			return Session{}, errors.ErrWrongPassword
		}
		return Session{}, err
	}

	expires, _ := doc.Data["expires"].(time.Time)
	codeHash, _ := doc.Data["codeHash"].(string)
	uid, _ := doc.Data["uid"].(string)
	if time.Now().After(expires) {
		s.store.Delete(ctx, path)
		return Session{}, &errors.ErrorWithStatusCode{Message: "Verification code expired", StatusCode: 401}
	}
	if bcrypt.CompareHashAndPassword([]byte(codeHash), []byte(code)) != nil {
		return Session{}, errors.ErrWrongPassword
	}

	if err := s.store.Delete(ctx, path); err != nil {
		return Session{}, err
	}
	userDoc, err := s.store.Get(ctx, docstore.DocPath(domain.ColUsers, uid))
	if err != nil {
		return Session{}, err
	}
	return s.newSession(domain.ActorFromData(userDoc.Id(), userDoc.Data))
}

func (s *Service) CurrentActor(ctx context.Context, token string) (domain.Actor, time.Time, error) {
	uid, issuedAt, err := s.tokens.DecodeToken(token)
	if err != nil {
		return domain.Actor{}, time.Time{}, err
	}
	doc, err := s.store.Get(ctx, docstore.DocPath(domain.ColUsers, uid))
	if err != nil {
		if errors.IsNotFound(err) {
			return domain.Actor{}, time.Time{}, errors.ErrNotAuthenticated
		}
		return domain.Actor{}, time.Time{}, err
	}
	return domain.ActorFromData(doc.Id(), doc.Data), issuedAt, nil
}

// SendPasswordReset dispatches reset mail when the account exists. The
// caller always gets the same generic outcome, so responses cannot be
// used to enumerate accounts.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	actor, err := s.findByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Log.Error("password reset lookup failed", "error", err)
		}
		return nil
	}
	body := "A password reset was requested for your account. Follow the link in this email to continue."
	if err := s.email.Send(ctx, actor.Email, "Reset your password", body); err != nil {
		logger.Log.Error("failed to send password reset email", "error", err)
	}
	return nil
}

// StartEnrollment stages a phone factor and sends the verification code.
func (s *Service) StartEnrollment(ctx context.Context, actor *domain.Actor, phoneNumber string) (string, error) {
	if actor == nil {
		return "", errors.ErrNotAuthenticated
	}
	if phoneNumber == "" {
		return "", &errors.ValidationError{Message: "phone number is required"}
	}

	code := generateCode(s.cfg.SmsCodeLen)
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash verification code", "error", err)
		return "", err
	}

	path, err := s.store.Create(ctx, colEnrollments, map[string]any{
		"uid":         actor.Id,
		"phoneNumber": phoneNumber,
		"codeHash":    string(codeHash),
		"expires":     time.Now().UTC().Add(s.cfg.SmsCodeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to stage enrollment: %w", err)
	}

	if err := s.sms.Send(ctx, phoneNumber, fmt.Sprintf("Your verification code is %s", code)); err != nil {
		return "", fmt.Errorf("failed to send verification code: %w", err)
	}
	return docstore.Doc{Path: path}.Id(), nil
}

// VerifyEnrollment checks the SMS code and attaches the factor.
func (s *Service) VerifyEnrollment(ctx context.Context, actor *domain.Actor, enrollmentId, code, displayName string) error {
	if actor == nil {
		return errors.ErrNotAuthenticated
	}
	path := docstore.DocPath(colEnrollments, enrollmentId)
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		return err
	}
	if uid, _ := doc.Data["uid"].(string); uid != actor.Id {
		return errors.ErrPermissionDenied
	}
	expires, _ := doc.Data["expires"].(time.Time)
	if time.Now().After(expires) {
		s.store.Delete(ctx, path)
		return &errors.ErrorWithStatusCode{Message: "Verification code expired", StatusCode: 401}
	}
	codeHash, _ := doc.Data["codeHash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(codeHash), []byte(code)) != nil {
		return errors.ErrWrongPassword
	}

	phoneNumber, _ := doc.Data["phoneNumber"].(string)
	factor := domain.PhoneFactor{
		Uid:         docstore.Doc{Path: path}.Id(),
		PhoneNumber: phoneNumber,
		DisplayName: displayName,
		EnrolledAt:  time.Now().UTC(),
	}
	updated := append(append([]domain.PhoneFactor(nil), actor.EnrolledFactors...), factor)
	if err := s.saveFactors(ctx, actor.Id, updated); err != nil {
		return err
	}
	return s.store.Delete(ctx, path)
}

// Unenroll removes a factor. Sensitive: demands a fresh sign-in.
func (s *Service) Unenroll(ctx context.Context, actor *domain.Actor, tokenIssuedAt time.Time, factorUid string) error {
	if actor == nil {
		return errors.ErrNotAuthenticated
	}
	if time.Since(tokenIssuedAt) > s.cfg.RecentLoginWindow {
		return errors.ErrRecentLoginRequired
	}

	var remaining []domain.PhoneFactor
	found := false
	for _, f := range actor.EnrolledFactors {
		if f.Uid == factorUid {
			found = true
			continue
		}
		remaining = append(remaining, f)
	}
	if !found {
		return errors.ErrNotFound
	}
	return s.saveFactors(ctx, actor.Id, remaining)
}

func (s *Service) saveFactors(ctx context.Context, actorId domain.ActorId, factors []domain.PhoneFactor) error {
	encoded := make([]any, 0, len(factors))
	for _, f := range factors {
		encoded = append(encoded, map[string]any{
			"uid":         f.Uid,
			"phoneNumber": f.PhoneNumber,
			"displayName": f.DisplayName,
			"enrolledAt":  f.EnrolledAt,
		})
	}
	return s.store.Set(ctx, docstore.DocPath(domain.ColUsers, actorId), map[string]any{
		"enrolledFactors": encoded,
		"updatedAt":       docstore.ServerTimestamp(),
	}, true)
}

func (s *Service) stageChallenge(ctx context.Context, actor *domain.Actor) (string, error) {
	code := generateCode(s.cfg.SmsCodeLen)
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	path, err := s.store.Create(ctx, colChallenges, map[string]any{
		"uid":      actor.Id,
		"codeHash": string(codeHash),
		"expires":  time.Now().UTC().Add(s.cfg.SmsCodeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to stage challenge: %w", err)
	}

	phone := actor.EnrolledFactors[0].PhoneNumber
	if err := s.sms.Send(ctx, phone, fmt.Sprintf("Your sign-in code is %s", code)); err != nil {
		return "", fmt.Errorf("failed to send sign-in code: %w", err)
	}
	return docstore.Doc{Path: path}.Id(), nil
}

func (s *Service) newSession(actor domain.Actor) (Session, error) {
	token, issuedAt, err := s.tokens.NewToken(actor)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Actor: actor, IssuedAt: issuedAt}, nil
}

func (s *Service) findByEmail(ctx context.Context, normalizedEmail string) (*domain.Actor, error) {
	docs, err := s.store.List(ctx, docstore.Collection(domain.ColUsers).
		Where("normalizedEmail", docstore.OpEqual, normalizedEmail))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.ErrNotFound
	}
	actor := domain.ActorFromData(docs[0].Id(), docs[0].Data)
	return &actor, nil
}

func generateCode(length int) string {
	const digits = "0123456789"
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			panic(err) // crypto/rand failure is not recoverable
		}
		out[i] = digits[n.Int64()]
	}
	return string(out)
}
