// Package auth implements passwordless sign-in with email magic links: link
// delivery, link completion with profile reconciliation, sign-out and the
// session credential.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/abem93/progress-widgets/internal/store"
	"github.com/gofiber/fiber/v2/log"
)

const maxNameLength = 80

// Service runs the magic-link flow. It keeps no per-user state of its own;
// the caller supplies the pending-email slot of the device that is signing in.
type Service struct {
	provider  Provider
	profiles  store.ProfileStore
	returnURL string
	now       func() time.Time
}

func NewService(provider Provider, profiles store.ProfileStore, returnURL string) *Service {
	return &Service{provider: provider, profiles: profiles, returnURL: returnURL, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NormalizeEmail validates an address and lower-cases it.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return "", apperr.Validation("email is invalid")
	}
	return strings.ToLower(parsed.Address), nil
}

// SendMagicLink asks the provider to email a sign-in link and remembers the
// address in the pending slot.
func (s *Service) SendMagicLink(ctx context.Context, pending PendingStore, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.provider.SendLink(ctx, email, s.returnURL); err != nil {
		return err
	}
	if err := pending.SetPendingEmail(email); err != nil {
		return apperr.Wrap(apperr.CodePersistence, "remember pending email", err)
	}
	log.Infof("Auth: magic link sent to %s", email)
	return nil
}

// SignUp records the display name for email and then sends the link. The
// profile is written first so a fast click on the link always finds it.
func (s *Service) SignUp(ctx context.Context, pending PendingStore, email, name string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return apperr.Validation("name must be at most %d characters", maxNameLength)
	}

	profile := models.SignupProfile{Email: email, Name: name, CreatedAt: s.now().UTC()}
	if err := s.profiles.PutSignupProfile(ctx, profile); err != nil {
		return err
	}
	return s.SendMagicLink(ctx, pending, email)
}

// CompleteMagicLinkSignIn verifies the link carried by currentURL. When email
// is empty the pending slot supplies it. The first successful sign-in of a uid
// creates its permanent profile, named from the sign-up profile or, failing
// that, from the local part of the address.
func (s *Service) CompleteMagicLinkSignIn(ctx context.Context, pending PendingStore, email, currentURL string) (models.User, error) {
	if strings.TrimSpace(email) == "" {
		stored, err := pending.PendingEmail()
		if err != nil {
			return models.User{}, apperr.Wrap(apperr.CodePersistence, "read pending email", err)
		}
		email = stored
	}
	if strings.TrimSpace(email) == "" {
		return models.User{}, apperr.Verification("email is required to complete sign-in")
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return models.User{}, apperr.Verification("email is invalid")
	}

	identity, err := s.provider.VerifyLink(ctx, email, currentURL)
	if err != nil {
		return models.User{}, err
	}
	if identity.Email == "" {
		identity.Email = email
	}

	user, err := s.ensureUser(ctx, identity)
	if err != nil {
		return models.User{}, err
	}

	if err := pending.ClearPendingEmail(); err != nil {
		log.Warnf("Auth: failed to clear pending email: %v", err)
	}
	log.Infof("Auth: %s signed in as %s", email, user.ID)
	return user, nil
}

func (s *Service) ensureUser(ctx context.Context, identity Identity) (models.User, error) {
	user, err := s.profiles.GetUser(ctx, identity.UID)
	if err == nil {
		s.dropSignupProfile(ctx, identity.Email)
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return models.User{}, err
	}

	name := localPart(identity.Email)
	profile, err := s.profiles.GetSignupProfile(ctx, identity.Email)
	switch {
	case err == nil && profile.Name != "":
		name = profile.Name
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		return models.User{}, err
	}

	now := s.now().UTC()
	if err := s.profiles.CreateUser(ctx, models.User{
		ID:           identity.UID,
		Email:        identity.Email,
		Name:         name,
		AuthProvider: models.ProviderEmailLink,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return models.User{}, err
	}
	s.dropSignupProfile(ctx, identity.Email)

	// Re-read: a concurrent completion may have created the profile first.
	user, err = s.profiles.GetUser(ctx, identity.UID)
	if errors.Is(err, apperr.ErrNotFound) {
		// The insert was skipped for an email that already belongs to
		// another account, e.g. one created under a different provider.
		return models.User{}, apperr.Verification("%s is already registered to another account", identity.Email)
	}
	return user, err
}

func (s *Service) dropSignupProfile(ctx context.Context, email string) {
	err := s.profiles.DeleteSignupProfile(ctx, email)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		log.Warnf("Auth: failed to delete signup profile for %s: %v", email, err)
	}
}

// SignOut revokes every credential issued to uid so far and ends the
// provider session. Credentials carry whole-second issue times, so the
// cut-off is the start of the next second.
func (s *Service) SignOut(ctx context.Context, uid string) error {
	if uid == "" {
		return nil
	}
	validAfter := s.now().UTC().Truncate(time.Second).Add(time.Second)
	err := s.profiles.RevokeSessions(ctx, uid, validAfter)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return s.provider.SignOut(ctx, uid)
}

// SessionsValidAfter returns the logout cut-off recorded for uid.
func (s *Service) SessionsValidAfter(ctx context.Context, uid string) (time.Time, error) {
	user, err := s.profiles.GetUser(ctx, uid)
	if errors.Is(err, apperr.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if user.SessionsValidAfter == nil {
		return time.Time{}, nil
	}
	return *user.SessionsValidAfter, nil
}

// Profile returns the permanent profile of uid.
func (s *Service) Profile(ctx context.Context, uid string) (models.User, error) {
	return s.profiles.GetUser(ctx, uid)
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
