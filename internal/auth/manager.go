package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abem93/progress-widgets/internal/apperr"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/gofiber/fiber/v2/log"
)

// Phase is where the manager sits in the sign-in flow.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhasePendingMagicLink
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhasePendingMagicLink:
		return "pending_magic_link"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Manager owns the session of one device (a CLI install, a desktop client).
// Nothing else holds a reference to the current session; callers read it
// through Current or follow it through ObserveSession.
type Manager struct {
	svc    *Service
	tokens *Tokens
	state  State
	done   chan struct{}

	mu         sync.Mutex
	resolved   bool
	phase      Phase
	pending    string
	credential string
	session    *Session
	expiry     *time.Timer
	subs       map[int]chan *Session
	nextSub    int
	closed     bool
}

func NewManager(svc *Service, tokens *Tokens, state State) *Manager {
	return &Manager{
		svc:    svc,
		tokens: tokens,
		state:  state,
		done:   make(chan struct{}),
		subs:   make(map[int]chan *Session),
	}
}

// Restore resolves the initial session from the stored credential and the
// pending slot. A missing, expired, tampered or revoked credential resolves
// to no session and is discarded. Subscribers receive their first event here.
func (m *Manager) Restore() (*Session, error) {
	return m.resolve(context.Background(), true)
}

// Reload re-reads the state store so sign-ins and sign-outs made by another
// process sharing it reach this manager. Subscribers are notified only when
// the session changed.
func (m *Manager) Reload(ctx context.Context) error {
	_, err := m.resolve(ctx, false)
	return err
}

// Watch reloads the state store every interval until ctx is done or the
// manager is closed.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			if err := m.Reload(ctx); err != nil {
				log.Warnf("Auth: failed to reload session state: %v", err)
			}
		}
	}
}

func (m *Manager) resolve(ctx context.Context, initial bool) (*Session, error) {
	token, err := m.state.Credential()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "read stored credential", err)
	}
	pending, err := m.state.PendingEmail()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "read pending email", err)
	}

	m.mu.Lock()
	seen := m.credential
	m.mu.Unlock()

	session, expires, kept, err := m.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !initial && m.credential != seen {
		// Signed in or out in this process while the store was being read.
		return copySession(m.session), nil
	}
	m.pending = pending
	if !initial && m.resolved && kept == m.credential {
		m.phase = m.phaseLocked()
		return copySession(m.session), nil
	}
	m.credential = kept
	m.setLocked(session, expires)
	return copySession(session), nil
}

// verify resolves a stored credential. An expired, tampered or revoked one
// is removed from the store; kept is the credential left behind.
func (m *Manager) verify(ctx context.Context, token string) (session *Session, expires time.Time, kept string, err error) {
	if token == "" {
		return nil, time.Time{}, "", nil
	}
	claims, err := m.tokens.Verify(ctx, token)
	if errors.Is(err, apperr.ErrPersistence) {
		return nil, time.Time{}, "", err
	}
	if err != nil {
		log.Infof("Auth: discarding stored credential: %v", err)
		if err := m.state.ClearCredential(); err != nil {
			log.Warnf("Auth: failed to clear credential: %v", err)
		}
		return nil, time.Time{}, "", nil
	}
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return claims.Session(), expires, token, nil
}

// Phase reports the current phase and, when pending, the address awaiting
// verification.
func (m *Manager) Phase() (Phase, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase, m.pending
}

// Current returns the signed-in session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.session)
}

// Token returns the stored credential of the current session.
func (m *Manager) Token() (string, error) {
	if m.Current() == nil {
		return "", apperr.ErrUnauthenticated
	}
	return m.state.Credential()
}

func (m *Manager) SendMagicLink(ctx context.Context, email string) error {
	if err := m.svc.SendMagicLink(ctx, m.state, email); err != nil {
		return err
	}
	m.markPending()
	return nil
}

func (m *Manager) SignUp(ctx context.Context, email, name string) error {
	if err := m.svc.SignUp(ctx, m.state, email, name); err != nil {
		return err
	}
	m.markPending()
	return nil
}

func (m *Manager) markPending() {
	pending, err := m.state.PendingEmail()
	if err != nil {
		log.Warnf("Auth: failed to read pending email: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = pending
	if m.session == nil {
		m.phase = PhasePendingMagicLink
	}
}

// CompleteMagicLinkSignIn finishes the flow started by SendMagicLink or SignUp
// and stores the issued credential.
func (m *Manager) CompleteMagicLinkSignIn(ctx context.Context, email, currentURL string) (models.User, error) {
	user, err := m.svc.CompleteMagicLinkSignIn(ctx, m.state, email, currentURL)
	if err != nil {
		return models.User{}, err
	}

	session := &Session{UID: user.ID, Email: user.Email}
	token, err := m.tokens.Issue(*session)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.CodePersistence, "issue session credential", err)
	}
	if err := m.state.SetCredential(token); err != nil {
		return models.User{}, apperr.Wrap(apperr.CodePersistence, "store session credential", err)
	}
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.CodePersistence, "read issued credential", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = ""
	m.credential = token
	m.setLocked(session, claims.ExpiresAt.Time)
	return user, nil
}

// SignOut drops the local session and asks the provider to end its own.
// Signing out without a session is a no-op.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil
	}

	if err := m.state.ClearCredential(); err != nil {
		return apperr.Wrap(apperr.CodePersistence, "clear stored credential", err)
	}
	m.mu.Lock()
	m.credential = ""
	m.setLocked(nil, time.Time{})
	m.mu.Unlock()

	if err := m.svc.SignOut(ctx, session.UID); err != nil {
		log.Warnf("Auth: provider sign-out for %s failed: %v", session.UID, err)
	}
	return nil
}

// ObserveSession subscribes to session changes. If the session is already
// resolved the current value is delivered at once; otherwise the first event
// arrives when Restore or a sign-in resolves it. A slow reader only ever sees
// the latest value. The returned func unsubscribes and closes the channel.
func (m *Manager) ObserveSession() (<-chan *Session, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *Session, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	if m.resolved {
		ch <- copySession(m.session)
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		})
	}
}

// Close stops the expiry timer and Watch, and closes every subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.done)
	}
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.closed = true
}

// setLocked installs session, schedules its expiry and notifies subscribers.
// Callers hold m.mu.
func (m *Manager) setLocked(session *Session, expires time.Time) {
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
	m.session = session
	m.resolved = true
	m.phase = m.phaseLocked()
	if session != nil && !expires.IsZero() {
		m.expiry = time.AfterFunc(time.Until(expires), func() { m.expire(session) })
	}
	m.publishLocked()
}

func (m *Manager) phaseLocked() Phase {
	switch {
	case m.session != nil:
		return PhaseAuthenticated
	case m.pending != "":
		return PhasePendingMagicLink
	default:
		return PhaseUnauthenticated
	}
}

func (m *Manager) expire(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != session {
		return
	}
	log.Infof("Auth: session for %s expired", session.UID)
	if err := m.state.ClearCredential(); err != nil {
		log.Warnf("Auth: failed to clear expired credential: %v", err)
	}
	m.credential = ""
	m.setLocked(nil, time.Time{})
}

func (m *Manager) publishLocked() {
	for _, ch := range m.subs {
		// Drop a value the reader has not taken yet; latest wins.
		select {
		case <-ch:
		default:
		}
		ch <- copySession(m.session)
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
