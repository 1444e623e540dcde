// Package auth implements the session store: it owns the bearer token and
// user profile, persists the token across runs, and is the single writer of
// identity state. Every other component reads the token through the store
// and reports unauthorized responses back to it via Invalidate.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parley/internal/api"
	"parley/internal/logger"
	"parley/pkg/chattypes"
)

// ErrInvalidCredentials is returned by Login when the backend rejects the
// phone/password pair (HTTP 401).
var ErrInvalidCredentials = errors.New("invalid phone or password")

// Snapshot is the observable identity state delivered to subscribers.
type Snapshot struct {
	Authenticated bool
	Profile       *chattypes.UserProfile
}

// Store holds the authenticated identity. It implements api.TokenSource.
type Store struct {
	mu        sync.RWMutex
	client    *api.Client
	file      *TokenFile
	clock     func() time.Time
	token     string
	profile   *chattypes.UserProfile
	listeners []func(Snapshot)
}

// NewStore creates a session store persisting its token at tokenPath and
// registers itself as the client's token source.
func NewStore(client *api.Client, tokenPath string) *Store {
	s := &Store{
		client: client,
		file:   NewTokenFile(tokenPath),
		clock:  time.Now,
	}
	client.SetTokenSource(s)
	return s
}

// AccessToken implements api.TokenSource.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether an identity token is currently held.
func (s *Store) Authenticated() bool {
	return s.AccessToken() != ""
}

// Profile returns the cached user profile, if one has been fetched.
func (s *Store) Profile() (chattypes.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return chattypes.UserProfile{}, false
	}
	return *s.profile, true
}

// Subscribe registers a listener fired on every identity state transition.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Restore loads the persisted token on startup. A missing or locally
// expired token leaves the store unauthenticated without error. A present
// token is validated against the backend; any non-2xx response clears it.
// Only a transport-level failure is returned to the caller, and the
// persisted token survives it so a later restart can retry.
func (s *Store) Restore(ctx context.Context) error {
	raw, err := s.file.Load()
	if err != nil {
		return err
	}
	if raw == "" {
		logger.SessionTransition("unknown", "unauthenticated", "no persisted token")
		return nil
	}

	exp, err := tokenExpiry(raw)
	if err != nil || !exp.After(s.clock()) {
		logger.SessionTransition("unknown", "unauthenticated", "persisted token expired")
		_ = s.file.Clear()
		return nil
	}

	s.mu.Lock()
	s.token = raw
	s.mu.Unlock()

	profile, err := s.client.GetProfile(ctx)
	if err != nil {
		var svc *api.ServiceError
		if errors.As(err, &svc) && svc.Status == 0 {
			// Backend unreachable: token validity unknown, keep it on
			// disk but stay unauthenticated in memory.
			s.mu.Lock()
			s.token = ""
			s.mu.Unlock()
			return fmt.Errorf("token validation failed: %w", err)
		}
		logger.SessionTransition("restoring", "unauthenticated", "backend rejected token")
		s.clearLocked(true)
		s.notify()
		return nil
	}

	s.mu.Lock()
	s.profile = &profile
	s.mu.Unlock()
	logger.SessionTransition("restoring", "authenticated", "persisted token valid")
	s.notify()
	return nil
}

// Login submits credentials and, on success, persists the returned token
// and fetches the profile. On failure prior state is untouched: a 401 maps
// to ErrInvalidCredentials, anything else propagates as-is.
func (s *Store) Login(ctx context.Context, phone, password string) error {
	token, err := s.client.Login(ctx, phone, password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return ErrInvalidCredentials
		}
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.file.Save(token); err != nil {
		// Login still succeeded for this run
		logger.Warn("Failed to persist token", "error", err)
	}

	profile, err := s.client.GetProfile(ctx)
	if err != nil {
		logger.Warn("Profile fetch after login failed", "error", err)
	} else {
		s.mu.Lock()
		s.profile = &profile
		s.mu.Unlock()
	}

	logger.SessionTransition("unauthenticated", "authenticated", "login")
	s.notify()
	return nil
}

// Logout clears the persisted token and profile. Idempotent. The disk
// token is removed even when the in-memory session is already gone, so a
// restore that failed against an unreachable backend cannot leave a token
// behind that a later run would silently pick up.
func (s *Store) Logout() {
	wasAuthenticated := s.Authenticated()
	s.clearLocked(true)
	if wasAuthenticated {
		logger.SessionTransition("authenticated", "unauthenticated", "logout")
		s.notify()
	}
}

// Invalidate discards the identity after another component observed an
// unauthorized response. This is the only mutation entry point available to
// components other than the store itself.
func (s *Store) Invalidate() {
	if !s.Authenticated() {
		return
	}
	logger.SessionTransition("authenticated", "unauthenticated", "token rejected by backend")
	s.clearLocked(true)
	s.notify()
}

func (s *Store) clearLocked(clearFile bool) {
	s.mu.Lock()
	s.token = ""
	s.profile = nil
	s.mu.Unlock()
	if clearFile {
		if err := s.file.Clear(); err != nil {
			logger.Warn("Failed to clear persisted token", "error", err)
		}
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(Snapshot), len(s.listeners))
	copy(listeners, s.listeners)
	snap := Snapshot{Authenticated: s.token != "", Profile: s.profile}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
