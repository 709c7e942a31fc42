package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
)

// AdminRole bypasses every permission check.
const AdminRole = "Admin"

// ErrEmptyCredential is returned by Login when no token is supplied.
var ErrEmptyCredential = errors.New("session: empty credential")

type LogFunc func(format string, args ...any)

// Identity is the signed-in operator's profile as returned by the back-end.
type Identity struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Role        string   `json:"role"`
	Department  string   `json:"department"`
	Status      string   `json:"status"`
	Permissions []string `json:"permissions"`
}

func (id Identity) clone() *Identity {
	id.Permissions = slices.Clone(id.Permissions)
	return &id
}

// Store holds the station's single session. Identity and credential are
// always set and cleared together, in memory and in the slots.
type Store struct {
	mu       sync.RWMutex
	slots    Slots
	identity *Identity
	token    string
	logFn    LogFunc
}

// Open hydrates a Store from slots. An incomplete or unreadable pair is
// discarded and the slots are cleared.
func Open(ctx context.Context, slots Slots, logFn LogFunc) (*Store, error) {
	if logFn == nil {
		logFn = log.Printf
	}
	s := &Store{slots: slots, logFn: logFn}

	identity, token, err := s.readPair(ctx)
	if errors.Is(err, ErrCorruptSlot) {
		logFn("session: discarding stored session: %v", err)
		if err := slots.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear corrupt session: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hydrate session: %w", err)
	}
	if identity != nil {
		s.identity = identity
		s.token = token
		logFn("session: restored session for %s", identity.Username)
	}
	return s, nil
}

func (s *Store) readPair(ctx context.Context) (*Identity, string, error) {
	userData, hasUser, err := s.slots.Get(ctx, UserSlot)
	if err != nil {
		return nil, "", err
	}
	token, hasToken, err := s.slots.Get(ctx, TokenSlot)
	if err != nil {
		return nil, "", err
	}
	if !hasUser && !hasToken {
		return nil, "", nil
	}
	if hasUser != hasToken {
		return nil, "", fmt.Errorf("%w: only one of %s/%s present", ErrCorruptSlot, UserSlot, TokenSlot)
	}
	if token == "" {
		return nil, "", fmt.Errorf("%w: %s is empty", ErrCorruptSlot, TokenSlot)
	}
	var identity Identity
	if err := json.Unmarshal([]byte(userData), &identity); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrCorruptSlot, UserSlot, err)
	}
	return &identity, token, nil
}

// Login records a new session. The caller has already authenticated it.
// If the slots cannot be written the in-memory session is left unchanged.
func (s *Store) Login(ctx context.Context, identity Identity, token string) error {
	if token == "" {
		return ErrEmptyCredential
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slots.SetPair(ctx, string(data), token); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.identity = identity.clone()
	s.token = token
	s.logFn("session: %s signed in", identity.Username)
	return nil
}

// Logout clears the session. Calling it with no session is a no-op apart
// from clearing the slots again. If the slots cannot be cleared the
// in-memory session is left unchanged.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slots.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if s.identity != nil {
		s.logFn("session: %s signed out", s.identity.Username)
	}
	s.identity = nil
	s.token = ""
	return nil
}

// IsAuthenticated reports whether a credential is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// HasPermission reports whether the current identity may use permission.
func (s *Store) HasPermission(permission string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPermissionLocked(permission)
}

func (s *Store) hasPermissionLocked(permission string) bool {
	if s.identity == nil {
		return false
	}
	if s.identity.Role == AdminRole {
		return true
	}
	return slices.Contains(s.identity.Permissions, permission)
}

// HasAnyPermission reports whether at least one of permissions is granted.
func (s *Store) HasAnyPermission(permissions []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range permissions {
		if s.hasPermissionLocked(p) {
			return true
		}
	}
	return false
}

// AuthHeader returns the bearer header for back-end calls, or an empty map.
func (s *Store) AuthHeader() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + s.token}
}

// Identity returns a copy of the current identity, or nil.
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	return s.identity.clone()
}

// Token returns the current credential, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
