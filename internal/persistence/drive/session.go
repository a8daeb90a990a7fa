package drive

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/services"
)

// Session holds the OAuth access token for one signed-in user.
type Session struct {
	clientID string
	now      func() time.Time

	mu      sync.RWMutex
	token   string
	expires time.Time
}

// NewSession returns an unauthenticated session for clientID.
func NewSession(clientID string) *Session {
	return &Session{clientID: strings.TrimSpace(clientID), now: time.Now}
}

// ClientID returns the OAuth client identifier.
func (s *Session) ClientID() string {
	return s.clientID
}

// Authorize stores token. A non-positive ttl never expires.
func (s *Session) Authorize(token string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
	s.expires = time.Time{}
	if ttl > 0 {
		s.expires = s.now().Add(ttl)
	}
}

// Token returns the access token while it is valid.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if !s.expires.IsZero() && !s.now().Before(s.expires) {
		return "", false
	}
	return s.token, true
}

// Active reports whether the session holds a valid token.
func (s *Session) Active() bool {
	_, ok := s.Token()
	return ok
}

// Clear signs the session out.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
}

// TokenSource obtains a fresh access token during login.
type TokenSource interface {
	Token(ctx context.Context) (token string, ttl time.Duration, err error)
}

// StaticToken is a TokenSource returning a fixed, non-expiring token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, time.Duration, error) {
	token := strings.TrimSpace(string(t))
	if token == "" {
		return "", 0, services.Wrap(services.ErrLoginRequired, "drive", "login", "no access token configured (set drive.access_token or DIRECTOR_DRIVE_TOKEN)", nil)
	}
	return token, 0, nil
}
