package captcha

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Session is one issued challenge awaiting an answer. Sessions are keyed by
// an opaque ID and expire after the store's TTL, so concurrent clients never
// see each other's challenges.
type Session struct {
	ID        string        `json:"sessionId"`
	Kind      ChallengeKind `json:"kind"`
	Code      string        `json:"code,omitempty"`
	Image     []byte        `json:"-"`
	Solution  string        `json:"-"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// SessionStore issues challenges to API clients and holds their state until
// they are answered or expire.
type SessionStore struct {
	sessions *gocache.Cache
	ttl      time.Duration
}

// NewSessionStore builds a store whose sessions expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: gocache.New(ttl, 2*ttl),
		ttl:      ttl,
	}
}

// IssueCode creates a session with a fresh four-digit numeric challenge.
func (s *SessionStore) IssueCode() Session {
	code := fmt.Sprintf("%04d", rand.Intn(10000))
	sess := Session{
		ID:        uuid.NewString(),
		Kind:      KindCode,
		Code:      code,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	s.sessions.Set(sess.ID, sess, gocache.DefaultExpiration)
	return sess
}

// IssueImage creates a session holding an image challenge that a human is
// expected to answer via Solve.
func (s *SessionStore) IssueImage(image []byte) Session {
	sess := Session{
		ID:        uuid.NewString(),
		Kind:      KindImage,
		Image:     image,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	s.sessions.Set(sess.ID, sess, gocache.DefaultExpiration)
	return sess
}

// Get returns the session for id if it exists and has not expired.
func (s *SessionStore) Get(id string) (Session, bool) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return Session{}, false
	}
	return v.(Session), true
}

// Solve records a human-provided answer for an image session. It returns
// false when the session is unknown or expired.
func (s *SessionStore) Solve(id, answer string) bool {
	v, ok := s.sessions.Get(id)
	if !ok {
		return false
	}
	sess := v.(Session)
	sess.Solution = answer
	s.sessions.Set(id, sess, gocache.DefaultExpiration)
	return true
}

// Solution returns the recorded answer for a session, if one has been
// provided yet.
func (s *SessionStore) Solution(id string) (string, bool) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return "", false
	}
	sess := v.(Session)
	if sess.Solution == "" {
		return "", false
	}
	return sess.Solution, true
}

// Verify checks answer against a code session and consumes the session on
// success so the same answer cannot be replayed.
func (s *SessionStore) Verify(id, answer string) bool {
	v, ok := s.sessions.Get(id)
	if !ok {
		return false
	}
	sess := v.(Session)
	if sess.Kind != KindCode || sess.Code != answer {
		return false
	}
	s.sessions.Delete(id)
	return true
}

// Count reports the number of live sessions.
func (s *SessionStore) Count() int {
	return s.sessions.ItemCount()
}
