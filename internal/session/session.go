// Package session keeps per-login dashboard state behind a random cookie
// token.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/monitoring"
	"github.com/banshee-data/rutting.report/internal/timeutil"
)

// CookieName is the session cookie.
const CookieName = "rutting_session"

// ErrNoSession is returned for a missing, unknown or expired token.
var ErrNoSession = errors.New("no session")

var logf = monitoring.Prefixed("session")

// State is what the dashboard remembers for one login: the rows loaded,
// the filter applied and the profile lines on screen.
type State struct {
	Range        grid.Range  `json:"range"`
	Params       grid.Params `json:"params"`
	TransverseAt int         `json:"transverse_lon_id"`
	LongitudeAt  int         `json:"longitudinal_trans_id"`
}

// Session is one logged-in user. Its state is safe for concurrent use.
// The expiry has its own lock so a long Update never delays Get or Sweep.
type Session struct {
	Token    string
	Username string
	Created  time.Time

	mu    sync.Mutex
	state State

	expMu   sync.Mutex
	expires time.Time
}

// State returns a copy of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update runs fn on a copy of the state and keeps the copy only if fn
// returns nil. fn runs under the session lock and should not block.
func (s *Session) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	if err := fn(&next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Expires returns when the session lapses unless used again.
func (s *Session) Expires() time.Time {
	s.expMu.Lock()
	defer s.expMu.Unlock()
	return s.expires
}

// touch extends the expiry to now+ttl and reports false if the session
// had already lapsed.
func (s *Session) touch(now time.Time, ttl time.Duration) bool {
	s.expMu.Lock()
	defer s.expMu.Unlock()
	if !now.Before(s.expires) {
		return false
	}
	s.expires = now.Add(ttl)
	return true
}

func (s *Session) expiredAt(now time.Time) bool {
	s.expMu.Lock()
	defer s.expMu.Unlock()
	return !now.Before(s.expires)
}

// Store holds live sessions in memory. Every successful Get pushes the
// expiry out by the TTL.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    timeutil.Clock
	initial  State
}

// NewStore returns a store whose sessions start from initial and lapse
// after ttl of inactivity.
func NewStore(clock timeutil.Clock, ttl time.Duration, initial State) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clock,
		initial:  initial,
	}
}

// TTL returns the inactivity timeout.
func (st *Store) TTL() time.Duration { return st.ttl }

// Create starts a session for username.
func (st *Store) Create(username string) *Session {
	now := st.clock.Now()
	s := &Session{
		Token:    uuid.NewString(),
		Username: username,
		Created:  now,
		expires:  now.Add(st.ttl),
		state:    st.initial,
	}
	st.mu.Lock()
	st.sessions[s.Token] = s
	st.mu.Unlock()
	return s
}

// Get returns the live session for token and extends its expiry.
func (st *Store) Get(token string) (*Session, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrNoSession
	}
	now := st.clock.Now()

	st.mu.Lock()
	s, ok := st.sessions[token]
	st.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}
	if !s.touch(now, st.ttl) {
		st.mu.Lock()
		if st.sessions[token] == s {
			delete(st.sessions, token)
		}
		st.mu.Unlock()
		return nil, ErrNoSession
	}
	return s, nil
}

// Delete ends the session for token, if any.
func (st *Store) Delete(token string) {
	st.mu.Lock()
	delete(st.sessions, token)
	st.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included until
// the next sweep.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops expired sessions and returns how many it removed.
func (st *Store) Sweep() int {
	now := st.clock.Now()
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for token, s := range st.sessions {
		if s.expiredAt(now) {
			delete(st.sessions, token)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := st.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if n := st.Sweep(); n > 0 {
				logf("expired %d session(s)", n)
			}
		}
	}
}

// FromRequest returns the session named by r's cookie.
func (st *Store) FromRequest(r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return st.Get(c.Value)
}

// SetCookie writes the cookie for s.
func (st *Store) SetCookie(w http.ResponseWriter, s *Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		MaxAge:   int(st.ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie in the browser.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
