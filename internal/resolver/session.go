package resolver

import (
	"context"
	"errors"
	"sync"
)

// Session serializes the resolutions of one user: starting a new call cancels
// the one in flight, and only the newest call may publish its result.
type Session struct {
	resolver *Resolver

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	last       *Match
}

func NewSession(r *Resolver) *Session {
	return &Session{resolver: r}
}

// SettleFunc finishes a matched call, typically by rendering the article.
// It runs under the call's context and is cancelled with it.
type SettleFunc func(ctx context.Context, match *Match) error

// Resolve cancels any in-flight call and resolves query. A call replaced by a
// newer one returns ErrSuperseded and leaves Last untouched.
func (s *Session) Resolve(ctx context.Context, query string) (*Match, error) {
	return s.Run(ctx, query, nil)
}

// Run resolves query and, when it matches, calls settle before the call ends.
// A newer call cancels both steps, and the replaced call returns ErrSuperseded
// whatever settle produced.
func (s *Session) Run(ctx context.Context, query string, settle SettleFunc) (*Match, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.mu.Unlock()

	match, err := s.resolver.Resolve(callCtx, query)
	if err == nil && settle != nil && match.Found() {
		err = settle(callCtx, match)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil, ErrSuperseded
		}
		return nil, err
	}
	s.last = match
	return match, nil
}

// Cancel aborts the in-flight call, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
}

// Last returns the most recent published match.
func (s *Session) Last() *Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Sessions hands out one Session per client-supplied id.
type Sessions struct {
	resolver *Resolver

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions(r *Resolver) *Sessions {
	return &Sessions{resolver: r, sessions: make(map[string]*Session)}
}

// MaxSessions bounds the session table. Idle sessions are dropped when it fills up.
const MaxSessions = 4096

// Get returns the session for id, creating it on first use.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		if len(s.sessions) >= MaxSessions {
			s.dropIdleLocked()
		}
		session = NewSession(s.resolver)
		s.sessions[id] = session
	}
	return session
}

func (s *Sessions) dropIdleLocked() {
	for id, session := range s.sessions {
		session.mu.Lock()
		idle := session.cancel == nil
		session.mu.Unlock()
		if idle {
			delete(s.sessions, id)
		}
	}
}

// Len reports how many sessions exist.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Resolve runs query inside the session named id, settling a match with
// settle when it is not nil. An empty id runs without session bookkeeping.
func (s *Sessions) Resolve(ctx context.Context, id, query string, settle SettleFunc) (*Match, error) {
	if id != "" {
		return s.Get(id).Run(ctx, query, settle)
	}
	match, err := s.resolver.Resolve(ctx, query)
	if err != nil || settle == nil || !match.Found() {
		return match, err
	}
	if err := settle(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}
