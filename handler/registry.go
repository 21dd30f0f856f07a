package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mortgage-criteria-chat/internal/domain"
	"mortgage-criteria-chat/internal/usecase"
)

const (
	defaultIdleTTL          = time.Hour
	directoryResolveTimeout = 10 * time.Second
)

// Session is the per-user chat surface the handler drives.
type Session interface {
	SessionID() string
	Submit(ctx context.Context, utterance string) usecase.SubmitResult
	View() usecase.View
	SetParameters(params domain.SearchParameters) domain.SearchParameters
	ClearSession()
}

// SessionFactory builds a fresh session with the given ID.
type SessionFactory func(ctx context.Context, id string) (Session, error)

type DirectoryResolver interface {
	Resolve(ctx context.Context) domain.LenderDirectory
}

type SessionCounter interface {
	SetActiveSessions(n int)
}

// OrchestratorFactory returns a SessionFactory that resolves the lender
// directory once per new session and starts an orchestrator over it.
func OrchestratorFactory(resolver DirectoryResolver, sender usecase.Sender, defaults domain.SearchParameters, opts ...usecase.Option) SessionFactory {
	return func(ctx context.Context, id string) (Session, error) {
		if resolver == nil {
			return nil, errors.New("handler: directory resolver must not be nil")
		}
		rctx, cancel := context.WithTimeout(ctx, directoryResolveTimeout)
		defer cancel()
		dir := resolver.Resolve(rctx)

		o, err := usecase.NewOrchestrator(sender, dir, defaults, append(opts, usecase.WithSessionID(id))...)
		if err != nil {
			return nil, fmt.Errorf("handler: start session: %w", err)
		}
		return o, nil
	}
}

type registryEntry struct {
	session  Session
	lastUsed time.Time
}

// Registry keeps sessions in process memory, keyed by session ID. Sessions
// idle for longer than the TTL are evicted unless an exchange is in flight.
type Registry struct {
	factory SessionFactory
	idleTTL time.Duration
	counter SessionCounter
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryEntry
}

type RegistryOption func(*Registry)

func WithSessionCounter(c SessionCounter) RegistryOption {
	return func(r *Registry) {
		r.counter = c
	}
}

func NewRegistry(factory SessionFactory, idleTTL time.Duration, opts ...RegistryOption) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("handler: session factory must not be nil")
	}
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	r := &Registry{
		factory:  factory,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: map[string]*registryEntry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Get returns the session for id, creating a new one under a fresh ID when id
// is empty or unknown.
func (r *Registry) Get(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)

	r.mu.Lock()
	r.evictIdleLocked()
	if e, ok := r.sessions[id]; ok && id != "" {
		e.lastUsed = r.now()
		r.mu.Unlock()
		return e.session, nil
	}
	r.mu.Unlock()

	s, err := r.factory(ctx, newSessionID())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SessionID()] = &registryEntry{session: s, lastUsed: r.now()}
	r.reportLocked()
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) evictIdleLocked() {
	cutoff := r.now().Add(-r.idleTTL)
	evicted := false
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) && !e.session.View().Busy {
			delete(r.sessions, id)
			evicted = true
		}
	}
	if evicted {
		r.reportLocked()
	}
}

func (r *Registry) reportLocked() {
	if r.counter != nil {
		r.counter.SetActiveSessions(len(r.sessions))
	}
}

var newSessionID = func() string {
	return uuid.NewString()
}
