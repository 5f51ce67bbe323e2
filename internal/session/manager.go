package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-interview-session-service/internal/models"
	"ai-interview-session-service/internal/observability/logging"
	"ai-interview-session-service/internal/playback"
	"ai-interview-session-service/internal/provision"
	"ai-interview-session-service/internal/transcript"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionAttached is returned when a second client attaches to a
	// session that is already running.
	ErrSessionAttached = errors.New("session already attached")
)

// ManagerDeps are the shared collaborators every session is built with.
type ManagerDeps struct {
	Tokens     provision.TokenSource
	Dial       Dialer
	Submitter  Submitter
	Publisher  EventPublisher
	Classifier transcript.Classifier

	// PendingTTL bounds how long a created session may wait for a client
	// to attach. Retention bounds how long an ended session stays
	// queryable in memory; the store keeps the long-term record. Zero
	// values get defaults.
	PendingTTL time.Duration
	Retention  time.Duration
}

const (
	defaultPendingTTL = 15 * time.Minute
	defaultRetention  = 5 * time.Minute
)

// pendingSession is a created session no client has attached to yet.
type pendingSession struct {
	cfg     models.SessionConfig
	created time.Time
}

// Manager provisions interview sessions and tracks them through their
// lifecycle. A session is created first (Create), then a client attaches
// its audio channel to start it (Attach).
type Manager struct {
	deps ManagerDeps

	mu      sync.RWMutex
	pending map[string]pendingSession
	live    map[string]*Session
}

func NewManager(deps ManagerDeps) *Manager {
	if deps.PendingTTL <= 0 {
		deps.PendingTTL = defaultPendingTTL
	}
	if deps.Retention <= 0 {
		deps.Retention = defaultRetention
	}
	return &Manager{
		deps:    deps,
		pending: make(map[string]pendingSession),
		live:    make(map[string]*Session),
	}
}

// Create provisions credentials and policy for a new interview and returns
// its config. The session is not started until a client attaches.
func (m *Manager) Create(ctx context.Context, role, organization, jobDescription string) (models.SessionConfig, error) {
	token, err := m.deps.Tokens.Provision(ctx)
	if err != nil {
		return models.SessionConfig{}, fmt.Errorf("provisioning session: %w", err)
	}
	cfg := models.SessionConfig{
		SessionID:       uuid.NewString(),
		Role:            role,
		Organization:    organization,
		JobDescription:  jobDescription,
		APIKey:          token.APIKey,
		Model:           token.Model,
		Voice:           token.Voice,
		TimeLimit:       token.TimeLimit,
		TargetQuestions: token.TargetQuestions,
	}

	m.mu.Lock()
	m.reapPendingLocked()
	m.pending[cfg.SessionID] = pendingSession{cfg: cfg, created: time.Now()}
	m.mu.Unlock()

	log := logging.WithInterview(cfg.SessionID, role, organization)
	log.Info().Msg("session created")
	return cfg, nil
}

// reapPendingLocked drops created sessions no client attached to in time.
func (m *Manager) reapPendingLocked() {
	cutoff := time.Now().Add(-m.deps.PendingTTL)
	for id, p := range m.pending {
		if p.created.Before(cutoff) {
			delete(m.pending, id)
		}
	}
}

// Attach binds a client's playback sink and notifier to a pending session
// and starts it.
func (m *Manager) Attach(ctx context.Context, id string, sink playback.Sink, notifier Notifier) (*Session, error) {
	m.mu.Lock()
	m.reapPendingLocked()
	p, ok := m.pending[id]
	if !ok {
		_, isLive := m.live[id]
		m.mu.Unlock()
		if isLive {
			return nil, ErrSessionAttached
		}
		return nil, ErrSessionNotFound
	}
	delete(m.pending, id)

	sess := NewSession(Params{
		Config:     p.cfg,
		Dial:       m.deps.Dial,
		Sink:       sink,
		Submitter:  m.deps.Submitter,
		Publisher:  m.deps.Publisher,
		Notifier:   notifier,
		Classifier: m.deps.Classifier,
	})
	m.live[id] = sess
	m.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		m.mu.Lock()
		delete(m.live, id)
		m.mu.Unlock()
		return nil, err
	}
	go m.evictWhenDone(id, sess)
	return sess, nil
}

// evictWhenDone removes an ended session from the live map once the
// retention window passes. Results stay available through the store.
func (m *Manager) evictWhenDone(id string, sess *Session) {
	<-sess.Done()
	time.Sleep(m.deps.Retention)
	m.mu.Lock()
	if m.live[id] == sess {
		delete(m.live, id)
	}
	m.mu.Unlock()
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.live[id]
	return sess, ok
}

// Config returns the config of a pending or live session.
func (m *Manager) Config(id string) (models.SessionConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.pending[id]; ok {
		return p.cfg, true
	}
	if sess, ok := m.live[id]; ok {
		return sess.cfg, true
	}
	return models.SessionConfig{}, false
}

// Stop requests a graceful end for the given session. Pending sessions are
// simply dropped.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	if _, ok := m.pending[id]; ok {
		delete(m.pending, id)
		m.mu.Unlock()
		return nil
	}
	sess, ok := m.live[id]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Stop()
	return nil
}

// Shutdown stops every live session and waits for them to finish scoring,
// up to the context deadline.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.live))
	for _, sess := range m.live {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	for _, sess := range sessions {
		sess.Stop()
	}
	for _, sess := range sessions {
		select {
		case <-sess.Done():
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
			return
		}
	}
}
