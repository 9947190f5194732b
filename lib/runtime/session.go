package runtime

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/emberscript/ember/pkg/bytecode"
)

var log = commonlog.GetLogger("ember.runtime")

// Session pairs a persistent context with the VM that executes against
// it. Runs are serialized per session; a new run preempts an in-flight
// one via the VM's cooperative stop flag.
type Session struct {
	id    string
	ctx   *bytecode.Context
	vm    *bytecode.VM
	store *ContextStore

	runMu sync.Mutex
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Context returns the session's variable store. Touch it only while no
// Execute call is in flight.
func (s *Session) Context() *bytecode.Context {
	return s.ctx
}

// Stop requests cancellation of the session's in-flight run, if any.
func (s *Session) Stop() {
	s.vm.Stop()
}

// Execute runs a compiled chunk against the session context. An
// overlapping call stops the previous run and waits for it to wind down
// before starting. When the session has a backing store, the surviving
// variables are persisted after the run, fault or not.
func (s *Session) Execute(chunk *bytecode.Chunk) bytecode.Result {
	s.vm.Stop()
	s.runMu.Lock()
	defer s.runMu.Unlock()

	result := s.vm.Execute(chunk, s.ctx)
	if !result.Success {
		log.Warningf("session %s: %s", s.id, result.Error)
	}

	if s.store != nil {
		if err := s.store.SaveContext(s.id, s.ctx); err != nil {
			log.Errorf("session %s: persist failed: %v", s.id, err)
		}
	}
	return result
}

// contextSeeder is implemented by hosts that preload globals into fresh
// session contexts. The Dispatcher uses it to bind registered object
// names to handle values.
type contextSeeder interface {
	SeedGlobals(*bytecode.Context)
}

// SessionManager creates and tracks sessions. Each session gets its own
// context and VM; the dispatch table and limits are shared.
type SessionManager struct {
	limits bytecode.Limits
	host   bytecode.HostCaller
	store  *ContextStore // nil disables persistence

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager. A nil store disables persistence.
func NewSessionManager(limits bytecode.Limits, host bytecode.HostCaller, store *ContextStore) *SessionManager {
	return &SessionManager{
		limits:   limits,
		host:     host,
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session with the given ID, creating it on first
// use. A newly created session is restored from the store when it has
// persisted state.
func (m *SessionManager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}

	ctx := bytecode.NewContext(m.limits.MaxVariables, m.limits.MaxStringLength)
	ctx.SetInternal("session_id", bytecode.String(id))
	if seeder, ok := m.host.(contextSeeder); ok {
		seeder.SeedGlobals(ctx)
	}

	if m.store != nil {
		if err := m.store.LoadContext(id, ctx); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Errorf("session %s: restore failed: %v", id, err)
		}
	}

	s := &Session{
		id:    id,
		ctx:   ctx,
		vm:    bytecode.NewVM(m.limits, m.host),
		store: m.store,
	}
	m.sessions[id] = s
	log.Debugf("session %s created", id)
	return s
}

// NewSession creates a session with a fresh random ID.
func (m *SessionManager) NewSession() *Session {
	return m.Session(uuid.NewString())
}

// Remove drops a session from the manager, stopping any in-flight run.
// Persisted state is kept; use the store directly to delete it.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.Stop()
		delete(m.sessions, id)
	}
}

// IDs returns the IDs of the live sessions.
func (m *SessionManager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
