package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/parser"
	"github.com/svg-workbench/backend/internal/svg"
)

// MaxSessions limits concurrently open documents to prevent memory exhaustion
const MaxSessions = 32

// SessionMaxAge is how long an idle clean document stays open
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

var (
	// ErrNotOpen is returned for a file with no open session.
	ErrNotOpen = errors.New("session: document not open")
	// ErrFileNotFound is returned when the store has no such file.
	ErrFileNotFound = errors.New("session: file not found")
	// ErrTooManySessions is returned when every slot holds unsaved edits.
	ErrTooManySessions = errors.New("session: too many open documents")
)

// Store is the part of the storage layer sessions read from.
type Store interface {
	Get(id string) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
}

// Refresher re-indexes a file after it has been rewritten.
type Refresher interface {
	Refresh(ctx context.Context, id string) (catalog.Entry, error)
}

// Manager holds documents open for editing, keyed by file id. Each document
// has its own lock, so edits to different files do not contend.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	store    Store
	checker  parser.SchemaChecker
	indexer  Refresher
}

// SessionState holds an open document and its metadata.
type SessionState struct {
	mu      sync.Mutex
	Session *models.DocumentSession
	doc     *svg.Document
}

// NewManager creates a session manager. indexer may be nil.
func NewManager(store Store, checker parser.SchemaChecker, indexer Refresher) *Manager {
	return &Manager{
		sessions: make(map[string]*SessionState),
		store:    store,
		checker:  checker,
		indexer:  indexer,
	}
}

// Open returns the session for fileID, loading and validating the stored
// document the first time.
func (m *Manager) Open(fileID string) (*models.DocumentSession, error) {
	state, err := m.acquire(fileID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return snapshot(state), nil
}

func (m *Manager) acquire(fileID string) (*SessionState, error) {
	m.mu.RLock()
	state, ok := m.sessions[fileID]
	m.mu.RUnlock()
	if ok {
		return state, nil
	}

	info, err := m.store.Get(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	path, err := m.store.GetFilePath(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	start := time.Now()
	data, err := parser.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := parser.BuildDocument(data, m.checker)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another request may have loaded it meanwhile.
	if existing, ok := m.sessions[fileID]; ok {
		return existing, nil
	}
	if err := m.makeRoomLocked(); err != nil {
		return nil, err
	}

	state = &SessionState{
		Session: models.NewDocumentSession(fileID, info.Name),
		doc:     doc,
	}
	m.sessions[fileID] = state
	fmt.Printf("[Session %s] Opened %s in %s\n", shortID(fileID), info.Name, time.Since(start).Round(time.Microsecond))
	return state, nil
}

// View runs fn with read access to the open document. fn must not keep doc.
func (m *Manager) View(fileID string, fn func(doc *svg.Document) error) error {
	state, err := m.acquire(fileID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	state.Session.LastAccessed = time.Now()
	return fn(state.doc)
}

// Update runs fn with write access to the open document. A nil return marks
// the document dirty and bumps its revision; fn must leave doc untouched when
// it fails.
func (m *Manager) Update(fileID string, fn func(doc *svg.Document) error) (*models.DocumentSession, error) {
	state, err := m.acquire(fileID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	state.Session.LastAccessed = time.Now()
	if err := fn(state.doc); err != nil {
		return nil, err
	}
	state.Session.Dirty = true
	state.Session.Revision++
	return snapshot(state), nil
}

// Save checks the open document against the schema and the structural rules
// and writes it back over the stored file. Nothing is written when a check
// fails.
func (m *Manager) Save(ctx context.Context, fileID string) (*models.DocumentSession, error) {
	m.mu.RLock()
	state, ok := m.sessions[fileID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotOpen
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if err := parser.CheckDocument(state.doc, m.checker); err != nil {
		return nil, err
	}
	path, err := m.store.GetFilePath(fileID)
	if err != nil {
		return nil, err
	}
	if err := parser.WriteDocumentAs(state.doc, path, state.Session.FileName); err != nil {
		return nil, err
	}

	now := time.Now()
	state.Session.Dirty = false
	state.Session.SavedAt = &now
	state.Session.LastAccessed = now

	if m.indexer != nil {
		if _, err := m.indexer.Refresh(ctx, fileID); err != nil {
			fmt.Printf("[Session %s] Reindex after save failed: %v\n", shortID(fileID), err)
		}
	}
	fmt.Printf("[Session %s] Saved revision %d\n", shortID(fileID), state.Session.Revision)
	return snapshot(state), nil
}

// Rename updates the display name of an open document.
func (m *Manager) Rename(fileID, name string) {
	m.mu.RLock()
	state, ok := m.sessions[fileID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	state.mu.Lock()
	state.Session.FileName = name
	state.mu.Unlock()
}

// Close discards an open document, including unsaved edits.
func (m *Manager) Close(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[fileID]; !ok {
		return false
	}
	delete(m.sessions, fileID)
	fmt.Printf("[Session %s] Closed\n", shortID(fileID))
	return true
}

// GetSession returns a session by file id.
func (m *Manager) GetSession(fileID string) (*models.DocumentSession, bool) {
	m.mu.RLock()
	state, ok := m.sessions[fileID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return snapshot(state), true
}

// ListSessions returns every open session, most recently used first.
func (m *Manager) ListSessions() []*models.DocumentSession {
	m.mu.RLock()
	states := make([]*SessionState, 0, len(m.sessions))
	for _, state := range m.sessions {
		states = append(states, state)
	}
	m.mu.RUnlock()

	list := make([]*models.DocumentSession, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		list = append(list, snapshot(state))
		state.mu.Unlock()
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].LastAccessed.After(list[j].LastAccessed)
	})
	return list
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(fileID string) bool {
	m.mu.RLock()
	state, ok := m.sessions[fileID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	state.mu.Lock()
	state.Session.LastAccessed = time.Now()
	state.mu.Unlock()
	return true
}

// CleanupOldSessions closes clean sessions idle for longer than maxAge.
// Sessions with unsaved edits are never closed here.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		if !state.mu.TryLock() {
			continue // in use
		}
		last := state.Session.LastAccessed
		dirty := state.Session.Dirty
		state.mu.Unlock()

		if dirty || last.After(keepAliveCutoff) || !last.Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		fmt.Printf("[Manager] Cleaned up idle document %s (last accessed: %s ago)\n",
			shortID(id), time.Since(last).Round(time.Second))
	}
}

// makeRoomLocked closes the least recently used clean session when the
// manager is full. m.mu must be held.
func (m *Manager) makeRoomLocked() error {
	if len(m.sessions) < MaxSessions {
		return nil
	}

	var oldestID string
	var oldest time.Time
	for id, state := range m.sessions {
		if !state.mu.TryLock() {
			continue
		}
		last, dirty := state.Session.LastAccessed, state.Session.Dirty
		state.mu.Unlock()
		if dirty {
			continue
		}
		if oldestID == "" || last.Before(oldest) {
			oldestID, oldest = id, last
		}
	}
	if oldestID == "" {
		return ErrTooManySessions
	}
	delete(m.sessions, oldestID)
	fmt.Printf("[Manager] Closed document %s to free memory\n", shortID(oldestID))
	return nil
}

func snapshot(state *SessionState) *models.DocumentSession {
	copied := *state.Session
	return &copied
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
