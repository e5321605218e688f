// Package party implements the search-party lifecycle.
//
// A party is created Open by its leader, members join and leave while it
// stays Open, and it exits exactly once: to Closed when the leader begins
// the search, or to Disbanded when the leader cancels. Both exits are
// terminal. Every mutation is atomic with respect to a single party id.
package party

import (
	"errors"
	"sync"
	"time"

	"steam-party-bot/internal/pkg/lock"
)

// State is the lifecycle state of a party.
type State string

// Party lifecycle states.
const (
	StateOpen      State = "open"
	StateClosed    State = "closed"
	StateDisbanded State = "disbanded"
)

// Errors for party operations. All of these are user-facing policy
// rejections, not faults: no state is mutated when they are returned.
var (
	ErrNotFound          = errors.New("party does not exist")
	ErrAlreadyExists     = errors.New("party already exists")
	ErrNotOpen           = errors.New("party is no longer open")
	ErrPartyFull         = errors.New("party is full")
	ErrAlreadyMember     = errors.New("user already joined the party")
	ErrNotMember         = errors.New("user is not in the party")
	ErrNotLeader         = errors.New("only the party leader can do that")
	ErrLeaderCannotLeave = errors.New("leader cannot leave their own party")
)

// Party is one active search session. Members are ordered leader-first
// and never contain duplicates. Mutations go through the Manager, which
// holds the per-party lock.
type Party struct {
	ID           string
	State        State
	Members      []string
	CreatedAt    time.Time
	MessageToken string // interaction token for editing the shared party message
}

// Snapshot is an immutable copy of a party, safe to render after the
// manager's locks are released.
type Snapshot struct {
	ID           string
	State        State
	Members      []string
	CreatedAt    time.Time
	MessageToken string
}

// Leader returns the party creator, always the first member.
func (s Snapshot) Leader() string {
	return s.Members[0]
}

// HasMember reports whether the user is in the party.
func (s Snapshot) HasMember(userID string) bool {
	for _, id := range s.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// Manager owns the active-party set and enforces the lifecycle rules.
// The registry map is guarded by mu; each party record is additionally
// guarded by a per-id keyed lock so check-and-mutate is one atomic step.
type Manager struct {
	maxSize int

	mu      sync.RWMutex
	parties map[string]*Party
	keys    *lock.KeyLock
}

// NewManager creates a Manager with the given lobby capacity.
func NewManager(maxLobbySize int, keys *lock.KeyLock) *Manager {
	if keys == nil {
		keys = lock.NewKeyLock()
	}
	return &Manager{
		maxSize: maxLobbySize,
		parties: make(map[string]*Party),
		keys:    keys,
	}
}

// MaxLobbySize returns the configured lobby capacity.
func (m *Manager) MaxLobbySize() int {
	return m.maxSize
}

// Create allocates a new Open party keyed by the triggering interaction id
// with the leader as sole member. The caller is expected to have passed
// the identity gate already; Create itself only guards against id reuse.
func (m *Manager) Create(partyID, leaderID, messageToken string) (Snapshot, error) {
	m.keys.Lock(partyID)
	defer m.keys.Unlock(partyID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.parties[partyID]; exists {
		return Snapshot{}, ErrAlreadyExists
	}

	p := &Party{
		ID:           partyID,
		State:        StateOpen,
		Members:      []string{leaderID},
		CreatedAt:    time.Now(),
		MessageToken: messageToken,
	}
	m.parties[partyID] = p

	return snapshot(p), nil
}

// Join appends a user to an Open party.
func (m *Manager) Join(partyID, userID string) (Snapshot, error) {
	m.keys.Lock(partyID)
	defer m.keys.Unlock(partyID)

	p, err := m.get(partyID)
	if err != nil {
		return Snapshot{}, err
	}

	if p.State != StateOpen {
		return snapshot(p), ErrNotOpen
	}
	for _, id := range p.Members {
		if id == userID {
			return snapshot(p), ErrAlreadyMember
		}
	}
	if len(p.Members) >= m.maxSize {
		return snapshot(p), ErrPartyFull
	}

	p.Members = append(p.Members, userID)
	return snapshot(p), nil
}

// Leave removes a non-leader member from an Open party. The leader is
// redirected to Disband instead.
func (m *Manager) Leave(partyID, userID string) (Snapshot, error) {
	m.keys.Lock(partyID)
	defer m.keys.Unlock(partyID)

	p, err := m.get(partyID)
	if err != nil {
		return Snapshot{}, err
	}

	if p.State != StateOpen {
		return snapshot(p), ErrNotOpen
	}
	if p.Members[0] == userID {
		return snapshot(p), ErrLeaderCannotLeave
	}

	for i, id := range p.Members {
		if id == userID {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			return snapshot(p), nil
		}
	}

	return snapshot(p), ErrNotMember
}

// Begin transitions an Open party to Closed, freezing membership.
// Leader-only. The caller runs the game resolution afterwards and removes
// the record once the outcome has been rendered.
func (m *Manager) Begin(partyID, callerID string) (Snapshot, error) {
	m.keys.Lock(partyID)
	defer m.keys.Unlock(partyID)

	p, err := m.get(partyID)
	if err != nil {
		return Snapshot{}, err
	}

	if p.Members[0] != callerID {
		return snapshot(p), ErrNotLeader
	}
	if p.State != StateOpen {
		return snapshot(p), ErrNotOpen
	}

	p.State = StateClosed
	return snapshot(p), nil
}

// Disband transitions a party to Disbanded and removes it immediately.
// Leader-only. Permitted from Open or Closed: cancellation is always
// allowed until a search result has been delivered.
func (m *Manager) Disband(partyID, callerID string) (Snapshot, error) {
	m.keys.Lock(partyID)
	defer m.keys.Unlock(partyID)

	p, err := m.get(partyID)
	if err != nil {
		return Snapshot{}, err
	}

	if p.Members[0] != callerID {
		return snapshot(p), ErrNotLeader
	}

	p.State = StateDisbanded
	snap := snapshot(p)

	m.mu.Lock()
	delete(m.parties, partyID)
	m.mu.Unlock()

	return snap, nil
}

// Remove drops a party from the active set. Called after a Closed party's
// outcome (success or failure) has been rendered.
func (m *Manager) Remove(partyID string) {
	m.keys.Lock(partyID)
	defer m.keys.Unlock(partyID)

	m.mu.Lock()
	delete(m.parties, partyID)
	m.mu.Unlock()
}

// Get returns a snapshot of a party, if it is active. Takes the party's
// keyed lock: member slices are mutated under it, so reading them under
// the registry mutex alone would race with a concurrent Join or Leave.
func (m *Manager) Get(partyID string) (Snapshot, bool) {
	m.keys.Lock(partyID)
	defer m.keys.Unlock(partyID)

	p, err := m.get(partyID)
	if err != nil {
		return Snapshot{}, false
	}
	return snapshot(p), true
}

// Count returns the number of active parties.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parties)
}

// ReapStale removes parties older than maxAge and returns their
// snapshots. Interaction tokens expire after about 15 minutes, so a
// party that old can no longer render an outcome anyway.
func (m *Manager) ReapStale(maxAge time.Duration) []Snapshot {
	cutoff := time.Now().Add(-maxAge)

	m.mu.RLock()
	var stale []string
	for id, p := range m.parties {
		if p.CreatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	var reaped []Snapshot
	for _, id := range stale {
		// A party busy with a live mutation is left for the next sweep.
		if !m.keys.TryLock(id) {
			continue
		}
		m.mu.Lock()
		// Re-check under the lock: the party may have resolved meanwhile.
		if p, ok := m.parties[id]; ok && p.CreatedAt.Before(cutoff) {
			reaped = append(reaped, snapshot(p))
			delete(m.parties, id)
		}
		m.mu.Unlock()
		m.keys.Unlock(id)
	}

	return reaped
}

// get looks up a live party record. Callers must hold the party's keyed
// lock so the record cannot be removed underneath them.
func (m *Manager) get(partyID string) (*Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.parties[partyID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// snapshot copies a party for use outside the manager's locks.
func snapshot(p *Party) Snapshot {
	members := make([]string, len(p.Members))
	copy(members, p.Members)
	return Snapshot{
		ID:           p.ID,
		State:        p.State,
		Members:      members,
		CreatedAt:    p.CreatedAt,
		MessageToken: p.MessageToken,
	}
}
