package quiz

import "sync"

// SessionStore holds at most one live session per user. Every access to a
// user's session goes through that user's mutex, so chat updates and timer
// callbacks for the same user never interleave.
type SessionStore struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

// slot is deleted once it holds no session and nobody is using it. refs is
// guarded by SessionStore.mu, session by the slot's own mutex.
type slot struct {
	mu      sync.Mutex
	refs    int
	session *Session
}

// NewSessionStore creates an empty store
func NewSessionStore() *SessionStore {
	return &SessionStore{slots: make(map[int64]*slot)}
}

// acquire pins the user's slot, creating it when create is set. It returns nil
// when the user has no slot and create is false.
func (st *SessionStore) acquire(userID int64, create bool) *slot {
	st.mu.Lock()
	defer st.mu.Unlock()
	sl, ok := st.slots[userID]
	if !ok {
		if !create {
			return nil
		}
		sl = &slot{}
		st.slots[userID] = sl
	}
	sl.refs++
	return sl
}

// release unpins a slot taken with acquire. With no refs left no one can be
// holding the slot's mutex, so session is safe to read here.
func (st *SessionStore) release(userID int64, sl *slot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sl.refs--
	if sl.refs == 0 && sl.session == nil {
		delete(st.slots, userID)
	}
}

// Update runs fn with exclusive access to the user's session. fn receives nil
// when the user has no session and returns the session to keep (nil removes it).
func (st *SessionStore) Update(userID int64, fn func(*Session) *Session) {
	sl := st.acquire(userID, true)
	defer st.release(userID, sl)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.session = fn(sl.session)
}

// Get returns a copy of the user's session. The slices of the copy are shared
// with the live session and must not be modified.
func (st *SessionStore) Get(userID int64) (Session, bool) {
	sl := st.acquire(userID, false)
	if sl == nil {
		return Session{}, false
	}
	defer st.release(userID, sl)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.session == nil {
		return Session{}, false
	}
	return *sl.session, true
}

// Users returns the ids of users that currently have a session
func (st *SessionStore) Users() []int64 {
	st.mu.Lock()
	ids := make([]int64, 0, len(st.slots))
	for id := range st.slots {
		ids = append(ids, id)
	}
	st.mu.Unlock()

	active := ids[:0]
	for _, id := range ids {
		if _, ok := st.Get(id); ok {
			active = append(active, id)
		}
	}
	return active
}
