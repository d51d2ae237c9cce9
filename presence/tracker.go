// Package presence tracks which users are online. A user may hold any
// number of concurrent sessions (tabs, devices) and is online exactly
// while at least one session is registered.
package presence

import (
	"sync"

	"github.com/wavechat/wavechat/types"
)

// Entry is one online user of a snapshot, before directory enrichment.
type Entry struct {
	User         types.User
	SessionCount int
}

// Tracker owns the forward (session -> user) and inverse (user -> session
// set) maps. Both are only ever touched together under the same lock, so
// they stay mutually consistent even under interleaved connect/disconnect
// races for the same user. The maps are never handed out, callers only
// get the atomic operations below plus the edge flags they return.
type Tracker struct {
	mu           sync.Mutex
	sessionUser  map[string]int64
	userSessions map[int64]map[string]struct{}
	users        map[int64]types.User
}

func NewTracker() *Tracker {
	return &Tracker{
		sessionUser:  make(map[string]int64),
		userSessions: make(map[int64]map[string]struct{}),
		users:        make(map[int64]types.User),
	}
}

// AddSession registers a session for user and reports whether this
// crossed the offline->online edge (first session). Re-adding a session
// that is already tracked is a no-op.
func (t *Tracker) AddSession(sessionId string, user types.User) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessionUser[sessionId]; ok {
		return false
	}
	sessions := t.userSessions[user.Id]
	joined := len(sessions) == 0
	if sessions == nil {
		sessions = make(map[string]struct{})
		t.userSessions[user.Id] = sessions
	}
	sessions[sessionId] = struct{}{}
	t.sessionUser[sessionId] = user.Id
	t.users[user.Id] = user
	return joined
}

// Tracked reports whether the session is already registered.
func (t *Tracker) Tracked(sessionId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessionUser[sessionId]
	return ok
}

// RemoveSession unregisters a session. It returns the session's user,
// whether the user crossed the online->offline edge (last session gone),
// and whether the session was tracked at all. When the last session goes,
// all entries for the user are removed in the same critical section.
func (t *Tracker) RemoveSession(sessionId string) (types.User, bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	userId, ok := t.sessionUser[sessionId]
	if !ok {
		return types.User{}, false, false
	}
	delete(t.sessionUser, sessionId)
	user := t.users[userId]
	sessions := t.userSessions[userId]
	delete(sessions, sessionId)
	if len(sessions) > 0 {
		return user, false, true
	}
	delete(t.userSessions, userId)
	delete(t.users, userId)
	return user, true, true
}

// Online reports whether the user holds at least one session.
func (t *Tracker) Online(userId int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.userSessions[userId]) > 0
}

// ActiveUserCount returns the number of distinct online users.
func (t *Tracker) ActiveUserCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.userSessions)
}

// ActiveUserIds returns the ids of all online users.
func (t *Tracker) ActiveUserIds() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int64, 0, len(t.userSessions))
	for id := range t.userSessions {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns one entry per online user with its session count, a
// consistent copy taken under the lock.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := make([]Entry, 0, len(t.userSessions))
	for id, sessions := range t.userSessions {
		entries = append(entries, Entry{User: t.users[id], SessionCount: len(sessions)})
	}
	return entries
}
