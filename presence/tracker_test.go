package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavechat/wavechat/types"
)

func TestSessionEdges(t *testing.T) {
	tracker := NewTracker()
	alice := types.User{Id: 1, Username: "alice"}

	assert.True(t, tracker.AddSession("s1", alice), "first session crosses the online edge")
	assert.False(t, tracker.AddSession("s2", alice), "second session is no edge")
	assert.False(t, tracker.AddSession("s2", alice), "re-adding a session is a no-op")
	assert.True(t, tracker.Online(1))
	assert.Equal(t, 1, tracker.ActiveUserCount())

	_, left, ok := tracker.RemoveSession("s1")
	assert.True(t, ok)
	assert.False(t, left, "one session remains")
	assert.True(t, tracker.Online(1))

	user, left, ok := tracker.RemoveSession("s2")
	assert.True(t, ok)
	assert.True(t, left, "last session crosses the offline edge")
	assert.Equal(t, alice, user)
	assert.False(t, tracker.Online(1))
	assert.Equal(t, 0, tracker.ActiveUserCount())
}

func TestRemoveUnknownSession(t *testing.T) {
	tracker := NewTracker()
	_, left, ok := tracker.RemoveSession("nope")
	assert.False(t, ok)
	assert.False(t, left)
}

func TestSnapshot(t *testing.T) {
	tracker := NewTracker()
	tracker.AddSession("a1", types.User{Id: 1, Username: "alice"})
	tracker.AddSession("a2", types.User{Id: 1, Username: "alice"})
	tracker.AddSession("b1", types.User{Id: 2, Username: "bob"})

	entries := tracker.Snapshot()
	assert.Len(t, entries, 2)
	counts := make(map[int64]int)
	for _, entry := range entries {
		counts[entry.User.Id] = entry.SessionCount
	}
	assert.Equal(t, 2, counts[1])
	assert.Equal(t, 1, counts[2])
	assert.ElementsMatch(t, []int64{1, 2}, tracker.ActiveUserIds())
}

func TestConcurrentSessions(t *testing.T) {
	tracker := NewTracker()
	user := types.User{Id: 7, Username: "carol"}
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.AddSession(fmt.Sprintf("s%d", i), user)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, tracker.ActiveUserCount())

	edges := 0
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, left, ok := tracker.RemoveSession(fmt.Sprintf("s%d", i)); ok && left {
				mu.Lock()
				edges++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, edges, "exactly one removal crosses the offline edge")
	assert.False(t, tracker.Online(7))
}
