package ws

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wavechat/wavechat/chat"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/persistence"
	"github.com/wavechat/wavechat/presence"
	"github.com/wavechat/wavechat/types"
	"github.com/wavechat/wavechat/userdir"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	cfg := &config.Config{}
	cfg.PersistenceConfig.Type = "sqlite"
	cfg.PersistenceConfig.DSN = filepath.Join(t.TempDir(), "test.db")
	cfg.RetentionConfig.Window = 30 * time.Minute
	cfg.HistoryConfig.PageSize = 50
	cfg.HistoryConfig.MaxPageSize = 100

	persister, err := persistence.NewPersister(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { persister.Close() })

	directory := userdir.NewClient(cfg)
	hub := NewHub(cfg, presence.NewTracker(), directory)
	rooms := chat.NewRoomDirectory(persister)
	hub.Rooms = rooms
	hub.Messages = chat.NewMessageStore(cfg, persister, rooms, directory, hub)
	hub.Reactions = chat.NewReactionLedger(persister, hub)
	return hub
}

// addTestClient registers a session directly on the hub maps, the run
// loop is not needed for dispatch tests.
func addTestClient(hub *Hub, sessionId string, user types.User) *Client {
	client := NewClient(hub, nil, sessionId, user, make(chan struct{}))
	hub.Lock()
	hub.clients[client] = struct{}{}
	sessions := hub.byUser[user.Id]
	if sessions == nil {
		sessions = make(map[*Client]struct{})
		hub.byUser[user.Id] = sessions
	}
	sessions[client] = struct{}{}
	hub.Unlock()
	hub.Presence.AddSession(sessionId, user)
	return client
}

func command(t *testing.T, event string, payload interface{}) types.WebsocketMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return types.WebsocketMessage{Event: event, Data: data}
}

func nextFrame(t *testing.T, client *Client) types.WebsocketMessage {
	t.Helper()
	select {
	case raw := <-client.Send:
		frame := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatal(err)
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
	return types.WebsocketMessage{}
}

func TestStatusChangeRebroadcastsActiveUsers(t *testing.T) {
	hub := newTestHub(t)
	client := addTestClient(hub, "s1", types.User{Id: 1, Username: "alice"})

	client.dispatch(command(t, types.CommandUserStatus, types.StatusRequest{Status: "AWAY"}))

	events := map[string]json.RawMessage{}
	for i := 0; i < 2; i++ {
		frame := nextFrame(t, client)
		events[frame.Event] = frame.Data
	}
	assert.Contains(t, events, "/topic/user-status")
	assert.Contains(t, events, "/topic/active-users")

	snapshot := types.ActiveUsersEvent{}
	if err := json.Unmarshal(events["/topic/active-users"], &snapshot); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, snapshot.Count)
}

func TestCommandErrorsStaySilent(t *testing.T) {
	hub := newTestHub(t)
	client := addTestClient(hub, "s1", types.User{Id: 1, Username: "alice"})

	client.dispatch(command(t, types.CommandEditMessage, types.EditMessageRequest{MessageId: 99999, Content: "x"}))
	client.dispatch(command(t, types.CommandJoinRoom, types.RoomRequest{}))

	assert.Equal(t, 0, len(client.Send), "failed commands produce no frames")
}

func TestJoinUnknownRoomLeavesNoSubscription(t *testing.T) {
	hub := newTestHub(t)
	client := addTestClient(hub, "s1", types.User{Id: 1, Username: "alice"})

	client.dispatch(command(t, types.CommandJoinRoom, types.RoomRequest{RoomId: "no-such-room"}))

	hub.RLock()
	_, subscribed := hub.roomSubs["no-such-room"]
	hub.RUnlock()
	assert.False(t, subscribed)
	assert.Empty(t, client.rooms)
	assert.Equal(t, 0, len(client.Send))
}

func TestJoinSubscribesAfterValidation(t *testing.T) {
	hub := newTestHub(t)
	client := addTestClient(hub, "s1", types.User{Id: 1, Username: "alice"})

	room, err := hub.Rooms.CreateRoom("devs", "", types.RoomTypeGroup, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	client.dispatch(command(t, types.CommandJoinRoom, types.RoomRequest{RoomId: room.Id}))

	hub.RLock()
	_, subscribed := hub.roomSubs[room.Id][client]
	hub.RUnlock()
	assert.True(t, subscribed)

	frame := nextFrame(t, client)
	assert.Equal(t, "/topic/room/"+room.Id+"/events", frame.Event)

	// an already-member join only restores the subscription
	hub.Unsubscribe(client, room.Id)
	client.dispatch(command(t, types.CommandJoinRoom, types.RoomRequest{RoomId: room.Id}))
	hub.RLock()
	_, subscribed = hub.roomSubs[room.Id][client]
	hub.RUnlock()
	assert.True(t, subscribed)
	assert.Equal(t, 0, len(client.Send))
}

func TestSubscribeRestoresTracking(t *testing.T) {
	hub := newTestHub(t)
	client := addTestClient(hub, "s1", types.User{Id: 1, Username: "alice"})

	hub.Presence.RemoveSession("s1")
	assert.False(t, hub.Presence.Online(1))

	hub.Subscribe(client, types.PublicRoomId)
	assert.True(t, hub.Presence.Online(1))
}
