package ws

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wavechat/wavechat/chat"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/metrics"
	"github.com/wavechat/wavechat/presence"
	"github.com/wavechat/wavechat/router"
	"github.com/wavechat/wavechat/types"
	"github.com/wavechat/wavechat/userdir"
)

const (
	maxMessageSize  = 4096
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 1000
)

// Hub is the single delivery fabric. It keeps the registered clients,
// the user -> sessions index and the per-room subscriptions, and turns
// router destinations into frames on client send buffers. Service
// fields are assigned once at startup before Run is called, the hub
// itself never constructs them.
type Hub struct {
	Cfg       *config.Config
	Presence  *presence.Tracker
	Directory *userdir.Client

	Messages  *chat.MessageStore
	Reactions *chat.ReactionLedger
	Rooms     *chat.RoomDirectory

	clients  map[*Client]struct{}
	byUser   map[int64]map[*Client]struct{}
	roomSubs map[string]map[*Client]struct{}

	// Register a new client to the hub.
	Register chan *Client

	// Unregister a client from the hub.
	Unregister chan *Client

	// mutex for manipulating the clients and subscription maps
	sync.RWMutex
}

func NewHub(cfg *config.Config, tracker *presence.Tracker, directory *userdir.Client) *Hub {
	return &Hub{
		Cfg:        cfg,
		Presence:   tracker,
		Directory:  directory,
		clients:    make(map[*Client]struct{}),
		byUser:     make(map[int64]map[*Client]struct{}),
		roomSubs:   make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// NoClients returns the number of registered sessions.
func (h *Hub) NoClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

// Subscribe adds the client to a room's delivery set. Public-room
// traffic reaches every client, so the well-known room needs no entry.
// A session that slipped out of the presence tracker is re-registered
// here.
func (h *Hub) Subscribe(client *Client, roomId string) {
	if !h.Presence.Tracked(client.id) {
		h.Presence.AddSession(client.id, client.user)
	}
	if roomId == types.PublicRoomId {
		return
	}
	h.Lock()
	defer h.Unlock()
	subs := h.roomSubs[roomId]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.roomSubs[roomId] = subs
	}
	subs[client] = struct{}{}
	client.rooms[roomId] = struct{}{}
}

func (h *Hub) Unsubscribe(client *Client, roomId string) {
	h.Lock()
	defer h.Unlock()
	h.dropSubscription(client, roomId)
	delete(client.rooms, roomId)
}

// dropSubscription removes one room entry, callers hold the write lock.
func (h *Hub) dropSubscription(client *Client, roomId string) {
	subs := h.roomSubs[roomId]
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.roomSubs, roomId)
	}
}

// topicClients resolves a topic name to its delivery set. Callers hold
// at least the read lock. Global topics and everything under the public
// room go to all clients, other room topics go to the room's
// subscribers.
func (h *Hub) topicClients(name string) map[*Client]struct{} {
	if strings.HasPrefix(name, "room/") {
		roomId := strings.SplitN(strings.TrimPrefix(name, "room/"), "/", 2)[0]
		if roomId != types.PublicRoomId {
			return h.roomSubs[roomId]
		}
	}
	return h.clients
}

// Deliver fans a payload out to the resolved destinations. Fire and
// forget: marshal errors are logged, full send buffers drop the frame
// for that session rather than stall the fabric.
func (h *Hub) Deliver(dests []router.Destination, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal payload", "error", err)
		return
	}
	for _, dest := range dests {
		frame, err := json.Marshal(types.WebsocketMessage{Event: dest.Path(), Data: data})
		if err != nil {
			globals.AppLogger.Error("could not marshal frame", "error", err)
			continue
		}
		go h.deliverFrame(dest, frame)
	}
}

func (h *Hub) deliverFrame(dest router.Destination, frame []byte) {
	var wg sync.WaitGroup
	h.RLock()
	var targets map[*Client]struct{}
	if dest.Topic != "" {
		targets = h.topicClients(dest.Topic)
	} else {
		targets = h.byUser[dest.UserId]
	}
	for client := range targets {
		wg.Add(1)
		client.Add(1)
		go func(c *Client) {
			defer wg.Done()
			defer c.Done()
			select {
			case c.Send <- frame:
				metrics.EventsDelivered.Inc()
			default:
				metrics.EventsDropped.Inc()
				globals.AppLogger.Warn("send buffer full, dropping frame", "user", c.user.Id, "event", dest.Path())
			}
		}(client)
	}
	wg.Wait()
	h.RUnlock()
}

// Run is the main hub event loop handling register and unregister.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			globals.AppLogger.Info("register new client", "user", client.user.Id, "session", client.id)
			h.Lock()
			h.clients[client] = struct{}{}
			sessions := h.byUser[client.user.Id]
			if sessions == nil {
				sessions = make(map[*Client]struct{})
				h.byUser[client.user.Id] = sessions
			}
			sessions[client] = struct{}{}
			h.Unlock()
			joined := h.Presence.AddSession(client.id, client.user)
			metrics.ActiveSessions.Set(float64(h.NoClients()))
			if joined {
				h.Deliver(router.PresenceEvents(), types.PresenceEvent{
					Type:      types.PresenceJoin,
					UserId:    client.user.Id,
					Username:  client.user.Username,
					Timestamp: time.Now().UnixMilli(),
				})
			}
			go h.BroadcastActiveUsers()

		case client := <-h.Unregister:
			go func() {
				h.RLock()
				if _, ok := h.clients[client]; !ok {
					h.RUnlock()
					return
				}
				h.RUnlock()
				globals.AppLogger.Info("unregister client", "user", client.user.Id, "session", client.id)

				h.Lock()
				delete(h.clients, client)
				sessions := h.byUser[client.user.Id]
				delete(sessions, client)
				if len(sessions) == 0 {
					delete(h.byUser, client.user.Id)
				}
				for roomId := range client.rooms {
					h.dropSubscription(client, roomId)
				}
				client.conn.Close()
				// wait for all loops and pending writes before closing Send
				client.Wait()
				close(client.Send)
				h.Unlock()

				user, left, tracked := h.Presence.RemoveSession(client.id)
				metrics.ActiveSessions.Set(float64(h.NoClients()))
				if tracked && left {
					h.Deliver(router.PresenceEvents(), types.PresenceEvent{
						Type:      types.PresenceLeave,
						UserId:    user.Id,
						Username:  user.Username,
						Timestamp: time.Now().UnixMilli(),
					})
					if user.IsGuest {
						go func(userId int64) {
							ctx, cancel := context.WithTimeout(context.Background(), h.Cfg.UserDirConfig.Timeout)
							defer cancel()
							if err := h.Directory.DeleteGuest(ctx, userId); err != nil {
								globals.AppLogger.Warn("could not delete guest account", "user", userId, "error", err)
							}
						}(user.Id)
					}
				}
				h.BroadcastActiveUsers()
			}()
		}
	}
}

// BroadcastActiveUsers publishes the full active-users snapshot to the
// global topic. The snapshot is enriched from the user directory with a
// bounded worker pool; when the directory is down or slow the tracker's
// own data goes out instead, presence never waits on enrichment
// failures.
func (h *Hub) BroadcastActiveUsers() {
	entries := h.Presence.Snapshot()
	metrics.ActiveUsers.Set(float64(len(entries)))

	users := make([]types.ActiveUser, len(entries))
	for i, entry := range entries {
		users[i] = types.ActiveUser{
			Id:           entry.User.Id,
			Username:     entry.User.Username,
			Status:       "ONLINE",
			SessionCount: entry.SessionCount,
			IsGuest:      entry.User.IsGuest,
		}
	}

	if h.Directory.Available() {
		h.enrich(users)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	h.Deliver(router.ActiveUsers(), types.ActiveUsersEvent{
		Type:      "ACTIVE_USERS",
		Users:     users,
		Count:     len(users),
		Timestamp: time.Now().UnixMilli(),
	})
}

// enrich fills in profile details from the directory, in place. Guests
// have no directory entry and are skipped; a failed lookup leaves that
// user's tracker data untouched.
func (h *Hub) enrich(users []types.ActiveUser) {
	workers := h.Cfg.UserDirConfig.LookupWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range users {
		if users[i].IsGuest {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(u *types.ActiveUser) {
			defer wg.Done()
			defer func() { <-sem }()
			ctx, cancel := context.WithTimeout(context.Background(), h.Cfg.UserDirConfig.Timeout)
			defer cancel()
			profile, err := h.Directory.Profile(ctx, u.Id)
			if err != nil {
				globals.AppLogger.Debug("profile lookup failed", "user", u.Id, "error", err)
				return
			}
			u.Email = profile.Email
			u.AvatarUrl = profile.AvatarUrl
			u.Gender = profile.Gender
			if status, err := h.Directory.Status(ctx, u.Id); err == nil && status != "" {
				u.Status = status
			}
		}(&users[i])
	}
	wg.Wait()
}
