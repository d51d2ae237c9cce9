package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/metrics"
	"github.com/wavechat/wavechat/router"
	"github.com/wavechat/wavechat/types"
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// session id, unique per connection
	id string

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	Send chan []byte

	user types.User

	// rooms this session subscribed to, maintained under the hub lock
	rooms map[string]struct{}

	doneChan chan struct{}

	// WaitGroup tracking the running loops and pending writes to Send.
	// Once it is done the hub may safely close the channel.
	sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionId string, user types.User, doneChan chan struct{}) *Client {
	return &Client{
		hub:      hub,
		id:       sessionId,
		conn:     conn,
		Send:     make(chan []byte, sendChannelSize),
		user:     user,
		rooms:    make(map[string]struct{}),
		doneChan: doneChan,
	}
}

func (c *Client) User() types.User { return c.user }

// dropCommand logs a failed command. Commands have no response channel,
// the session never sees an error frame.
func (c *Client) dropCommand(command string, err error) {
	globals.AppLogger.Warn("command failed", "command", command, "user", c.user.Id, "error", err)
}

// decode unmarshals a raw command payload and weakly decodes it into
// the typed request, tolerating clients that send numbers as strings.
func decode(raw json.RawMessage, out interface{}) error {
	payload := make(map[string]interface{})
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return err
		}
	}
	return mapstructure.WeakDecode(payload, out)
}

// ReadLoop pumps messages from the websocket connection to the domain
// services. There is at most one reader per connection, all reads
// happen on this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.conn.Close()
		close(c.doneChan)
		c.hub.Unregister <- c
		c.Done()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Warn("ws closed unexpected", "error", err)
			}
			return
		}
		message := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			globals.AppLogger.Warn("could not unmarshal ws message", "error", err)
			continue
		}
		c.dispatch(message)
	}
}

func (c *Client) dispatch(message types.WebsocketMessage) {
	switch message.Event {
	case types.CommandSendMessage, types.CommandSendPrivateMessage:
		req := types.SendMessageRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if message.Event == types.CommandSendPrivateMessage && req.RecipientId == 0 {
			c.dropCommand(message.Event, errors.New("no recipient given"))
			return
		}
		msg, err := c.hub.Messages.Send(req, c.user)
		if err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if msg.Private() {
			metrics.MessagesSent.WithLabelValues("private").Inc()
			if err := c.hub.Messages.DeliverPrivate(msg, c.user.Username); err != nil {
				c.dropCommand(message.Event, err)
			}
		} else {
			metrics.MessagesSent.WithLabelValues("room").Inc()
		}

	case types.CommandTyping:
		req := types.TypingRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if req.RoomId == "" {
			req.RoomId = types.PublicRoomId
		}
		c.hub.Deliver(router.RoomTyping(req.RoomId), types.TypingEvent{
			RoomId:   req.RoomId,
			UserId:   c.user.Id,
			Username: c.user.Username,
			IsTyping: req.IsTyping,
		})

	case types.CommandPrivateTyping:
		req := types.PrivateTypingRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if req.RecipientId == 0 {
			return
		}
		c.hub.Deliver(router.PrivateTyping(req.RecipientId), types.TypingEvent{
			UserId:      c.user.Id,
			Username:    c.user.Username,
			RecipientId: req.RecipientId,
			IsTyping:    req.IsTyping,
		})

	case types.CommandJoinRoom:
		req := types.RoomRequest{}
		if err := decode(message.Data, &req); err != nil || req.RoomId == "" {
			c.dropCommand(message.Event, errors.New("no room given"))
			return
		}
		err := c.hub.Rooms.JoinRoom(req.RoomId, c.user.Id)
		switch {
		case err == nil:
			c.hub.Subscribe(c, req.RoomId)
			c.hub.Deliver(router.RoomEvents(req.RoomId), types.PresenceEvent{
				Type:      types.PresenceJoin,
				UserId:    c.user.Id,
				Username:  c.user.Username,
				Timestamp: time.Now().UnixMilli(),
			})
		case errors.Is(err, types.ErrBadRequest):
			// already a member, the subscription is all that was missing
			c.hub.Subscribe(c, req.RoomId)
		default:
			c.dropCommand(message.Event, err)
		}

	case types.CommandLeaveRoom:
		req := types.RoomRequest{}
		if err := decode(message.Data, &req); err != nil || req.RoomId == "" {
			c.dropCommand(message.Event, errors.New("no room given"))
			return
		}
		c.hub.Unsubscribe(c, req.RoomId)
		if err := c.hub.Rooms.LeaveRoom(req.RoomId, c.user.Id); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		c.hub.Deliver(router.RoomEvents(req.RoomId), types.PresenceEvent{
			Type:      types.PresenceLeave,
			UserId:    c.user.Id,
			Username:  c.user.Username,
			Timestamp: time.Now().UnixMilli(),
		})

	case types.CommandMarkAsRead:
		req := types.MarkAsReadRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if req.RoomId == "" {
			req.RoomId = types.PublicRoomId
		}
		if _, err := c.hub.Messages.MarkRoomRead(req.RoomId, c.user.Id); err != nil {
			c.dropCommand(message.Event, err)
		}

	case types.CommandEditMessage:
		req := types.EditMessageRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if _, err := c.hub.Messages.Edit(req.MessageId, req.Content, c.user); err != nil {
			c.dropCommand(message.Event, err)
		}

	case types.CommandDeleteMessage:
		req := types.DeleteMessageRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if err := c.hub.Messages.Delete(req.MessageId, c.user); err != nil {
			c.dropCommand(message.Event, err)
		}

	case types.CommandAddReaction:
		req := types.ReactionRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if _, err := c.hub.Reactions.Add(req.MessageId, c.user.Id, req.Emoji); err != nil {
			c.dropCommand(message.Event, err)
		}

	case types.CommandRemoveReaction:
		req := types.ReactionRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		if err := c.hub.Reactions.Remove(req.MessageId, c.user.Id, req.Emoji); err != nil {
			c.dropCommand(message.Event, err)
		}

	case types.CommandRequestActiveUsers:
		go c.hub.BroadcastActiveUsers()

	case types.CommandUserStatus:
		req := types.StatusRequest{}
		if err := decode(message.Data, &req); err != nil || req.Status == "" {
			c.dropCommand(message.Event, errors.New("no status given"))
			return
		}
		c.hub.Deliver(router.UserStatus(), types.StatusEvent{
			UserId:    c.user.Id,
			Status:    req.Status,
			Timestamp: time.Now().UnixMilli(),
		})
		// snapshot subscribers see the new status too
		go c.hub.BroadcastActiveUsers()

	case types.CommandCallSignal:
		req := types.CallSignalRequest{}
		if err := decode(message.Data, &req); err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		dests, err := router.CallSignal(c.user, req.CalleeId)
		if err != nil {
			c.dropCommand(message.Event, err)
			return
		}
		c.hub.Deliver(dests, types.CallSignalEvent{
			Type:           req.Type,
			CallerId:       c.user.Id,
			CallerUsername: c.user.Username,
			CalleeId:       req.CalleeId,
			Sdp:            req.Sdp,
			Candidate:      req.Candidate,
			CallType:       req.CallType,
			Timestamp:      time.Now().UnixMilli(),
		})

	default:
		globals.AppLogger.Warn("unknown command", "command", message.Event, "user", c.user.Id)
	}
}

// WriteLoop pumps frames from the hub to the websocket connection.
// There is at most one writer per connection, all writes happen on this
// goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.Done()
	}()
	for {
		select {
		case <-c.doneChan:
			return
		default:
		}
		select {
		case frame, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
