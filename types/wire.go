package types

import "encoding/json"

// JSON-serialized WebsocketMessage is what is actually sent via the
// Websocket connection, in both directions. For inbound frames Event is
// one of the Command* verbs, for outbound frames it is the destination
// path the payload was routed to (see router.Destination).
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MessageEvent is the outbound copy of a message, sent on new-message,
// edit, delete and read-receipt destinations. RecipientId is only set
// for private conversations.
type MessageEvent struct {
	*Message
	SenderUsername string `json:"sender_username,omitempty"`
	RecipientId    int64  `json:"recipient_id,omitempty"`
}

const (
	PresenceJoin  = "JOIN"
	PresenceLeave = "LEAVE"
)

// PresenceEvent announces an online/offline edge of a user on the public
// room's event stream.
type PresenceEvent struct {
	Type      string `json:"type"`
	UserId    int64  `json:"user_id"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// ActiveUsersEvent is the full active-users snapshot.
type ActiveUsersEvent struct {
	Type      string       `json:"type"` // always "ACTIVE_USERS"
	Users     []ActiveUser `json:"users"`
	Count     int          `json:"count"`
	Timestamp int64        `json:"timestamp"`
}

type TypingEvent struct {
	RoomId      string `json:"room_id,omitempty"`
	UserId      int64  `json:"user_id"`
	Username    string `json:"username,omitempty"`
	RecipientId int64  `json:"recipient_id,omitempty"`
	IsTyping    bool   `json:"is_typing"`
}

type StatusEvent struct {
	UserId    int64  `json:"user_id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// MentionEvent notifies a mentioned user about a new message.
type MentionEvent struct {
	MessageId      int64  `json:"message_id"`
	SenderId       int64  `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	Content        string `json:"content"`
	ChatType       string `json:"chat_type"` // "PRIVATE" or "PUBLIC"
	RoomId         string `json:"room_id"`
}

// ReactionRemovedEvent is the removal payload broadcast when a reaction
// is deleted.
type ReactionRemovedEvent struct {
	ReactionId int64  `json:"reaction_id"`
	MessageId  int64  `json:"message_id"`
	UserId     int64  `json:"user_id"`
	Emoji      string `json:"emoji"`
}

// CallSignalEvent relays SDP/ICE signaling between the two parties of a
// private call.
type CallSignalEvent struct {
	Type           string `json:"type"`
	CallerId       int64  `json:"caller_id"`
	CallerUsername string `json:"caller_username"`
	CalleeId       int64  `json:"callee_id"`
	Sdp            string `json:"sdp,omitempty"`
	Candidate      string `json:"candidate,omitempty"`
	CallType       string `json:"call_type,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}
