// Package router resolves domain events to their delivery destinations.
// Resolution is pure: no I/O, no state, just the fan-out table. The ws
// hub is the thing that actually delivers to a Destination.
package router

import (
	"strconv"

	"github.com/wavechat/wavechat/types"
)

// Per-user queue names.
const (
	QueueMessages       = "messages"
	QueueTyping         = "typing"
	QueueReaction       = "message-reaction"
	QueueReactionRemove = "message-reaction-remove"
	QueueEdit           = "message-edit"
	QueueDelete         = "message-delete"
	QueueReadReceipt    = "read-receipt"
	QueueMentions       = "mentions"
	QueueCallSignal     = "call-signal"
)

// Global topics.
const (
	TopicActiveUsers = "active-users"
	TopicUserStatus  = "user-status"
)

// Destination is one concrete delivery target: either a topic (Topic set)
// or a per-user queue (UserId and Queue set).
type Destination struct {
	Topic  string
	UserId int64
	Queue  string
}

// Path renders the destination as its wire address. Outbound frames
// carry this as their event name.
func (d Destination) Path() string {
	if d.Topic != "" {
		return "/topic/" + d.Topic
	}
	return "/user/" + strconv.FormatInt(d.UserId, 10) + "/queue/" + d.Queue
}

func topic(name string) Destination { return Destination{Topic: name} }

func queue(userId int64, name string) Destination {
	return Destination{UserId: userId, Queue: name}
}

func roomTopic(roomId string) string { return "room/" + roomId }

// bothParticipants resolves a private room id to one queue destination
// per participant.
func bothParticipants(roomId, queueName string) ([]Destination, error) {
	a, b, err := types.ParsePrivateRoomId(roomId)
	if err != nil {
		return nil, err
	}
	return []Destination{queue(a, queueName), queue(b, queueName)}, nil
}

// NewMessage resolves the destinations of a freshly persisted message.
// Room and public messages go to the room topic. Private messages go to
// both participants' message queues and never to a topic, so a private
// conversation can not leak onto a room stream.
func NewMessage(msg *types.Message) ([]Destination, error) {
	if msg.Private() {
		return bothParticipants(msg.RoomId, QueueMessages)
	}
	return []Destination{topic(roomTopic(msg.RoomId))}, nil
}

// Mentions resolves one mention-queue destination per mentioned user,
// excluding self-mentions.
func Mentions(senderId int64, mentioned []int64) []Destination {
	dests := make([]Destination, 0, len(mentioned))
	for _, userId := range mentioned {
		if userId == senderId {
			continue
		}
		dests = append(dests, queue(userId, QueueMentions))
	}
	return dests
}

// MessageEdit resolves the destinations of an edit event.
func MessageEdit(msg *types.Message) ([]Destination, error) {
	if msg.Private() {
		return bothParticipants(msg.RoomId, QueueEdit)
	}
	return []Destination{topic(roomTopic(msg.RoomId) + "/edit")}, nil
}

// MessageDelete resolves the destinations of a delete event.
func MessageDelete(msg *types.Message) ([]Destination, error) {
	if msg.Private() {
		return bothParticipants(msg.RoomId, QueueDelete)
	}
	return []Destination{topic(roomTopic(msg.RoomId) + "/delete")}, nil
}

// ReactionAdd resolves the destinations of a new reaction on a message
// in roomId.
func ReactionAdd(roomId string) ([]Destination, error) {
	if types.IsPrivateRoomId(roomId) {
		return bothParticipants(roomId, QueueReaction)
	}
	return []Destination{topic(roomTopic(roomId) + "/reaction")}, nil
}

// ReactionRemove resolves the destinations of a reaction removal.
func ReactionRemove(roomId string) ([]Destination, error) {
	if types.IsPrivateRoomId(roomId) {
		return bothParticipants(roomId, QueueReactionRemove)
	}
	return []Destination{topic(roomTopic(roomId) + "/reaction-remove")}, nil
}

// ReadReceipt goes to the original sender only.
func ReadReceipt(senderId int64) []Destination {
	return []Destination{queue(senderId, QueueReadReceipt)}
}

// RoomTyping goes to the room's typing topic.
func RoomTyping(roomId string) []Destination {
	return []Destination{topic(roomTopic(roomId) + "/typing")}
}

// PrivateTyping goes to the recipient's typing queue only; the sender
// knows they are typing.
func PrivateTyping(recipientId int64) []Destination {
	return []Destination{queue(recipientId, QueueTyping)}
}

// RoomEvents is the per-room join/leave text event stream.
func RoomEvents(roomId string) []Destination {
	return []Destination{topic(roomTopic(roomId) + "/events")}
}

// PresenceEvents is the global presence stream: the public room's event
// topic.
func PresenceEvents() []Destination {
	return RoomEvents(types.PublicRoomId)
}

// ActiveUsers is the global snapshot topic.
func ActiveUsers() []Destination {
	return []Destination{topic(TopicActiveUsers)}
}

// UserStatus is the global status-change topic.
func UserStatus() []Destination {
	return []Destination{topic(TopicUserStatus)}
}

// CallSignal resolves call signaling to the callee's queue. Guests may
// not place calls and nobody may call themselves.
func CallSignal(caller types.User, calleeId int64) ([]Destination, error) {
	if caller.IsGuest {
		return nil, types.BadRequestf("guest user %d can not use calls", caller.Id)
	}
	if calleeId == 0 {
		return nil, types.BadRequestf("no callee given")
	}
	if calleeId == caller.Id {
		return nil, types.BadRequestf("user %d can not call themselves", caller.Id)
	}
	return []Destination{queue(calleeId, QueueCallSignal)}, nil
}
