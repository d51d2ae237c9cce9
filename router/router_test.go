package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavechat/wavechat/types"
)

func TestDestinationPath(t *testing.T) {
	assert.Equal(t, "/topic/room/public", Destination{Topic: "room/public"}.Path())
	assert.Equal(t, "/user/42/queue/messages", Destination{UserId: 42, Queue: QueueMessages}.Path())
	assert.Equal(t, "/user/-7/queue/mentions", Destination{UserId: -7, Queue: QueueMentions}.Path())
}

func TestNewMessageRoom(t *testing.T) {
	dests, err := NewMessage(&types.Message{RoomId: types.PublicRoomId})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []Destination{{Topic: "room/public"}}, dests)
}

func TestNewMessagePrivate(t *testing.T) {
	dests, err := NewMessage(&types.Message{RoomId: types.PrivateRoomId(2, 1), SenderId: 1})
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, dests, 2)
	for _, dest := range dests {
		assert.Empty(t, dest.Topic, "private messages must never hit a topic")
		assert.Equal(t, QueueMessages, dest.Queue)
	}
	assert.Equal(t, int64(1), dests[0].UserId)
	assert.Equal(t, int64(2), dests[1].UserId)
}

func TestNewMessageMalformedPrivate(t *testing.T) {
	_, err := NewMessage(&types.Message{RoomId: "private_x_y"})
	assert.Error(t, err)
}

func TestMentionsExcludeSelf(t *testing.T) {
	dests := Mentions(1, []int64{1, 2, 3})
	assert.Equal(t, []Destination{{UserId: 2, Queue: QueueMentions}, {UserId: 3, Queue: QueueMentions}}, dests)
}

func TestEditAndDelete(t *testing.T) {
	dests, err := MessageEdit(&types.Message{RoomId: "room-1"})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "/topic/room/room-1/edit", dests[0].Path())

	dests, err = MessageDelete(&types.Message{RoomId: types.PrivateRoomId(1, 2)})
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, dests, 2)
	assert.Equal(t, QueueDelete, dests[0].Queue)
}

func TestReactions(t *testing.T) {
	dests, err := ReactionAdd("room-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "/topic/room/room-1/reaction", dests[0].Path())

	dests, err = ReactionRemove(types.PrivateRoomId(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, dests, 2)
	assert.Equal(t, QueueReactionRemove, dests[0].Queue)
}

func TestReadReceipt(t *testing.T) {
	assert.Equal(t, []Destination{{UserId: 5, Queue: QueueReadReceipt}}, ReadReceipt(5))
}

func TestTyping(t *testing.T) {
	assert.Equal(t, "/topic/room/public/typing", RoomTyping(types.PublicRoomId)[0].Path())
	assert.Equal(t, "/user/9/queue/typing", PrivateTyping(9)[0].Path())
}

func TestPresenceAndGlobals(t *testing.T) {
	assert.Equal(t, "/topic/room/public/events", PresenceEvents()[0].Path())
	assert.Equal(t, "/topic/active-users", ActiveUsers()[0].Path())
	assert.Equal(t, "/topic/user-status", UserStatus()[0].Path())
}

func TestCallSignal(t *testing.T) {
	user := types.User{Id: 1, Username: "alice"}

	dests, err := CallSignal(user, 2)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "/user/2/queue/call-signal", dests[0].Path())

	_, err = CallSignal(types.User{Id: -3, IsGuest: true}, 2)
	assert.Error(t, err)
	_, err = CallSignal(user, 0)
	assert.Error(t, err)
	_, err = CallSignal(user, 1)
	assert.Error(t, err)
}
