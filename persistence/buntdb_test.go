package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/types"
)

func newBuntTestPersister(t *testing.T) Persister {
	t.Helper()
	cfg := &config.Config{}
	cfg.PersistenceConfig.Type = "buntdb"
	cfg.PersistenceConfig.DSN = ":memory:"
	persister, err := NewBuntPersister(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { persister.Close() })
	return persister
}

func TestBuntMessageRoundtrip(t *testing.T) {
	p := newBuntTestPersister(t)

	msg := &types.Message{RoomId: types.PublicRoomId, SenderId: 1, Content: "hello", Type: types.MessageTypeText}
	if err := p.StoreMessage(msg); err != nil {
		t.Fatal(err)
	}
	assert.NotZero(t, msg.Id, "ids come from the sequence")
	assert.False(t, msg.CreatedAt.IsZero())

	got, err := p.GetMessage(msg.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "hello", got.Content)

	got.Content = "edited"
	got.IsEdited = true
	if err := p.UpdateMessage(got); err != nil {
		t.Fatal(err)
	}
	again, err := p.GetMessage(msg.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "edited", again.Content)

	_, err = p.GetMessage(99999)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestBuntRoomMessagesAndRetention(t *testing.T) {
	p := newBuntTestPersister(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		msg := &types.Message{
			RoomId:    types.PublicRoomId,
			SenderId:  1,
			Content:   string(rune('a' + i)),
			Type:      types.MessageTypeText,
			CreatedAt: base.Add(time.Duration(i) * 10 * time.Minute),
		}
		if err := p.StoreMessage(msg); err != nil {
			t.Fatal(err)
		}
	}

	page, err := p.RoomMessages(types.PublicRoomId, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, page, 2)
	assert.Equal(t, "d", page[0].Content, "newest first")

	since, err := p.MessagesSince(types.PublicRoomId, base.Add(15*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, since, 2)

	deleted, err := p.DeleteMessagesBefore(types.PublicRoomId, base.Add(15*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(2), deleted)

	count, err := p.CountMessages(types.PublicRoomId)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(2), count)
}

func TestBuntOrderFollowsCreationTime(t *testing.T) {
	p := newBuntTestPersister(t)

	// stored out of chronological order, backdated row second
	newer := &types.Message{RoomId: types.PublicRoomId, SenderId: 1, Content: "newer", Type: types.MessageTypeText, CreatedAt: time.Now()}
	older := &types.Message{RoomId: types.PublicRoomId, SenderId: 1, Content: "older", Type: types.MessageTypeText, CreatedAt: time.Now().Add(-time.Hour)}
	if err := p.StoreMessage(newer); err != nil {
		t.Fatal(err)
	}
	if err := p.StoreMessage(older); err != nil {
		t.Fatal(err)
	}

	page, err := p.RoomMessages(types.PublicRoomId, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, page, 2)
	assert.Equal(t, "newer", page[0].Content, "newest first regardless of insertion order")

	since, err := p.MessagesSince(types.PublicRoomId, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, since, 2)
	assert.Equal(t, "older", since[0].Content, "oldest first regardless of insertion order")
}

func TestBuntMembershipAndReactions(t *testing.T) {
	p := newBuntTestPersister(t)

	room := &types.Room{Id: "room-1", Name: "general", Type: types.RoomTypePublic, IsActive: true}
	if err := p.StoreRoom(room); err != nil {
		t.Fatal(err)
	}
	if err := p.AddMember(&types.RoomMember{RoomId: "room-1", UserId: 1, Role: types.RoleOwner}); err != nil {
		t.Fatal(err)
	}

	member, err := p.IsMember("room-1", 1)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, member)

	rooms, err := p.PublicRooms()
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, rooms, 1)

	rooms, err = p.RoomsByMember(1)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, rooms, 1)

	err = p.RemoveMember("room-1", 2)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	msg := &types.Message{RoomId: "room-1", SenderId: 1, Content: "x", Type: types.MessageTypeText}
	if err := p.StoreMessage(msg); err != nil {
		t.Fatal(err)
	}
	if err := p.AddReaction(&types.Reaction{MessageId: msg.Id, UserId: 2, Emoji: "👍"}); err != nil {
		t.Fatal(err)
	}
	reactions, err := p.MessageReactions(msg.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, reactions, 1)

	if err := p.DeleteReaction(msg.Id, 2, "👍"); err != nil {
		t.Fatal(err)
	}
	err = p.DeleteReaction(msg.Id, 2, "👍")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}
