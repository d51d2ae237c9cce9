package persistence

import (
	"time"

	"github.com/wavechat/wavechat/types"
)

// Persister is the storage contract of the chat domain. Absent rows are
// reported as types.ErrNotFound regardless of the back end.
type Persister interface {
	// messages
	StoreMessage(msg *types.Message) error
	GetMessage(id int64) (*types.Message, error)
	UpdateMessage(msg *types.Message) error
	// RoomMessages returns non-deleted messages of a room, newest first,
	// in offset/size pages.
	RoomMessages(roomId string, page, size int) ([]*types.Message, error)
	// MessagesSince returns non-deleted messages created strictly after
	// since, oldest first.
	MessagesSince(roomId string, since time.Time) ([]*types.Message, error)
	// PrivateMessages returns the merged non-deleted history of the two
	// given room ids, oldest first. Two ids are accepted because early
	// deployments stored private rooms under the reversed ordering, see
	// types.LegacyPrivateRoomId.
	PrivateMessages(roomIdA, roomIdB string) ([]*types.Message, error)
	// UnreadMessages returns unread messages in a room that were not sent
	// by excludeSender.
	UnreadMessages(roomId string, excludeSender int64) ([]*types.Message, error)
	CountMessages(roomId string) (int64, error)
	// DeleteMessagesBefore hard-deletes all messages of a room created
	// before cutoff and returns the number removed.
	DeleteMessagesBefore(roomId string, cutoff time.Time) (int64, error)

	// rooms and membership
	StoreRoom(room *types.Room) error
	GetRoom(roomId string) (*types.Room, error)
	PublicRooms() ([]*types.Room, error)
	RoomsByMember(userId int64) ([]*types.Room, error)
	AddMember(member *types.RoomMember) error
	RemoveMember(roomId string, userId int64) error
	IsMember(roomId string, userId int64) (bool, error)
	RoomMembers(roomId string) ([]int64, error)
	CountMembers(roomId string) (int, error)

	// reactions
	AddReaction(reaction *types.Reaction) error
	GetReaction(messageId, userId int64, emoji string) (*types.Reaction, error)
	DeleteReaction(messageId, userId int64, emoji string) error
	MessageReactions(messageId int64) ([]*types.Reaction, error)

	Close() error
}
