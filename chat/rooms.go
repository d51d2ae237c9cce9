package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/persistence"
	"github.com/wavechat/wavechat/types"
)

// RoomDirectory manages room lifecycle and membership. Private 1:1
// conversations never get a Room row, they exist purely through the
// derived private room id.
type RoomDirectory struct {
	persister persistence.Persister
}

func NewRoomDirectory(persister persistence.Persister) *RoomDirectory {
	return &RoomDirectory{persister: persister}
}

// CreateRoom creates a room with a fresh identity, an OWNER membership
// for the creator and MEMBER memberships for the given user ids (the
// creator is deduplicated).
func (d *RoomDirectory) CreateRoom(name, description string, roomType types.RoomType, creatorId int64, memberIds []int64) (*types.Room, error) {
	room := &types.Room{
		Id:          uuid.NewString(),
		Name:        name,
		Description: description,
		Type:        roomType,
		CreatedBy:   creatorId,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := d.persister.StoreRoom(room); err != nil {
		return nil, err
	}
	owner := &types.RoomMember{RoomId: room.Id, UserId: creatorId, Role: types.RoleOwner}
	if err := d.persister.AddMember(owner); err != nil {
		return nil, err
	}
	seen := map[int64]struct{}{creatorId: {}}
	for _, memberId := range memberIds {
		if _, ok := seen[memberId]; ok {
			continue
		}
		seen[memberId] = struct{}{}
		member := &types.RoomMember{RoomId: room.Id, UserId: memberId, Role: types.RoleMember}
		if err := d.persister.AddMember(member); err != nil {
			return nil, err
		}
	}
	room.MemberCount = len(seen)
	globals.AppLogger.Info("created room", "room", room.Id, "creator", creatorId, "members", room.MemberCount)
	return room, nil
}

// GetRoom returns the room with its computed member count.
func (d *RoomDirectory) GetRoom(roomId string) (*types.Room, error) {
	room, err := d.persister.GetRoom(roomId)
	if err != nil {
		return nil, err
	}
	count, err := d.persister.CountMembers(roomId)
	if err != nil {
		return nil, err
	}
	room.MemberCount = count
	return room, nil
}

func (d *RoomDirectory) PublicRooms() ([]*types.Room, error) {
	return d.withCounts(d.persister.PublicRooms())
}

// UserRooms returns the rooms the user holds a membership in.
func (d *RoomDirectory) UserRooms(userId int64) ([]*types.Room, error) {
	return d.withCounts(d.persister.RoomsByMember(userId))
}

func (d *RoomDirectory) withCounts(rooms []*types.Room, err error) ([]*types.Room, error) {
	if err != nil {
		return nil, err
	}
	for _, room := range rooms {
		count, err := d.persister.CountMembers(room.Id)
		if err != nil {
			return nil, err
		}
		room.MemberCount = count
	}
	return rooms, nil
}

// JoinRoom adds a MEMBER membership. NotFound when the room does not
// exist, BadRequest when the membership already does.
func (d *RoomDirectory) JoinRoom(roomId string, userId int64) error {
	if _, err := d.persister.GetRoom(roomId); err != nil {
		return err
	}
	member, err := d.persister.IsMember(roomId, userId)
	if err != nil {
		return err
	}
	if member {
		return types.BadRequestf("user %d is already a member of room %s", userId, roomId)
	}
	err = d.persister.AddMember(&types.RoomMember{RoomId: roomId, UserId: userId, Role: types.RoleMember})
	if err != nil {
		return err
	}
	globals.AppLogger.Info("user joined room", "user", userId, "room", roomId)
	return nil
}

// LeaveRoom deletes the membership. NotFound when there is none.
func (d *RoomDirectory) LeaveRoom(roomId string, userId int64) error {
	member, err := d.persister.IsMember(roomId, userId)
	if err != nil {
		return err
	}
	if !member {
		return types.NotFoundf("user %d is not a member of room %s", userId, roomId)
	}
	if err := d.persister.RemoveMember(roomId, userId); err != nil {
		return err
	}
	globals.AppLogger.Info("user left room", "user", userId, "room", roomId)
	return nil
}

func (d *RoomDirectory) RoomMembers(roomId string) ([]int64, error) {
	return d.persister.RoomMembers(roomId)
}

func (d *RoomDirectory) IsMember(roomId string, userId int64) (bool, error) {
	return d.persister.IsMember(roomId, userId)
}

// CanPost decides whether userId may post into roomId. The well-known
// public room and PUBLIC-typed rooms are postable without a membership
// row, everything else needs one.
func (d *RoomDirectory) CanPost(roomId string, userId int64) (bool, error) {
	if roomId == types.PublicRoomId {
		return true, nil
	}
	room, err := d.persister.GetRoom(roomId)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return false, err
	}
	if err == nil && room.Type == types.RoomTypePublic {
		return true, nil
	}
	return d.persister.IsMember(roomId, userId)
}
