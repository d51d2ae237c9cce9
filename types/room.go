package types

import (
	"strconv"
	"strings"
	"time"
)

type RoomType string

const (
	RoomTypePublic  RoomType = "PUBLIC"
	RoomTypePrivate RoomType = "PRIVATE"
	RoomTypeGroup   RoomType = "GROUP"
)

// PublicRoomId is the well-known global room. It has no membership rows,
// everybody may post, and its messages are subject to retention sweeping.
const PublicRoomId = "public"

const privateRoomPrefix = "private_"

type Room struct {
	Id          string    `json:"room_id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description" gorm:"size:500"`
	Type        RoomType  `json:"type" gorm:"not null"`
	CreatedBy   int64     `json:"created_by" gorm:"not null"`
	IsActive    bool      `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// computed, not stored
	MemberCount int `json:"member_count" gorm:"-"`
}

type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

type RoomMember struct {
	Id       int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	RoomId   string     `json:"room_id" gorm:"uniqueIndex:idx_room_user;not null"`
	UserId   int64      `json:"user_id" gorm:"uniqueIndex:idx_room_user;not null"`
	Role     MemberRole `json:"role" gorm:"not null"`
	JoinedAt time.Time  `json:"joined_at" gorm:"autoCreateTime"`
}

// PrivateRoomId derives the room id of the 1:1 conversation between a and
// b. The smaller user id always comes first, so the id is independent of
// argument order. This function is the single source of truth for the
// private room id format, ParsePrivateRoomId is its inverse.
func PrivateRoomId(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return privateRoomPrefix + strconv.FormatInt(a, 10) + "_" + strconv.FormatInt(b, 10)
}

// LegacyPrivateRoomId is the reversed form of PrivateRoomId, the larger
// participant id first. Early deployments stored private rooms under
// this ordering, readers consult both forms.
func LegacyPrivateRoomId(a, b int64) string {
	if b > a {
		a, b = b, a
	}
	return privateRoomPrefix + strconv.FormatInt(a, 10) + "_" + strconv.FormatInt(b, 10)
}

// IsPrivateRoomId reports whether roomId addresses a 1:1 conversation.
func IsPrivateRoomId(roomId string) bool {
	return strings.HasPrefix(roomId, privateRoomPrefix)
}

// ParsePrivateRoomId decomposes a private room id into its two
// participant ids, in the order they appear in the id.
func ParsePrivateRoomId(roomId string) (int64, int64, error) {
	parts := strings.Split(roomId, "_")
	if len(parts) != 3 || parts[0]+"_" != privateRoomPrefix {
		return 0, 0, BadRequestf("malformed private room id %q", roomId)
	}
	a, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, BadRequestf("malformed private room id %q", roomId)
	}
	b, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, BadRequestf("malformed private room id %q", roomId)
	}
	return a, b, nil
}

// PrivatePeer returns the participant of a private room other than userId.
// If userId is not a participant, the first participant is returned, which
// mirrors how an outsider-visible copy would be addressed.
func PrivatePeer(roomId string, userId int64) (int64, error) {
	a, b, err := ParsePrivateRoomId(roomId)
	if err != nil {
		return 0, err
	}
	if userId == a {
		return b, nil
	}
	return a, nil
}
