package types

import "time"

type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeFile   MessageType = "FILE"
	MessageTypeVoice  MessageType = "VOICE"
	MessageTypeSystem MessageType = "SYSTEM"
)

// Tombstone replaces the content of a soft-deleted message.
const Tombstone = "[Message deleted]"

type Message struct {
	Id       int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	RoomId   string      `json:"room_id" gorm:"index;not null"`
	SenderId int64       `json:"sender_id" gorm:"index;not null"`
	Content  string      `json:"content" gorm:"size:2000;not null"`
	Type     MessageType `json:"type" gorm:"not null"`

	FileUrl       string `json:"file_url,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	VoiceUrl      string `json:"voice_url,omitempty"`
	VoiceDuration int    `json:"voice_duration,omitempty"` // seconds

	MentionedUserIds Int64List `json:"mentioned_user_ids,omitempty"`

	IsEdited  bool       `json:"is_edited" gorm:"not null"`
	IsDeleted bool       `json:"is_deleted" gorm:"index;not null"`
	IsRead    bool       `json:"is_read" gorm:"not null"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

// Private reports whether the message lives in a 1:1 conversation.
func (m *Message) Private() bool {
	return IsPrivateRoomId(m.RoomId)
}
