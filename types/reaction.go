package types

import "time"

// Reaction is one (message, user, emoji) triple. The triple is unique,
// adding the same emoji twice is a BadRequest.
type Reaction struct {
	Id        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageId int64     `json:"message_id" gorm:"uniqueIndex:idx_msg_user_emoji;not null"`
	UserId    int64     `json:"user_id" gorm:"uniqueIndex:idx_msg_user_emoji;not null"`
	Emoji     string    `json:"emoji" gorm:"uniqueIndex:idx_msg_user_emoji;size:16;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionSummary aggregates one emoji on one message. UserReacted is
// relative to the user requesting the summary.
type ReactionSummary struct {
	Emoji       string `json:"emoji"`
	Count       int64  `json:"count"`
	UserReacted bool   `json:"user_reacted"`
}
