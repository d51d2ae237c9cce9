package types

// Inbound real-time command verbs, one well-known destination per verb.
const (
	CommandSendMessage        = "chat.sendMessage"
	CommandSendPrivateMessage = "chat.sendPrivateMessage"
	CommandTyping             = "chat.typing"
	CommandPrivateTyping      = "chat.privateTyping"
	CommandJoinRoom           = "chat.join"
	CommandLeaveRoom          = "chat.leave"
	CommandMarkAsRead         = "chat.markAsRead"
	CommandEditMessage        = "chat.editMessage"
	CommandDeleteMessage      = "chat.deleteMessage"
	CommandAddReaction        = "chat.addReaction"
	CommandRemoveReaction     = "chat.removeReaction"
	CommandRequestActiveUsers = "chat.requestActiveUsers"
	CommandUserStatus         = "user.status"
	CommandCallSignal         = "call.signal"
)

// One request variant per command. The ws layer decodes the raw payload
// map into the matching variant (mapstructure.WeakDecode) before any
// domain logic runs, so stringly-keyed maps never cross that boundary.

type SendMessageRequest struct {
	RoomId           string      `json:"room_id" mapstructure:"room_id"`
	RecipientId      int64       `json:"recipient_id" mapstructure:"recipient_id"`
	Content          string      `json:"content" mapstructure:"content"`
	Type             MessageType `json:"type" mapstructure:"type"`
	FileUrl          string      `json:"file_url" mapstructure:"file_url"`
	FileName         string      `json:"file_name" mapstructure:"file_name"`
	VoiceUrl         string      `json:"voice_url" mapstructure:"voice_url"`
	VoiceDuration    int         `json:"voice_duration" mapstructure:"voice_duration"`
	MentionedUserIds []int64     `json:"mentioned_user_ids" mapstructure:"mentioned_user_ids"`
}

type EditMessageRequest struct {
	MessageId int64  `json:"message_id" mapstructure:"message_id"`
	Content   string `json:"content" mapstructure:"content"`
}

type DeleteMessageRequest struct {
	MessageId int64 `json:"message_id" mapstructure:"message_id"`
}

type MarkAsReadRequest struct {
	RoomId string `json:"room_id" mapstructure:"room_id"`
}

type ReactionRequest struct {
	MessageId int64  `json:"message_id" mapstructure:"message_id"`
	Emoji     string `json:"emoji" mapstructure:"emoji"`
}

type TypingRequest struct {
	RoomId   string `json:"room_id" mapstructure:"room_id"`
	IsTyping bool   `json:"is_typing" mapstructure:"is_typing"`
}

type PrivateTypingRequest struct {
	RecipientId int64 `json:"recipient_id" mapstructure:"recipient_id"`
	IsTyping    bool  `json:"is_typing" mapstructure:"is_typing"`
}

type RoomRequest struct {
	RoomId string `json:"room_id" mapstructure:"room_id"`
}

type StatusRequest struct {
	Status string `json:"status" mapstructure:"status"`
}

type CallSignalRequest struct {
	Type      string `json:"type" mapstructure:"type"`
	CalleeId  int64  `json:"callee_id" mapstructure:"callee_id"`
	Sdp       string `json:"sdp" mapstructure:"sdp"`
	Candidate string `json:"candidate" mapstructure:"candidate"`
	CallType  string `json:"call_type" mapstructure:"call_type"`
}
