package chat

import (
	"context"
	"time"

	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/persistence"
	"github.com/wavechat/wavechat/router"
	"github.com/wavechat/wavechat/types"
	"github.com/wavechat/wavechat/userdir"
)

// MessageStore owns message lifecycle: send, edit, soft-delete, read
// state and retrieval. Persistence and the immediate routing decision
// are one logical unit: a send only succeeds once the message is stored
// and its destinations are resolved.
type MessageStore struct {
	persister   persistence.Persister
	rooms       *RoomDirectory
	directory   *userdir.Client
	broadcaster Broadcaster

	retentionWindow time.Duration
	pageSize        int
	maxPageSize     int
}

func NewMessageStore(cfg *config.Config, persister persistence.Persister, rooms *RoomDirectory, directory *userdir.Client, broadcaster Broadcaster) *MessageStore {
	return &MessageStore{
		persister:       persister,
		rooms:           rooms,
		directory:       directory,
		broadcaster:     broadcaster,
		retentionWindow: cfg.RetentionConfig.Window,
		pageSize:        cfg.HistoryConfig.PageSize,
		maxPageSize:     cfg.HistoryConfig.MaxPageSize,
	}
}

// messageEvent builds the outbound copy of a message. For private
// conversations the recipient id is recovered from the room id.
func messageEvent(msg *types.Message, senderUsername string) types.MessageEvent {
	event := types.MessageEvent{Message: msg, SenderUsername: senderUsername}
	if msg.Private() {
		if peer, err := types.PrivatePeer(msg.RoomId, msg.SenderId); err == nil {
			event.RecipientId = peer
		}
	}
	return event
}

// Send validates, persists and routes a new message.
//
// A send is private when an explicit recipient is present, when no room
// id is given, or when the room id already carries the private prefix.
// Room sends require posting rights in the room. Private sends are
// blocked when the recipient has ignored the sender; if the ignore
// lookup itself fails the send proceeds (the lookup falls back to "not
// ignored" for availability — an intentional, recorded exception to the
// check's blocking purpose).
//
// Room messages are broadcast to the room topic here. Private messages
// are not: their per-user queue fan-out is driven by the caller via
// DeliverPrivate, so nothing private ever reaches a topic.
func (s *MessageStore) Send(req types.SendMessageRequest, sender types.User) (*types.Message, error) {
	isPrivate := req.RecipientId != 0 || req.RoomId == "" || types.IsPrivateRoomId(req.RoomId)

	if isPrivate && req.RecipientId != 0 {
		ignored, err := s.directory.IsIgnored(context.Background(), req.RecipientId, sender.Id)
		if err != nil {
			globals.AppLogger.Error("ignore check failed, allowing send", "sender", sender.Id, "recipient", req.RecipientId, "error", err)
		}
		if ignored {
			globals.AppLogger.Warn("message blocked, recipient has ignored sender", "sender", sender.Id, "recipient", req.RecipientId)
			return nil, types.BadRequestf("recipient has restricted messages from user %d", sender.Id)
		}
	}

	if !isPrivate && req.RoomId != types.PublicRoomId {
		canPost, err := s.rooms.CanPost(req.RoomId, sender.Id)
		if err != nil {
			return nil, err
		}
		if !canPost {
			return nil, types.BadRequestf("user %d is not a member of room %s", sender.Id, req.RoomId)
		}
	}

	roomId := req.RoomId
	if roomId == "" {
		roomId = types.PrivateRoomId(sender.Id, req.RecipientId)
	}
	msgType := req.Type
	if msgType == "" {
		msgType = types.MessageTypeText
	}
	msg := &types.Message{
		RoomId:           roomId,
		SenderId:         sender.Id,
		Content:          req.Content,
		Type:             msgType,
		FileUrl:          req.FileUrl,
		FileName:         req.FileName,
		VoiceUrl:         req.VoiceUrl,
		VoiceDuration:    req.VoiceDuration,
		MentionedUserIds: types.Int64List(req.MentionedUserIds),
		CreatedAt:        time.Now(),
	}
	if err := s.persister.StoreMessage(msg); err != nil {
		return nil, err
	}
	globals.AppLogger.Info("message sent", "private", isPrivate, "room", msg.RoomId, "sender", sender.Id, "mentions", len(req.MentionedUserIds))

	dests, err := router.NewMessage(msg)
	if err != nil {
		return nil, err
	}

	s.notifyMentions(msg, sender, isPrivate)

	if !isPrivate {
		s.broadcaster.Deliver(dests, messageEvent(msg, sender.Username))
	}
	return msg, nil
}

// DeliverPrivate fans a private message out to both participants'
// message queues. Driven by the real-time caller after Send.
func (s *MessageStore) DeliverPrivate(msg *types.Message, senderUsername string) error {
	dests, err := router.NewMessage(msg)
	if err != nil {
		return err
	}
	s.broadcaster.Deliver(dests, messageEvent(msg, senderUsername))
	return nil
}

func (s *MessageStore) notifyMentions(msg *types.Message, sender types.User, isPrivate bool) {
	if len(msg.MentionedUserIds) == 0 {
		return
	}
	chatType := "PUBLIC"
	if isPrivate {
		chatType = "PRIVATE"
	}
	for _, dest := range router.Mentions(sender.Id, msg.MentionedUserIds) {
		s.broadcaster.Deliver([]router.Destination{dest}, types.MentionEvent{
			MessageId:      msg.Id,
			SenderId:       sender.Id,
			SenderUsername: sender.Username,
			Content:        msg.Content,
			ChatType:       chatType,
			RoomId:         msg.RoomId,
		})
	}
}

// Edit updates the content of a message. Only the original sender may
// edit, and deleted messages are immutable.
func (s *MessageStore) Edit(messageId int64, newContent string, editor types.User) (*types.Message, error) {
	msg, err := s.persister.GetMessage(messageId)
	if err != nil {
		return nil, err
	}
	if msg.SenderId != editor.Id {
		return nil, types.BadRequestf("user %d may only edit their own messages", editor.Id)
	}
	if msg.IsDeleted {
		return nil, types.BadRequestf("message %d is deleted and can not be edited", messageId)
	}
	now := time.Now()
	msg.Content = newContent
	msg.IsEdited = true
	msg.EditedAt = &now
	if err := s.persister.UpdateMessage(msg); err != nil {
		return nil, err
	}
	globals.AppLogger.Info("message edited", "message", messageId, "user", editor.Id)

	dests, err := router.MessageEdit(msg)
	if err != nil {
		return nil, err
	}
	s.broadcaster.Deliver(dests, messageEvent(msg, editor.Username))
	return msg, nil
}

// Delete soft-deletes a message: the content is replaced by the
// tombstone and no further edits are permitted. Only the original
// sender may delete.
func (s *MessageStore) Delete(messageId int64, deleter types.User) error {
	msg, err := s.persister.GetMessage(messageId)
	if err != nil {
		return err
	}
	if msg.SenderId != deleter.Id {
		return types.BadRequestf("user %d may only delete their own messages", deleter.Id)
	}
	msg.Content = types.Tombstone
	msg.IsDeleted = true
	if err := s.persister.UpdateMessage(msg); err != nil {
		return err
	}
	globals.AppLogger.Info("message deleted", "message", messageId, "user", deleter.Id)

	dests, err := router.MessageDelete(msg)
	if err != nil {
		return err
	}
	s.broadcaster.Deliver(dests, messageEvent(msg, deleter.Username))
	return nil
}

// MarkRoomRead marks all unread messages in the room that were not sent
// by userId as read with a shared timestamp, emitting one read receipt
// per message to that message's sender. Returns the number marked.
func (s *MessageStore) MarkRoomRead(roomId string, userId int64) (int, error) {
	unread, err := s.persister.UnreadMessages(roomId, userId)
	if err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}
	readAt := time.Now()
	for _, msg := range unread {
		msg.IsRead = true
		msg.ReadAt = &readAt
		if err := s.persister.UpdateMessage(msg); err != nil {
			return 0, err
		}
		s.broadcaster.Deliver(router.ReadReceipt(msg.SenderId), messageEvent(msg, ""))
	}
	globals.AppLogger.Info("marked messages read", "count", len(unread), "user", userId, "room", roomId)
	return len(unread), nil
}

// MarkRead is the single-message variant. Senders can not mark their
// own messages; an already-read message is a no-op success with no
// second receipt.
func (s *MessageStore) MarkRead(messageId, userId int64) (*types.Message, error) {
	msg, err := s.persister.GetMessage(messageId)
	if err != nil {
		return nil, err
	}
	if msg.SenderId == userId {
		return nil, types.BadRequestf("user %d can not mark their own message as read", userId)
	}
	if msg.IsRead {
		return msg, nil
	}
	readAt := time.Now()
	msg.IsRead = true
	msg.ReadAt = &readAt
	if err := s.persister.UpdateMessage(msg); err != nil {
		return nil, err
	}
	s.broadcaster.Deliver(router.ReadReceipt(msg.SenderId), messageEvent(msg, ""))
	return msg, nil
}

// RoomMessages retrieves room history. The well-known public room is
// not paginated: it returns everything inside the trailing retention
// window. All other rooms page newest-first.
func (s *MessageStore) RoomMessages(roomId string, page, size int) ([]*types.Message, error) {
	if roomId == types.PublicRoomId {
		return s.persister.MessagesSince(roomId, time.Now().Add(-s.retentionWindow))
	}
	if size <= 0 {
		size = s.pageSize
	}
	if size > s.maxPageSize {
		size = s.maxPageSize
	}
	if page < 0 {
		page = 0
	}
	return s.persister.RoomMessages(roomId, page, size)
}

// MessagesSince returns all messages of a room created strictly after
// the given timestamp.
func (s *MessageStore) MessagesSince(roomId string, since time.Time) ([]*types.Message, error) {
	return s.persister.MessagesSince(roomId, since)
}

// PrivateMessages returns the 1:1 history between two users. Both
// orderings of the room id are consulted because rows written before
// the canonical min/max derivation may carry the reversed form.
func (s *MessageStore) PrivateMessages(userA, userB int64) ([]*types.Message, error) {
	return s.persister.PrivateMessages(types.PrivateRoomId(userA, userB), types.LegacyPrivateRoomId(userA, userB))
}

func (s *MessageStore) MessageCount(roomId string) (int64, error) {
	return s.persister.CountMessages(roomId)
}
