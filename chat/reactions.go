package chat

import (
	"errors"
	"time"

	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/persistence"
	"github.com/wavechat/wavechat/router"
	"github.com/wavechat/wavechat/types"
)

// ReactionLedger records emoji reactions on messages. One user may
// react with a given emoji at most once per message, but with any
// number of distinct emoji.
type ReactionLedger struct {
	persister   persistence.Persister
	broadcaster Broadcaster
}

func NewReactionLedger(persister persistence.Persister, broadcaster Broadcaster) *ReactionLedger {
	return &ReactionLedger{persister: persister, broadcaster: broadcaster}
}

// Add records a reaction and broadcasts it to the message's room (or to
// both participants of a private conversation).
func (l *ReactionLedger) Add(messageId, userId int64, emoji string) (*types.Reaction, error) {
	msg, err := l.persister.GetMessage(messageId)
	if err != nil {
		return nil, err
	}
	if _, err := l.persister.GetReaction(messageId, userId, emoji); err == nil {
		return nil, types.BadRequestf("user %d already reacted with %s on message %d", userId, emoji, messageId)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	reaction := &types.Reaction{
		MessageId: messageId,
		UserId:    userId,
		Emoji:     emoji,
		CreatedAt: time.Now(),
	}
	if err := l.persister.AddReaction(reaction); err != nil {
		return nil, err
	}
	globals.AppLogger.Debug("reaction added", "message", messageId, "user", userId, "emoji", emoji)

	dests, err := router.ReactionAdd(msg.RoomId)
	if err != nil {
		return nil, err
	}
	l.broadcaster.Deliver(dests, reaction)
	return reaction, nil
}

// Remove deletes a previously recorded reaction. Removing a reaction
// that does not exist is a NotFound.
func (l *ReactionLedger) Remove(messageId, userId int64, emoji string) error {
	msg, err := l.persister.GetMessage(messageId)
	if err != nil {
		return err
	}
	reaction, err := l.persister.GetReaction(messageId, userId, emoji)
	if err != nil {
		return err
	}
	if err := l.persister.DeleteReaction(messageId, userId, emoji); err != nil {
		return err
	}
	globals.AppLogger.Debug("reaction removed", "message", messageId, "user", userId, "emoji", emoji)

	dests, err := router.ReactionRemove(msg.RoomId)
	if err != nil {
		return err
	}
	l.broadcaster.Deliver(dests, types.ReactionRemovedEvent{
		ReactionId: reaction.Id,
		MessageId:  messageId,
		UserId:     userId,
		Emoji:      emoji,
	})
	return nil
}

// List returns all reactions on a message in insertion order.
func (l *ReactionLedger) List(messageId int64) ([]*types.Reaction, error) {
	return l.persister.MessageReactions(messageId)
}

// Summary aggregates a message's reactions per emoji, in the order the
// emoji first appeared. UserReacted is evaluated for forUserId.
func (l *ReactionLedger) Summary(messageId, forUserId int64) ([]types.ReactionSummary, error) {
	reactions, err := l.persister.MessageReactions(messageId)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(reactions))
	byEmoji := make(map[string]*types.ReactionSummary)
	for _, r := range reactions {
		summary, ok := byEmoji[r.Emoji]
		if !ok {
			order = append(order, r.Emoji)
			summary = &types.ReactionSummary{Emoji: r.Emoji}
			byEmoji[r.Emoji] = summary
		}
		summary.Count++
		if r.UserId == forUserId {
			summary.UserReacted = true
		}
	}
	summaries := make([]types.ReactionSummary, 0, len(order))
	for _, emoji := range order {
		summaries = append(summaries, *byEmoji[emoji])
	}
	return summaries, nil
}
