package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/types"
)

// BuntPersist is the file-backed kv alternative to the SQL back ends.
// Messages are keyed by a zero-padded sequence so key order follows
// creation order.
type BuntPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("messages_created", "message:*", buntdb.IndexJSON("created_at"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return &BuntPersist{db: db}, nil
}

func messageKey(id int64) string { return fmt.Sprintf("message:%019d", id) }

func roomKey(id string) string { return "room:" + id }

func memberKey(roomId string, userId int64) string {
	return "member:" + roomId + ":" + strconv.FormatInt(userId, 10)
}
func reactionKey(messageId, userId int64, emoji string) string {
	return "reaction:" + strconv.FormatInt(messageId, 10) + ":" + strconv.FormatInt(userId, 10) + ":" + emoji
}

// nextSeq increments and returns the named sequence inside tx.
func nextSeq(tx *buntdb.Tx, name string) (int64, error) {
	key := "seq:" + name
	cur := int64(0)
	if v, err := tx.Get(key); err == nil {
		cur, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
	} else if err != buntdb.ErrNotFound {
		return 0, err
	}
	cur++
	_, _, err := tx.Set(key, strconv.FormatInt(cur, 10), nil)
	return cur, err
}

func (p *BuntPersist) StoreMessage(msg *types.Message) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		if msg.Id == 0 {
			id, err := nextSeq(tx, "message")
			if err != nil {
				return err
			}
			msg.Id = id
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		m, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(messageKey(msg.Id), string(m), nil)
		return err
	})
}

func (p *BuntPersist) GetMessage(id int64) (*types.Message, error) {
	msg := types.Message{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(messageKey(id))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(v), &msg)
	})
	if err == buntdb.ErrNotFound {
		return nil, types.NotFoundf("message %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (p *BuntPersist) UpdateMessage(msg *types.Message) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(messageKey(msg.Id)); err != nil {
			if err == buntdb.ErrNotFound {
				return types.NotFoundf("message %d", msg.Id)
			}
			return err
		}
		m, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(messageKey(msg.Id), string(m), nil)
		return err
	})
}

// scanMessages collects all messages matching keep, ascending by
// creation time via the messages_created index.
func (p *BuntPersist) scanMessages(keep func(*types.Message) bool) ([]*types.Message, error) {
	messages := make([]*types.Message, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		var scanErr error
		err := tx.Ascend("messages_created", func(key, value string) bool {
			msg := types.Message{}
			if scanErr = json.Unmarshal([]byte(value), &msg); scanErr != nil {
				return false
			}
			if keep(&msg) {
				messages = append(messages, &msg)
			}
			return true
		})
		if scanErr != nil {
			return scanErr
		}
		return err
	})
	return messages, err
}

func (p *BuntPersist) RoomMessages(roomId string, page, size int) ([]*types.Message, error) {
	messages, err := p.scanMessages(func(m *types.Message) bool {
		return m.RoomId == roomId && !m.IsDeleted
	})
	if err != nil {
		return nil, err
	}
	// index order is oldest first, pages are newest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	from := page * size
	if from >= len(messages) {
		return []*types.Message{}, nil
	}
	to := from + size
	if to > len(messages) {
		to = len(messages)
	}
	return messages[from:to], nil
}

func (p *BuntPersist) MessagesSince(roomId string, since time.Time) ([]*types.Message, error) {
	return p.scanMessages(func(m *types.Message) bool {
		return m.RoomId == roomId && !m.IsDeleted && m.CreatedAt.After(since)
	})
}

func (p *BuntPersist) PrivateMessages(roomIdA, roomIdB string) ([]*types.Message, error) {
	return p.scanMessages(func(m *types.Message) bool {
		return (m.RoomId == roomIdA || m.RoomId == roomIdB) && !m.IsDeleted
	})
}

func (p *BuntPersist) UnreadMessages(roomId string, excludeSender int64) ([]*types.Message, error) {
	return p.scanMessages(func(m *types.Message) bool {
		return m.RoomId == roomId && m.SenderId != excludeSender && !m.IsRead
	})
}

func (p *BuntPersist) CountMessages(roomId string) (int64, error) {
	messages, err := p.scanMessages(func(m *types.Message) bool {
		return m.RoomId == roomId && !m.IsDeleted
	})
	if err != nil {
		return 0, err
	}
	return int64(len(messages)), nil
}

func (p *BuntPersist) DeleteMessagesBefore(roomId string, cutoff time.Time) (int64, error) {
	old, err := p.scanMessages(func(m *types.Message) bool {
		return m.RoomId == roomId && m.CreatedAt.Before(cutoff)
	})
	if err != nil {
		return 0, err
	}
	if len(old) == 0 {
		return 0, nil
	}
	err = p.db.Update(func(tx *buntdb.Tx) error {
		for _, msg := range old {
			if _, err := tx.Delete(messageKey(msg.Id)); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(old)), nil
}

func (p *BuntPersist) StoreRoom(room *types.Room) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		if room.CreatedAt.IsZero() {
			room.CreatedAt = time.Now()
		}
		room.UpdatedAt = time.Now()
		r, err := json.Marshal(room)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(roomKey(room.Id), string(r), nil)
		return err
	})
}

func (p *BuntPersist) GetRoom(roomId string) (*types.Room, error) {
	room := types.Room{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(roomKey(roomId))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(v), &room)
	})
	if err == buntdb.ErrNotFound {
		return nil, types.NotFoundf("room %s", roomId)
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (p *BuntPersist) scanRooms(keep func(*types.Room) bool) ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		var scanErr error
		err := tx.AscendKeys("room:*", func(key, value string) bool {
			room := types.Room{}
			if scanErr = json.Unmarshal([]byte(value), &room); scanErr != nil {
				return false
			}
			if keep(&room) {
				rooms = append(rooms, &room)
			}
			return true
		})
		if scanErr != nil {
			return scanErr
		}
		return err
	})
	return rooms, err
}

func (p *BuntPersist) PublicRooms() ([]*types.Room, error) {
	return p.scanRooms(func(r *types.Room) bool {
		return r.Type == types.RoomTypePublic && r.IsActive
	})
}

func (p *BuntPersist) RoomsByMember(userId int64) ([]*types.Room, error) {
	roomIds := make(map[string]struct{})
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("member:*", func(key, value string) bool {
			member := types.RoomMember{}
			if json.Unmarshal([]byte(value), &member) == nil && member.UserId == userId {
				roomIds[member.RoomId] = struct{}{}
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return p.scanRooms(func(r *types.Room) bool {
		_, ok := roomIds[r.Id]
		return ok
	})
}

func (p *BuntPersist) AddMember(member *types.RoomMember) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		if member.Id == 0 {
			id, err := nextSeq(tx, "member")
			if err != nil {
				return err
			}
			member.Id = id
		}
		if member.JoinedAt.IsZero() {
			member.JoinedAt = time.Now()
		}
		m, err := json.Marshal(member)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(memberKey(member.RoomId, member.UserId), string(m), nil)
		return err
	})
}

func (p *BuntPersist) RemoveMember(roomId string, userId int64) error {
	err := p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(memberKey(roomId, userId))
		return err
	})
	if err == buntdb.ErrNotFound {
		return types.NotFoundf("membership %s/%d", roomId, userId)
	}
	return err
}

func (p *BuntPersist) IsMember(roomId string, userId int64) (bool, error) {
	found := false
	err := p.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(memberKey(roomId, userId))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err == nil {
			found = true
		}
		return err
	})
	return found, err
}

func (p *BuntPersist) RoomMembers(roomId string) ([]int64, error) {
	members := make([]*types.RoomMember, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("member:"+roomId+":*", func(key, value string) bool {
			member := types.RoomMember{}
			if json.Unmarshal([]byte(value), &member) == nil {
				members = append(members, &member)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserId)
	}
	return ids, nil
}

func (p *BuntPersist) CountMembers(roomId string) (int, error) {
	ids, err := p.RoomMembers(roomId)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (p *BuntPersist) AddReaction(reaction *types.Reaction) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		if reaction.Id == 0 {
			id, err := nextSeq(tx, "reaction")
			if err != nil {
				return err
			}
			reaction.Id = id
		}
		if reaction.CreatedAt.IsZero() {
			reaction.CreatedAt = time.Now()
		}
		r, err := json.Marshal(reaction)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(reactionKey(reaction.MessageId, reaction.UserId, reaction.Emoji), string(r), nil)
		return err
	})
}

func (p *BuntPersist) GetReaction(messageId, userId int64, emoji string) (*types.Reaction, error) {
	reaction := types.Reaction{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(reactionKey(messageId, userId, emoji))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(v), &reaction)
	})
	if err == buntdb.ErrNotFound {
		return nil, types.NotFoundf("reaction %d/%d/%s", messageId, userId, emoji)
	}
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (p *BuntPersist) DeleteReaction(messageId, userId int64, emoji string) error {
	err := p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(reactionKey(messageId, userId, emoji))
		return err
	})
	if err == buntdb.ErrNotFound {
		return types.NotFoundf("reaction %d/%d/%s", messageId, userId, emoji)
	}
	return err
}

func (p *BuntPersist) MessageReactions(messageId int64) ([]*types.Reaction, error) {
	reactions := make([]*types.Reaction, 0)
	prefix := "reaction:" + strconv.FormatInt(messageId, 10) + ":*"
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix, func(key, value string) bool {
			reaction := types.Reaction{}
			if json.Unmarshal([]byte(value), &reaction) == nil {
				reactions = append(reactions, &reaction)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(reactions, func(i, j int) bool {
		return reactions[i].CreatedAt.Before(reactions[j].CreatedAt)
	})
	return reactions, nil
}

func (p *BuntPersist) Close() error {
	return p.db.Close()
}
