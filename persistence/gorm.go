package persistence

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/types"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &GormPersist{db: db}, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(&types.Room{}, &types.RoomMember{}, &types.Message{}, &types.Reaction{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NotFoundf(format, args...)
	}
	return err
}

func (p *GormPersist) StoreMessage(msg *types.Message) error {
	return p.db.Create(msg).Error
}

func (p *GormPersist) GetMessage(id int64) (*types.Message, error) {
	msg := types.Message{}
	err := p.db.First(&msg, id).Error
	if err != nil {
		return nil, notFound(err, "message %d", id)
	}
	return &msg, nil
}

func (p *GormPersist) UpdateMessage(msg *types.Message) error {
	return p.db.Save(msg).Error
}

func (p *GormPersist) RoomMessages(roomId string, page, size int) ([]*types.Message, error) {
	messages := make([]*types.Message, 0)
	err := p.db.Where("room_id = ? AND is_deleted = ?", roomId, false).
		Order("created_at DESC").Limit(size).Offset(page * size).Find(&messages).Error
	return messages, err
}

func (p *GormPersist) MessagesSince(roomId string, since time.Time) ([]*types.Message, error) {
	messages := make([]*types.Message, 0)
	err := p.db.Where("room_id = ? AND created_at > ? AND is_deleted = ?", roomId, since, false).
		Order("created_at ASC").Find(&messages).Error
	return messages, err
}

func (p *GormPersist) PrivateMessages(roomIdA, roomIdB string) ([]*types.Message, error) {
	messages := make([]*types.Message, 0)
	err := p.db.Where("room_id IN ? AND is_deleted = ?", []string{roomIdA, roomIdB}, false).
		Order("created_at ASC").Find(&messages).Error
	return messages, err
}

func (p *GormPersist) UnreadMessages(roomId string, excludeSender int64) ([]*types.Message, error) {
	messages := make([]*types.Message, 0)
	err := p.db.Where("room_id = ? AND sender_id <> ? AND is_read = ?", roomId, excludeSender, false).
		Order("created_at ASC").Find(&messages).Error
	return messages, err
}

func (p *GormPersist) CountMessages(roomId string) (int64, error) {
	var count int64
	err := p.db.Model(&types.Message{}).
		Where("room_id = ? AND is_deleted = ?", roomId, false).Count(&count).Error
	return count, err
}

func (p *GormPersist) DeleteMessagesBefore(roomId string, cutoff time.Time) (int64, error) {
	res := p.db.Where("room_id = ? AND created_at < ?", roomId, cutoff).Delete(&types.Message{})
	return res.RowsAffected, res.Error
}

func (p *GormPersist) StoreRoom(room *types.Room) error {
	return p.db.Create(room).Error
}

func (p *GormPersist) GetRoom(roomId string) (*types.Room, error) {
	room := types.Room{}
	err := p.db.Where("id = ?", roomId).First(&room).Error
	if err != nil {
		return nil, notFound(err, "room %s", roomId)
	}
	return &room, nil
}

func (p *GormPersist) PublicRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Where("type = ? AND is_active = ?", types.RoomTypePublic, true).Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) RoomsByMember(userId int64) ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userId).Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) AddMember(member *types.RoomMember) error {
	return p.db.Create(member).Error
}

func (p *GormPersist) RemoveMember(roomId string, userId int64) error {
	res := p.db.Where("room_id = ? AND user_id = ?", roomId, userId).Delete(&types.RoomMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.NotFoundf("membership %s/%d", roomId, userId)
	}
	return nil
}

func (p *GormPersist) IsMember(roomId string, userId int64) (bool, error) {
	var count int64
	err := p.db.Model(&types.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomId, userId).Count(&count).Error
	return count > 0, err
}

func (p *GormPersist) RoomMembers(roomId string) ([]int64, error) {
	ids := make([]int64, 0)
	err := p.db.Model(&types.RoomMember{}).Where("room_id = ?", roomId).
		Order("joined_at ASC").Pluck("user_id", &ids).Error
	return ids, err
}

func (p *GormPersist) CountMembers(roomId string) (int, error) {
	var count int64
	err := p.db.Model(&types.RoomMember{}).Where("room_id = ?", roomId).Count(&count).Error
	return int(count), err
}

func (p *GormPersist) AddReaction(reaction *types.Reaction) error {
	return p.db.Create(reaction).Error
}

func (p *GormPersist) GetReaction(messageId, userId int64, emoji string) (*types.Reaction, error) {
	reaction := types.Reaction{}
	err := p.db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageId, userId, emoji).
		First(&reaction).Error
	if err != nil {
		return nil, notFound(err, "reaction %d/%d/%s", messageId, userId, emoji)
	}
	return &reaction, nil
}

func (p *GormPersist) DeleteReaction(messageId, userId int64, emoji string) error {
	res := p.db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageId, userId, emoji).
		Delete(&types.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.NotFoundf("reaction %d/%d/%s", messageId, userId, emoji)
	}
	return nil
}

func (p *GormPersist) MessageReactions(messageId int64) ([]*types.Reaction, error) {
	reactions := make([]*types.Reaction, 0)
	err := p.db.Where("message_id = ?", messageId).Order("created_at ASC").Find(&reactions).Error
	return reactions, err
}

func (p *GormPersist) Close() error {
	return nil
}
