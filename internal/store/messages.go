package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// messagePreloads loads everything BuildMessagePayload renders, including
// a one-level reply preview.
var messagePreloads = []string{
	"Author",
	"Reactions.User",
	"Files",
	"ReplyTo.Author",
	"ReplyTo.Reactions.User",
	"ReplyTo.Files",
}

// CreateMessage inserts a public message and reloads it with payload
// associations.
func (s *Store) CreateMessage(ctx context.Context, userID int64, content string, replyToID *int64) (*model.Message, error) {
	msg := &model.Message{UserID: userID, Content: content, ReplyToID: replyToID}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, msg.ID)
}

// GetMessage fetches a public message with payload associations.
func (s *Store) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	return getByID[model.Message](s.db, ctx, id, model.ErrMessageNotFound, messagePreloads...)
}

// MessageExists reports whether a public message row exists.
func (s *Store) MessageExists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Message{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMessages returns the whole public room in ascending time order.
func (s *Store) ListMessages(ctx context.Context) ([]*model.Message, error) {
	var msgs []*model.Message
	q := s.db.WithContext(ctx)
	for _, p := range messagePreloads {
		q = q.Preload(p)
	}
	if err := q.Order("timestamp asc, id asc").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateMessageContent replaces the content and marks the message edited.
func (s *Store) UpdateMessageContent(ctx context.Context, id int64, content string) (*model.Message, error) {
	res := s.db.WithContext(ctx).Model(&model.Message{}).Where("id = ?", id).
		Updates(map[string]any{"content": content, "is_edited": true})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, model.ErrMessageNotFound
	}
	return s.GetMessage(ctx, id)
}

// DeleteMessage removes a message with its reactions and attachment rows.
func (s *Store) DeleteMessage(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&model.MessageFile{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Message{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrMessageNotFound
		}
		return nil
	})
}

// DeleteMessagesByIDs removes a batch of messages and their child rows in
// one transaction. Used for retroactive spam cleanup; missing ids are
// skipped. Returns the number of deleted messages.
func (s *Store) DeleteMessagesByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id IN ?", ids).Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN ?", ids).Delete(&model.MessageFile{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&model.Message{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
