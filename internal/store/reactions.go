package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// ToggleReaction adds the (message, user, emoji) reaction, or removes it
// when it already exists. The unique index turns concurrent duplicate adds
// into removals, keeping the toggle idempotent per state.
func (s *Store) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (string, error) {
	db := s.db.WithContext(ctx)

	var existing model.Reaction
	err := db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		First(&existing).Error
	switch {
	case err == nil:
		if err := db.Delete(&existing).Error; err != nil {
			return "", err
		}
		return model.ReactionRemoved, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		r := &model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
		if err := db.Create(r).Error; err != nil {
			if isUniqueConstraintError(err) {
				return "", model.ErrDuplicateReaction
			}
			return "", err
		}
		return model.ReactionAdded, nil
	default:
		return "", err
	}
}

// ListMessageReactions returns a message's reactions with their users, in
// insertion order.
func (s *Store) ListMessageReactions(ctx context.Context, messageID int64) ([]model.Reaction, error) {
	var reactions []model.Reaction
	err := s.db.WithContext(ctx).Preload("User").
		Where("message_id = ?", messageID).Order("id asc").Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// ToggleDMReaction mirrors ToggleReaction for envelopes.
func (s *Store) ToggleDMReaction(ctx context.Context, envelopeID, userID int64, emoji string) (string, error) {
	db := s.db.WithContext(ctx)

	var existing model.DMReaction
	err := db.Where("dm_envelope_id = ? AND user_id = ? AND emoji = ?", envelopeID, userID, emoji).
		First(&existing).Error
	switch {
	case err == nil:
		if err := db.Delete(&existing).Error; err != nil {
			return "", err
		}
		return model.ReactionRemoved, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		r := &model.DMReaction{DMEnvelopeID: envelopeID, UserID: userID, Emoji: emoji}
		if err := db.Create(r).Error; err != nil {
			if isUniqueConstraintError(err) {
				return "", model.ErrDuplicateReaction
			}
			return "", err
		}
		return model.ReactionAdded, nil
	default:
		return "", err
	}
}

// ListDMReactions returns an envelope's reactions with their users.
func (s *Store) ListDMReactions(ctx context.Context, envelopeID int64) ([]model.DMReaction, error) {
	var reactions []model.DMReaction
	err := s.db.WithContext(ctx).Preload("User").
		Where("dm_envelope_id = ?", envelopeID).Order("id asc").Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}
