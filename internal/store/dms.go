package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

var envelopePreloads = []string{"Sender", "Reactions.User", "Files"}

// CreateDMEnvelope stores an encrypted envelope verbatim.
func (s *Store) CreateDMEnvelope(ctx context.Context, env *model.DMEnvelope) error {
	return s.db.WithContext(ctx).Create(env).Error
}

// GetDMEnvelope fetches an envelope with payload associations.
func (s *Store) GetDMEnvelope(ctx context.Context, id int64) (*model.DMEnvelope, error) {
	return getByID[model.DMEnvelope](s.db, ctx, id, model.ErrEnvelopeNotFound, envelopePreloads...)
}

// UpdateDMEnvelope replaces the ciphertext fields of an existing envelope.
// The original timestamp is kept.
func (s *Store) UpdateDMEnvelope(ctx context.Context, id int64, iv, ciphertext, salt, iv2, wrappedMK string) (*model.DMEnvelope, error) {
	res := s.db.WithContext(ctx).Model(&model.DMEnvelope{}).Where("id = ?", id).
		Updates(map[string]any{
			"iv":         iv,
			"ciphertext": ciphertext,
			"salt":       salt,
			"iv2":        iv2,
			"wrapped_mk": wrappedMK,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, model.ErrEnvelopeNotFound
	}
	return s.GetDMEnvelope(ctx, id)
}

// DeleteDMEnvelope removes an envelope with its reactions and attachments.
func (s *Store) DeleteDMEnvelope(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dm_envelope_id = ?", id).Delete(&model.DMReaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dm_envelope_id = ?", id).Delete(&model.DMFile{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.DMEnvelope{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrEnvelopeNotFound
		}
		return nil
	})
}

// ListDMsBetween returns both directions of a pair's conversation in
// ascending time order.
func (s *Store) ListDMsBetween(ctx context.Context, a, b int64) ([]*model.DMEnvelope, error) {
	var envs []*model.DMEnvelope
	q := s.db.WithContext(ctx)
	for _, p := range envelopePreloads {
		q = q.Preload(p)
	}
	err := q.Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("timestamp asc, id asc").Find(&envs).Error
	if err != nil {
		return nil, err
	}
	return envs, nil
}

// DMPeer is one conversation partner with the latest envelope time.
type DMPeer struct {
	UserID        int64     `json:"user_id"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// ListDMPeers returns the distinct users the given user has exchanged
// envelopes with, most recent conversation first.
func (s *Store) ListDMPeers(ctx context.Context, userID int64) ([]DMPeer, error) {
	var peers []DMPeer
	err := s.db.WithContext(ctx).Raw(`
		SELECT peer AS user_id, MAX(ts) AS last_message_at FROM (
			SELECT recipient_id AS peer, timestamp AS ts FROM dm_envelope WHERE sender_id = ?
			UNION ALL
			SELECT sender_id AS peer, timestamp AS ts FROM dm_envelope WHERE recipient_id = ?
		) AS conv GROUP BY peer ORDER BY last_message_at DESC`, userID, userID).
		Scan(&peers).Error
	if err != nil {
		return nil, err
	}
	return peers, nil
}
