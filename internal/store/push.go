package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// UpsertPushSubscription stores or replaces a user's Web Push endpoint.
func (s *Store) UpsertPushSubscription(ctx context.Context, userID int64, endpoint, p256dh, auth string) error {
	row := &model.PushSubscription{UserID: userID, Endpoint: endpoint, P256dhKey: p256dh, AuthKey: auth}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "p256dh_key", "auth_key"}),
	}).Create(row).Error
}

// GetPushSubscription fetches a user's Web Push endpoint.
func (s *Store) GetPushSubscription(ctx context.Context, userID int64) (*model.PushSubscription, error) {
	return getByField[model.PushSubscription](s.db, ctx, "user_id", userID, model.ErrNoSubscription)
}

// DeletePushSubscriptions removes a user's Web Push endpoint.
func (s *Store) DeletePushSubscriptions(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.PushSubscription{}).Error
}

// ListPushSubscriptionsExcept returns all endpoints except the given
// user's, the public-room fan-out set.
func (s *Store) ListPushSubscriptionsExcept(ctx context.Context, excludeUserID int64) ([]*model.PushSubscription, error) {
	var subs []*model.PushSubscription
	err := s.db.WithContext(ctx).Where("user_id <> ?", excludeUserID).Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// SaveFcmToken registers a mobile push token, ignoring re-registrations.
func (s *Store) SaveFcmToken(ctx context.Context, userID int64, token string) error {
	row := &model.FcmToken{UserID: userID, Token: token}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil
		}
		return err
	}
	return nil
}

// DeleteFcmToken drops one mobile push token.
func (s *Store) DeleteFcmToken(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&model.FcmToken{}).Error
}

// ListFcmTokens returns a user's registered mobile tokens.
func (s *Store) ListFcmTokens(ctx context.Context, userID int64) ([]*model.FcmToken, error) {
	var tokens []*model.FcmToken
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// ListFcmTokensExcept returns all mobile tokens except the given user's.
func (s *Store) ListFcmTokensExcept(ctx context.Context, excludeUserID int64) ([]*model.FcmToken, error) {
	var tokens []*model.FcmToken
	err := s.db.WithContext(ctx).Where("user_id <> ?", excludeUserID).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
