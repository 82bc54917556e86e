package store

import (
	"context"
	"time"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// CreateDeviceSession records a fresh login.
func (s *Store) CreateDeviceSession(ctx context.Context, sess *model.DeviceSession) error {
	return s.db.WithContext(ctx).Create(sess).Error
}

// GetDeviceSession fetches one session of a user by its opaque id.
func (s *Store) GetDeviceSession(ctx context.Context, userID int64, sessionID string) (*model.DeviceSession, error) {
	var sess model.DeviceSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).First(&sess).Error
	if err != nil {
		return nil, convertNotFoundError(err, model.ErrSessionNotFound)
	}
	return &sess, nil
}

// ListDeviceSessions returns a user's sessions, most recently seen first.
func (s *Store) ListDeviceSessions(ctx context.Context, userID int64) ([]*model.DeviceSession, error) {
	var sessions []*model.DeviceSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).Order("last_seen desc").Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// TouchDeviceSession slides the inactivity window.
func (s *Store) TouchDeviceSession(ctx context.Context, id int64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.DeviceSession{}).Where("id = ?", id).
		Update("last_seen", at).Error
}

// RevokeDeviceSession invalidates one session of a user.
func (s *Store) RevokeDeviceSession(ctx context.Context, userID int64, sessionID string) error {
	res := s.db.WithContext(ctx).Model(&model.DeviceSession{}).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

// RevokeOtherDeviceSessions invalidates every session of the user except
// the named one. Returns the number of revoked sessions.
func (s *Store) RevokeOtherDeviceSessions(ctx context.Context, userID int64, keepSessionID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.DeviceSession{}).
		Where("user_id = ? AND session_id <> ? AND revoked = ?", userID, keepSessionID, false).
		Update("revoked", true)
	return res.RowsAffected, res.Error
}

// RevokeAllDeviceSessions invalidates every session of the user.
func (s *Store) RevokeAllDeviceSessions(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Model(&model.DeviceSession{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}
