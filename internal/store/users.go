package store

import (
	"context"
	"time"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// CreateUser inserts a new account. Returns model.ErrDuplicateUsername
// when the username is taken.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return model.ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// GetUser fetches an account by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return getByID[model.User](s.db, ctx, id, model.ErrUserNotFound)
}

// GetUserByUsername fetches an account by its login name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return getByField[model.User](s.db, ctx, "username", username, model.ErrUserNotFound)
}

// ListUsers returns every account ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	if err := s.db.WithContext(ctx).Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountUsers reports the number of accounts, used for owner bootstrap.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// SetUserOnline updates presence and the last-seen mark.
func (s *Store) SetUserOnline(ctx context.Context, id int64, online bool, lastSeen time.Time) error {
	return s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"online": online, "last_seen": lastSeen}).Error
}

// UpdatePasswordHash swaps the stored bcrypt hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// SuspendUser flags the account and records the reason.
func (s *Store) SuspendUser(ctx context.Context, id int64, reason string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"suspended": true, "suspension_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// UnsuspendUser clears both suspension fields.
func (s *Store) UnsuspendUser(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"suspended": false, "suspension_reason": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// SetUserVerified stores the verification flag.
func (s *Store) SetUserVerified(ctx context.Context, id int64, verified bool) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("verified", verified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// MarkUserDeleted tombstones the account. Message and envelope rows stay;
// payload builders mask the identity.
func (s *Store) MarkUserDeleted(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"deleted": true, "online": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
