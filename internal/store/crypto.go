package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// UpsertCryptoPublicKey publishes or replaces a user's DM public key.
func (s *Store) UpsertCryptoPublicKey(ctx context.Context, userID int64, publicKey string) error {
	row := &model.CryptoPublicKey{UserID: userID, PublicKey: publicKey}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"public_key", "updated_at"}),
	}).Create(row).Error
}

// GetCryptoPublicKey fetches a user's published DM public key.
func (s *Store) GetCryptoPublicKey(ctx context.Context, userID int64) (*model.CryptoPublicKey, error) {
	return getByField[model.CryptoPublicKey](s.db, ctx, "user_id", userID, model.ErrKeyNotFound)
}

// UpsertCryptoBackup stores or replaces a user's encrypted key backup.
func (s *Store) UpsertCryptoBackup(ctx context.Context, userID int64, ciphertext, iv, salt string) error {
	row := &model.CryptoBackup{UserID: userID, Ciphertext: ciphertext, IV: iv, Salt: salt}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ciphertext", "iv", "salt", "updated_at"}),
	}).Create(row).Error
}

// GetCryptoBackup fetches a user's encrypted key backup.
func (s *Store) GetCryptoBackup(ctx context.Context, userID int64) (*model.CryptoBackup, error) {
	return getByField[model.CryptoBackup](s.db, ctx, "user_id", userID, model.ErrBackupNotFound)
}

// DeleteCryptoArtifacts removes a user's published key and backup, part of
// account deletion.
func (s *Store) DeleteCryptoArtifacts(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.CryptoPublicKey{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.CryptoBackup{}).Error
	})
}
