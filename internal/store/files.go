package store

import (
	"context"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// AttachMessageFile records an attachment row for a public message.
func (s *Store) AttachMessageFile(ctx context.Context, messageID int64, filePath, fileName string) (*model.MessageFile, error) {
	f := &model.MessageFile{MessageID: messageID, FilePath: filePath, FileName: fileName}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// AttachDMFile records an encrypted attachment row for an envelope.
func (s *Store) AttachDMFile(ctx context.Context, envelopeID int64, filePath, fileName string) (*model.DMFile, error) {
	f := &model.DMFile{DMEnvelopeID: envelopeID, FilePath: filePath, FileName: fileName}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}
