package store

import (
	"context"
	"time"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// AppendUpdateLog stores one flushed batch. A (user, sequence) conflict
// returns model.ErrDuplicateSequence; callers treat it as success because
// another writer already durably stored that sequence.
func (s *Store) AppendUpdateLog(ctx context.Context, userID, sequence int64, updatesJSON string) error {
	row := &model.UpdateLog{UserID: userID, Sequence: sequence, Updates: updatesJSON}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return model.ErrDuplicateSequence
		}
		return err
	}
	return nil
}

// ListUpdateLog returns the batches with afterSeq < sequence <= throughSeq
// in sequence order.
func (s *Store) ListUpdateLog(ctx context.Context, userID, afterSeq, throughSeq int64) ([]*model.UpdateLog, error) {
	var rows []*model.UpdateLog
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND sequence > ? AND sequence <= ?", userID, afterSeq, throughSeq).
		Order("sequence asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MaxLoggedSequences returns each user's highest stored sequence, used to
// seed the counters after a restart.
func (s *Store) MaxLoggedSequences(ctx context.Context) (map[int64]int64, error) {
	type row struct {
		UserID int64
		MaxSeq int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&model.UpdateLog{}).
		Select("user_id, MAX(sequence) AS max_seq").Group("user_id").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.MaxSeq
	}
	return out, nil
}

// PruneUpdateLog deletes batches older than the cutoff, always keeping
// each user's highest sequence so restarts keep counters monotonic.
func (s *Store) PruneUpdateLog(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		`DELETE FROM update_log WHERE created_at < ?
		 AND sequence < (SELECT MAX(u2.sequence) FROM update_log u2 WHERE u2.user_id = update_log.user_id)`,
		olderThan)
	return res.RowsAffected, res.Error
}
