package store

import (
	"context"

	"gorm.io/gorm"
)

// Package-internal generic helpers over the raw *gorm.DB. They fold the
// recurring concerns (context propagation, preloads, not-found mapping)
// out of the per-table files.

func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error, preloads ...string) (*T, error) {
	var result T
	q := db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

func getByID[T any](db *gorm.DB, ctx context.Context, id int64, notFoundErr error, preloads ...string) (*T, error) {
	return getByField[T](db, ctx, "id", id, notFoundErr, preloads...)
}

func deleteByID[T any](db *gorm.DB, ctx context.Context, id int64, notFoundErr error) error {
	var zero T
	result := db.WithContext(ctx).Where("id = ?", id).Delete(&zero)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFoundErr
	}
	return nil
}
