package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Find(ctx context.Context, query *T, opts ...QueryOption) ([]*T, error) {
	var result []*T
	err := r.buildQuery(ctx, query, opts...).Find(&result).Error
	return result, err
}

// FindOne returns nil without error when no row matches.
func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...QueryOption) (*T, error) {
	var result T
	err := r.buildQuery(ctx, query, opts...).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *store[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(resources).Error
}

func (r *store[T]) Update(ctx context.Context, resourceID any, resource any) error {
	return r.db.WithContext(ctx).Model(new(T)).Where("id = ?", resourceID).Updates(resource).Error
}

func (r *store[T]) Count(ctx context.Context, query *T, opts ...QueryOption) (int64, error) {
	var count int64
	err := r.buildQuery(ctx, query, opts...).Model(new(T)).Count(&count).Error
	return count, err
}

func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...QueryOption) *gorm.DB {
	db := r.db.WithContext(ctx)
	if filter != nil {
		db = db.Where(filter)
	}
	for _, opt := range opts {
		db = opt.Apply(db)
	}
	return db
}
