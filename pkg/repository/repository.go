package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository is a thin generic gorm store used for collaborator tables.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
	Update(ctx context.Context, resourceID any, resource any) error
	Count(ctx context.Context, query *T, opts ...QueryOption) (int64, error)
}

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func Where(query any, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

func OrderBy(expr string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(expr)
	})
}

func Limit(n int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}

func Select(columns ...string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Select(columns)
	})
}
