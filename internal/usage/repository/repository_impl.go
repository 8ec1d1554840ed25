package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type usageRepo struct {
	db *gorm.DB
}

func Provide(p Params) usagedomain.Repository {
	return New(p.DB)
}

func New(db *gorm.DB) usagedomain.Repository {
	return &usageRepo{db: db}
}

var overwrittenColumns = []string{
	"messages_sent",
	"messages_received",
	"ai_requests",
	"knowledge_base_queries",
	"active_connections",
	"updated_at",
}

// Upsert writes the record with a single INSERT .. ON CONFLICT statement so
// concurrent aggregations of the same day cannot race, then reads back the
// stored row to return its original id and created_at.
func (r *usageRepo) Upsert(ctx context.Context, record *usagedomain.UsageRecord) (*usagedomain.UsageRecord, error) {
	var stored usagedomain.UsageRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"},
				{Name: "date"},
			},
			DoUpdates: clause.AssignmentColumns(overwrittenColumns),
		}).Create(record).Error
		if err != nil {
			return err
		}

		return tx.
			Where("tenant_id = ? AND date = ?", record.TenantID, record.Date).
			Take(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *usageRepo) ListRange(ctx context.Context, tenantID snowflake.ID, start, end *time.Time) ([]usagedomain.UsageRecord, error) {
	stmt := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if start != nil {
		stmt = stmt.Where("date >= ?", start.UTC())
	}
	if end != nil {
		stmt = stmt.Where("date <= ?", end.UTC())
	}

	records := []usagedomain.UsageRecord{}
	if err := stmt.Order("date ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
