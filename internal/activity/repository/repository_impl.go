package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/wadesk/internal/activity/domain"
	"github.com/smallbiznis/wadesk/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type activityRepo struct {
	db       *gorm.DB
	tenants  repository.Repository[activitydomain.Tenant]
	messages repository.Repository[activitydomain.Message]
	docs     repository.Repository[activitydomain.KnowledgeBaseDocument]
	conns    repository.Repository[activitydomain.WhatsAppConnection]
}

func Provide(p Params) activitydomain.Repository {
	return New(p.DB)
}

func New(db *gorm.DB) activitydomain.Repository {
	return &activityRepo{
		db:       db,
		tenants:  repository.ProvideStore[activitydomain.Tenant](db),
		messages: repository.ProvideStore[activitydomain.Message](db),
		docs:     repository.ProvideStore[activitydomain.KnowledgeBaseDocument](db),
		conns:    repository.ProvideStore[activitydomain.WhatsAppConnection](db),
	}
}

func (r *activityRepo) FindTenant(ctx context.Context, tenantID snowflake.ID) (*activitydomain.Tenant, error) {
	return r.tenants.FindOne(ctx, nil, repository.Where("id = ?", tenantID))
}

func (r *activityRepo) ListTenantIDs(ctx context.Context, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.tenants.Find(ctx, nil,
		repository.Select("id"),
		repository.Where("id > ?", afterID),
		repository.OrderBy("id ASC"),
		repository.Limit(limit),
	)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *activityRepo) CountMessages(ctx context.Context, filter activitydomain.MessageFilter) (int64, error) {
	if !filter.To.IsZero() && filter.To.Before(filter.From) {
		return 0, activitydomain.ErrInvalidWindow
	}

	opts := []repository.QueryOption{
		repository.Where("tenant_id = ?", filter.TenantID),
	}
	if direction := strings.TrimSpace(filter.Direction); direction != "" {
		opts = append(opts, repository.Where("direction = ?", direction))
	}
	if filter.BotOnly {
		opts = append(opts, repository.Where("is_bot_response = ?", true))
	}
	if !filter.From.IsZero() {
		opts = append(opts, repository.Where("created_at >= ?", filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		opts = append(opts, repository.Where("created_at < ?", filter.To.UTC()))
	}
	return r.messages.Count(ctx, nil, opts...)
}

func (r *activityRepo) CountProcessedDocuments(ctx context.Context, tenantID snowflake.ID, from, to time.Time) (int64, error) {
	if to.Before(from) {
		return 0, activitydomain.ErrInvalidWindow
	}
	return r.docs.Count(ctx, nil,
		repository.Where("tenant_id = ?", tenantID),
		repository.Where("is_processed = ?", true),
		repository.Where("updated_at >= ? AND updated_at < ?", from.UTC(), to.UTC()),
	)
}

func (r *activityRepo) SumDocumentBytes(ctx context.Context, tenantID snowflake.ID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(file_size), 0)
		 FROM knowledge_base_documents
		 WHERE tenant_id = ?`,
		tenantID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *activityRepo) CountConnectedConnections(ctx context.Context, tenantID snowflake.ID) (int64, error) {
	return r.conns.Count(ctx, nil,
		repository.Where("tenant_id = ?", tenantID),
		repository.Where("connection_status = ?", activitydomain.ConnectionStatusConnected),
	)
}
