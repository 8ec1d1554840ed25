package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wadesk/internal/plan"
)

type Service interface {
	RecordDailyUsage(ctx context.Context, tenantID snowflake.ID, date time.Time) (*UsageRecord, error)
	GetUsageStatistics(ctx context.Context, tenantID snowflake.ID, startDate, endDate *time.Time) ([]UsageRecord, error)
	GetCurrentUsage(ctx context.Context, tenantID snowflake.ID) (CurrentUsageSnapshot, error)
	GenerateUsageReport(ctx context.Context, tenantID snowflake.ID, startDate, endDate time.Time) (UsageReport, error)
	CheckQuota(ctx context.Context, tenantID snowflake.ID) (QuotaStatus, error)
}

// Repository persists daily usage records.
type Repository interface {
	// Upsert inserts record or overwrites the counts of the existing row for
	// the same tenant and date, returning the stored row.
	Upsert(ctx context.Context, record *UsageRecord) (*UsageRecord, error)
	// ListRange returns records with start <= date <= end ordered by date
	// ascending. Nil bounds are open.
	ListRange(ctx context.Context, tenantID snowflake.ID, start, end *time.Time) ([]UsageRecord, error)
}

// CurrentUsageSnapshot is a live usage view computed from raw activity.
type CurrentUsageSnapshot struct {
	TenantID            snowflake.ID `json:"tenant_id"`
	Plan                string       `json:"plan"`
	MessagesToday       int64        `json:"messages_today"`
	MessagesThisMonth   int64        `json:"messages_this_month"`
	AIRequestsToday     int64        `json:"ai_requests_today"`
	AIRequestsThisMonth int64        `json:"ai_requests_this_month"`
	StorageUsedMB       int64        `json:"storage_used_mb"`
	PlanLimits          plan.Limits  `json:"plan_limits"`
	AsOf                time.Time    `json:"as_of"`
}

type UsageReport struct {
	TenantID       snowflake.ID `json:"tenant_id"`
	StartDate      time.Time    `json:"start_date"`
	EndDate        time.Time    `json:"end_date"`
	Summary        UsageSummary `json:"summary"`
	DailyBreakdown []DailyUsage `json:"daily_breakdown"`
}

type UsageSummary struct {
	TotalMessages    int64 `json:"total_messages"`
	TotalAIRequests  int64 `json:"total_ai_requests"`
	AvgDailyMessages int64 `json:"avg_daily_messages"`
	// PeakDay is nil when the range holds no records.
	PeakDay         *time.Time `json:"peak_day"`
	PeakDayMessages int64      `json:"peak_day_messages"`
}

type DailyUsage struct {
	Date             time.Time `json:"date"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	AIRequests       int64     `json:"ai_requests"`
}

const (
	QuotaMessages   = "messages"
	QuotaAIRequests = "ai_requests"
	QuotaStorageMB  = "storage_mb"
)

// QuotaUsage compares one monthly quota against its plan ceiling.
type QuotaUsage struct {
	Quota       string  `json:"quota"`
	Used        int64   `json:"used"`
	Limit       int64   `json:"limit"`
	Remaining   int64   `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
	Exceeded    bool    `json:"exceeded"`
}

type QuotaStatus struct {
	TenantID snowflake.ID `json:"tenant_id"`
	Plan     string       `json:"plan"`
	Quotas   []QuotaUsage `json:"quotas"`
	Exceeded bool         `json:"exceeded"`
	AsOf     time.Time    `json:"as_of"`
}

var (
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrTenantNotFound = errors.New("tenant_not_found")
	ErrInvalidDate    = errors.New("invalid_date")
)
