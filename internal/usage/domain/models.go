// Package domain contains the daily usage aggregate and its derived views.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageRecord is the aggregate of one tenant's activity over one calendar day
// of the reference zone. Counts are replaced on every aggregation, never added.
type UsageRecord struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;uniqueIndex:ux_usage_records_tenant_date,priority:1" json:"tenant_id"`
	// Date is the start of the day in the reference zone, stored in UTC.
	Date                 time.Time `gorm:"not null;uniqueIndex:ux_usage_records_tenant_date,priority:2" json:"date"`
	MessagesSent         int64     `gorm:"not null" json:"messages_sent"`
	MessagesReceived     int64     `gorm:"not null" json:"messages_received"`
	AIRequests           int64     `gorm:"not null" json:"ai_requests"`
	KnowledgeBaseQueries int64     `gorm:"not null" json:"knowledge_base_queries"`
	// ActiveConnections is the connected count at aggregation time, not as of Date.
	ActiveConnections int64     `gorm:"not null" json:"active_connections"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// TotalMessages is the day's traffic in both directions.
func (r UsageRecord) TotalMessages() int64 {
	return r.MessagesSent + r.MessagesReceived
}
