package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidWindow = errors.New("invalid_window")

// MessageFilter selects messages of one tenant created in [From, To).
// A zero To leaves the window open-ended; an empty Direction matches both.
type MessageFilter struct {
	TenantID  snowflake.ID
	Direction string
	BotOnly   bool
	From      time.Time
	To        time.Time
}

// Repository exposes the aggregate reads usage accounting needs.
type Repository interface {
	// FindTenant returns nil without error when the tenant does not exist.
	FindTenant(ctx context.Context, tenantID snowflake.ID) (*Tenant, error)
	ListTenantIDs(ctx context.Context, afterID snowflake.ID, limit int) ([]snowflake.ID, error)

	CountMessages(ctx context.Context, filter MessageFilter) (int64, error)
	// CountProcessedDocuments counts processed documents whose updated_at
	// falls in [from, to).
	CountProcessedDocuments(ctx context.Context, tenantID snowflake.ID, from, to time.Time) (int64, error)
	// SumDocumentBytes totals file_size over every document of the tenant.
	SumDocumentBytes(ctx context.Context, tenantID snowflake.ID) (int64, error)
	CountConnectedConnections(ctx context.Context, tenantID snowflake.ID) (int64, error)
}
