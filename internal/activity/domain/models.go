// Package domain holds the activity tables the usage subsystem reads from.
// They are owned by the tenant, messaging, knowledge base and connection
// surfaces; usage only runs aggregate queries against them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	ConnectionStatusConnected    = "connected"
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusPending      = "pending"
)

type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Plan      string       `gorm:"type:text;not null;default:'free'"`
	Settings  datatypes.JSONMap
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Tenant) TableName() string { return "tenants" }

type Message struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TenantID      snowflake.ID `gorm:"not null;index:idx_messages_tenant_created,priority:1"`
	ConnectionID  *snowflake.ID
	Direction     string `gorm:"type:text;not null"`
	IsBotResponse bool   `gorm:"not null;default:false"`
	Content       string `gorm:"type:text"`
	Metadata      datatypes.JSONMap
	CreatedAt     time.Time `gorm:"not null;index:idx_messages_tenant_created,priority:2"`
}

func (Message) TableName() string { return "messages" }

type KnowledgeBaseDocument struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	TenantID    snowflake.ID `gorm:"not null;index"`
	Title       string       `gorm:"type:text;not null"`
	FileName    string       `gorm:"type:text"`
	FileSize    *int64
	IsProcessed bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (KnowledgeBaseDocument) TableName() string { return "knowledge_base_documents" }

type WhatsAppConnection struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	TenantID         snowflake.ID `gorm:"not null;index"`
	PhoneNumber      string       `gorm:"type:text;not null"`
	DisplayName      string       `gorm:"type:text"`
	ConnectionStatus string       `gorm:"type:text;not null;default:'pending'"`
	CreatedAt        time.Time    `gorm:"not null"`
	UpdatedAt        time.Time    `gorm:"not null"`
}

func (WhatsAppConnection) TableName() string { return "whatsapp_connections" }

// Models lists the activity tables for schema setup.
func Models() []any {
	return []any{
		&Tenant{},
		&Message{},
		&KnowledgeBaseDocument{},
		&WhatsAppConnection{},
	}
}
