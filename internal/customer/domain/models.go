package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

var ErrCustomerNotFound = errors.New("customer_not_found")

// BillingEntity groups customers under a legal entity with its own timezone.
type BillingEntity struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	OrgID     string    `gorm:"column:org_id;index" json:"org_id"`
	Name      string    `gorm:"column:name" json:"name"`
	Timezone  string    `gorm:"column:timezone" json:"timezone"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (BillingEntity) TableName() string { return "billing_entities" }

// Customer is the party subscriptions are billed to.
type Customer struct {
	ID              string            `gorm:"column:id;primaryKey" json:"id"`
	OrgID           string            `gorm:"column:org_id;index" json:"org_id"`
	ExternalID      string            `gorm:"column:external_id;index" json:"external_id"`
	BillingEntityID string            `gorm:"column:billing_entity_id;index" json:"billing_entity_id"`
	Name            string            `gorm:"column:name" json:"name"`
	Email           string            `gorm:"column:email" json:"email"`
	Timezone        string            `gorm:"column:timezone" json:"timezone"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	BillingEntity *BillingEntity `gorm:"foreignKey:BillingEntityID" json:"billing_entity,omitempty"`
}

func (Customer) TableName() string { return "customers" }

// Location resolves the timezone used for billing-day decisions. The
// customer timezone wins, then the billing entity, then UTC.
func (c Customer) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	if c.BillingEntity != nil && c.BillingEntity.Timezone != "" {
		if loc, err := time.LoadLocation(c.BillingEntity.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}
