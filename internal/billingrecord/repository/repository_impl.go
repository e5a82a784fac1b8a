package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/rebill/internal/billingrecord/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rec *domain.InvoiceSubscription) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) FindLatestRecurring(ctx context.Context, orgID, subscriptionID string) (*domain.InvoiceSubscription, error) {
	var rec domain.InvoiceSubscription
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND invoice_type = ? AND subscription_id = ?",
			orgID, domain.InvoiceTypeRecurring, subscriptionID).
		Order("timestamp DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) ListRecurringInWindow(ctx context.Context, orgID string, subscriptionIDs []string, from, to time.Time) ([]domain.InvoiceSubscription, error) {
	if len(subscriptionIDs) == 0 {
		return nil, nil
	}

	var recs []domain.InvoiceSubscription
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND invoice_type = ? AND subscription_id IN ? AND timestamp >= ? AND timestamp < ?",
			orgID, domain.InvoiceTypeRecurring, subscriptionIDs, from, to).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
