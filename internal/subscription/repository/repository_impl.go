package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/rebill/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(sub).Error
}

func (r *repository) Update(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(sub).Error
}

func (r *repository) FindByID(ctx context.Context, orgID, id string) (*domain.Subscription, error) {
	return r.find(r.db.WithContext(ctx), orgID, id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, orgID, id string) (*domain.Subscription, error) {
	tx := r.db.WithContext(ctx)
	// sqlite has no row locks; the in-memory test database serializes
	// writes anyway.
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(tx, orgID, id)
}

func (r *repository) find(tx *gorm.DB, orgID, id string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := tx.
		Preload("Plan").
		Preload("Customer").
		Preload("Customer.BillingEntity").
		Where("org_id = ? AND id = ?", orgID, id).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Subscription, error) {
	tx := r.db.WithContext(ctx).
		Preload("Plan").
		Preload("Customer").
		Preload("Customer.BillingEntity")

	if filter.OrgID != "" {
		tx = tx.Where("org_id = ?", filter.OrgID)
	}
	if filter.CustomerID != "" {
		tx = tx.Where("customer_id = ?", filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		tx = tx.Where("status IN ?", filter.Statuses)
	}
	if filter.SubscriptionAtBefore != nil {
		tx = tx.Where("subscription_at <= ?", *filter.SubscriptionAtBefore)
	}
	if filter.EndingBefore != nil {
		tx = tx.Where("ending_at IS NOT NULL AND ending_at <= ?", *filter.EndingBefore)
	}
	if filter.ActivationTimedOutBefore != nil {
		tx = tx.Where("activation_timeout_at IS NOT NULL AND activation_timeout_at <= ?", *filter.ActivationTimedOutBefore)
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}

	var subs []domain.Subscription
	if err := tx.Order("id").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
