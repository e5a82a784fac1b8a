package domain

import "context"

// Repository reads plans. Plan writes happen through the catalog surface,
// not the billing core.
type Repository interface {
	FindByID(ctx context.Context, orgID, id string) (*Plan, error)
}
