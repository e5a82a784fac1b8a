package domain

import "context"

// Repository reads customers with their billing entity preloaded so
// timezone resolution never needs a second query.
type Repository interface {
	FindByID(ctx context.Context, orgID, id string) (*Customer, error)
}
