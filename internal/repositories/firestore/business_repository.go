package firestore

import (
	"context"
	"errors"
	"strings"

	pfirestore "github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/firestore"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

const defaultBusinessesCollection = "businesses"

// businessProfile carries no fields; only document presence matters.
type businessProfile struct{}

// BusinessRepository checks whether a seller has completed business onboarding.
type BusinessRepository struct {
	businesses *pfirestore.BaseRepository[businessProfile]
}

var _ repositories.BusinessRepository = (*BusinessRepository)(nil)

func NewBusinessRepository(provider *pfirestore.Provider, collection string) (*BusinessRepository, error) {
	if provider == nil {
		return nil, errors.New("business repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultBusinessesCollection
	}
	return &BusinessRepository{
		businesses: pfirestore.NewBaseRepository[businessProfile](provider, collection, nil),
	}, nil
}

// Exists reports whether businesses/{sellerID} is present.
func (r *BusinessRepository) Exists(ctx context.Context, sellerID string) (bool, error) {
	if strings.TrimSpace(sellerID) == "" {
		return false, errors.New("business repository: seller id is required")
	}
	return r.businesses.Exists(ctx, sellerID)
}
