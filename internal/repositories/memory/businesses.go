package memory

import (
	"context"
	"sync"

	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

// BusinessRepository is a set of seller ids with a completed business profile.
type BusinessRepository struct {
	mu      sync.Mutex
	sellers map[string]struct{}
	lookups int

	// Err, when set, fails every lookup.
	Err error
}

var _ repositories.BusinessRepository = (*BusinessRepository)(nil)

func NewBusinessRepository(sellerIDs ...string) *BusinessRepository {
	repo := &BusinessRepository{sellers: map[string]struct{}{}}
	for _, id := range sellerIDs {
		repo.sellers[id] = struct{}{}
	}
	return repo
}

// Add registers a business profile for sellerID.
func (r *BusinessRepository) Add(sellerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sellers[sellerID] = struct{}{}
}

// Lookups reports how many Exists calls were made.
func (r *BusinessRepository) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

func (r *BusinessRepository) Exists(ctx context.Context, sellerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if r.Err != nil {
		return false, r.Err
	}
	_, ok := r.sellers[sellerID]
	return ok, nil
}
