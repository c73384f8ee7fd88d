package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/config"
	pfirestore "github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/firestore"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

const firestorePingTimeout = 1500 * time.Millisecond

// RegistryOption customises NewRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	extraChecks []repositories.DependencyCheck
}

// WithHealthChecks appends readiness checks for dependencies outside Firestore, such as the
// event topic.
func WithHealthChecks(checks ...repositories.DependencyCheck) RegistryOption {
	return func(opts *registryOptions) {
		opts.extraChecks = append(opts.extraChecks, checks...)
	}
}

// Registry serves the Firestore-backed repositories sharing a single provider.
type Registry struct {
	provider   *pfirestore.Provider
	orders     *OrderRepository
	products   *ProductRepository
	businesses *BusinessRepository
	health     repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repositories over the configured collections. The Firestore check is
// always registered and marked critical.
func NewRegistry(provider *pfirestore.Provider, watch config.WatchConfig, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	var options registryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	orders, err := NewOrderRepository(provider, watch.OrdersCollection)
	if err != nil {
		return nil, fmt.Errorf("order repository: %w", err)
	}
	products, err := NewProductRepository(provider, watch.ProductsCollection)
	if err != nil {
		return nil, fmt.Errorf("product repository: %w", err)
	}
	businesses, err := NewBusinessRepository(provider, watch.BusinessesCollection)
	if err != nil {
		return nil, fmt.Errorf("business repository: %w", err)
	}

	pingCollection := watch.OrdersCollection
	if pingCollection == "" {
		pingCollection = defaultOrdersCollection
	}
	checks := append([]repositories.DependencyCheck{{
		Name:     "firestore",
		Timeout:  firestorePingTimeout,
		Critical: true,
		Check: func(ctx context.Context) error {
			return provider.Ping(ctx, pingCollection)
		},
	}}, options.extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, fmt.Errorf("health repository: %w", err)
	}

	return &Registry{
		provider:   provider,
		orders:     orders,
		products:   products,
		businesses: businesses,
		health:     health,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Products() repositories.ProductRepository   { return r.products }
func (r *Registry) Businesses() repositories.BusinessRepository { return r.businesses }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
