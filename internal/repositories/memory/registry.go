package memory

import (
	"context"

	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

// Registry bundles in-memory repositories for tests and local wiring.
type Registry struct {
	OrderRepo    *OrderRepository
	ProductRepo  *ProductRepository
	BusinessRepo *BusinessRepository
	health       repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires the given repositories. Nil arguments are replaced with empty ones.
func NewRegistry(orders *OrderRepository, products *ProductRepository, businesses *BusinessRepository) *Registry {
	if orders == nil {
		orders = NewOrderRepository()
	}
	if products == nil {
		products = NewProductRepository()
	}
	if businesses == nil {
		businesses = NewBusinessRepository()
	}
	health, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:  "memory",
		Check: func(context.Context) error { return nil },
	}})
	return &Registry{
		OrderRepo:    orders,
		ProductRepo:  products,
		BusinessRepo: businesses,
		health:       health,
	}
}

func (r *Registry) Orders() repositories.OrderRepository       { return r.OrderRepo }
func (r *Registry) Products() repositories.ProductRepository   { return r.ProductRepo }
func (r *Registry) Businesses() repositories.BusinessRepository { return r.BusinessRepo }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }

func (r *Registry) Close(context.Context) error { return nil }
