package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

// ProductRepository serialises mutations per product, standing in for Firestore transactions.
type ProductRepository struct {
	mu       sync.Mutex
	products map[string]domain.Product
	locks    map[string]*sync.Mutex
	failures map[string]error
	mutates  int
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

func NewProductRepository(products ...domain.Product) *ProductRepository {
	repo := &ProductRepository{
		products: map[string]domain.Product{},
		locks:    map[string]*sync.Mutex{},
		failures: map[string]error{},
	}
	for _, p := range products {
		repo.Put(p)
	}
	return repo
}

// Put stores or replaces a product.
func (r *ProductRepository) Put(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = cloneProduct(product)
}

// Get returns a copy of the stored product.
func (r *ProductRepository) Get(productID string) (domain.Product, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	return cloneProduct(p), ok
}

// FailWith makes every Mutate on productID return err. A nil err clears the failure.
func (r *ProductRepository) FailWith(productID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, productID)
		return
	}
	r.failures[productID] = err
}

// Mutations reports how many Mutate calls reached an existing product.
func (r *ProductRepository) Mutations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutates
}

func (r *ProductRepository) Mutate(ctx context.Context, productID string, fn repositories.ProductMutation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	if err := r.failures[productID]; err != nil {
		r.mu.Unlock()
		return false, err
	}
	lock, ok := r.locks[productID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[productID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	current, found := r.Get(productID)
	if !found {
		return false, nil
	}

	r.mu.Lock()
	r.mutates++
	r.mu.Unlock()

	patch, err := fn(current)
	if err != nil {
		return true, err
	}
	next, err := applyPatch(current, patch)
	if err != nil {
		return true, err
	}
	r.Put(next)
	return true, nil
}

func applyPatch(product domain.Product, patch domain.ProductPatch) (domain.Product, error) {
	if patch.Quantities != nil {
		if !product.Variants || len(patch.Quantities) != len(product.Quantities) {
			return product, repositories.NewInventoryError("products.mutate", repositories.InventoryErrorInvalidPatch,
				fmt.Sprintf("product %s: variant quantities do not match stored shape", product.ID), nil)
		}
		product.Quantities = append([]int(nil), patch.Quantities...)
	} else if patch.Quantity != nil {
		if product.Variants {
			return product, repositories.NewInventoryError("products.mutate", repositories.InventoryErrorInvalidPatch,
				fmt.Sprintf("product %s: scalar quantity on a multi-variant product", product.ID), nil)
		}
		product.Quantity = *patch.Quantity
	}
	if patch.TotalSales != nil {
		product.TotalSales = *patch.TotalSales
	}
	return product, nil
}

func cloneProduct(p domain.Product) domain.Product {
	out := p
	out.Sizes = append([]string(nil), p.Sizes...)
	out.Quantities = append([]int(nil), p.Quantities...)
	out.Prices = append([]float64(nil), p.Prices...)
	return out
}
