package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	pfirestore "github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/firestore"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

const (
	defaultProductsCollection = "products"
	productQuantityField      = "quantity"
	productTotalSalesField    = "totalSales"
)

// ProductRepository applies stock and sales mutations to product documents.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[domain.Product]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository binds the repository to collection, defaulting to "products".
func NewProductRepository(provider *pfirestore.Provider, collection string) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultProductsCollection
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository(provider, collection, pfirestore.MapDecoder(decodeProduct)),
	}, nil
}

// Mutate reads the product, asks fn for a patch and writes it in the same transaction.
func (r *ProductRepository) Mutate(ctx context.Context, productID string, fn repositories.ProductMutation) (bool, error) {
	if fn == nil {
		return false, errors.New("product repository: mutation is required")
	}
	if strings.TrimSpace(productID) == "" {
		return false, errors.New("product repository: product id is required")
	}

	found := false
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		found = false
		ref, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if pfirestore.IsNotFound(err) {
				return nil
			}
			return err
		}
		if !snap.Exists() {
			return nil
		}
		found = true

		doc, err := r.products.Decode(ctx, snap)
		if err != nil {
			return err
		}
		patch, err := fn(doc.Data)
		if err != nil {
			return err
		}
		updates, err := productUpdates(doc.Data, patch)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return found, wrapInventoryError("products.mutate", err)
	}
	return found, nil
}

func productUpdates(product domain.Product, patch domain.ProductPatch) ([]firestore.Update, error) {
	if patch.IsEmpty() {
		return nil, nil
	}
	var updates []firestore.Update

	switch {
	case patch.Quantities != nil:
		if !product.Variants || len(patch.Quantities) != len(product.Quantities) {
			return nil, repositories.NewInventoryError("products.mutate", repositories.InventoryErrorInvalidPatch,
				fmt.Sprintf("product %s: variant quantities do not match stored shape", product.ID), nil)
		}
		values := make([]int64, len(patch.Quantities))
		for i, q := range patch.Quantities {
			values[i] = int64(q)
		}
		updates = append(updates, firestore.Update{Path: productQuantityField, Value: values})
	case patch.Quantity != nil:
		if product.Variants {
			return nil, repositories.NewInventoryError("products.mutate", repositories.InventoryErrorInvalidPatch,
				fmt.Sprintf("product %s: scalar quantity on a multi-variant product", product.ID), nil)
		}
		updates = append(updates, firestore.Update{Path: productQuantityField, Value: int64(*patch.Quantity)})
	}

	if patch.TotalSales != nil {
		updates = append(updates, firestore.Update{Path: productTotalSalesField, Value: int64(*patch.TotalSales)})
	}
	return updates, nil
}
