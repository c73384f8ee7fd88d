package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/config"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories/memory"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/services"
)

func testConfig(sellerID string) config.Config {
	return config.Config{
		Environment: "test",
		Watch: config.WatchConfig{
			SellerID:         sellerID,
			Window:           50,
			ActivationRetry:  10 * time.Millisecond,
			ResubscribeDelay: 10 * time.Millisecond,
		},
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	_, err := NewContainer(testConfig(""), nil)
	require.Error(t, err)
}

func TestContainerStartAttachesConfiguredSeller(t *testing.T) {
	reg := memory.NewRegistry(nil, nil, memory.NewBusinessRepository("seller-1"))
	container, err := NewContainer(testConfig("seller-1"), reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	require.NoError(t, container.Start(context.Background()))

	handle := container.Services.Watcher.Current()
	require.NotNil(t, handle)
	assert.Equal(t, "seller-1", handle.SellerID())
	require.Eventually(t, func() bool {
		return handle.State() == services.WatcherActive
	}, 2*time.Second, 5*time.Millisecond)

	report, err := container.Services.System.HealthReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", report.Environment)
	assert.Equal(t, domain.HealthStatusOK, report.Checks["inventory_watcher"].Status)
	assert.Equal(t, domain.HealthStatusOK, report.Checks["memory"].Status)
}

func TestContainerStartWithoutSellerStaysIdle(t *testing.T) {
	container, err := NewContainer(testConfig(""), memory.NewRegistry(nil, nil, nil))
	require.NoError(t, err)

	require.NoError(t, container.Start(context.Background()))
	assert.Nil(t, container.Services.Watcher.Current())
	require.NoError(t, container.Close(context.Background()))
}

func TestContainerReconcilesThroughWiredServices(t *testing.T) {
	orders := memory.NewOrderRepository()
	products := memory.NewProductRepository(domain.Product{ID: "prod-1", SellerID: "seller-1", Quantity: 4})
	reg := memory.NewRegistry(orders, products, memory.NewBusinessRepository("seller-1"))

	container, err := NewContainer(testConfig(""), reg)
	require.NoError(t, err)

	orders.Put(domain.Order{
		ID:       "order-1",
		Status:   domain.OrderStatusToShip,
		Products: []domain.OrderLineItem{{ProductID: "prod-1", SellerID: "seller-1", Quantity: 1}},
		StatusLog: []domain.StatusLogEntry{
			{Status: domain.OrderStatusToShip, Time: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		},
	})

	result, err := container.Services.Reconciler.ReconcileOrder(context.Background(), "seller-1", "order-1")
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeApplied, result.Outcome)

	product, ok := products.Get("prod-1")
	require.True(t, ok)
	assert.Equal(t, 3, product.Quantity)
}

func TestContainerCloseIsNilSafe(t *testing.T) {
	var container *Container
	assert.NoError(t, container.Close(context.Background()))
}
