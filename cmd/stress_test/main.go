package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-pipeline/internal/adapter/payment"
	"github.com/rl1809/order-pipeline/internal/adapter/queue"
	"github.com/rl1809/order-pipeline/internal/adapter/storage"
	"github.com/rl1809/order-pipeline/internal/core/domain"
	"github.com/rl1809/order-pipeline/internal/core/service"
)

const (
	productID     = "limited-drop-item"
	initialStock  = 20
	totalRequests = 50
	workerCount   = 10
	queueSize     = 100
)

func main() {
	ctx := context.Background()
	logger := zerolog.Nop()

	store := storage.NewMemoryStore()
	store.SeedProduct(domain.Product{
		ID:    productID,
		Name:  "Limited Drop Item",
		Price: decimal.NewFromFloat(49.90),
		Stock: initialStock,
	})

	registry := payment.NewRegistry(payment.NewIyzicoProvider(2 * time.Second))

	taskQueue := queue.NewMemoryQueue(queueSize)
	compensation := service.NewCompensationHandler(store, logger)
	taskQueue.StartWorkers(ctx, workerCount, compensation, logger)

	fulfillment := service.NewFulfillmentService(
		store, store, store, registry, taskQueue, store,
		service.FulfillmentOptions{},
		logger,
	)

	var completed, failed, soldOut atomic.Int32
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", id)

			order, err := fulfillment.PlaceOrder(ctx, userID, productID, 1, domain.MethodIyzico)
			switch {
			case err != nil:
				soldOut.Add(1)
			case order.Status == domain.OrderStatusCompleted:
				completed.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	taskQueue.Close()

	available, _ := store.AvailableStock(ctx, productID)
	product, _ := store.FindProduct(ctx, productID)

	fmt.Println("=== stress run ===")
	fmt.Printf("requests:        %d\n", totalRequests)
	fmt.Printf("completed/paid:  %d\n", completed.Load())
	fmt.Printf("failed payment:  %d\n", failed.Load())
	fmt.Printf("sold out:        %d\n", soldOut.Load())
	fmt.Printf("total stock:     %d\n", product.Stock)
	fmt.Printf("available stock: %d\n", available)
	fmt.Printf("elapsed:         %s\n", elapsed)

	if product.Stock < 0 || available < 0 {
		fmt.Println("INVARIANT VIOLATION: negative stock")
	}
}
