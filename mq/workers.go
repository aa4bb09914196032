package mq

import (
	"context"
	"fmt"
	"log"

	"atelier/models"
)

type OrderSource interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
}

type StockKeeper interface {
	AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error)
}

type RatingKeeper interface {
	RecomputeRating(ctx context.Context, productID string) error
}

// OrderStockHandler takes ordered units out of stock when an order is placed
// and puts them back when it is cancelled. Products that fall to threshold
// or below are logged for restocking.
func OrderStockHandler(orders OrderSource, stock StockKeeper, threshold int) Handler {
	return func(ctx context.Context, ev models.Index) error {
		if ev.EntityType != "order" {
			return nil
		}
		sign := 0
		switch ev.Method {
		case "placed":
			sign = -1
		case "cancelled":
			sign = 1
		default:
			return nil
		}

		order, err := orders.GetByID(ctx, ev.EntityId)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		for _, it := range order.Items {
			p, err := stock.AdjustStock(ctx, it.ProductID, sign*it.Quantity)
			if err != nil {
				log.Printf("[OrderWorker] stock %s for order %s: %v", it.ProductID, order.OrderID, err)
				continue
			}
			if p.Stock <= threshold {
				log.Printf("[OrderWorker] low stock: %s (%s) has %d left", p.Name, p.ProductID, p.Stock)
			}
		}
		return nil
	}
}

// ReviewRatingHandler keeps product rating and review count in step with the
// reviews collection.
func ReviewRatingHandler(ratings RatingKeeper) Handler {
	return func(ctx context.Context, ev models.Index) error {
		if ev.EntityType != "review" || ev.ItemId == "" {
			return nil
		}
		return ratings.RecomputeRating(ctx, ev.ItemId)
	}
}
