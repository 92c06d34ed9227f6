package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lapakdigital/lapakstore/app/models"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create persists a new order (status PENDING)
func (r *orderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByOrderID retrieves an order by its external order identifier
func (r *orderRepository) GetByOrderID(orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Buyer").Preload("Product").
		Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListPending returns up to limit PENDING orders, oldest first
func (r *orderRepository) ListPending(limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Buyer").Preload("Product").
		Where("status = ?", models.OrderStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListPendingOlderThan returns PENDING orders created before cutoff
func (r *orderRepository) ListPendingOlderThan(cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Buyer").Preload("Product").
		Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListRecent returns the newest orders for the admin dashboard
func (r *orderRepository) ListRecent(limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Buyer").Preload("Product").
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// MarkPaid transitions PENDING -> PAID with a conditional update so that a
// concurrent fulfillment cannot be regressed.
func (r *orderRepository) MarkPaid(orderID string) error {
	return r.db.Model(&models.Order{}).
		Where("order_id = ? AND status = ?", orderID, models.OrderStatusPending).
		Update("status", models.OrderStatusPaid).Error
}

// ClaimAndFulfill runs the claim in a single transaction keyed on the order
// row. The FOR UPDATE lock on the order serializes concurrent fulfillment
// triggers (webhook, sweeps, manual checks) for the same order; the FOR
// UPDATE lock on the credential serializes claims across orders sharing a
// product pool.
func (r *orderRepository) ClaimAndFulfill(orderID string) (*models.Credential, error) {
	var claimed models.Credential

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).
			First(&order).Error; err != nil {
			return err
		}

		if order.Status == models.OrderStatusFulfilled {
			return ErrAlreadyFulfilled
		}

		var cred models.Credential
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND used = ?", order.ProductID, false).
			Order("created_at ASC, id ASC").
			First(&cred).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOutOfStock
			}
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Credential{}).
			Where("id = ? AND used = ?", cred.ID, false).
			Updates(map[string]interface{}{
				"used":     true,
				"used_at":  &now,
				"order_id": order.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the row despite the lock; treat as empty pool and let the
			// caller surface PAID_NO_STOCK rather than corrupt state.
			return ErrOutOfStock
		}

		if err := tx.Model(&models.Order{}).
			Where("id = ? AND status <> ?", order.ID, models.OrderStatusFulfilled).
			Updates(map[string]interface{}{
				"status":            models.OrderStatusFulfilled,
				"delivered_payload": cred.Payload,
			}).Error; err != nil {
			return err
		}

		cred.Used = true
		cred.UsedAt = &now
		oid := order.ID
		cred.OrderID = &oid
		claimed = cred
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

// Delete removes the order row entirely (failed/expired/unknown orders)
func (r *orderRepository) Delete(orderID string) error {
	return r.db.Where("order_id = ?", orderID).Delete(&models.Order{}).Error
}

// CountByStatus returns the number of orders in the given status
func (r *orderRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
