package models

import "time"

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusFulfilled = "FULFILLED"
	OrderStatusFailed    = "FAILED"
	OrderStatusCanceled  = "CANCELED"
)

const (
	PaymentProviderTripay   = "tripay"
	PaymentProviderMidtrans = "midtrans"
)

// Order tracks a purchase from creation through payment confirmation to
// credential delivery. Failed/expired/unknown orders are hard-deleted by the
// sweeper; FULFILLED orders are retained indefinitely.
//
// DeliveredPayload is non-nil if and only if Status is FULFILLED, and is set
// exactly once, inside the same transaction that claims the credential.
type Order struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrderID          string    `gorm:"uniqueIndex;type:varchar(64);not null" json:"order_id"`
	BuyerID          uint      `gorm:"not null;index" json:"buyer_id"`
	Buyer            Buyer     `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	ProductID        uint      `gorm:"not null;index" json:"product_id"`
	Product          Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	PriceIDR         int64     `gorm:"not null" json:"price_idr"`
	Provider         string    `gorm:"type:varchar(20);not null" json:"provider"`
	Reference        string    `gorm:"type:varchar(191)" json:"reference"`
	CheckoutURL      string    `gorm:"type:varchar(512)" json:"checkout_url"`
	Status           string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	DeliveredPayload *string   `gorm:"type:text" json:"delivered_payload,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFulfilled reports whether the credential has been delivered.
func (o *Order) IsFulfilled() bool {
	return o.Status == OrderStatusFulfilled
}

// Payload returns the delivered credential payload, empty when none is bound.
func (o *Order) Payload() string {
	if o.DeliveredPayload == nil {
		return ""
	}
	return *o.DeliveredPayload
}
