package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Product is a purchasable digital good. The fulfillment core reads it for
// id/price/active only; everything else is storefront display data.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	Slug        string    `gorm:"uniqueIndex;type:varchar(150);not null" json:"slug" validate:"required,min=2,max=150"`
	Description string    `gorm:"type:text" json:"description" validate:"max=2000"`
	PriceIDR    int64     `gorm:"not null" json:"price_idr" validate:"required,gt=0"`
	Active      bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) Validate() error {
	v := validator.New()

	return v.Struct(p)
}
