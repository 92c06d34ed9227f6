package models

import "time"

// Credential is one unit of digital stock: an opaque payload (account login,
// license key) delivered to exactly one order. The unique index on OrderID
// enforces the one-credential-per-order binding at the database level; the
// composite product/used index serves the claim-oldest-unused query.
type Credential struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ProductID uint       `gorm:"not null;index:idx_credentials_product_used,priority:1" json:"product_id"`
	Payload   string     `gorm:"type:text;not null" json:"payload"`
	Used      bool       `gorm:"not null;default:false;index:idx_credentials_product_used,priority:2" json:"used"`
	UsedAt    *time.Time `gorm:"type:timestamp;default:null" json:"used_at,omitempty"`
	OrderID   *uint      `gorm:"uniqueIndex;default:null" json:"order_id,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
