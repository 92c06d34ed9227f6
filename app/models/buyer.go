package models

import "time"

// Buyer is a Telegram customer. Rows are upserted from update payloads on
// every interaction, so names stay current without a profile page.
type Buyer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TelegramID int64     `gorm:"uniqueIndex;not null" json:"telegram_id"`
	FirstName  string    `gorm:"type:varchar(150)" json:"first_name"`
	Username   string    `gorm:"type:varchar(150)" json:"username"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DisplayName prefers the Telegram username, falling back to the first name.
func (b *Buyer) DisplayName() string {
	if b.Username != "" {
		return "@" + b.Username
	}
	if b.FirstName != "" {
		return b.FirstName
	}
	return "Telegram User"
}
