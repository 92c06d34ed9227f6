package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lapakdigital/lapakstore/app/models"
)

// buyerRepository implements the BuyerRepository interface
type buyerRepository struct {
	db *gorm.DB
}

// NewBuyerRepository creates a new buyer repository instance
func NewBuyerRepository(db *gorm.DB) BuyerRepository {
	return &buyerRepository{db: db}
}

// UpsertByTelegramID creates or refreshes the buyer row for a Telegram user.
func (r *buyerRepository) UpsertByTelegramID(telegramID int64, firstName, username string) (*models.Buyer, error) {
	buyer := &models.Buyer{
		TelegramID: telegramID,
		FirstName:  firstName,
		Username:   username,
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "telegram_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name",
			"username",
			"updated_at",
		}),
	}).Create(buyer).Error; err != nil {
		return nil, err
	}

	// Ensure ID is populated after upsert.
	if err := r.db.Where("telegram_id = ?", telegramID).First(buyer).Error; err != nil {
		return nil, err
	}
	return buyer, nil
}

func (r *buyerRepository) GetByID(id uint) (*models.Buyer, error) {
	var buyer models.Buyer
	err := r.db.First(&buyer, id).Error
	if err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *buyerRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Buyer{}).Count(&count).Error
	return count, err
}
