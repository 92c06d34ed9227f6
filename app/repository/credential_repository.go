package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/lapakdigital/lapakstore/app/models"
)

// credentialRepository implements the CredentialRepository interface
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository instance
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

// BulkCreate inserts one credential per non-empty payload line and returns
// the number created. Admin stock entry pastes one payload per line.
func (r *credentialRepository) BulkCreate(productID uint, payloads []string) (int, error) {
	creds := make([]models.Credential, 0, len(payloads))
	for _, p := range payloads {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		creds = append(creds, models.Credential{
			ProductID: productID,
			Payload:   p,
		})
	}
	if len(creds) == 0 {
		return 0, nil
	}
	if err := r.db.Create(&creds).Error; err != nil {
		return 0, err
	}
	return len(creds), nil
}

// CountUnused returns the remaining stock for a product
func (r *credentialRepository) CountUnused(productID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Credential{}).
		Where("product_id = ? AND used = ?", productID, false).
		Count(&count).Error
	return count, err
}

// ListByProduct returns credentials for a product, oldest first
func (r *credentialRepository) ListByProduct(productID uint, offset, limit int) ([]models.Credential, error) {
	var creds []models.Credential
	err := r.db.Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&creds).Error
	return creds, err
}

// DeleteUnused removes a credential only while it is still unclaimed.
// Claimed credentials are permanently bound to their order and never deleted.
func (r *credentialRepository) DeleteUnused(id uint) error {
	res := r.db.Where("id = ? AND used = ?", id, false).Delete(&models.Credential{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
