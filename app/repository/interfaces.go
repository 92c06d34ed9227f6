package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lapakdigital/lapakstore/app/models"
)

// ErrOutOfStock is returned by ClaimAndFulfill when the product has no
// unused credential left. This is a recognized business state, not a fault.
var ErrOutOfStock = errors.New("no unused credential available")

// ErrAlreadyFulfilled is returned by ClaimAndFulfill when the order already
// carries a delivered payload. Losing concurrent callers observe this and
// return the stored payload instead of claiming again.
var ErrAlreadyFulfilled = errors.New("order already fulfilled")

// OrderRepository defines the interface for order ledger operations
type OrderRepository interface {
	Create(order *models.Order) error
	GetByOrderID(orderID string) (*models.Order, error)
	ListPending(limit int) ([]models.Order, error)
	ListPendingOlderThan(cutoff time.Time, limit int) ([]models.Order, error)
	ListRecent(limit int) ([]models.Order, error)
	// MarkPaid transitions PENDING -> PAID; a no-op for any other status.
	MarkPaid(orderID string) error
	// ClaimAndFulfill atomically claims the oldest unused credential for the
	// order's product, binds it to the order and transitions the order to
	// FULFILLED with the payload set. Returns ErrAlreadyFulfilled or
	// ErrOutOfStock as business outcomes.
	ClaimAndFulfill(orderID string) (*models.Credential, error)
	Delete(orderID string) error
	CountByStatus(status string) (int64, error)
}

// CredentialRepository defines the interface for stock operations
type CredentialRepository interface {
	BulkCreate(productID uint, payloads []string) (int, error)
	CountUnused(productID uint) (int64, error)
	ListByProduct(productID uint, offset, limit int) ([]models.Credential, error)
	DeleteUnused(id uint) error
}

// ProductRepository defines the interface for product catalogue operations
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetBySlug(slug string) (*models.Product, error)
	Update(product *models.Product) error
	ListActive() ([]models.Product, error)
	List(offset, limit int) ([]models.Product, error)
	Count() (int64, error)
}

// BuyerRepository defines the interface for Telegram buyer records
type BuyerRepository interface {
	UpsertByTelegramID(telegramID int64, firstName, username string) (*models.Buyer, error)
	GetByID(id uint) (*models.Buyer, error)
	Count() (int64, error)
}

// UserRepository defines the interface for dashboard operator accounts
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
}

// Repositories bundles all repository implementations
type Repositories struct {
	Order      OrderRepository
	Credential CredentialRepository
	Product    ProductRepository
	Buyer      BuyerRepository
	User       UserRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:      NewOrderRepository(db),
		Credential: NewCredentialRepository(db),
		Product:    NewProductRepository(db),
		Buyer:      NewBuyerRepository(db),
		User:       NewUserRepository(db),
	}
}
