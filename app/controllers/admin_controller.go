package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/cache"
	"github.com/lapakdigital/lapakstore/internal/pkg/format"
	"github.com/lapakdigital/lapakstore/internal/pkg/fulfillment"
	"github.com/lapakdigital/lapakstore/internal/pkg/sweeper"
)

// AdminController handles the operator dashboard using the repository pattern.
type AdminController struct {
	repos     *repository.Repositories
	fulfiller *fulfillment.Service
}

var adminController *AdminController

// InitializeAdminController wires the admin controller with its
// dependencies. Must be called during router setup.
func InitializeAdminController(repos *repository.Repositories, fulfiller *fulfillment.Service) {
	adminController = NewAdminController(repos, fulfiller)
}

func NewAdminController(repos *repository.Repositories, fulfiller *fulfillment.Service) *AdminController {
	return &AdminController{
		repos:     repos,
		fulfiller: fulfiller,
	}
}

func GetAdminController() *AdminController {
	return adminController
}

func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[Admin] %s: %v", message, err)
	fm := fiber.Map{
		"type":    "error",
		"message": message,
	}
	return flash.WithError(c, fm).Redirect("/admin")
}

// HandleDashboard renders order and stock counters plus the latest orders.
func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	pendingCount, err := ac.repos.Order.CountByStatus(models.OrderStatusPending)
	if err != nil {
		return ac.handleError(c, "Failed to count pending orders", err)
	}
	fulfilledCount, err := ac.repos.Order.CountByStatus(models.OrderStatusFulfilled)
	if err != nil {
		return ac.handleError(c, "Failed to count fulfilled orders", err)
	}
	productCount, err := ac.repos.Product.Count()
	if err != nil {
		return ac.handleError(c, "Failed to count products", err)
	}
	buyerCount, err := ac.repos.Buyer.Count()
	if err != nil {
		return ac.handleError(c, "Failed to count buyers", err)
	}

	recentOrders, err := ac.repos.Order.ListRecent(10)
	if err != nil {
		return ac.handleError(c, "Failed to load recent orders", err)
	}

	lastSweep, err := cache.Get(lastSweepCacheKey)
	if err != nil {
		lastSweep = ""
	}

	return c.Render("dashboard", fiber.Map{
		"Title":          "Dashboard",
		"Flash":          flash.Get(c),
		"PendingCount":   pendingCount,
		"FulfilledCount": fulfilledCount,
		"ProductCount":   productCount,
		"BuyerCount":     buyerCount,
		"LastSweep":      lastSweep,
		"RecentOrders":   ordersToRows(recentOrders),
	}, "layouts/admin")
}

// HandleProducts renders the catalogue with per-product stock levels.
func (ac *AdminController) HandleProducts(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := 20
	offset := (page - 1) * perPage

	total, err := ac.repos.Product.Count()
	if err != nil {
		return ac.handleError(c, "Failed to count products", err)
	}
	products, err := ac.repos.Product.List(offset, perPage)
	if err != nil {
		return ac.handleError(c, "Failed to load products", err)
	}

	type productRow struct {
		ID     uint
		Name   string
		Slug   string
		Price  string
		Stock  int64
		Active bool
	}
	rows := make([]productRow, 0, len(products))
	for _, p := range products {
		stock, err := ac.repos.Credential.CountUnused(p.ID)
		if err != nil {
			log.Errorf("[Admin] stock count for product %d failed: %v", p.ID, err)
		}
		rows = append(rows, productRow{
			ID:     p.ID,
			Name:   p.Name,
			Slug:   p.Slug,
			Price:  format.IDR(p.PriceIDR),
			Stock:  stock,
			Active: p.Active,
		})
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	return c.Render("products", fiber.Map{
		"Title":      "Produk",
		"Flash":      flash.Get(c),
		"Products":   rows,
		"Page":       page,
		"PrevPage":   page - 1,
		"NextPage":   page + 1,
		"TotalPages": totalPages,
	}, "layouts/admin")
}

// HandleProductForm renders an empty form or one pre-filled for editing.
func (ac *AdminController) HandleProductForm(c *fiber.Ctx) error {
	data := fiber.Map{
		"Title": "Produk Baru",
		"Flash": flash.Get(c),
	}

	if idParam := c.Params("id"); idParam != "" {
		id, err := strconv.ParseUint(idParam, 10, 32)
		if err != nil {
			return ac.handleError(c, "Invalid product id", err)
		}
		product, err := ac.repos.Product.GetByID(uint(id))
		if err != nil {
			return ac.handleError(c, "Product not found", err)
		}
		data["Title"] = "Edit Produk"
		data["Product"] = product
	}

	return c.Render("product_form", data, "layouts/admin")
}

// HandleProductSave creates or updates a product from the form post.
func (ac *AdminController) HandleProductSave(c *fiber.Ctx) error {
	price, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("price_idr")), 10, 64)
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "Harga harus berupa angka"}
		return flash.WithError(c, fm).Redirect("/admin/products")
	}

	product := &models.Product{
		Name:        strings.TrimSpace(c.FormValue("name")),
		Slug:        strings.TrimSpace(c.FormValue("slug")),
		Description: strings.TrimSpace(c.FormValue("description")),
		PriceIDR:    price,
		Active:      c.FormValue("active") == "on" || c.FormValue("active") == "true",
	}

	if idParam := c.FormValue("id"); idParam != "" {
		id, err := strconv.ParseUint(idParam, 10, 32)
		if err != nil {
			return ac.handleError(c, "Invalid product id", err)
		}
		existing, err := ac.repos.Product.GetByID(uint(id))
		if err != nil {
			return ac.handleError(c, "Product not found", err)
		}
		existing.Name = product.Name
		existing.Slug = product.Slug
		existing.Description = product.Description
		existing.PriceIDR = product.PriceIDR
		existing.Active = product.Active
		product = existing
	}

	if err := product.Validate(); err != nil {
		fm := fiber.Map{"type": "error", "message": fmt.Sprintf("Data produk tidak valid: %s", err)}
		return flash.WithError(c, fm).Redirect("/admin/products")
	}

	if product.ID == 0 {
		err = ac.repos.Product.Create(product)
	} else {
		err = ac.repos.Product.Update(product)
	}
	if err != nil {
		return ac.handleError(c, "Failed to save product", err)
	}

	fm := fiber.Map{"type": "success", "message": "Produk tersimpan"}
	return flash.WithSuccess(c, fm).Redirect("/admin/products")
}

// HandleCredentials renders the stock pool for one product with a bulk add
// form.
func (ac *AdminController) HandleCredentials(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return ac.handleError(c, "Invalid product id", err)
	}
	product, err := ac.repos.Product.GetByID(uint(id))
	if err != nil {
		return ac.handleError(c, "Product not found", err)
	}

	creds, err := ac.repos.Credential.ListByProduct(product.ID, 0, 200)
	if err != nil {
		return ac.handleError(c, "Failed to load credentials", err)
	}
	unused, err := ac.repos.Credential.CountUnused(product.ID)
	if err != nil {
		return ac.handleError(c, "Failed to count stock", err)
	}

	return c.Render("credentials", fiber.Map{
		"Title":       "Stok: " + product.Name,
		"Flash":       flash.Get(c),
		"Product":     product,
		"Credentials": creds,
		"Unused":      unused,
	}, "layouts/admin")
}

// HandleCredentialsAdd bulk-loads credentials, one per non-empty line.
func (ac *AdminController) HandleCredentialsAdd(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return ac.handleError(c, "Invalid product id", err)
	}
	if _, err := ac.repos.Product.GetByID(uint(id)); err != nil {
		return ac.handleError(c, "Product not found", err)
	}

	lines := strings.Split(c.FormValue("payloads"), "\n")
	added, err := ac.repos.Credential.BulkCreate(uint(id), lines)
	if err != nil {
		return ac.handleError(c, "Failed to add credentials", err)
	}
	invalidateStockCache(uint(id))

	fm := fiber.Map{"type": "success", "message": fmt.Sprintf("%d kredensial ditambahkan", added)}
	return flash.WithSuccess(c, fm).Redirect(fmt.Sprintf("/admin/products/%d/credentials", id))
}

// HandleCredentialDelete removes one credential if it is still unused.
func (ac *AdminController) HandleCredentialDelete(c *fiber.Ctx) error {
	productID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return ac.handleError(c, "Invalid product id", err)
	}
	credID, err := strconv.ParseUint(c.Params("credID"), 10, 32)
	if err != nil {
		return ac.handleError(c, "Invalid credential id", err)
	}

	if err := ac.repos.Credential.DeleteUnused(uint(credID)); err != nil {
		fm := fiber.Map{"type": "error", "message": "Kredensial sudah terpakai atau tidak ditemukan"}
		return flash.WithError(c, fm).Redirect(fmt.Sprintf("/admin/products/%d/credentials", productID))
	}
	invalidateStockCache(uint(productID))

	fm := fiber.Map{"type": "success", "message": "Kredensial dihapus"}
	return flash.WithSuccess(c, fm).Redirect(fmt.Sprintf("/admin/products/%d/credentials", productID))
}

// HandleOrders renders the most recent orders across all statuses.
func (ac *AdminController) HandleOrders(c *fiber.Ctx) error {
	orders, err := ac.repos.Order.ListRecent(100)
	if err != nil {
		return ac.handleError(c, "Failed to load orders", err)
	}

	return c.Render("orders", fiber.Map{
		"Title":  "Pesanan",
		"Flash":  flash.Get(c),
		"Orders": ordersToRows(orders),
	}, "layouts/admin")
}

// HandleOrderResend redelivers a fulfilled order's credential to the buyer.
// Recovery path for notification failures after the claim committed.
func (ac *AdminController) HandleOrderResend(c *fiber.Ctx) error {
	oid := c.Params("orderID")
	order, err := ac.repos.Order.GetByOrderID(oid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fm := fiber.Map{"type": "error", "message": "Pesanan tidak ditemukan"}
			return flash.WithError(c, fm).Redirect("/admin/orders")
		}
		return ac.handleError(c, "Failed to load order", err)
	}

	if err := ac.fulfiller.Resend(c.Context(), order); err != nil {
		fm := fiber.Map{"type": "error", "message": fmt.Sprintf("Gagal kirim ulang: %s", err)}
		return flash.WithError(c, fm).Redirect("/admin/orders")
	}

	log.Infof("[Admin] order %s credential resent to buyer %d", order.OrderID, order.Buyer.TelegramID)
	fm := fiber.Map{"type": "success", "message": "Kredensial dikirim ulang ke pembeli"}
	return flash.WithSuccess(c, fm).Redirect("/admin/orders")
}

// HandleSweepNow triggers one reconciliation sweep outside the schedule.
func (ac *AdminController) HandleSweepNow(c *fiber.Ctx) error {
	manager := sweeper.GetManager()
	if manager == nil {
		fm := fiber.Map{"type": "error", "message": "Sweeper belum aktif"}
		return flash.WithError(c, fm).Redirect("/admin/orders")
	}

	summary, err := manager.RunSweepOnce()
	if err != nil {
		return ac.handleError(c, "Sweep failed", err)
	}

	message := fmt.Sprintf("Sweep selesai: %d diproses, %d terpenuhi, %d dihapus, %d menunggu",
		summary.Processed, summary.Fulfilled, summary.Deleted, summary.Kept)
	if err := cache.Set(lastSweepCacheKey, message, 24*time.Hour); err != nil {
		log.Warnf("[Admin] sweep summary cache write failed: %v", err)
	}

	fm := fiber.Map{
		"type":    "success",
		"message": message,
	}
	return flash.WithSuccess(c, fm).Redirect("/admin/orders")
}

// lastSweepCacheKey holds the most recent manual sweep summary shown on the
// dashboard.
const lastSweepCacheKey = "sweeper:last_summary"

func invalidateStockCache(productID uint) {
	if err := cache.Delete(stockCacheKey(productID)); err != nil {
		log.Warnf("[Admin] stock cache invalidation for product %d failed: %v", productID, err)
	}
}

type orderRow struct {
	OrderID   string
	Buyer     string
	Product   string
	Price     string
	Provider  string
	Status    string
	CreatedAt string
}

func ordersToRows(orders []models.Order) []orderRow {
	rows := make([]orderRow, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, orderRow{
			OrderID:   o.OrderID,
			Buyer:     o.Buyer.DisplayName(),
			Product:   o.Product.Name,
			Price:     format.IDR(o.PriceIDR),
			Provider:  o.Provider,
			Status:    o.Status,
			CreatedAt: o.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return rows
}
