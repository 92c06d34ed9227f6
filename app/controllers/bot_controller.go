package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/cache"
	"github.com/lapakdigital/lapakstore/internal/pkg/env"
	"github.com/lapakdigital/lapakstore/internal/pkg/format"
	"github.com/lapakdigital/lapakstore/internal/pkg/gateway"
	"github.com/lapakdigital/lapakstore/internal/pkg/orderid"
	"github.com/lapakdigital/lapakstore/internal/pkg/sweeper"
	"github.com/lapakdigital/lapakstore/internal/pkg/telegram"
	"github.com/lapakdigital/lapakstore/internal/pkg/throttle"
)

// checkCooldown is how long a buyer must wait between manual payment checks
// for the same order.
const checkCooldown = 10 * time.Second

// stockCacheTTL bounds how stale the menu's stock labels may get. The
// purchase path always reads the live pool.
const stockCacheTTL = 30 * time.Second

func stockCacheKey(productID uint) string {
	return fmt.Sprintf("stock:%d", productID)
}

// BotController drives the Telegram storefront: catalogue browsing, order
// creation and manual payment checks. Every update upserts the buyer so the
// ledger always has a notification target.
type BotController struct {
	repos    *repository.Repositories
	gw       gateway.Gateway
	tg       *telegram.Client
	sweep    *sweeper.Service
	throttle *throttle.Throttle
}

var botController *BotController

// InitializeBotController wires the bot controller. Must be called during
// router setup.
func InitializeBotController(repos *repository.Repositories, gw gateway.Gateway, tg *telegram.Client, sweep *sweeper.Service, thr *throttle.Throttle) {
	botController = NewBotController(repos, gw, tg, sweep, thr)
}

func NewBotController(repos *repository.Repositories, gw gateway.Gateway, tg *telegram.Client, sweep *sweeper.Service, thr *throttle.Throttle) *BotController {
	return &BotController{
		repos:    repos,
		gw:       gw,
		tg:       tg,
		sweep:    sweep,
		throttle: thr,
	}
}

// HandleTelegramWebhook is the package-level handler bound by the router.
func HandleTelegramWebhook(c *fiber.Ctx) error {
	if botController == nil {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}
	return botController.HandleTelegramWebhook(c)
}

// HandleTelegramWebhook accepts one Bot API update. Always answers 200 so
// Telegram does not retry updates we already logged as failed.
func (bc *BotController) HandleTelegramWebhook(c *fiber.Ctx) error {
	var update telegram.Update
	if err := c.BodyParser(&update); err != nil {
		log.Warnf("[Bot] unparseable update: %v", err)
		return c.JSON(fiber.Map{"ok": true})
	}

	switch {
	case update.Message != nil && update.Message.From != nil:
		bc.handleMessage(c, update.Message)
	case update.CallbackQuery != nil:
		bc.handleCallback(c, update.CallbackQuery)
	}

	return c.JSON(fiber.Map{"ok": true})
}

func (bc *BotController) handleMessage(c *fiber.Ctx, msg *telegram.Message) {
	buyer, err := bc.repos.Buyer.UpsertByTelegramID(msg.From.ID, msg.From.FirstName, msg.From.Username)
	if err != nil {
		log.Errorf("[Bot] buyer upsert for %d failed: %v", msg.From.ID, err)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		bc.sendMenu(c, buyer)
	case strings.HasPrefix(text, "/help"):
		bc.sendHelp(c, buyer)
	default:
		bc.sendMenu(c, buyer)
	}
}

func (bc *BotController) handleCallback(c *fiber.Ctx, cb *telegram.CallbackQuery) {
	buyer, err := bc.repos.Buyer.UpsertByTelegramID(cb.From.ID, cb.From.FirstName, cb.From.Username)
	if err != nil {
		log.Errorf("[Bot] buyer upsert for %d failed: %v", cb.From.ID, err)
		return
	}

	data := cb.Data
	switch {
	case data == "menu":
		bc.answer(c, cb.ID, "")
		bc.sendMenu(c, buyer)
	case strings.HasPrefix(data, "buy:"):
		bc.answer(c, cb.ID, "")
		bc.handleBuy(c, buyer, strings.TrimPrefix(data, "buy:"))
	case strings.HasPrefix(data, "check:"):
		bc.handleCheck(c, cb, buyer, strings.TrimPrefix(data, "check:"))
	default:
		bc.answer(c, cb.ID, "Perintah tidak dikenali")
	}
}

func (bc *BotController) sendMenu(c *fiber.Ctx, buyer *models.Buyer) {
	products, err := bc.repos.Product.ListActive()
	if err != nil {
		log.Errorf("[Bot] product list failed: %v", err)
		bc.send(c, buyer, "❌ Terjadi kesalahan. Silakan coba lagi.")
		return
	}

	storeName := env.GetEnv("STORE_NAME", "Lapak Store")
	if len(products) == 0 {
		bc.send(c, buyer, fmt.Sprintf(
			"👋 Halo <b>%s</b>!\n\nSelamat datang di <b>%s</b>.\n\n😔 Belum ada produk yang tersedia saat ini.",
			format.EscapeHTML(buyer.DisplayName()), format.EscapeHTML(storeName)))
		return
	}

	var rows [][]telegram.InlineKeyboardButton
	for _, p := range products {
		label := fmt.Sprintf("%s | %s | Stok: %d", p.Name, format.IDR(p.PriceIDR), bc.menuStock(p.ID))
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: label, CallbackData: "buy:" + p.Slug},
		})
	}

	text := fmt.Sprintf(
		"👋 Halo <b>%s</b>!\n\n"+
			"Selamat datang di <b>%s</b> 🛒\n"+
			"Silakan pilih produk di bawah untuk membeli:",
		format.EscapeHTML(buyer.DisplayName()), format.EscapeHTML(storeName))

	if err := bc.tg.SendWithKeyboard(c.Context(), buyer.TelegramID, text, telegram.InlineKeyboardMarkup{InlineKeyboard: rows}); err != nil {
		log.Errorf("[Bot] menu send to %d failed: %v", buyer.TelegramID, err)
	}
}

// menuStock returns the unused-credential count for a menu label, served
// from the cache when fresh. Admin stock changes invalidate the key.
func (bc *BotController) menuStock(productID uint) int64 {
	if cached, err := cache.GetInt(stockCacheKey(productID)); err == nil {
		return int64(cached)
	}

	stock, err := bc.repos.Credential.CountUnused(productID)
	if err != nil {
		log.Errorf("[Bot] stock count for product %d failed: %v", productID, err)
		return 0
	}
	if err := cache.Set(stockCacheKey(productID), stock, stockCacheTTL); err != nil {
		log.Warnf("[Bot] stock cache write for product %d failed: %v", productID, err)
	}
	return stock
}

func (bc *BotController) sendHelp(c *fiber.Ctx, buyer *models.Buyer) {
	bc.send(c, buyer,
		"ℹ️ <b>Cara Belanja</b>\n\n"+
			"1. Ketik /start untuk melihat daftar produk\n"+
			"2. Pilih produk yang ingin dibeli\n"+
			"3. Bayar lewat link atau QRIS yang dikirim\n"+
			"4. Produk dikirim otomatis setelah pembayaran dikonfirmasi\n\n"+
			"📞 Kontak admin: "+env.GetEnv("ADMIN_CONTACT", "@admin"))
}

func (bc *BotController) handleBuy(c *fiber.Ctx, buyer *models.Buyer, slug string) {
	product, err := bc.repos.Product.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			bc.send(c, buyer, "❌ Produk tidak ditemukan.")
			return
		}
		log.Errorf("[Bot] product lookup %s failed: %v", slug, err)
		bc.send(c, buyer, "❌ Terjadi kesalahan. Silakan coba lagi.")
		return
	}
	if !product.Active {
		bc.send(c, buyer, "❌ Produk sedang tidak tersedia.")
		return
	}

	stock, err := bc.repos.Credential.CountUnused(product.ID)
	if err == nil && stock == 0 {
		bc.send(c, buyer, fmt.Sprintf(
			"😔 Maaf, stok <b>%s</b> sedang habis.\nSilakan cek kembali nanti.",
			format.EscapeHTML(product.Name)))
		return
	}

	oid := orderid.New()
	baseURL := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	in := gateway.CreateInput{
		OrderID:      oid,
		AmountIDR:    product.PriceIDR,
		ItemName:     product.Name,
		CustomerName: buyer.DisplayName(),
		CallbackURL:  baseURL + "/payment/webhook",
		ReturnURL:    baseURL,
	}

	checkout, err := bc.gw.CreatePayLink(c.Context(), in)
	if err != nil {
		log.Errorf("[Bot] %s paylink for order %s failed: %v", bc.gw.Name(), oid, err)
		bc.send(c, buyer, "❌ Gagal membuat transaksi pembayaran. Silakan coba lagi.")
		return
	}

	order := &models.Order{
		OrderID:     oid,
		BuyerID:     buyer.ID,
		ProductID:   product.ID,
		PriceIDR:    product.PriceIDR,
		Provider:    bc.gw.Name(),
		Reference:   checkout.Reference,
		CheckoutURL: checkout.CheckoutURL,
		Status:      models.OrderStatusPending,
	}
	if err := bc.repos.Order.Create(order); err != nil {
		log.Errorf("[Bot] order %s create failed: %v", oid, err)
		bc.send(c, buyer, "❌ Gagal menyimpan pesanan. Silakan coba lagi.")
		return
	}

	log.Infof("[Bot] order %s created: buyer=%d product=%s price=%d provider=%s",
		oid, buyer.TelegramID, product.Slug, product.PriceIDR, bc.gw.Name())

	text := fmt.Sprintf(
		"🧾 <b>Pesanan Dibuat</b>\n\n"+
			"🛍️ <b>Produk:</b> %s\n"+
			"💰 <b>Total:</b> %s\n"+
			"🆔 <b>Order ID:</b> <code>%s</code>\n\n"+
			"Silakan selesaikan pembayaran melalui tombol di bawah.\n"+
			"Produk dikirim otomatis setelah pembayaran dikonfirmasi ✅",
		format.EscapeHTML(product.Name), format.IDR(product.PriceIDR), oid)

	rows := [][]telegram.InlineKeyboardButton{
		{{Text: "💳 Bayar Sekarang", URL: checkout.CheckoutURL}},
	}

	// QRIS is a nicety on top of the hosted page; its failure never blocks
	// the order.
	if qris, err := bc.gw.CreateQris(c.Context(), in); err == nil && qris.QrURL != "" {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: "📱 QRIS", URL: qris.QrURL}})
	} else if err != nil {
		log.Warnf("[Bot] %s qris for order %s unavailable: %v", bc.gw.Name(), oid, err)
	}

	rows = append(rows, []telegram.InlineKeyboardButton{
		{Text: "🔄 Cek Pembayaran", CallbackData: "check:" + oid},
	})

	if err := bc.tg.SendWithKeyboard(c.Context(), buyer.TelegramID, text, telegram.InlineKeyboardMarkup{InlineKeyboard: rows}); err != nil {
		log.Errorf("[Bot] order message to %d failed: %v", buyer.TelegramID, err)
	}
}

func (bc *BotController) handleCheck(c *fiber.Ctx, cb *telegram.CallbackQuery, buyer *models.Buyer, oid string) {
	if !orderid.Valid(oid) {
		bc.answer(c, cb.ID, "Order ID tidak valid")
		return
	}

	key := fmt.Sprintf("%d:%s", buyer.TelegramID, oid)
	if !bc.throttle.Allow(c.Context(), key, checkCooldown) {
		remaining := bc.throttle.Remaining(c.Context(), key)
		bc.answer(c, cb.ID, fmt.Sprintf("⏳ Tunggu %d detik sebelum cek lagi", int(remaining.Seconds())+1))
		return
	}

	order, err := bc.repos.Order.GetByOrderID(oid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			bc.answer(c, cb.ID, "Pesanan tidak ditemukan")
			return
		}
		log.Errorf("[Bot] order lookup %s failed: %v", oid, err)
		bc.answer(c, cb.ID, "Terjadi kesalahan, coba lagi")
		return
	}
	if order.BuyerID != buyer.ID {
		bc.answer(c, cb.ID, "Pesanan ini bukan milik Anda")
		return
	}

	bc.answer(c, cb.ID, "Memeriksa status pembayaran...")

	res, err := bc.sweep.CheckOrder(c.Context(), order)
	if err != nil {
		log.Errorf("[Bot] manual check for order %s failed: %v", oid, err)
		bc.send(c, buyer, "❌ Gagal memeriksa status pembayaran. Silakan coba lagi nanti.")
		return
	}

	// Fulfillment and deletion outcomes already notified the buyer through
	// the engine; only pending needs a reply here.
	if res.Status == sweeper.CheckPending {
		bc.send(c, buyer, fmt.Sprintf(
			"⏳ <b>Menunggu Pembayaran</b>\n\n"+
				"🆔 <b>Order ID:</b> <code>%s</code>\n"+
				"📋 <b>Status:</b> %s",
			oid, format.EscapeHTML(res.Message)))
	}
}

func (bc *BotController) send(c *fiber.Ctx, buyer *models.Buyer, html string) {
	if err := bc.tg.Send(c.Context(), buyer.TelegramID, html); err != nil {
		log.Errorf("[Bot] message to %d failed: %v", buyer.TelegramID, err)
	}
}

func (bc *BotController) answer(c *fiber.Ctx, callbackID, text string) {
	if err := bc.tg.AnswerCallback(c.Context(), callbackID, text); err != nil {
		log.Warnf("[Bot] answerCallback failed: %v", err)
	}
}
