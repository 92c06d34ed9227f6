package fulfillment

import (
	"fmt"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/internal/pkg/env"
	"github.com/lapakdigital/lapakstore/internal/pkg/format"
)

func productName(order *models.Order) string {
	if order.Product.Name != "" {
		return order.Product.Name
	}
	return "Produk Digital"
}

// DeliveryMessage is the credential hand-over message, HTML formatted for
// Telegram.
func DeliveryMessage(order *models.Order, payload string) string {
	return fmt.Sprintf(
		"🎉 <b>Pembayaran Berhasil!</b>\n\n"+
			"🛍️ <b>Produk:</b> %s\n"+
			"💰 <b>Total:</b> %s\n"+
			"🆔 <b>Order ID:</b> <code>%s</code>\n\n"+
			"🎁 <b>Data Produk Anda:</b>\n"+
			"<pre><code>%s</code></pre>\n\n"+
			"✨ <b>Terima kasih telah berbelanja!</b>\n\n"+
			"💡 <b>Tips:</b>\n"+
			"• Simpan data ini dengan aman\n"+
			"• Jangan bagikan ke orang lain\n"+
			"• Hubungi admin jika ada masalah",
		format.EscapeHTML(productName(order)),
		format.IDR(order.PriceIDR),
		order.OrderID,
		format.EscapeHTML(payload),
	)
}

// StockEmptyMessage apologizes for a paid order that hit an empty pool and
// promises manual follow-up. Never silently dropped.
func StockEmptyMessage(order *models.Order) string {
	return fmt.Sprintf(
		"✅ <b>Pembayaran Berhasil!</b>\n\n"+
			"🛍️ <b>Produk:</b> %s\n"+
			"💰 <b>Total:</b> %s\n\n"+
			"❌ <b>Stok Kosong:</b>\n"+
			"Maaf, stok produk sedang habis.\n"+
			"Admin akan segera menindaklanjuti pesanan Anda.\n\n"+
			"🆔 <b>Order ID:</b> <code>%s</code>\n"+
			"📞 Hubungi admin jika ada pertanyaan: %s",
		format.EscapeHTML(productName(order)),
		format.IDR(order.PriceIDR),
		order.OrderID,
		adminContact(),
	)
}

// OrderDeletedMessage explains a removed order and how to recover.
func OrderDeletedMessage(order *models.Order, reason string) string {
	return fmt.Sprintf(
		"🗑️ <b>Pesanan Dihapus</b>\n\n"+
			"🛍️ <b>Produk:</b> %s\n"+
			"🆔 <b>Order ID:</b> <code>%s</code>\n"+
			"💰 <b>Total:</b> %s\n\n"+
			"❌ <b>Alasan:</b> %s\n\n"+
			"💡 Anda dapat memesan ulang produk yang sama jika masih membutuhkan.\n"+
			"📞 <b>Kontak Admin:</b> %s",
		format.EscapeHTML(productName(order)),
		order.OrderID,
		format.IDR(order.PriceIDR),
		format.EscapeHTML(reason),
		adminContact(),
	)
}

func adminContact() string {
	return env.GetEnv("ADMIN_CONTACT", "@admin")
}
