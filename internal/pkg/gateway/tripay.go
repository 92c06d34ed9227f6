package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/internal/pkg/env"
)

const defaultTripayBaseURL = "https://tripay.co.id"

// TripayGateway talks to the Tripay aggregator. The base URL may already end
// in /api or /api-sandbox; production paths get /api prepended otherwise.
type TripayGateway struct {
	BaseURL       string
	APIKey        string
	PrivateKey    string
	MerchantCode  string
	DefaultMethod string

	HTTPClient *http.Client
}

func NewTripayFromEnv() *TripayGateway {
	return &TripayGateway{
		BaseURL:       strings.TrimRight(env.GetEnv("TRIPAY_BASE_URL", defaultTripayBaseURL), "/"),
		APIKey:        strings.TrimSpace(env.GetEnv("TRIPAY_API_KEY", "")),
		PrivateKey:    strings.TrimSpace(env.GetEnv("TRIPAY_PRIVATE_KEY", "")),
		MerchantCode:  strings.TrimSpace(env.GetEnv("TRIPAY_MERCHANT_CODE", "")),
		DefaultMethod: env.GetEnv("TRIPAY_DEFAULT_METHOD", "QRIS"),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (g *TripayGateway) Name() string {
	return models.PaymentProviderTripay
}

// endpoint builds a full URL for both sandbox and production bases.
func (g *TripayGateway) endpoint(segment string) string {
	segment = strings.TrimLeft(segment, "/")
	if strings.HasSuffix(g.BaseURL, "/api") || strings.HasSuffix(g.BaseURL, "/api-sandbox") {
		return g.BaseURL + "/" + segment
	}
	return g.BaseURL + "/api/" + segment
}

// createSignature is HMAC-SHA256(merchantCode+merchantRef+amount, privateKey)
// as required by the transaction/create endpoint.
func (g *TripayGateway) createSignature(merchantRef string, amount int64) string {
	mac := hmac.New(sha256.New, []byte(g.PrivateKey))
	mac.Write([]byte(g.MerchantCode + merchantRef + strconv.FormatInt(amount, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

type tripayEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tripayTransaction struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Method      string `json:"payment_method"`
	CheckoutURL string `json:"checkout_url"`
	PayURL      string `json:"pay_url"`
	QrString    string `json:"qr_string"`
	QrURL       string `json:"qr_url"`
	PaidAt      int64  `json:"paid_at"`
}

func (g *TripayGateway) createTransaction(ctx context.Context, in CreateInput, method string) (*tripayTransaction, error) {
	if g.APIKey == "" || g.PrivateKey == "" || g.MerchantCode == "" {
		return nil, fmt.Errorf("tripay is not configured: TRIPAY_API_KEY/TRIPAY_PRIVATE_KEY/TRIPAY_MERCHANT_CODE required")
	}

	customerName := in.CustomerName
	if customerName == "" {
		customerName = "Telegram User"
	}
	customerEmail := in.CustomerEmail
	if customerEmail == "" {
		customerEmail = "user@telegram.local"
	}

	form := url.Values{}
	form.Set("method", method)
	form.Set("merchant_ref", in.OrderID)
	form.Set("amount", strconv.FormatInt(in.AmountIDR, 10))
	form.Set("customer_name", customerName)
	form.Set("customer_email", customerEmail)
	form.Set("order_items[0][sku]", in.OrderID)
	form.Set("order_items[0][name]", in.ItemName)
	form.Set("order_items[0][price]", strconv.FormatInt(in.AmountIDR, 10))
	form.Set("order_items[0][quantity]", "1")
	form.Set("callback_url", in.CallbackURL)
	form.Set("return_url", in.ReturnURL)
	form.Set("expired_time", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	form.Set("signature", g.createSignature(in.OrderID, in.AmountIDR))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("transaction/create"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	env, err := g.do(req)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("tripay transaction/create failed: %s", env.Message)
	}

	var tx tripayTransaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return nil, fmt.Errorf("tripay transaction/create: unexpected payload: %w", err)
	}
	return &tx, nil
}

func (g *TripayGateway) do(req *http.Request) (*tripayEnvelope, error) {
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tripay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("tripay response read failed: %w", err)
	}

	var envlp tripayEnvelope
	if err := json.Unmarshal(body, &envlp); err != nil {
		return nil, fmt.Errorf("tripay response decode failed (http %d): %w", resp.StatusCode, err)
	}
	return &envlp, nil
}

// CreatePayLink creates an invoice with the configured default method and
// returns its hosted checkout URL.
func (g *TripayGateway) CreatePayLink(ctx context.Context, in CreateInput) (*Checkout, error) {
	tx, err := g.createTransaction(ctx, in, g.DefaultMethod)
	if err != nil {
		return nil, err
	}
	checkoutURL := tx.CheckoutURL
	if checkoutURL == "" {
		checkoutURL = tx.PayURL
	}
	return &Checkout{Reference: tx.Reference, CheckoutURL: checkoutURL}, nil
}

// CreateQris creates a QRIS invoice, then fetches the transaction detail to
// extract the QR content. Falls back to the checkout URL when the detail
// call yields no QR fields.
func (g *TripayGateway) CreateQris(ctx context.Context, in CreateInput) (*Qris, error) {
	tx, err := g.createTransaction(ctx, in, "QRIS")
	if err != nil {
		return nil, err
	}

	detailURL := g.endpoint("transaction/detail") + "?reference=" + url.QueryEscape(tx.Reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	req.Header.Set("Accept", "application/json")

	envlp, err := g.do(req)
	if err != nil || !envlp.Success {
		// QR detail is best-effort; the invoice itself already exists.
		return &Qris{Reference: tx.Reference, QrURL: tx.CheckoutURL}, nil
	}

	var detail tripayTransaction
	if err := json.Unmarshal(envlp.Data, &detail); err != nil {
		return &Qris{Reference: tx.Reference, QrURL: tx.CheckoutURL}, nil
	}

	qris := &Qris{Reference: tx.Reference, QrString: detail.QrString, QrURL: detail.QrURL}
	if qris.QrString == "" && qris.QrURL == "" {
		qris.QrURL = tx.CheckoutURL
	}
	return qris, nil
}

// GetPaymentStatus lists recent merchant transactions and matches on
// merchant_ref (our order id). A missing match is a found=false record, not
// an error.
func (g *TripayGateway) GetPaymentStatus(ctx context.Context, orderID string) (*StatusRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("merchant/transactions"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	req.Header.Set("Accept", "application/json")

	envlp, err := g.do(req)
	if err != nil {
		return nil, err
	}
	if !envlp.Success {
		return nil, fmt.Errorf("tripay merchant/transactions failed: %s", envlp.Message)
	}

	var list struct {
		Data []tripayTransaction `json:"data"`
	}
	// The data key nests a paginated list.
	if err := json.Unmarshal(envlp.Data, &list); err != nil {
		var flat []tripayTransaction
		if err2 := json.Unmarshal(envlp.Data, &flat); err2 != nil {
			return nil, fmt.Errorf("tripay merchant/transactions: unexpected payload: %w", err)
		}
		list.Data = flat
	}

	for _, tx := range list.Data {
		if tx.MerchantRef == orderID {
			return &StatusRecord{
				Found:     true,
				Status:    strings.ToUpper(tx.Status),
				Reference: tx.Reference,
				Amount:    tx.Amount,
				Method:    tx.Method,
			}, nil
		}
	}

	return &StatusRecord{
		Found:   false,
		Status:  "NOT_FOUND",
		Message: "Transaksi tidak ditemukan di Tripay",
	}, nil
}

// IsSuccessful reports a paid Tripay record. Tripay uses a single literal.
func (g *TripayGateway) IsSuccessful(rec *StatusRecord) bool {
	if rec == nil || !rec.Found {
		return false
	}
	return strings.ToUpper(rec.Status) == "PAID"
}

// IsFailed reports a terminally failed Tripay record.
func (g *TripayGateway) IsFailed(rec *StatusRecord) bool {
	if rec == nil || !rec.Found {
		return false
	}
	switch strings.ToUpper(rec.Status) {
	case "FAILED", "EXPIRED", "REFUND", "CANCEL":
		return true
	}
	return false
}

// StatusMessage renders a buyer-facing status line.
func (g *TripayGateway) StatusMessage(rec *StatusRecord) string {
	if rec == nil || !rec.Found {
		return "Transaksi tidak ditemukan di payment gateway"
	}
	if g.IsSuccessful(rec) {
		return "Pembayaran berhasil! ✅"
	}
	if g.IsFailed(rec) {
		return "Pembayaran gagal atau dibatalkan ❌"
	}
	if strings.ToUpper(rec.Status) == "UNPAID" {
		return "Menunggu pembayaran ⏳"
	}
	return "Status: " + rec.Status
}

// VerifyWebhook checks X-Callback-Signature = hex HMAC-SHA256(rawBody,
// privateKey). Comparison is constant time.
func (g *TripayGateway) VerifyWebhook(rawBody []byte, signatureHeader string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || g.PrivateKey == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.PrivateKey))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), decoded)
}

// ParseWebhook maps a Tripay callback body to a normalized event.
func (g *TripayGateway) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload struct {
		Reference   string      `json:"reference"`
		MerchantRef string      `json:"merchant_ref"`
		Status      string      `json:"status"`
		TotalAmount json.Number `json:"total_amount"`
		Amount      json.Number `json:"amount"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("tripay webhook: malformed body: %w", err)
	}
	if payload.MerchantRef == "" {
		return nil, fmt.Errorf("tripay webhook: missing merchant_ref")
	}

	amount, _ := payload.TotalAmount.Int64()
	if amount == 0 {
		amount, _ = payload.Amount.Int64()
	}

	return &WebhookEvent{
		Provider:  models.PaymentProviderTripay,
		OrderID:   payload.MerchantRef,
		Reference: payload.Reference,
		Status:    strings.ToUpper(payload.Status),
		Amount:    amount,
	}, nil
}
