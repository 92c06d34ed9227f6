package gateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/internal/pkg/env"
)

const (
	midtransProductionCoreURL = "https://api.midtrans.com"
	midtransSandboxCoreURL    = "https://api.sandbox.midtrans.com"
	midtransProductionSnapURL = "https://app.midtrans.com/snap/v1"
	midtransSandboxSnapURL    = "https://app.sandbox.midtrans.com/snap/v1"
)

// MidtransGateway talks to the Midtrans Core and Snap APIs with server-key
// basic auth.
type MidtransGateway struct {
	CoreBaseURL  string
	SnapBaseURL  string
	ServerKey    string
	QrisAcquirer string

	HTTPClient *http.Client
}

func NewMidtransFromEnv() *MidtransGateway {
	coreURL := midtransSandboxCoreURL
	snapURL := midtransSandboxSnapURL
	if env.GetEnv("MIDTRANS_IS_PRODUCTION", "false") == "true" {
		coreURL = midtransProductionCoreURL
		snapURL = midtransProductionSnapURL
	}

	return &MidtransGateway{
		CoreBaseURL:  coreURL,
		SnapBaseURL:  snapURL,
		ServerKey:    strings.TrimSpace(env.GetEnv("MIDTRANS_SERVER_KEY", "")),
		QrisAcquirer: env.GetEnv("MIDTRANS_QRIS_ACQUIRER", "gopay"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (g *MidtransGateway) Name() string {
	return models.PaymentProviderMidtrans
}

func (g *MidtransGateway) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(g.ServerKey+":"))
}

func (g *MidtransGateway) newRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", g.authHeader())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// CreatePayLink creates a Snap transaction and returns its redirect URL.
func (g *MidtransGateway) CreatePayLink(ctx context.Context, in CreateInput) (*Checkout, error) {
	if g.ServerKey == "" {
		return nil, fmt.Errorf("midtrans is not configured: MIDTRANS_SERVER_KEY required")
	}

	firstName := "Telegram"
	lastName := "User"
	if name := strings.TrimSpace(in.CustomerName); name != "" {
		parts := strings.Fields(name)
		firstName = parts[0]
		if len(parts) > 1 {
			lastName = strings.Join(parts[1:], " ")
		}
	}
	email := in.CustomerEmail
	if email == "" {
		email = "user@telegram.local"
	}

	body := map[string]interface{}{
		"transaction_details": map[string]interface{}{
			"order_id":     in.OrderID,
			"gross_amount": in.AmountIDR,
		},
		"customer_details": map[string]interface{}{
			"first_name": firstName,
			"last_name":  lastName,
			"email":      email,
		},
		"item_details": []map[string]interface{}{
			{"id": in.OrderID, "price": in.AmountIDR, "quantity": 1, "name": in.ItemName},
		},
		"callbacks":   map[string]interface{}{"finish": in.ReturnURL},
		"credit_card": map[string]interface{}{"secure": true},
	}

	req, err := g.newRequest(ctx, http.MethodPost, g.SnapBaseURL+"/transactions", body)
	if err != nil {
		return nil, err
	}
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans snap request failed: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Token         string   `json:"token"`
		RedirectURL   string   `json:"redirect_url"`
		ErrorMessages []string `json:"error_messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("midtrans snap response decode failed: %w", err)
	}
	if resp.StatusCode >= 400 || out.RedirectURL == "" {
		return nil, fmt.Errorf("midtrans snap create failed (http %d): %s", resp.StatusCode, strings.Join(out.ErrorMessages, "; "))
	}
	return &Checkout{Reference: in.OrderID, CheckoutURL: out.RedirectURL, Token: out.Token}, nil
}

// CreateQris charges a QRIS payment through the Core API and extracts the QR
// string plus any generate-qr-code action URL.
func (g *MidtransGateway) CreateQris(ctx context.Context, in CreateInput) (*Qris, error) {
	if g.ServerKey == "" {
		return nil, fmt.Errorf("midtrans is not configured: MIDTRANS_SERVER_KEY required")
	}

	body := map[string]interface{}{
		"payment_type": "qris",
		"transaction_details": map[string]interface{}{
			"order_id":     in.OrderID,
			"gross_amount": in.AmountIDR,
		},
		"qris": map[string]interface{}{"acquirer": g.QrisAcquirer},
	}

	req, err := g.newRequest(ctx, http.MethodPost, g.CoreBaseURL+"/v2/charge", body)
	if err != nil {
		return nil, err
	}
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans qris charge failed: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		TransactionID string `json:"transaction_id"`
		QrString      string `json:"qr_string"`
		Actions       []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"actions"`
		StatusMessage string `json:"status_message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("midtrans qris response decode failed: %w", err)
	}

	qris := &Qris{Reference: out.TransactionID, QrString: out.QrString}
	for _, a := range out.Actions {
		if strings.Contains(strings.ToLower(a.Name), "qr") && a.URL != "" {
			qris.QrURL = a.URL
			break
		}
	}
	if qris.QrString == "" && qris.QrURL == "" {
		return nil, fmt.Errorf("midtrans qris charge returned no QR content: %s", out.StatusMessage)
	}
	return qris, nil
}

// GetPaymentStatus queries /v2/{orderID}/status. A 404 becomes a found=false
// record; other non-200s are transport-level errors.
func (g *MidtransGateway) GetPaymentStatus(ctx context.Context, orderID string) (*StatusRecord, error) {
	req, err := g.newRequest(ctx, http.MethodGet, g.CoreBaseURL+"/v2/"+orderID+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &StatusRecord{
			Found:   false,
			Status:  "NOT_FOUND",
			Message: "Transaksi tidak ditemukan di Midtrans",
		}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("midtrans status read failed: %w", err)
	}

	var out struct {
		TransactionStatus string      `json:"transaction_status"`
		TransactionID     string      `json:"transaction_id"`
		GrossAmount       json.Number `json:"gross_amount"`
		PaymentType       string      `json:"payment_type"`
		FraudStatus       string      `json:"fraud_status"`
		StatusMessage     string      `json:"status_message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("midtrans status decode failed (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("midtrans status failed (http %d): %s", resp.StatusCode, out.StatusMessage)
	}

	amount := parseGrossAmount(out.GrossAmount.String())
	return &StatusRecord{
		Found:       true,
		Status:      strings.ToLower(out.TransactionStatus),
		Reference:   out.TransactionID,
		Amount:      amount,
		Method:      out.PaymentType,
		FraudStatus: out.FraudStatus,
	}, nil
}

// IsSuccessful requires capture/settlement plus an absent or accepted fraud
// screening result.
func (g *MidtransGateway) IsSuccessful(rec *StatusRecord) bool {
	if rec == nil || !rec.Found {
		return false
	}
	switch strings.ToLower(rec.Status) {
	case "capture", "settlement":
	default:
		return false
	}
	return rec.FraudStatus == "" || rec.FraudStatus == "accept"
}

// IsFailed reports deny/cancel/expire/failure or an explicit fraud denial.
func (g *MidtransGateway) IsFailed(rec *StatusRecord) bool {
	if rec == nil || !rec.Found {
		return false
	}
	switch strings.ToLower(rec.Status) {
	case "deny", "cancel", "expire", "failure":
		return true
	}
	return rec.FraudStatus == "deny"
}

// StatusMessage renders a buyer-facing status line.
func (g *MidtransGateway) StatusMessage(rec *StatusRecord) string {
	if rec == nil || !rec.Found {
		return "Transaksi tidak ditemukan di payment gateway"
	}
	if g.IsSuccessful(rec) {
		return "Pembayaran berhasil! ✅"
	}
	if g.IsFailed(rec) {
		return "Pembayaran gagal atau dibatalkan ❌"
	}
	if strings.ToLower(rec.Status) == "pending" {
		return "Menunggu pembayaran ⏳"
	}
	return "Status: " + rec.Status
}

// VerifyWebhook checks the signature_key embedded in the notification body:
// sha512(order_id + status_code + gross_amount + serverKey).
func (g *MidtransGateway) VerifyWebhook(rawBody []byte, _ string) bool {
	if g.ServerKey == "" {
		return false
	}
	var payload struct {
		OrderID      string `json:"order_id"`
		StatusCode   string `json:"status_code"`
		GrossAmount  string `json:"gross_amount"`
		SignatureKey string `json:"signature_key"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return false
	}
	if payload.OrderID == "" || payload.SignatureKey == "" {
		return false
	}

	sum := sha512.Sum512([]byte(payload.OrderID + payload.StatusCode + payload.GrossAmount + g.ServerKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(payload.SignatureKey))) == 1
}

// ParseWebhook maps a Midtrans notification body to a normalized event.
func (g *MidtransGateway) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload struct {
		OrderID           string `json:"order_id"`
		TransactionID     string `json:"transaction_id"`
		TransactionStatus string `json:"transaction_status"`
		StatusCode        string `json:"status_code"`
		GrossAmount       string `json:"gross_amount"`
		FraudStatus       string `json:"fraud_status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("midtrans webhook: malformed body: %w", err)
	}
	if payload.OrderID == "" {
		return nil, fmt.Errorf("midtrans webhook: missing order_id")
	}

	reference := payload.TransactionID
	if reference == "" {
		reference = payload.OrderID
	}

	return &WebhookEvent{
		Provider:    models.PaymentProviderMidtrans,
		OrderID:     payload.OrderID,
		Reference:   reference,
		Status:      strings.ToLower(payload.TransactionStatus),
		StatusCode:  payload.StatusCode,
		FraudStatus: payload.FraudStatus,
		Amount:      parseGrossAmount(payload.GrossAmount),
	}, nil
}

// parseGrossAmount handles Midtrans decimal strings like "65000.00".
func parseGrossAmount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
