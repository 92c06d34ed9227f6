package gateway

import (
	"context"
	"strings"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/internal/pkg/env"
)

// StatusRecord is the provider-agnostic result of a gateway status query.
// Found=false with a nil error means the gateway has no record of the order;
// a non-nil error is reserved for transport/auth failures.
type StatusRecord struct {
	Found       bool
	Status      string
	Reference   string
	Amount      int64
	Method      string
	FraudStatus string
	Message     string
	Raw         map[string]interface{}
}

// WebhookEvent is a normalized payment notification pushed by a provider.
type WebhookEvent struct {
	Provider    string
	OrderID     string
	Reference   string
	Status      string
	StatusCode  string
	FraudStatus string
	Amount      int64
}

// CreateInput carries the order fields every provider needs to start a
// payment. CallbackURL must point at the shared webhook endpoint.
type CreateInput struct {
	OrderID       string
	AmountIDR     int64
	ItemName      string
	CustomerName  string
	CustomerEmail string
	CallbackURL   string
	ReturnURL     string
}

// Checkout is an opaque hosted-payment-page reference.
type Checkout struct {
	Reference   string
	CheckoutURL string
	Token       string
}

// Qris carries a scannable QRIS payload: the raw EMV string and/or an image
// URL hosted by the provider.
type Qris struct {
	Reference string
	QrString  string
	QrURL     string
}

// Gateway is the uniform interface over both payment providers. One
// implementation is active per deployment (selected once at startup); the
// webhook endpoint additionally uses both implementations as verifiers
// because the sender is unknown until a signature matches.
type Gateway interface {
	Name() string
	CreatePayLink(ctx context.Context, in CreateInput) (*Checkout, error)
	CreateQris(ctx context.Context, in CreateInput) (*Qris, error)
	GetPaymentStatus(ctx context.Context, orderID string) (*StatusRecord, error)
	// IsSuccessful / IsFailed / StatusMessage are pure classifications over a
	// record produced by this provider. A record that is neither successful
	// nor failed is still pending.
	IsSuccessful(rec *StatusRecord) bool
	IsFailed(rec *StatusRecord) bool
	StatusMessage(rec *StatusRecord) string
	// VerifyWebhook authenticates a raw webhook body. Tripay signs a header;
	// Midtrans embeds the signature in the JSON body.
	VerifyWebhook(rawBody []byte, signatureHeader string) bool
	ParseWebhook(body []byte) (*WebhookEvent, error)
}

// FromEnv returns the single active gateway selected by PAYMENT_PROVIDER.
func FromEnv() Gateway {
	provider := strings.ToLower(strings.TrimSpace(env.GetEnv("PAYMENT_PROVIDER", models.PaymentProviderMidtrans)))
	if provider == models.PaymentProviderTripay {
		return NewTripayFromEnv()
	}
	return NewMidtransFromEnv()
}

// AllFromEnv returns both gateways for webhook verification order: the
// active provider is tried first.
func AllFromEnv() []Gateway {
	active := FromEnv()
	if active.Name() == models.PaymentProviderTripay {
		return []Gateway{active, NewMidtransFromEnv()}
	}
	return []Gateway{active, NewTripayFromEnv()}
}

// RecordFromWebhook converts a verified webhook event into a status record
// so sweeper/webhook classification share one vocabulary.
func RecordFromWebhook(ev *WebhookEvent) *StatusRecord {
	return &StatusRecord{
		Found:       true,
		Status:      ev.Status,
		Reference:   ev.Reference,
		Amount:      ev.Amount,
		FraudStatus: ev.FraudStatus,
	}
}
