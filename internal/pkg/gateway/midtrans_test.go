package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMidtrans() *MidtransGateway {
	return &MidtransGateway{
		CoreBaseURL:  midtransSandboxCoreURL,
		SnapBaseURL:  midtransSandboxSnapURL,
		ServerKey:    "SB-Mid-server-testkey",
		QrisAcquirer: "gopay",
		HTTPClient:   http.DefaultClient,
	}
}

func midtransSignatureKey(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func midtransNotification(orderID, status, statusCode, grossAmount, serverKey string) []byte {
	sig := midtransSignatureKey(orderID, statusCode, grossAmount, serverKey)
	return []byte(fmt.Sprintf(`{
		"order_id": %q,
		"transaction_id": "mt-tx-1",
		"transaction_status": %q,
		"status_code": %q,
		"gross_amount": %q,
		"signature_key": %q
	}`, orderID, status, statusCode, grossAmount, sig))
}

func TestMidtransVerifyWebhook(t *testing.T) {
	g := newTestMidtrans()
	body := midtransNotification("ORD-20250101120000-ABC123", "settlement", "200", "65000.00", g.ServerKey)

	assert.True(t, g.VerifyWebhook(body, ""))

	wrongKey := midtransNotification("ORD-20250101120000-ABC123", "settlement", "200", "65000.00", "other-server-key")
	assert.False(t, g.VerifyWebhook(wrongKey, ""), "signed with a different server key")

	sig := midtransSignatureKey("ORD-20250101120000-ABC123", "200", "65000.00", g.ServerKey)
	tampered := []byte(fmt.Sprintf(`{"order_id":"ORD-OTHER","status_code":"200","gross_amount":"65000.00","signature_key":%q}`, sig))
	assert.False(t, g.VerifyWebhook(tampered, ""), "order_id changed after signing")

	assert.False(t, g.VerifyWebhook([]byte(`{"order_id":"X"}`), ""), "missing signature_key")
	assert.False(t, g.VerifyWebhook([]byte(`not json`), ""))
}

func TestMidtransParseWebhook(t *testing.T) {
	g := newTestMidtrans()

	ev, err := g.ParseWebhook([]byte(`{
		"order_id": "ORD-20250101120000-ABC123",
		"transaction_id": "mt-tx-1",
		"transaction_status": "Settlement",
		"status_code": "200",
		"gross_amount": "65000.00",
		"fraud_status": "accept"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "midtrans", ev.Provider)
	assert.Equal(t, "ORD-20250101120000-ABC123", ev.OrderID)
	assert.Equal(t, "mt-tx-1", ev.Reference)
	assert.Equal(t, "settlement", ev.Status)
	assert.Equal(t, "accept", ev.FraudStatus)
	assert.Equal(t, int64(65000), ev.Amount)

	_, err = g.ParseWebhook([]byte(`{"transaction_status":"settlement"}`))
	assert.Error(t, err, "missing order_id")
}

func TestMidtransClassification(t *testing.T) {
	g := newTestMidtrans()

	tests := []struct {
		status     string
		fraud      string
		successful bool
		failed     bool
	}{
		{"settlement", "", true, false},
		{"settlement", "accept", true, false},
		{"capture", "accept", true, false},
		{"capture", "challenge", false, false},
		{"settlement", "deny", false, true},
		{"pending", "", false, false},
		{"deny", "", false, true},
		{"cancel", "", false, true},
		{"expire", "", false, true},
		{"failure", "", false, true},
	}
	for _, tt := range tests {
		rec := &StatusRecord{Found: true, Status: tt.status, FraudStatus: tt.fraud}
		assert.Equal(t, tt.successful, g.IsSuccessful(rec), "IsSuccessful(%s/%s)", tt.status, tt.fraud)
		assert.Equal(t, tt.failed, g.IsFailed(rec), "IsFailed(%s/%s)", tt.status, tt.fraud)
	}
}

func TestMidtransGetPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/ORD-KNOWN/status":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"transaction_status": "settlement",
				"transaction_id": "mt-tx-1",
				"gross_amount": "65000.00",
				"payment_type": "qris",
				"fraud_status": "accept"
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status_code":"404","status_message":"Transaction doesn't exist."}`))
		}
	}))
	defer srv.Close()

	g := newTestMidtrans()
	g.CoreBaseURL = srv.URL

	rec, err := g.GetPaymentStatus(context.Background(), "ORD-KNOWN")
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, "settlement", rec.Status)
	assert.Equal(t, int64(65000), rec.Amount)
	assert.Equal(t, "qris", rec.Method)
	assert.Equal(t, "accept", rec.FraudStatus)

	rec, err = g.GetPaymentStatus(context.Background(), "ORD-UNKNOWN")
	require.NoError(t, err)
	assert.False(t, rec.Found)
	assert.Equal(t, "NOT_FOUND", rec.Status)
}

func TestParseGrossAmount(t *testing.T) {
	assert.Equal(t, int64(65000), parseGrossAmount("65000.00"))
	assert.Equal(t, int64(65000), parseGrossAmount("65000"))
	assert.Equal(t, int64(0), parseGrossAmount(""))
	assert.Equal(t, int64(0), parseGrossAmount("abc"))
}
