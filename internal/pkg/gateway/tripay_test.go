package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTripay() *TripayGateway {
	return &TripayGateway{
		BaseURL:       "https://tripay.co.id",
		APIKey:        "test-api-key",
		PrivateKey:    "test-private-key",
		MerchantCode:  "T12345",
		DefaultMethod: "QRIS",
		HTTPClient:    http.DefaultClient,
	}
}

func tripaySign(privateKey string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestTripayEndpoint(t *testing.T) {
	g := newTestTripay()
	assert.Equal(t, "https://tripay.co.id/api/transaction/create", g.endpoint("transaction/create"))

	g.BaseURL = "https://tripay.co.id/api-sandbox"
	assert.Equal(t, "https://tripay.co.id/api-sandbox/merchant/transactions", g.endpoint("merchant/transactions"))

	g.BaseURL = "https://tripay.co.id/api"
	assert.Equal(t, "https://tripay.co.id/api/merchant/transactions", g.endpoint("/merchant/transactions"))
}

func TestTripayVerifyWebhook(t *testing.T) {
	g := newTestTripay()
	body := []byte(`{"merchant_ref":"ORD-20250101120000-ABC123","status":"PAID","total_amount":65000}`)
	sig := tripaySign(g.PrivateKey, body)

	assert.True(t, g.VerifyWebhook(body, sig))
	assert.True(t, g.VerifyWebhook(body, " "+sig+" "), "surrounding whitespace is trimmed")

	assert.False(t, g.VerifyWebhook([]byte(`{"merchant_ref":"ORD-X","status":"PAID"}`), sig), "tampered body")
	assert.False(t, g.VerifyWebhook(body, ""), "missing signature")
	assert.False(t, g.VerifyWebhook(body, "not-hex!!"), "malformed signature")
	assert.False(t, g.VerifyWebhook(body, tripaySign("wrong-key", body)), "wrong key")
}

func TestTripayParseWebhook(t *testing.T) {
	g := newTestTripay()

	ev, err := g.ParseWebhook([]byte(`{
		"reference": "T123456789",
		"merchant_ref": "ORD-20250101120000-ABC123",
		"status": "paid",
		"total_amount": 65000
	}`))
	require.NoError(t, err)
	assert.Equal(t, "tripay", ev.Provider)
	assert.Equal(t, "ORD-20250101120000-ABC123", ev.OrderID)
	assert.Equal(t, "T123456789", ev.Reference)
	assert.Equal(t, "PAID", ev.Status)
	assert.Equal(t, int64(65000), ev.Amount)

	_, err = g.ParseWebhook([]byte(`{"status":"PAID"}`))
	assert.Error(t, err, "missing merchant_ref")

	_, err = g.ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestTripayClassification(t *testing.T) {
	g := newTestTripay()

	tests := []struct {
		status     string
		successful bool
		failed     bool
	}{
		{"PAID", true, false},
		{"UNPAID", false, false},
		{"FAILED", false, true},
		{"EXPIRED", false, true},
		{"REFUND", false, true},
		{"CANCEL", false, true},
	}
	for _, tt := range tests {
		rec := &StatusRecord{Found: true, Status: tt.status}
		assert.Equal(t, tt.successful, g.IsSuccessful(rec), "IsSuccessful(%s)", tt.status)
		assert.Equal(t, tt.failed, g.IsFailed(rec), "IsFailed(%s)", tt.status)
	}

	notFound := &StatusRecord{Found: false, Status: "NOT_FOUND"}
	assert.False(t, g.IsSuccessful(notFound))
	assert.False(t, g.IsFailed(notFound))
}

func TestTripayStatusMessage(t *testing.T) {
	g := newTestTripay()

	assert.Contains(t, g.StatusMessage(&StatusRecord{Found: true, Status: "PAID"}), "berhasil")
	assert.Contains(t, g.StatusMessage(&StatusRecord{Found: true, Status: "UNPAID"}), "Menunggu")
	assert.Contains(t, g.StatusMessage(&StatusRecord{Found: true, Status: "EXPIRED"}), "gagal")
	assert.Contains(t, g.StatusMessage(&StatusRecord{Found: false}), "tidak ditemukan")
}

func TestTripayGetPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/merchant/transactions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"message": "",
			"data": {
				"data": [
					{"reference":"T1","merchant_ref":"ORD-OTHER","status":"UNPAID","amount":10000},
					{"reference":"T2","merchant_ref":"ORD-20250101120000-ABC123","status":"PAID","amount":65000,"payment_method":"QRIS"}
				]
			}
		}`))
	}))
	defer srv.Close()

	g := newTestTripay()
	g.BaseURL = srv.URL

	rec, err := g.GetPaymentStatus(context.Background(), "ORD-20250101120000-ABC123")
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, "PAID", rec.Status)
	assert.Equal(t, "T2", rec.Reference)
	assert.Equal(t, int64(65000), rec.Amount)

	rec, err = g.GetPaymentStatus(context.Background(), "ORD-MISSING")
	require.NoError(t, err)
	assert.False(t, rec.Found)
	assert.Equal(t, "NOT_FOUND", rec.Status)
}
