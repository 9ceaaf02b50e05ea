package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kudiops/walletcore/internal/domain"
	"github.com/kudiops/walletcore/internal/paystack"
	"github.com/kudiops/walletcore/internal/service"
	"github.com/kudiops/walletcore/internal/store"
)

const webhookSecret = "sk_test_handler_secret"

type fakeCheckout struct {
	url string
	err error
}

func (f *fakeCheckout) InitializeTransaction(ctx context.Context, email string, amountKobo int64, reference string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func newTestServer(t *testing.T, checkout service.CheckoutClient) *httptest.Server {
	t.Helper()
	if checkout == nil {
		checkout = &fakeCheckout{url: "https://checkout.paystack.com/x"}
	}
	ms := store.NewMemStore()
	logger := zap.NewNop()
	wallet := service.NewWallet(ms, checkout, nil, logger)
	reconciler := service.NewReconciler(ms, webhookSecret, nil, nil, logger)
	srv := httptest.NewServer(NewRouter(NewHandler(wallet, reconciler, logger)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, userID string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, srv.URL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func onboardUser(t *testing.T, srv *httptest.Server, email string) (userID, walletNumber string) {
	t.Helper()
	resp, body := doJSON(t, srv, "POST", "/api/v1/users", "", map[string]string{"email": email})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["user_id"].(string), body["wallet_number"].(string)
}

// creditUser funds a wallet through the full deposit round trip:
// initiate, then deliver a signed webhook for the returned reference.
func creditUser(t *testing.T, srv *httptest.Server, userID, naira string, kobo int64) string {
	t.Helper()
	resp, body := doJSON(t, srv, "POST", "/api/v1/wallet/deposit", userID, map[string]any{"amount": naira})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reference := body["reference"].(string)

	deliverWebhook(t, srv, reference, kobo, http.StatusOK)
	return reference
}

func deliverWebhook(t *testing.T, srv *httptest.Server, reference string, amountKobo int64, wantStatus int) map[string]any {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"event": "charge.success",
		"data":  map[string]any{"reference": reference, "amount": amountKobo, "status": "success"},
	})
	require.NoError(t, err)

	req, err := http.NewRequest("POST", srv.URL+"/api/v1/webhook/paystack", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(paystack.SignatureHeader, paystack.Signature(webhookSecret, payload))
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return decoded
}

func TestOnboardAndBalance(t *testing.T) {
	srv := newTestServer(t, nil)
	userID, walletNumber := onboardUser(t, srv, "new@example.com")
	assert.Len(t, walletNumber, 13)

	resp, body := doJSON(t, srv, "GET", "/api/v1/wallet/balance", userID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, walletNumber, body["wallet_number"])
	assert.Equal(t, "0", body["balance"])

	// same email conflicts
	resp, _ = doJSON(t, srv, "POST", "/api/v1/users", "", map[string]string{"email": "new@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// identity header is mandatory on the wallet surface
	resp, _ = doJSON(t, srv, "GET", "/api/v1/wallet/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTransferEndToEnd(t *testing.T) {
	srv := newTestServer(t, nil)
	sender, _ := onboardUser(t, srv, "sender@example.com")
	recipient, recipientWallet := onboardUser(t, srv, "recipient@example.com")
	creditUser(t, srv, sender, "150", 15000)

	resp, body := doJSON(t, srv, "POST", "/api/v1/wallet/transfer", sender,
		map[string]any{"wallet_number": recipientWallet, "amount": "30"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "transfer", body["type"])
	assert.Equal(t, "30", body["amount"])
	assert.Equal(t, recipientWallet, body["recipient_wallet_number"])

	_, senderBal := doJSON(t, srv, "GET", "/api/v1/wallet/balance", sender, nil)
	assert.Equal(t, "120", senderBal["balance"])
	_, recipientBal := doJSON(t, srv, "GET", "/api/v1/wallet/balance", recipient, nil)
	assert.Equal(t, "30", recipientBal["balance"])
}

func TestTransferErrorMapping(t *testing.T) {
	srv := newTestServer(t, nil)
	sender, senderWallet := onboardUser(t, srv, "sender@example.com")
	_, recipientWallet := onboardUser(t, srv, "recipient@example.com")
	creditUser(t, srv, sender, "10", 1000)

	cases := []struct {
		name   string
		wallet string
		amount string
		want   int
	}{
		{"insufficient funds", recipientWallet, "500", http.StatusUnprocessableEntity},
		{"self transfer", senderWallet, "5", http.StatusUnprocessableEntity},
		{"unknown recipient", "0000000000000", "5", http.StatusNotFound},
		{"zero amount", recipientWallet, "0", http.StatusUnprocessableEntity},
		{"sub-kobo amount", recipientWallet, "1.005", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := doJSON(t, srv, "POST", "/api/v1/wallet/transfer", sender,
				map[string]any{"wallet_number": tc.wallet, "amount": tc.amount})
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}

	// nothing debited by the failures above
	_, bal := doJSON(t, srv, "GET", "/api/v1/wallet/balance", sender, nil)
	assert.Equal(t, "10", bal["balance"])
}

func TestDepositFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	userID, _ := onboardUser(t, srv, "d@example.com")

	resp, body := doJSON(t, srv, "POST", "/api/v1/wallet/deposit", userID, map[string]any{"amount": "75.50"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reference := body["reference"].(string)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "https://checkout.paystack.com/x", body["authorization_url"])

	// still pending, nothing credited
	_, bal := doJSON(t, srv, "GET", "/api/v1/wallet/balance", userID, nil)
	assert.Equal(t, "0", bal["balance"])

	out := deliverWebhook(t, srv, reference, 7550, http.StatusOK)
	assert.Equal(t, "credited", out["status"])

	_, bal = doJSON(t, srv, "GET", "/api/v1/wallet/balance", userID, nil)
	assert.Equal(t, "75.5", bal["balance"])

	resp, status := doJSON(t, srv, "GET", "/api/v1/wallet/deposits/"+reference, userID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", status["status"])

	// duplicate delivery acks without crediting again
	out = deliverWebhook(t, srv, reference, 7550, http.StatusOK)
	assert.Equal(t, "duplicate", out["status"])
	_, bal = doJSON(t, srv, "GET", "/api/v1/wallet/balance", userID, nil)
	assert.Equal(t, "75.5", bal["balance"])
}

func TestWebhookRejections(t *testing.T) {
	srv := newTestServer(t, nil)
	userID, _ := onboardUser(t, srv, "d@example.com")
	resp, body := doJSON(t, srv, "POST", "/api/v1/wallet/deposit", userID, map[string]any{"amount": "10"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reference := body["reference"].(string)

	payload, err := json.Marshal(map[string]any{
		"event": "charge.success",
		"data":  map[string]any{"reference": reference, "amount": 1000, "status": "success"},
	})
	require.NoError(t, err)

	// bad signature -> 401
	req, err := http.NewRequest("POST", srv.URL+"/api/v1/webhook/paystack", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(paystack.SignatureHeader, paystack.Signature("not-the-secret", payload))
	rejected, err := srv.Client().Do(req)
	require.NoError(t, err)
	rejected.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, rejected.StatusCode)

	// unknown reference -> 404
	deliverWebhook(t, srv, "TXN_20260101000000_deadbeef", 1000, http.StatusNotFound)

	// nothing above touched the wallet
	_, bal := doJSON(t, srv, "GET", "/api/v1/wallet/balance", userID, nil)
	assert.Equal(t, "0", bal["balance"])
}

func TestDepositProcessorTimeoutReturns202(t *testing.T) {
	srv := newTestServer(t, &timeoutCheckout{})
	userID, _ := onboardUser(t, srv, "slow@example.com")

	resp, body := doJSON(t, srv, "POST", "/api/v1/wallet/deposit", userID, map[string]any{"amount": "10"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	reference := body["reference"].(string)
	assert.NotEmpty(t, reference)
	assert.Nil(t, body["authorization_url"])

	// the charge landed anyway: the webhook still settles it
	out := deliverWebhook(t, srv, reference, 1000, http.StatusOK)
	assert.Equal(t, "credited", out["status"])
	_, bal := doJSON(t, srv, "GET", "/api/v1/wallet/balance", userID, nil)
	assert.Equal(t, "10", bal["balance"])
}

func TestListTransactions(t *testing.T) {
	srv := newTestServer(t, nil)
	sender, _ := onboardUser(t, srv, "s@example.com")
	_, recipientWallet := onboardUser(t, srv, "r@example.com")
	creditUser(t, srv, sender, "100", 10000)
	resp, _ := doJSON(t, srv, "POST", "/api/v1/wallet/transfer", sender,
		map[string]any{"wallet_number": recipientWallet, "amount": "25"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest("GET", srv.URL+"/api/v1/wallet/transactions", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", sender)
	listResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var txns []map[string]any
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&txns))
	require.Len(t, txns, 2)
	// newest first: transfer then deposit
	assert.Equal(t, "transfer", txns[0]["type"])
	assert.Equal(t, "deposit", txns[1]["type"])
}

func TestHealthAndMetricsExposed(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type timeoutCheckout struct{}

func (timeoutCheckout) InitializeTransaction(ctx context.Context, email string, amountKobo int64, reference string) (string, error) {
	return "", domain.ErrProcessorTimeout
}
