package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kudiops/walletcore/internal/domain"
	"github.com/kudiops/walletcore/internal/paystack"
	"github.com/kudiops/walletcore/internal/service"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "walletcore_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})

	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_transfers_total",
		Help: "Transfer attempts by result",
	}, []string{"result"})

	depositsInitiated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletcore_deposits_initiated_total",
		Help: "Pending deposits created",
	})

	webhookOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_webhook_events_total",
		Help: "Webhook deliveries by outcome",
	}, []string{"outcome"})
)

// Handler exposes the wallet ledger over HTTP. The caller's identity
// arrives as an opaque X-User-ID header supplied by the identity layer
// in front of this service; nothing here inspects credentials.
type Handler struct {
	wallet     *service.Wallet
	reconciler *service.Reconciler
	logger     *zap.Logger
}

func NewHandler(wallet *service.Wallet, reconciler *service.Reconciler, logger *zap.Logger) *Handler {
	return &Handler{wallet: wallet, reconciler: reconciler, logger: logger}
}

type onboardRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"` // naira
}

type transferRequest struct {
	WalletNumber string          `json:"wallet_number"`
	Amount       decimal.Decimal `json:"amount"` // naira
}

type walletResponse struct {
	WalletNumber string          `json:"wallet_number"`
	Balance      decimal.Decimal `json:"balance"`
	UserID       string          `json:"user_id"`
}

type transactionResponse struct {
	Reference             string          `json:"reference"`
	Type                  string          `json:"type"`
	Amount                decimal.Decimal `json:"amount"`
	Status                string          `json:"status"`
	SenderWalletNumber    string          `json:"sender_wallet_number,omitempty"`
	RecipientWalletNumber string          `json:"recipient_wallet_number,omitempty"`
	AuthorizationURL      string          `json:"authorization_url,omitempty"`
	FailureReason         string          `json:"failure_reason,omitempty"`
	CreatedAt             string          `json:"created_at"`
}

func toWalletResponse(w *domain.Wallet) walletResponse {
	return walletResponse{
		WalletNumber: w.WalletNumber,
		Balance:      domain.KoboToNaira(w.Balance),
		UserID:       w.UserID,
	}
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		Reference:             t.Reference,
		Type:                  string(t.Kind),
		Amount:                domain.KoboToNaira(t.Amount),
		Status:                string(t.Status),
		SenderWalletNumber:    t.SenderWalletNumber,
		RecipientWalletNumber: t.RecipientWalletNumber,
		AuthorizationURL:      t.AuthorizationURL,
		FailureReason:         t.FailureReason,
		CreatedAt:             t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func (h *Handler) Onboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		h.respondError(w, http.StatusBadRequest, "valid email required", "POST", "/users")
		return
	}
	wallet, err := h.wallet.Onboard(r.Context(), req.UserID, req.Email)
	if err != nil {
		h.respondDomainError(w, err, "POST", "/users")
		return
	}
	h.respondJSON(w, http.StatusCreated, toWalletResponse(wallet), "POST", "/users")
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "GET", "/wallet/balance")
	if !ok {
		return
	}
	wallet, err := h.wallet.Balance(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, err, "GET", "/wallet/balance")
		return
	}
	h.respondJSON(w, http.StatusOK, toWalletResponse(wallet), "GET", "/wallet/balance")
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/wallet/transfer"))
	defer timer.ObserveDuration()

	userID, ok := h.userID(w, r, "POST", "/wallet/transfer")
	if !ok {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON", "POST", "/wallet/transfer")
		return
	}
	amount, err := domain.NairaToKobo(req.Amount)
	if err != nil {
		transfersTotal.WithLabelValues("rejected").Inc()
		h.respondDomainError(w, err, "POST", "/wallet/transfer")
		return
	}

	txn, err := h.wallet.Transfer(r.Context(), userID, req.WalletNumber, amount)
	if err != nil {
		transfersTotal.WithLabelValues("rejected").Inc()
		h.respondDomainError(w, err, "POST", "/wallet/transfer")
		return
	}
	transfersTotal.WithLabelValues("success").Inc()
	h.respondJSON(w, http.StatusCreated, toTransactionResponse(txn), "POST", "/wallet/transfer")
}

func (h *Handler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "POST", "/wallet/deposit")
	if !ok {
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON", "POST", "/wallet/deposit")
		return
	}
	amount, err := domain.NairaToKobo(req.Amount)
	if err != nil {
		h.respondDomainError(w, err, "POST", "/wallet/deposit")
		return
	}

	txn, err := h.wallet.InitiateDeposit(r.Context(), userID, amount)
	if errors.Is(err, domain.ErrProcessorTimeout) {
		// The charge may still land; hand back the reference so the
		// caller can poll status once the webhook resolves it.
		depositsInitiated.Inc()
		h.respondJSON(w, http.StatusAccepted, toTransactionResponse(txn), "POST", "/wallet/deposit")
		return
	}
	if err != nil {
		h.respondDomainError(w, err, "POST", "/wallet/deposit")
		return
	}
	depositsInitiated.Inc()
	h.respondJSON(w, http.StatusCreated, toTransactionResponse(txn), "POST", "/wallet/deposit")
}

func (h *Handler) GetDepositStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "GET", "/wallet/deposits/{reference}")
	if !ok {
		return
	}
	reference := mux.Vars(r)["reference"]
	txn, err := h.wallet.DepositStatus(r.Context(), userID, reference)
	if err != nil {
		h.respondDomainError(w, err, "GET", "/wallet/deposits/{reference}")
		return
	}
	h.respondJSON(w, http.StatusOK, toTransactionResponse(txn), "GET", "/wallet/deposits/{reference}")
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "GET", "/wallet/transactions")
	if !ok {
		return
	}
	txns, err := h.wallet.History(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, err, "GET", "/wallet/transactions")
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	h.respondJSON(w, http.StatusOK, out, "GET", "/wallet/transactions")
}

// PaystackWebhook is unauthenticated by the identity system; the HMAC
// signature over the raw body is the only gate.
func (h *Handler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "stream read error", "POST", "/webhook/paystack")
		return
	}
	signature := r.Header.Get(paystack.SignatureHeader)

	outcome, err := h.reconciler.Reconcile(r.Context(), body, signature)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			webhookOutcomes.WithLabelValues("rejected_signature").Inc()
			h.respondError(w, http.StatusUnauthorized, "invalid signature", "POST", "/webhook/paystack")
		case errors.Is(err, domain.ErrUnknownReference):
			webhookOutcomes.WithLabelValues("rejected_unknown").Inc()
			h.respondError(w, http.StatusNotFound, "unknown reference", "POST", "/webhook/paystack")
		default:
			webhookOutcomes.WithLabelValues("error").Inc()
			h.logger.Error("webhook reconcile failed", zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "reconciliation failed", "POST", "/webhook/paystack")
		}
		return
	}
	webhookOutcomes.WithLabelValues(outcome.String()).Inc()
	h.respondJSON(w, http.StatusOK, map[string]string{"status": outcome.String()}, "POST", "/webhook/paystack")
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request, method, endpoint string) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.respondError(w, http.StatusUnauthorized, "missing X-User-ID", method, endpoint)
		return "", false
	}
	return userID, true
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error, method, endpoint string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInsufficientFunds):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrWalletNotFound),
		errors.Is(err, domain.ErrRecipientNotFound),
		errors.Is(err, domain.ErrUnknownReference):
		h.respondError(w, http.StatusNotFound, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrUserExists):
		h.respondError(w, http.StatusConflict, err.Error(), method, endpoint)
	default:
		h.logger.Error("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error", method, endpoint)
	}
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response encode failed", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
