package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all routes. The webhook endpoint lives outside the
// authenticated surface; its gate is the payload signature.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/users", h.Onboard).Methods("POST")
	apiV1.HandleFunc("/wallet/balance", h.GetBalance).Methods("GET")
	apiV1.HandleFunc("/wallet/deposit", h.InitiateDeposit).Methods("POST")
	apiV1.HandleFunc("/wallet/deposits/{reference}", h.GetDepositStatus).Methods("GET")
	apiV1.HandleFunc("/wallet/transfer", h.CreateTransfer).Methods("POST")
	apiV1.HandleFunc("/wallet/transactions", h.ListTransactions).Methods("GET")
	apiV1.HandleFunc("/webhook/paystack", h.PaystackWebhook).Methods("POST")
	return r
}
