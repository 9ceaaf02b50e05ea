package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kudiops/walletcore/internal/domain"
)

const DefaultBaseURL = "https://api.paystack.co"

// Client calls the Paystack REST API. Every call carries a bounded
// timeout; a timed-out checkout initialization must be treated as
// unresolved, not failed, because the charge may still land.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	logger    *zap.Logger
}

func NewClient(baseURL, secretKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type initializeRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"` // kobo
	Reference string `json:"reference"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type checkoutData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// InitializeTransaction requests a hosted-checkout handle for reference.
// The reference ties the later webhook back to the pending transaction.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amountKobo int64, reference string) (string, error) {
	body, err := json.Marshal(initializeRequest{Email: email, Amount: amountKobo, Reference: reference})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("paystack initialize timed out", zap.String("reference", reference))
			return "", domain.ErrProcessorTimeout
		}
		return "", fmt.Errorf("paystack initialize: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("paystack initialize decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.Status {
		return "", fmt.Errorf("paystack initialize rejected: %s", envelope.Message)
	}

	var data checkoutData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return "", fmt.Errorf("paystack initialize decode: %w", err)
	}
	return data.AuthorizationURL, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
