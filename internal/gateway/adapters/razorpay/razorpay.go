package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medsera/returns/internal/config"
	"github.com/medsera/returns/internal/gateway/adapters"
	"github.com/medsera/returns/internal/gateway/domain"
)

const providerName = "razorpay"

type factory struct{}

func NewFactory() adapters.Factory { return factory{} }

func (factory) Provider() string { return providerName }

func (factory) NewGateway(cfg config.GatewayConfig) (domain.Gateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("razorpay base url is required")
	}
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	return &gateway{
		baseURL:   baseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type gateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func (g *gateway) Provider() string { return providerName }

type refundBody struct {
	Amount int64             `json:"amount"`
	Speed  string            `json:"speed,omitempty"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Refund issues POST /v1/payments/{id}/refund. Razorpay deduplicates on
// payment reference + amount, so replays after a transport failure are safe.
func (g *gateway) Refund(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	payload, err := json.Marshal(refundBody{
		Amount: req.Amount,
		Speed:  req.Speed,
		Notes:  req.Notes,
	})
	if err != nil {
		return nil, &domain.Error{Provider: providerName, Err: err}
	}

	url := fmt.Sprintf("%s/v1/payments/%s/refund", g.baseURL, req.PaymentReference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.Error{Provider: providerName, Err: err}
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &domain.Error{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.Error{Provider: providerName, Err: err}
	}

	var parsed refundResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.Error{Provider: providerName, Err: fmt.Errorf("unexpected response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			detail = fmt.Sprintf("%s: %s", parsed.Error.Code, parsed.Error.Description)
		}
		return nil, &domain.Error{Provider: providerName, Err: errors.New(detail)}
	}
	if parsed.ID == "" {
		return nil, &domain.Error{Provider: providerName, Err: errors.New("missing refund id in response")}
	}

	status := strings.ToLower(strings.TrimSpace(parsed.Status))
	switch status {
	case domain.StatusProcessed, domain.StatusPending, domain.StatusFailed:
	default:
		status = domain.StatusPending
	}

	return &domain.RefundResult{
		ProviderRefundID: parsed.ID,
		Status:           status,
	}, nil
}
