package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	ChargePending   = "pending"
	ChargeSucceeded = "succeeded"
	ChargeFailed    = "failed"
	ChargeRefunded  = "refunded"
)

type Charge struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
	AmountCents  int    `json:"amount_cents"`
}

// Provider: payment gateway eksternal, opaque. Verifikasi signature
// webhook urusan layer luar.
type Provider interface {
	CreateCharge(ctx context.Context, amountCents int, metadata map[string]string) (Charge, error)
	GetCharge(ctx context.Context, chargeID string) (Charge, error)
	Refund(ctx context.Context, chargeID string, amountCents int) (string, error)
}

var ErrProvider = errors.New("payment: provider error")

// HTTPProvider: client JSON sederhana ke payment API. Semua call dibatasi
// timeout — capture yg timeout diperlakukan sebagai gagal, tidak pernah
// dibiarkan menggantung.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) CreateCharge(ctx context.Context, amountCents int, metadata map[string]string) (Charge, error) {
	body := map[string]any{"amount_cents": amountCents, "metadata": metadata}
	var ch Charge
	if err := p.do(ctx, http.MethodPost, "/v1/charges", body, &ch); err != nil {
		return Charge{}, err
	}
	return ch, nil
}

func (p *HTTPProvider) GetCharge(ctx context.Context, chargeID string) (Charge, error) {
	var ch Charge
	if err := p.do(ctx, http.MethodGet, "/v1/charges/"+chargeID, nil, &ch); err != nil {
		return Charge{}, err
	}
	return ch, nil
}

func (p *HTTPProvider) Refund(ctx context.Context, chargeID string, amountCents int) (string, error) {
	body := map[string]any{"charge_id": chargeID, "amount_cents": amountCents}
	var out struct {
		ID string `json:"id"`
	}
	if err := p.do(ctx, http.MethodPost, "/v1/refunds", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s -> %d", ErrProvider, method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
