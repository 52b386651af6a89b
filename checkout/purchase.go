package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// PurchaseStatus is the lifecycle status of an externally owned purchase
// record. The checkout core only reads it.
type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "PENDING"
	PurchasePaid     PurchaseStatus = "PAID"
	PurchaseExpired  PurchaseStatus = "EXPIRED"
	PurchaseRefunded PurchaseStatus = "REFUNDED"
)

// Purchase is one buyer's attempt to acquire one item, as reported by the
// purchase service.
type Purchase struct {
	ID              string         `json:"id"`
	ItemID          string         `json:"item_id"`
	IdentityKind    string         `json:"identity_kind"`
	IdentityValue   string         `json:"identity_value"`
	AmountMsats     int64          `json:"amount_msats"`
	PaymentRequest  string         `json:"payment_request"`
	Status          PurchaseStatus `json:"status"`
	DownloadGranted bool           `json:"download_granted"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Settled reports whether the record already grants the item.
func (p *Purchase) Settled() bool {
	return p != nil && (p.DownloadGranted || p.Status == PurchasePaid)
}

// CreateInvoiceRequest asks the purchase service to negotiate a
// server-tracked invoice on the buyer's behalf.
type CreateInvoiceRequest struct {
	ItemID        string `json:"item_id"`
	IdentityKind  string `json:"identity_kind"`
	IdentityValue string `json:"identity_value"`
	AmountSats    int64  `json:"amount_sats"`
	Comment       string `json:"comment,omitempty"`
}

// CheckoutIntent is the purchase service's answer: a pending purchase id
// plus the BOLT11 invoice to pay.
type CheckoutIntent struct {
	PurchaseID     string `json:"purchase_id"`
	PaymentRequest string `json:"pr"`
}

// PurchaseService is the external collaborator owning purchase records.
type PurchaseService interface {
	// FindPurchase returns the latest record for (item, identity), or
	// (nil, nil) when none exists.
	FindPurchase(ctx context.Context, itemID string, id Identity) (*Purchase, error)

	// GetPurchase returns the record for a purchase id.
	GetPurchase(ctx context.Context, purchaseID string) (*Purchase, error)

	// CreateInvoice creates a server-tracked invoice and pending purchase.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*CheckoutIntent, error)
}

// PurchaseClientConfig configures the HTTP purchase-service client
type PurchaseClientConfig struct {
	// BaseURL is the base URL of the purchase service
	BaseURL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// HTTPPurchaseService talks to a remote purchase service over HTTPS.
type HTTPPurchaseService struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPPurchaseService creates a new HTTP purchase-service client
func NewHTTPPurchaseService(config *PurchaseClientConfig) *HTTPPurchaseService {
	if config == nil {
		config = &PurchaseClientConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &HTTPPurchaseService{
		baseURL:    config.BaseURL,
		httpClient: httpClient,
	}
}

func (s *HTTPPurchaseService) FindPurchase(ctx context.Context, itemID string, id Identity) (*Purchase, error) {
	q := url.Values{}
	q.Set("item_id", itemID)
	q.Set("identity_kind", string(id.Kind))
	q.Set("identity_value", id.Value)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/purchases/lookup?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("purchase lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("purchase lookup failed (%d): %s", resp.StatusCode, string(body))
	}

	var purchase Purchase
	if err := json.Unmarshal(body, &purchase); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	return &purchase, nil
}

func (s *HTTPPurchaseService) GetPurchase(ctx context.Context, purchaseID string) (*Purchase, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/purchases/"+url.PathEscape(purchaseID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("purchase status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("purchase status request failed (%d): %s", resp.StatusCode, string(body))
	}

	var purchase Purchase
	if err := json.Unmarshal(body, &purchase); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &purchase, nil
}

func (s *HTTPPurchaseService) CreateInvoice(ctx context.Context, createReq CreateInvoiceRequest) (*CheckoutIntent, error) {
	payload, err := json.Marshal(createReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/purchases/invoice", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoice request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("invoice request failed (%d): %s", resp.StatusCode, string(body))
	}

	var intent CheckoutIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode invoice response: %w", err)
	}
	if intent.PaymentRequest == "" {
		return nil, fmt.Errorf("invoice response missing payment request")
	}
	return &intent, nil
}
