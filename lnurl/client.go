package lnurl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ClientConfig configures the LNURL-pay client
type ClientConfig struct {
	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// Client negotiates LNURL-pay flows against a resolved endpoint. It holds no
// timers and no state beyond its HTTP client, so it is safe for concurrent
// use.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new LNURL-pay client
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
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

	return &Client{httpClient: httpClient}
}

// FetchPayParams fetches and validates the pay parameters advertised by an
// LNURL-pay endpoint.
func (c *Client) FetchPayParams(ctx context.Context, endpoint string) (*PayParams, error) {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp payParamsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewError(ErrCodeInvalidResponse, fmt.Sprintf("malformed pay parameters: %v", err), nil)
	}

	// An explicit remote failure wins over everything else; its reason is
	// surfaced verbatim.
	if resp.Status == statusError {
		return nil, NewError(ErrCodeRemoteError, resp.Reason, nil)
	}
	if resp.Tag != "payRequest" {
		return nil, NewError(ErrCodeInvalidResponse, fmt.Sprintf("unexpected tag %q", resp.Tag), nil)
	}
	if resp.Callback == nil || *resp.Callback == "" {
		return nil, NewError(ErrCodeInvalidResponse, "pay parameters missing callback", nil)
	}
	if resp.MinSendable == nil || resp.MaxSendable == nil {
		return nil, NewError(ErrCodeInvalidResponse, "pay parameters missing sendable bounds", nil)
	}
	if *resp.MinSendable <= 0 || *resp.MinSendable > *resp.MaxSendable {
		return nil, NewError(ErrCodeInvalidResponse, fmt.Sprintf("invalid sendable bounds %d..%d", *resp.MinSendable, *resp.MaxSendable), nil)
	}

	params := &PayParams{
		Callback:    *resp.Callback,
		MinSendable: *resp.MinSendable,
		MaxSendable: *resp.MaxSendable,
		AllowsNostr: resp.AllowsNostr,
	}
	if resp.Metadata != nil {
		params.Metadata = *resp.Metadata
	}
	return params, nil
}

// RequestInvoice asks the endpoint's callback for a BOLT11 invoice covering
// amountSats, with an optional comment. The amount is validated before any
// network call is made.
func (c *Client) RequestInvoice(ctx context.Context, params *PayParams, amountSats int64, comment string) (*Invoice, error) {
	amountMsats := amountSats * MsatsPerSat
	if amountMsats <= 0 {
		return nil, NewError(ErrCodeInvalidAmount, fmt.Sprintf("invoice amount must be positive, got %d sats", amountSats), nil)
	}

	callback, err := url.Parse(params.Callback)
	if err != nil {
		return nil, NewError(ErrCodeInvalidResponse, fmt.Sprintf("invalid callback URL: %v", err), nil)
	}
	q := callback.Query()
	q.Set("amount", strconv.FormatInt(amountMsats, 10))
	if comment != "" {
		q.Set("comment", comment)
	}
	callback.RawQuery = q.Encode()

	body, err := c.get(ctx, callback.String())
	if err != nil {
		return nil, err
	}

	var resp invoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewError(ErrCodeInvalidResponse, fmt.Sprintf("malformed invoice response: %v", err), nil)
	}
	if resp.Status == statusError {
		return nil, NewError(ErrCodeRemoteError, resp.Reason, nil)
	}
	if resp.PR == "" {
		return nil, NewError(ErrCodeInvalidResponse, "invoice response missing payment request", nil)
	}

	return &Invoice{
		PaymentRequest: resp.PR,
		Routes:         resp.Routes,
		SuccessAction:  resp.SuccessAction,
		Disposable:     resp.Disposable,
	}, nil
}

// get issues a GET and returns the response body, mapping transport failures
// and non-2xx statuses to unreachable errors.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewError(ErrCodeUnreachable, fmt.Sprintf("failed to create request: %v", err), nil)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Context cancellation is not an endpoint failure; let callers
		// tell the two apart.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewError(ErrCodeUnreachable, fmt.Sprintf("request failed: %v", err), nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(ErrCodeUnreachable, fmt.Sprintf("failed to read response body: %v", err), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewError(ErrCodeUnreachable, fmt.Sprintf("endpoint returned %d", resp.StatusCode), map[string]interface{}{
			"body": string(body),
		})
	}
	return body, nil
}
