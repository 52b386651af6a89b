// Package lnurl implements the payer side of the LNURL-pay protocol:
// resolving a payment destination to an HTTPS endpoint, fetching its pay
// parameters, and requesting a BOLT11 invoice for a specific amount.
package lnurl

// TokenPrefix is the human-readable part carried by bech32-encoded LNURL
// tokens, including the separator.
const TokenPrefix = "lnurl1"

// Destination identifies a payee. LNURL takes priority over
// LightningAddress when both are set.
type Destination struct {
	// LightningAddress is a name@domain identifier mapping to an LNURL-pay
	// endpoint via the well-known path.
	LightningAddress string

	// LNURL is either a bech32 "lnurl1…" token or a plain http(s) URL.
	LNURL string
}

// PayParams are the payment parameters advertised by an LNURL-pay endpoint.
// Invariant: 0 < MinSendable <= MaxSendable (both millisats).
type PayParams struct {
	Callback    string
	MinSendable int64
	MaxSendable int64
	Metadata    string
	AllowsNostr bool
}

// Invoice is a normalized invoice returned by an LNURL-pay callback.
type Invoice struct {
	// PaymentRequest is the BOLT11 invoice string.
	PaymentRequest string
	Routes         []string
	SuccessAction  map[string]interface{}
	Disposable     *bool
}

// payParamsResponse is the wire shape of the pay-parameters endpoint.
// Required fields are pointers so absence is distinguishable from zero.
type payParamsResponse struct {
	Status      string  `json:"status,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Tag         string  `json:"tag"`
	Callback    *string `json:"callback"`
	MinSendable *int64  `json:"minSendable"`
	MaxSendable *int64  `json:"maxSendable"`
	Metadata    *string `json:"metadata"`
	AllowsNostr bool    `json:"allowsNostr,omitempty"`
}

// invoiceResponse is the wire shape of the invoice callback.
type invoiceResponse struct {
	Status        string                 `json:"status,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	PR            string                 `json:"pr"`
	Routes        []string               `json:"routes"`
	SuccessAction map[string]interface{} `json:"successAction,omitempty"`
	Disposable    *bool                  `json:"disposable,omitempty"`
}

// statusError is the explicit failure wire shape shared by both endpoints.
const statusError = "ERROR"
