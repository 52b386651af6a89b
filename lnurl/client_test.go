package lnurl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestFetchPayParams(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{
		"tag": "payRequest",
		"callback": "https://pay.example.com/cb",
		"minSendable": 1000,
		"maxSendable": 200000,
		"metadata": "[[\"text/plain\",\"demo\"]]",
		"allowsNostr": true
	}`))
	defer srv.Close()

	params, err := NewClient(nil).FetchPayParams(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if params.Callback != "https://pay.example.com/cb" {
		t.Errorf("callback = %q", params.Callback)
	}
	if params.MinSendable != 1000 || params.MaxSendable != 200000 {
		t.Errorf("bounds = %d..%d", params.MinSendable, params.MaxSendable)
	}
	if !params.AllowsNostr {
		t.Error("allowsNostr not carried over")
	}
}

func TestFetchPayParamsRemoteError(t *testing.T) {
	// A remote that reports ERROR wins even when the rest of the body is a
	// plausible payRequest.
	srv := httptest.NewServer(jsonHandler(200, `{
		"tag": "payRequest",
		"status": "ERROR",
		"reason": "Payments disabled",
		"callback": "https://x/y",
		"minSendable": 1000,
		"maxSendable": 200000,
		"metadata": "[]"
	}`))
	defer srv.Close()

	_, err := NewClient(nil).FetchPayParams(context.Background(), srv.URL)
	if !IsRemoteError(err) {
		t.Fatalf("err = %v, want remote error", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Message != "Payments disabled" {
		t.Errorf("reason not surfaced verbatim: %v", err)
	}
}

func TestFetchPayParamsValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
	}{
		{"wrong tag", `{"tag":"withdrawRequest","callback":"https://x","minSendable":1,"maxSendable":2}`, ErrCodeInvalidResponse},
		{"missing callback", `{"tag":"payRequest","minSendable":1,"maxSendable":2}`, ErrCodeInvalidResponse},
		{"missing bounds", `{"tag":"payRequest","callback":"https://x"}`, ErrCodeInvalidResponse},
		{"inverted bounds", `{"tag":"payRequest","callback":"https://x","minSendable":10,"maxSendable":2}`, ErrCodeInvalidResponse},
		{"not json", `<html>nope</html>`, ErrCodeInvalidResponse},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(200, c.body))
			defer srv.Close()
			_, err := NewClient(nil).FetchPayParams(context.Background(), srv.URL)
			if ErrorCode(err) != c.code {
				t.Errorf("err = %v, want %s", err, c.code)
			}
		})
	}
}

func TestFetchPayParamsMetadataDefaultsEmpty(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"tag":"payRequest","callback":"https://x","minSendable":1000,"maxSendable":2000}`))
	defer srv.Close()

	params, err := NewClient(nil).FetchPayParams(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if params.Metadata != "" {
		t.Errorf("metadata = %q, want empty", params.Metadata)
	}
}

func TestFetchPayParamsUnreachable(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(503, `oops`))
	defer srv.Close()

	_, err := NewClient(nil).FetchPayParams(context.Background(), srv.URL)
	if ErrorCode(err) != ErrCodeUnreachable {
		t.Errorf("err = %v, want %s", err, ErrCodeUnreachable)
	}
}

func TestRequestInvoice(t *testing.T) {
	var gotAmount, gotComment string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAmount = r.URL.Query().Get("amount")
		gotComment = r.URL.Query().Get("comment")
		jsonHandler(200, `{"pr":"lnbc210n1demo","routes":[]}`)(w, r)
	}))
	defer srv.Close()

	params := &PayParams{Callback: srv.URL + "/cb?session=9", MinSendable: 1000, MaxSendable: 1000000}
	inv, err := NewClient(nil).RequestInvoice(context.Background(), params, 21, "thanks for the game")
	if err != nil {
		t.Fatal(err)
	}
	if inv.PaymentRequest != "lnbc210n1demo" {
		t.Errorf("pr = %q", inv.PaymentRequest)
	}
	if gotAmount != "21000" {
		t.Errorf("amount = %q, want 21000 msats", gotAmount)
	}
	if gotComment != "thanks for the game" {
		t.Errorf("comment = %q", gotComment)
	}
}

func TestRequestInvoiceZeroAmountFailsBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	params := &PayParams{Callback: srv.URL, MinSendable: 1000, MaxSendable: 2000}
	_, err := NewClient(nil).RequestInvoice(context.Background(), params, 0, "")
	if ErrorCode(err) != ErrCodeInvalidAmount {
		t.Fatalf("err = %v, want %s", err, ErrCodeInvalidAmount)
	}
	if called {
		t.Error("callback was hit despite invalid amount")
	}
}

func TestRequestInvoiceRemoteError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"status":"ERROR","reason":"Route not found"}`))
	defer srv.Close()

	params := &PayParams{Callback: srv.URL, MinSendable: 1000, MaxSendable: 2000}
	_, err := NewClient(nil).RequestInvoice(context.Background(), params, 5, "")
	if !IsRemoteError(err) {
		t.Fatalf("err = %v, want remote error", err)
	}
}

func TestRequestInvoiceMissingPaymentRequest(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"routes":[]}`))
	defer srv.Close()

	params := &PayParams{Callback: srv.URL, MinSendable: 1000, MaxSendable: 2000}
	_, err := NewClient(nil).RequestInvoice(context.Background(), params, 5, "")
	if ErrorCode(err) != ErrCodeInvalidResponse {
		t.Errorf("err = %v, want %s", err, ErrCodeInvalidResponse)
	}
}
