package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LemonSchneid/Bit-Indie-sub000/checkout"
	"github.com/LemonSchneid/Bit-Indie-sub000/internal/store"
	"github.com/LemonSchneid/Bit-Indie-sub000/lnurl"
)

type stubStore struct {
	items     map[string]*store.Item
	purchases map[string]*checkout.Purchase
	created   []store.CreatePurchaseParams
}

func newStubStore() *stubStore {
	return &stubStore{
		items:     make(map[string]*store.Item),
		purchases: make(map[string]*checkout.Purchase),
	}
}

func (s *stubStore) GetItem(ctx context.Context, itemID string) (*store.Item, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return item, nil
}

func (s *stubStore) CreatePurchase(ctx context.Context, params store.CreatePurchaseParams) (*checkout.Purchase, error) {
	s.created = append(s.created, params)
	p := &checkout.Purchase{
		ID:             fmt.Sprintf("p-%d", len(s.created)),
		ItemID:         params.ItemID,
		IdentityKind:   params.IdentityKind,
		IdentityValue:  params.IdentityValue,
		AmountMsats:    params.AmountMsats,
		PaymentRequest: params.PaymentRequest,
		Status:         checkout.PurchasePending,
	}
	s.purchases[p.ID] = p
	return p, nil
}

func (s *stubStore) GetPurchase(ctx context.Context, purchaseID string) (*checkout.Purchase, error) {
	p, ok := s.purchases[purchaseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *stubStore) FindPurchase(ctx context.Context, itemID, kind, value string) (*checkout.Purchase, error) {
	for _, p := range s.purchases {
		if p.ItemID == itemID && p.IdentityKind == kind && p.IdentityValue == value {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) MarkPaid(ctx context.Context, purchaseID string) (*checkout.Purchase, error) {
	p, ok := s.purchases[purchaseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Status = checkout.PurchasePaid
	p.DownloadGranted = true
	return p, nil
}

// fakeLNURLEndpoint serves pay params at /lnurlp and invoices at /cb.
func fakeLNURLEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/lnurlp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag":"payRequest","callback":"%s/cb","minSendable":1000,"maxSendable":100000000,"metadata":"[]"}`, srv.URL)
	})
	mux.HandleFunc("/cb", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"pr":"lnbc1fake%s","routes":[]}`, r.URL.Query().Get("amount"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, st PurchaseStore) *Server {
	t.Helper()
	return New(st, lnurl.NewClient(nil), Config{
		PlatformFeePercent: decimal.NewFromInt(10),
		CommentMaxLength:   255,
	})
}

func doJSON(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateInvoice(t *testing.T) {
	lnurlSrv := fakeLNURLEndpoint(t)
	st := newStubStore()
	st.items["game-42"] = &store.Item{
		ID:        "game-42",
		Title:     "Moon Lander",
		PriceSats: 2000,
		LNURL:     lnurlSrv.URL + "/lnurlp",
	}
	s := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/api/purchases/invoice",
		`{"item_id":"game-42","identity_kind":"user","identity_value":"u1","amount_sats":2500}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var intent checkout.CheckoutIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &intent))
	assert.NotEmpty(t, intent.PurchaseID)
	assert.True(t, strings.HasPrefix(intent.PaymentRequest, "lnbc1fake"))

	require.Len(t, st.created, 1)
	created := st.created[0]
	assert.Equal(t, int64(2500*1000), created.AmountMsats, "tip above the listed price is honored")
	assert.Equal(t, int64(250), created.PlatformFeeSats)
	assert.Equal(t, int64(2250), created.DeveloperShareSats)
}

func TestCreateInvoiceEnforcesListedPrice(t *testing.T) {
	lnurlSrv := fakeLNURLEndpoint(t)
	st := newStubStore()
	st.items["game-42"] = &store.Item{ID: "game-42", PriceSats: 2000, LNURL: lnurlSrv.URL + "/lnurlp"}
	s := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/api/purchases/invoice",
		`{"item_id":"game-42","identity_kind":"user","identity_value":"u1","amount_sats":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, st.created, 1)
	assert.Equal(t, int64(2000*1000), st.created[0].AmountMsats, "listed price is the floor")
}

func TestCreateInvoiceRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t, newStubStore())

	cases := []string{
		`{}`,
		`{"item_id":"","identity_kind":"user","identity_value":"u1","amount_sats":1}`,
		`{"item_id":"g","identity_kind":"ghost","identity_value":"u1","amount_sats":1}`,
		`{"item_id":"g","identity_kind":"user","identity_value":"u1","amount_sats":0}`,
		`{"item_id":"g","identity_kind":"user","identity_value":"u1","amount_sats":"ten"}`,
		`not json`,
	}
	for _, body := range cases {
		rec := doJSON(t, s, http.MethodPost, "/api/purchases/invoice", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestCreateInvoiceUnknownItem(t *testing.T) {
	s := newTestServer(t, newStubStore())
	rec := doJSON(t, s, http.MethodPost, "/api/purchases/invoice",
		`{"item_id":"nope","identity_kind":"user","identity_value":"u1","amount_sats":100}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateInvoiceSurfacesRemoteReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ERROR","reason":"Payments disabled"}`)
	}))
	defer srv.Close()

	st := newStubStore()
	st.items["game-42"] = &store.Item{ID: "game-42", PriceSats: 100, LNURL: srv.URL}
	s := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/api/purchases/invoice",
		`{"item_id":"game-42","identity_kind":"user","identity_value":"u1","amount_sats":100}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payments disabled")
}

func TestCreateInvoiceTruncatesCommentOnRuneBoundary(t *testing.T) {
	var gotComment string
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/lnurlp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag":"payRequest","callback":"%s/cb","minSendable":1000,"maxSendable":100000000,"metadata":"[]"}`, srv.URL)
	})
	mux.HandleFunc("/cb", func(w http.ResponseWriter, r *http.Request) {
		gotComment = r.URL.Query().Get("comment")
		fmt.Fprint(w, `{"pr":"lnbc1fake","routes":[]}`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	st := newStubStore()
	st.items["game-42"] = &store.Item{ID: "game-42", PriceSats: 100, LNURL: srv.URL + "/lnurlp"}
	s := New(st, lnurl.NewClient(nil), Config{
		PlatformFeePercent: decimal.NewFromInt(10),
		CommentMaxLength:   5,
	})

	rec := doJSON(t, s, http.MethodPost, "/api/purchases/invoice",
		`{"item_id":"game-42","identity_kind":"user","identity_value":"u1","amount_sats":100,"comment":"дякую за гру"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "дякую", gotComment, "comment must be cut after 5 runes")
	assert.True(t, utf8.ValidString(gotComment), "truncation must not split a rune")
}

func TestGetPurchase(t *testing.T) {
	st := newStubStore()
	st.purchases["p-1"] = &checkout.Purchase{ID: "p-1", ItemID: "game-42", Status: checkout.PurchasePending}
	s := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodGet, "/api/purchases/p-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var p checkout.Purchase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, checkout.PurchasePending, p.Status)

	rec = doJSON(t, s, http.MethodGet, "/api/purchases/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLookupPurchase(t *testing.T) {
	st := newStubStore()
	st.purchases["p-1"] = &checkout.Purchase{
		ID: "p-1", ItemID: "game-42", IdentityKind: "anon", IdentityValue: "device-9",
		Status: checkout.PurchasePaid, DownloadGranted: true,
	}
	s := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodGet,
		"/api/purchases/lookup?item_id=game-42&identity_kind=anon&identity_value=device-9", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet,
		"/api/purchases/lookup?item_id=game-42&identity_kind=anon&identity_value=other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/purchases/lookup?item_id=game-42", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettlementWebhook(t *testing.T) {
	st := newStubStore()
	st.purchases["p-1"] = &checkout.Purchase{ID: "p-1", ItemID: "game-42", Status: checkout.PurchasePending}
	s := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/api/webhooks/settlement", `{"purchase_id":"p-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var p checkout.Purchase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, checkout.PurchasePaid, p.Status)
	assert.True(t, p.DownloadGranted)

	rec = doJSON(t, s, http.MethodPost, "/api/webhooks/settlement", `{"purchase_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/webhooks/settlement", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
