package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/LemonSchneid/Bit-Indie-sub000/checkout"
	"github.com/LemonSchneid/Bit-Indie-sub000/internal/store"
	"github.com/LemonSchneid/Bit-Indie-sub000/lnurl"
)

type errorResponse struct {
	Error string `json:"error"`
}

// createInvoice negotiates a server-tracked invoice for an item and records
// the pending purchase.
func (s *Server) createInvoice(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
	}
	if err := validateCreateInvoice(body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	var req checkout.CreateInvoiceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	ctx := c.Request().Context()

	item, err := s.store.GetItem(ctx, req.ItemID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "item not found"})
	}
	if err != nil {
		s.logger.Error("item lookup failed", "item_id", req.ItemID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}

	endpoint, err := lnurl.ResolvePayEndpoint(lnurl.Destination{
		LightningAddress: item.LightningAddress,
		LNURL:            item.LNURL,
	})
	if err != nil {
		s.logger.Error("destination resolution failed", "item_id", item.ID, "error", err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "seller payment destination is invalid"})
	}

	params, err := s.lnurl.FetchPayParams(ctx, endpoint)
	if err != nil {
		return s.lnurlError(c, item.ID, err)
	}

	// The listed price is the floor; buyers may tip above it.
	amountSats := req.AmountSats
	if amountSats < item.PriceSats {
		amountSats = item.PriceSats
	}
	amountSats = lnurl.ClampAmount(amountSats, params)

	// Truncate on rune boundaries so a multi-byte character is never split
	// into invalid UTF-8.
	comment := req.Comment
	if runes := []rune(comment); len(runes) > s.cfg.CommentMaxLength {
		comment = string(runes[:s.cfg.CommentMaxLength])
	}

	invoice, err := s.lnurl.RequestInvoice(ctx, params, amountSats, comment)
	if err != nil {
		return s.lnurlError(c, item.ID, err)
	}

	split, err := store.SplitRevenue(amountSats, s.cfg.PlatformFeePercent)
	if err != nil {
		s.logger.Error("revenue split failed", "item_id", item.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}

	purchase, err := s.store.CreatePurchase(ctx, store.CreatePurchaseParams{
		ItemID:             item.ID,
		IdentityKind:       req.IdentityKind,
		IdentityValue:      req.IdentityValue,
		AmountMsats:        amountSats * lnurl.MsatsPerSat,
		PlatformFeeSats:    split.PlatformFeeSats,
		DeveloperShareSats: split.DeveloperShareSats,
		PaymentRequest:     invoice.PaymentRequest,
	})
	if err != nil {
		s.logger.Error("purchase creation failed", "item_id", item.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}

	s.logger.Info("invoice created",
		"purchase_id", purchase.ID,
		"item_id", item.ID,
		"identity_kind", req.IdentityKind,
		"amount_sats", amountSats)

	return c.JSON(http.StatusCreated, checkout.CheckoutIntent{
		PurchaseID:     purchase.ID,
		PaymentRequest: invoice.PaymentRequest,
	})
}

// lnurlError maps negotiation failures onto responses. Remote protocol
// reasons pass through so the storefront can show them verbatim.
func (s *Server) lnurlError(c echo.Context, itemID string, err error) error {
	s.logger.Warn("lnurl negotiation failed", "item_id", itemID, "code", lnurl.ErrorCode(err), "error", err)
	if lnurl.IsRemoteError(err) {
		var e *lnurl.Error
		if errors.As(err, &e) {
			return c.JSON(http.StatusBadGateway, errorResponse{Error: e.Message})
		}
	}
	if lnurl.ErrorCode(err) == lnurl.ErrCodeInvalidAmount {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid amount"})
	}
	return c.JSON(http.StatusBadGateway, errorResponse{Error: "payment endpoint unavailable"})
}

func (s *Server) getPurchase(c echo.Context) error {
	purchase, err := s.store.GetPurchase(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "purchase not found"})
	}
	if err != nil {
		s.logger.Error("purchase fetch failed", "purchase_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
	return c.JSON(http.StatusOK, purchase)
}

func (s *Server) lookupPurchase(c echo.Context) error {
	itemID := c.QueryParam("item_id")
	kind := c.QueryParam("identity_kind")
	value := c.QueryParam("identity_value")
	if itemID == "" || kind == "" || value == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "item_id, identity_kind and identity_value are required"})
	}

	purchase, err := s.store.FindPurchase(c.Request().Context(), itemID, kind, value)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no purchase for this item and identity"})
	}
	if err != nil {
		s.logger.Error("purchase lookup failed", "item_id", itemID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
	return c.JSON(http.StatusOK, purchase)
}

type settlementWebhook struct {
	PurchaseID string `json:"purchase_id"`
}

// settlePurchase is the payment-processor callback confirming settlement.
func (s *Server) settlePurchase(c echo.Context) error {
	var hook settlementWebhook
	if err := c.Bind(&hook); err != nil || hook.PurchaseID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "purchase_id is required"})
	}

	purchase, err := s.store.MarkPaid(c.Request().Context(), hook.PurchaseID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "purchase not found"})
	}
	if err != nil {
		s.logger.Error("settlement failed", "purchase_id", hook.PurchaseID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}

	s.logger.Info("purchase settled", "purchase_id", purchase.ID, "item_id", purchase.ItemID)
	return c.JSON(http.StatusOK, purchase)
}
