// Package server exposes the purchase service over HTTP: invoice creation,
// purchase lookup and status polling, and the settlement webhook.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"github.com/LemonSchneid/Bit-Indie-sub000/checkout"
	"github.com/LemonSchneid/Bit-Indie-sub000/internal/store"
	"github.com/LemonSchneid/Bit-Indie-sub000/lnurl"
)

// PurchaseStore is the slice of the storage layer the handlers need.
type PurchaseStore interface {
	GetItem(ctx context.Context, itemID string) (*store.Item, error)
	CreatePurchase(ctx context.Context, params store.CreatePurchaseParams) (*checkout.Purchase, error)
	GetPurchase(ctx context.Context, purchaseID string) (*checkout.Purchase, error)
	FindPurchase(ctx context.Context, itemID, identityKind, identityValue string) (*checkout.Purchase, error)
	MarkPaid(ctx context.Context, purchaseID string) (*checkout.Purchase, error)
}

// Config carries the handler knobs.
type Config struct {
	PlatformFeePercent decimal.Decimal
	CommentMaxLength   int
	Logger             *slog.Logger
}

type Server struct {
	echo   *echo.Echo
	store  PurchaseStore
	lnurl  *lnurl.Client
	cfg    Config
	logger *slog.Logger
}

func New(st PurchaseStore, client *lnurl.Client, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CommentMaxLength <= 0 {
		cfg.CommentMaxLength = 255
	}
	if client == nil {
		client = lnurl.NewClient(nil)
	}

	s := &Server{
		echo:   e,
		store:  st,
		lnurl:  client,
		cfg:    cfg,
		logger: cfg.Logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	purchases := api.Group("/purchases")
	purchases.POST("/invoice", s.createInvoice)
	purchases.GET("/lookup", s.lookupPurchase)
	purchases.GET("/:id", s.getPurchase)

	webhooks := api.Group("/webhooks")
	webhooks.POST("/settlement", s.settlePurchase)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
