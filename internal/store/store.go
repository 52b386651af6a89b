// Package store persists purchase records and item listings for the
// purchase service. It is the authoritative owner of the records the
// checkout core only reads.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LemonSchneid/Bit-Indie-sub000/checkout"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Item is a sellable listing with its payee destination.
type Item struct {
	ID               string
	Title            string
	PriceSats        int64
	LightningAddress string
	LNURL            string
	CreatedAt        time.Time
}

// Store wraps a pgx pool with the purchase service's queries.
type Store struct {
	pool *pgxpool.Pool
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func RunMigrations(databaseURL string) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	d, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetItem(ctx context.Context, itemID string) (*Item, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, price_sats, lightning_address, lnurl, created_at
		FROM items WHERE id = $1`, itemID)

	var item Item
	err := row.Scan(&item.ID, &item.Title, &item.PriceSats, &item.LightningAddress, &item.LNURL, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// CreatePurchaseParams are the fields of a new pending purchase.
type CreatePurchaseParams struct {
	ItemID             string
	IdentityKind       string
	IdentityValue      string
	AmountMsats        int64
	PlatformFeeSats    int64
	DeveloperShareSats int64
	PaymentRequest     string
}

func (s *Store) CreatePurchase(ctx context.Context, params CreatePurchaseParams) (*checkout.Purchase, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO purchases (
			id, item_id, identity_kind, identity_value, amount_msats,
			platform_fee_sats, developer_share_sats, payment_request
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, item_id, identity_kind, identity_value, amount_msats,
			payment_request, status, download_granted, created_at`,
		id, params.ItemID, params.IdentityKind, params.IdentityValue,
		params.AmountMsats, params.PlatformFeeSats, params.DeveloperShareSats,
		params.PaymentRequest)

	purchase, err := scanPurchase(row)
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	return purchase, nil
}

func (s *Store) GetPurchase(ctx context.Context, purchaseID string) (*checkout.Purchase, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, item_id, identity_kind, identity_value, amount_msats,
			payment_request, status, download_granted, created_at
		FROM purchases WHERE id = $1`, purchaseID)

	purchase, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return purchase, nil
}

// FindPurchase returns the most recent purchase for (item, identity),
// preferring settled rows so a paid purchase is never shadowed by a newer
// pending retry.
func (s *Store) FindPurchase(ctx context.Context, itemID, identityKind, identityValue string) (*checkout.Purchase, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, item_id, identity_kind, identity_value, amount_msats,
			payment_request, status, download_granted, created_at
		FROM purchases
		WHERE item_id = $1 AND identity_kind = $2 AND identity_value = $3
		ORDER BY (status = 'PAID' OR download_granted) DESC, created_at DESC
		LIMIT 1`, itemID, identityKind, identityValue)

	purchase, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find purchase: %w", err)
	}
	return purchase, nil
}

// MarkPaid settles a purchase and grants its download.
func (s *Store) MarkPaid(ctx context.Context, purchaseID string) (*checkout.Purchase, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE purchases
		SET status = 'PAID', download_granted = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING id, item_id, identity_kind, identity_value, amount_msats,
			payment_request, status, download_granted, created_at`, purchaseID)

	purchase, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark purchase paid: %w", err)
	}
	return purchase, nil
}

// ExpireStalePending marks PENDING purchases older than maxAge as EXPIRED
// and returns how many rows changed.
func (s *Store) ExpireStalePending(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE purchases
		SET status = 'EXPIRED', updated_at = now()
		WHERE status = 'PENDING' AND created_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(maxAge.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("expire stale purchases: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPurchase(row pgx.Row) (*checkout.Purchase, error) {
	var p checkout.Purchase
	err := row.Scan(&p.ID, &p.ItemID, &p.IdentityKind, &p.IdentityValue,
		&p.AmountMsats, &p.PaymentRequest, &p.Status, &p.DownloadGranted, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
