package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitwit/paygate/types"
)

// Postgres implements EntitlementStore and Catalog on a pgx pool. The
// UNIQUE index on entitlements.tx_hash is the enforcement point for the
// one-grant-per-hash invariant; TryGrant never does a check-then-act.
type Postgres struct {
	db *pgxpool.Pool
}

var (
	_ EntitlementStore = (*Postgres)(nil)
	_ Catalog          = (*Postgres)(nil)
)

// NewPostgres wraps an existing pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Init creates the schema if it does not exist.
func (s *Postgres) Init(ctx context.Context) error {
	const op = "store.Init"
	queries := []string{
		`CREATE TABLE IF NOT EXISTS entitlements (
			id UUID PRIMARY KEY,
			principal_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			granted_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT entitlements_tx_hash_key UNIQUE (tx_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entitlements_principal_item
			ON entitlements (principal_id, item_id)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			principal_id TEXT PRIMARY KEY,
			tier_id TEXT NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			price_usd NUMERIC NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			free_with_subscription BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS subscription_tiers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			price_usd NUMERIC NOT NULL,
			duration_days INT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (s *Postgres) HasGrant(ctx context.Context, txHash string) (bool, error) {
	const op = "store.HasGrant"
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM entitlements WHERE tx_hash = $1)`, txHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

func (s *Postgres) TryGrant(ctx context.Context, record types.EntitlementRecord) (bool, error) {
	const op = "store.TryGrant"
	tag, err := s.db.Exec(ctx,
		`INSERT INTO entitlements (id, principal_id, item_id, kind, tx_hash, granted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tx_hash) DO NOTHING`,
		record.ID, record.PrincipalID, record.ItemID, record.Kind, record.TxHash, record.GrantedAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) HasEntitlement(ctx context.Context, principalID, itemID string) (bool, error) {
	const op = "store.HasEntitlement"
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM entitlements WHERE principal_id = $1 AND item_id = $2)`,
		principalID, itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

func (s *Postgres) GetSubscription(ctx context.Context, principalID string) (*types.SubscriptionState, error) {
	const op = "store.GetSubscription"
	var state types.SubscriptionState
	err := s.db.QueryRow(ctx,
		`SELECT tier_id, start_date, end_date, is_active
		 FROM subscriptions WHERE principal_id = $1`, principalID).
		Scan(&state.TierID, &state.StartDate, &state.EndDate, &state.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &state, nil
}

func (s *Postgres) SetSubscription(ctx context.Context, principalID string, state types.SubscriptionState) error {
	const op = "store.SetSubscription"
	_, err := s.db.Exec(ctx,
		`INSERT INTO subscriptions (principal_id, tier_id, start_date, end_date, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (principal_id) DO UPDATE
		 SET tier_id = EXCLUDED.tier_id,
		     start_date = EXCLUDED.start_date,
		     end_date = EXCLUDED.end_date,
		     is_active = EXCLUDED.is_active`,
		principalID, state.TierID, state.StartDate, state.EndDate, state.IsActive)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Postgres) GetVideo(ctx context.Context, id string) (*types.Video, error) {
	const op = "store.GetVideo"
	var v types.Video
	err := s.db.QueryRow(ctx,
		`SELECT id, title, price_usd, is_active, free_with_subscription
		 FROM videos WHERE id = $1`, id).
		Scan(&v.ID, &v.Title, &v.PriceUSD, &v.IsActive, &v.FreeWithSubscription)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &v, nil
}

func (s *Postgres) GetTier(ctx context.Context, id string) (*types.SubscriptionTier, error) {
	const op = "store.GetTier"
	var t types.SubscriptionTier
	err := s.db.QueryRow(ctx,
		`SELECT id, name, price_usd, duration_days, is_active
		 FROM subscription_tiers WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.PriceUSD, &t.DurationDays, &t.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}
