package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
)

// PushSubscriptionAdapter implements out.PushSubscriptionStore using PostgreSQL.
type PushSubscriptionAdapter struct {
	db *sqlx.DB
}

// NewPushSubscriptionAdapter creates a new push subscription adapter.
func NewPushSubscriptionAdapter(db *sqlx.DB) *PushSubscriptionAdapter {
	return &PushSubscriptionAdapter{db: db}
}

type pushSubscriptionRow struct {
	ID         int64        `db:"id"`
	UserID     uuid.UUID    `db:"user_id"`
	Endpoint   string       `db:"endpoint"`
	P256dh     string       `db:"p256dh"`
	Auth       string       `db:"auth"`
	Active     bool         `db:"active"`
	CreatedAt  time.Time    `db:"created_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
}

func (r *pushSubscriptionRow) toDomain() *domain.PushSubscription {
	s := &domain.PushSubscription{
		ID:        r.ID,
		UserID:    r.UserID,
		Endpoint:  r.Endpoint,
		P256dh:    r.P256dh,
		Auth:      r.Auth,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
	if r.LastUsedAt.Valid {
		s.LastUsedAt = &r.LastUsedAt.Time
	}
	return s
}

func rowsToDomain(rows []pushSubscriptionRow) []*domain.PushSubscription {
	subs := make([]*domain.PushSubscription, 0, len(rows))
	for i := range rows {
		subs = append(subs, rows[i].toDomain())
	}
	return subs
}

// Save upserts by endpoint: re-registering the same browser refreshes keys
// and reactivates the subscription.
func (a *PushSubscriptionAdapter) Save(ctx context.Context, sub *domain.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    p256dh = EXCLUDED.p256dh,
		    auth = EXCLUDED.auth,
		    active = TRUE
		RETURNING id, created_at
	`
	return a.db.QueryRowContext(ctx, query, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth).
		Scan(&sub.ID, &sub.CreatedAt)
}

// DeleteByEndpoint removes one of the user's registrations.
func (a *PushSubscriptionAdapter) DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`
	_, err := a.db.ExecContext(ctx, query, userID, endpoint)
	return err
}

// ListActive returns the user's active subscriptions.
func (a *PushSubscriptionAdapter) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh, auth, active, created_at, last_used_at
		FROM push_subscriptions
		WHERE user_id = $1 AND active
		ORDER BY id
	`
	var rows []pushSubscriptionRow
	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

// ListActiveForUsers returns active subscriptions for a set of users.
func (a *PushSubscriptionAdapter) ListActiveForUsers(ctx context.Context, userIDs []uuid.UUID) ([]*domain.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, user_id, endpoint, p256dh, auth, active, created_at, last_used_at
		FROM push_subscriptions
		WHERE active AND user_id IN (?)
		ORDER BY id
	`, userIDs)
	if err != nil {
		return nil, err
	}

	var rows []pushSubscriptionRow
	if err := a.db.SelectContext(ctx, &rows, a.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

// ListAllActive returns every active subscription.
func (a *PushSubscriptionAdapter) ListAllActive(ctx context.Context) ([]*domain.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh, auth, active, created_at, last_used_at
		FROM push_subscriptions
		WHERE active
		ORDER BY id
	`
	var rows []pushSubscriptionRow
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

// Deactivate flags a dead endpoint so future dispatches skip it.
func (a *PushSubscriptionAdapter) Deactivate(ctx context.Context, subscriptionID int64) error {
	query := `UPDATE push_subscriptions SET active = FALSE, last_used_at = NOW() WHERE id = $1`
	_, err := a.db.ExecContext(ctx, query, subscriptionID)
	return err
}

var _ out.PushSubscriptionStore = (*PushSubscriptionAdapter)(nil)
