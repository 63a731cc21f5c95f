package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront-backend/internal/domain/coupon"
)

// CouponStore implements coupon.Repository on PostgreSQL. The share_coupons
// and discount_codes tables both carry a unique constraint on code; that
// constraint, not the read-before-insert check, is the real uniqueness
// guarantee under concurrency.
type CouponStore struct {
	db *sql.DB
	q  querier
}

func NewCouponStore(db *sql.DB) *CouponStore {
	return &CouponStore{db: db, q: db}
}

// InTx runs fn against a store bound to a single transaction. Nested
// calls reuse the surrounding transaction.
func (s *CouponStore) InTx(ctx context.Context, fn func(coupon.Repository) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&CouponStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *CouponStore) ListShareForUserMonth(ctx context.Context, userID string, month time.Month, year int) ([]coupon.ShareCoupon, error) {
	return s.queryShare(ctx, `
		SELECT id, code, user_id, month, year, status, activated_at, created_at
		FROM share_coupons
		WHERE user_id = $1 AND month = $2 AND year = $3
		ORDER BY created_at`, userID, int(month), year)
}

func (s *CouponStore) ListShareForUser(ctx context.Context, userID string) ([]coupon.ShareCoupon, error) {
	return s.queryShare(ctx, `
		SELECT id, code, user_id, month, year, status, activated_at, created_at
		FROM share_coupons
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

func (s *CouponStore) ListShareGlobal(ctx context.Context, status coupon.ShareStatus) ([]coupon.ShareCoupon, error) {
	if status == "" {
		return s.queryShare(ctx, `
			SELECT id, code, user_id, month, year, status, activated_at, created_at
			FROM share_coupons
			ORDER BY created_at DESC`)
	}
	return s.queryShare(ctx, `
		SELECT id, code, user_id, month, year, status, activated_at, created_at
		FROM share_coupons
		WHERE status = $1
		ORDER BY created_at DESC`, status)
}

func (s *CouponStore) FindShareByUserAndCode(ctx context.Context, userID, code string) (*coupon.ShareCoupon, error) {
	coupons, err := s.queryShare(ctx, `
		SELECT id, code, user_id, month, year, status, activated_at, created_at
		FROM share_coupons
		WHERE user_id = $1 AND code = $2`, userID, code)
	if err != nil {
		return nil, err
	}
	if len(coupons) == 0 {
		return nil, nil
	}
	return &coupons[0], nil
}

func (s *CouponStore) ShareCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM share_coupons WHERE code = $1)`, code,
	).Scan(&exists)
	return exists, err
}

// InsertShare reports a code collision as ErrCodeTaken without raising a
// constraint error. A 23505 inside the top-up transaction would abort it
// and leave every later statement failing with 25P02, so the collision
// check must not go through the constraint.
func (s *CouponStore) InsertShare(ctx context.Context, c *coupon.ShareCoupon) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO share_coupons (id, code, user_id, month, year, status, activated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO NOTHING`,
		c.ID, c.Code, c.UserID, c.Month, c.Year, c.Status, nullTime(c.ActivatedAt), c.CreatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return coupon.ErrCodeTaken
	}
	return nil
}

func (s *CouponStore) SaveShare(ctx context.Context, c *coupon.ShareCoupon) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE share_coupons
		SET status = $2, activated_at = $3
		WHERE id = $1`,
		c.ID, c.Status, nullTime(c.ActivatedAt),
	)
	return err
}

func (s *CouponStore) InsertDiscount(ctx context.Context, d *coupon.DiscountCode) error {
	var metadata []byte
	if d.Metadata != nil {
		var err error
		metadata, err = json.Marshal(d.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO discount_codes (id, code, discount_type, scope, value, percentage,
			max_redemptions, expires_at, user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.Code, d.Type, d.Scope, nullDecimal(d.Value), nullDecimal(d.Percentage),
		d.MaxRedemptions, nullTime(d.ExpiresAt), nullString(d.UserID), metadata, d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return coupon.ErrCodeTaken
	}
	return err
}

func (s *CouponStore) ListDiscounts(ctx context.Context, activeOnly bool, now time.Time) ([]coupon.DiscountCode, error) {
	query := `
		SELECT d.id, d.code, d.discount_type, d.scope, d.value, d.percentage,
			d.max_redemptions, d.expires_at, d.user_id, d.metadata, d.created_at,
			COUNT(r.id) AS redemptions
		FROM discount_codes d
		LEFT JOIN discount_redemptions r ON r.discount_code_id = d.id
		GROUP BY d.id
		ORDER BY d.created_at DESC`
	args := []any{}
	if activeOnly {
		query = `
			SELECT d.id, d.code, d.discount_type, d.scope, d.value, d.percentage,
				d.max_redemptions, d.expires_at, d.user_id, d.metadata, d.created_at,
				COUNT(r.id) AS redemptions
			FROM discount_codes d
			LEFT JOIN discount_redemptions r ON r.discount_code_id = d.id
			WHERE d.expires_at IS NULL OR d.expires_at > $1
			GROUP BY d.id
			HAVING COUNT(r.id) = 0
			ORDER BY d.created_at DESC`
		args = append(args, now)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []coupon.DiscountCode
	for rows.Next() {
		var (
			d          coupon.DiscountCode
			value      decimal.NullDecimal
			percentage decimal.NullDecimal
			expiresAt  sql.NullTime
			userID     sql.NullString
			metadata   []byte
		)
		if err := rows.Scan(&d.ID, &d.Code, &d.Type, &d.Scope, &value, &percentage,
			&d.MaxRedemptions, &expiresAt, &userID, &metadata, &d.CreatedAt,
			&d.Redemptions); err != nil {
			return nil, err
		}
		if value.Valid {
			v := value.Decimal
			d.Value = &v
		}
		if percentage.Valid {
			p := percentage.Decimal
			d.Percentage = &p
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			d.ExpiresAt = &t
		}
		d.UserID = userID.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
				return nil, err
			}
		}
		codes = append(codes, d)
	}
	return codes, rows.Err()
}

func (s *CouponStore) queryShare(ctx context.Context, query string, args ...any) ([]coupon.ShareCoupon, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []coupon.ShareCoupon
	for rows.Next() {
		var (
			c           coupon.ShareCoupon
			activatedAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Code, &c.UserID, &c.Month, &c.Year, &c.Status,
			&activatedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		if activatedAt.Valid {
			t := activatedAt.Time
			c.ActivatedAt = &t
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}
