package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/example/storefront-backend/internal/apperror"
	"github.com/example/storefront-backend/internal/domain/order"
)

func statusArray(statuses ...order.Status) any {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

const orderColumns = `id, number, status, total_gross, total_net, discount_total,
	user_id, customer_name, customer_email, customer_phone, note, metadata,
	placed_at, confirmed_at, cancelled_at, cancellation_reason, created_at, updated_at`

// OrderStore implements order.Repository on PostgreSQL.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create writes the order header and its item snapshots in one
// transaction and fills in the store-assigned sequential number.
func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	metadata, err := json.Marshal(o.Metadata)
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, status, total_gross, total_net, discount_total,
			user_id, customer_name, customer_email, customer_phone, note, metadata,
			placed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING number`,
		o.ID, o.Status, o.TotalGross, o.TotalNet, o.DiscountTotal,
		nullString(o.UserID), o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.Note, metadata, o.PlacedAt, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.Number)
	if err != nil {
		return err
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, label, quantity, unit_price,
				original_unit_price, discount_value, line_total, side, item_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			item.ID, o.ID, item.Label, item.Quantity, item.UnitPrice,
			nullDecimal(item.OriginalUnitPrice), nullDecimal(item.DiscountValue),
			item.LineTotal, item.Side, item.Type,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *OrderStore) FindByID(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns), id)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) List(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	where := "TRUE"
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM orders WHERE %s`, where), args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Take, filter.Skip)
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	orders, err := s.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *OrderStore) ListForUser(ctx context.Context, userID string, take int) ([]order.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, orderColumns)
	return s.queryOrders(ctx, query, userID, take)
}

func (s *OrderStore) FindActiveForUser(ctx context.Context, userID string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE user_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC LIMIT 1`, orderColumns),
		userID, statusArray(order.StatusPending, order.StatusPreparing, order.StatusConfirmed))

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) AccessContext(ctx context.Context, id string) (*order.AccessContext, error) {
	var (
		access        order.AccessContext
		userID        sql.NullString
		customerEmail sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, customer_email FROM orders WHERE id = $1`, id,
	).Scan(&access.OrderID, &userID, &customerEmail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	access.UserID = userID.String
	access.CustomerEmail = customerEmail.String
	return &access, nil
}

func (s *OrderStore) SaveStatus(ctx context.Context, o *order.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, confirmed_at = $3, cancelled_at = $4,
			cancellation_reason = $5, updated_at = $6
		WHERE id = $1`,
		o.ID, o.Status, nullTime(o.ConfirmedAt), nullTime(o.CancelledAt),
		nullString(o.CancellationReason), o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// The row can disappear between the service's read and this write.
	if n == 0 {
		return apperror.NotFound("order %s not found", o.ID)
	}
	return nil
}

func (s *OrderStore) ListMessages(ctx context.Context, orderID string, take int) ([]order.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, author_type, author_id, payload, created_at, read_at
		FROM order_messages
		WHERE order_id = $1
		ORDER BY created_at ASC
		LIMIT $2`, orderID, take)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []order.Message
	for rows.Next() {
		var (
			m        order.Message
			authorID sql.NullString
			payload  []byte
			readAt   sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.OrderID, &m.AuthorType, &authorID, &payload, &m.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		m.AuthorID = authorID.String
		if readAt.Valid {
			t := readAt.Time
			m.ReadAt = &t
		}
		if err := json.Unmarshal(payload, &m.Payload); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *OrderStore) AppendMessage(ctx context.Context, m *order.Message) error {
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO order_messages (id, order_id, author_type, author_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.OrderID, m.AuthorType, nullString(m.AuthorID), payload, m.CreatedAt,
	)
	return err
}

func (s *OrderStore) queryOrders(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := s.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *OrderStore) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, label, quantity, unit_price, original_unit_price,
			discount_value, line_total, side, item_type
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item              order.ItemSnapshot
			originalUnitPrice decimal.NullDecimal
			discountValue     decimal.NullDecimal
			side, itemType    sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Label, &item.Quantity,
			&item.UnitPrice, &originalUnitPrice, &discountValue, &item.LineTotal,
			&side, &itemType); err != nil {
			return err
		}
		if originalUnitPrice.Valid {
			d := originalUnitPrice.Decimal
			item.OriginalUnitPrice = &d
		}
		if discountValue.Valid {
			d := discountValue.Decimal
			item.DiscountValue = &d
		}
		item.Side = side.String
		item.Type = itemType.String
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o             order.Order
		userID        sql.NullString
		customerPhone sql.NullString
		note          sql.NullString
		reason        sql.NullString
		metadata      []byte
		confirmedAt   sql.NullTime
		cancelledAt   sql.NullTime
	)
	err := row.Scan(&o.ID, &o.Number, &o.Status, &o.TotalGross, &o.TotalNet,
		&o.DiscountTotal, &userID, &o.CustomerName, &o.CustomerEmail,
		&customerPhone, &note, &metadata, &o.PlacedAt, &confirmedAt,
		&cancelledAt, &reason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	o.UserID = userID.String
	o.CustomerPhone = customerPhone.String
	o.Note = note.String
	o.CancellationReason = reason.String
	if confirmedAt.Valid {
		t := confirmedAt.Time
		o.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		o.CancelledAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &o.Metadata); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
