package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/storefront-backend/internal/domain/user"
)

const userColumns = `id, email, external_auth_id, phone, first_name, last_name,
	display_name, is_active, terms_accepted_at, created_at, updated_at`

// UserStore implements user.Repository on PostgreSQL.
type UserStore struct {
	db *sql.DB
	q  querier
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, q: db}
}

// InTx runs fn against a store bound to a single transaction.
func (s *UserStore) InTx(ctx context.Context, fn func(user.Repository) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&UserStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*user.User, error) {
	row := s.q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns), id)
	return s.scanUserWithAddresses(ctx, row)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE LOWER(email) = LOWER($1)`, userColumns), email)
	return s.scanUserWithAddresses(ctx, row)
}

func (s *UserStore) List(ctx context.Context, filter user.ListFilter) ([]user.User, int, error) {
	where := "TRUE"
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (email ILIKE $%d OR first_name ILIKE $%d
			OR last_name ILIKE $%d OR display_name ILIKE $%d OR phone ILIKE $%d)`,
			n, n, n, n, n)
	}
	if filter.ActiveOnly {
		where += " AND is_active"
	}

	var total int
	if err := s.q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM users WHERE %s`, where), args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Take, filter.Skip)
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM users WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range users {
		if err := s.loadAddresses(ctx, &users[i]); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

func (s *UserStore) Insert(ctx context.Context, u *user.User) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, email, external_auth_id, phone, first_name, last_name,
			display_name, is_active, terms_accepted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Email, nullString(u.ExternalAuthID), nullString(u.Phone),
		nullString(u.FirstName), nullString(u.LastName), nullString(u.DisplayName),
		u.IsActive, nullTime(u.TermsAcceptedAt), u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *UserStore) Save(ctx context.Context, u *user.User) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE users
		SET external_auth_id = $2, phone = $3, first_name = $4, last_name = $5,
			display_name = $6, is_active = $7, terms_accepted_at = $8, updated_at = $9
		WHERE id = $1`,
		u.ID, nullString(u.ExternalAuthID), nullString(u.Phone),
		nullString(u.FirstName), nullString(u.LastName), nullString(u.DisplayName),
		u.IsActive, nullTime(u.TermsAcceptedAt), u.UpdatedAt,
	)
	return err
}

func (s *UserStore) FindPrimaryAddress(ctx context.Context, userID string) (*user.Address, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, label, line1, line2, city, province, postal_code, notes, is_primary
		FROM addresses
		WHERE user_id = $1 AND is_primary`, userID)

	a, err := scanAddress(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *UserStore) InsertAddress(ctx context.Context, a *user.Address) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, label, line1, line2, city, province,
			postal_code, notes, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.Label, a.Line1, nullString(a.Line2), a.City,
		nullString(a.Province), nullString(a.PostalCode), nullString(a.Notes), a.IsPrimary,
	)
	return err
}

func (s *UserStore) SaveAddress(ctx context.Context, a *user.Address) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE addresses
		SET label = $2, line1 = $3, line2 = $4, city = $5, province = $6,
			postal_code = $7, notes = $8, is_primary = $9
		WHERE id = $1`,
		a.ID, a.Label, a.Line1, nullString(a.Line2), a.City,
		nullString(a.Province), nullString(a.PostalCode), nullString(a.Notes), a.IsPrimary,
	)
	return err
}

func (s *UserStore) scanUserWithAddresses(ctx context.Context, row *sql.Row) (*user.User, error) {
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadAddresses(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStore) loadAddresses(ctx context.Context, u *user.User) error {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, label, line1, line2, city, province, postal_code, notes, is_primary
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_primary DESC, id`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return err
		}
		u.Addresses = append(u.Addresses, *a)
	}
	return rows.Err()
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		u                                user.User
		externalAuthID, phone            sql.NullString
		firstName, lastName, displayName sql.NullString
		termsAcceptedAt                  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &externalAuthID, &phone, &firstName,
		&lastName, &displayName, &u.IsActive, &termsAcceptedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ExternalAuthID = externalAuthID.String
	u.Phone = phone.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.DisplayName = displayName.String
	if termsAcceptedAt.Valid {
		t := termsAcceptedAt.Time
		u.TermsAcceptedAt = &t
	}
	return &u, nil
}

func scanAddress(row rowScanner) (*user.Address, error) {
	var (
		a                             user.Address
		line2, province, postal, note sql.NullString
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Line1, &line2, &a.City,
		&province, &postal, &note, &a.IsPrimary)
	if err != nil {
		return nil, err
	}
	a.Line2 = line2.String
	a.Province = province.String
	a.PostalCode = postal.String
	a.Notes = note.String
	return &a, nil
}
