package user

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/storefront-backend/internal/apperror"
)

const (
	defaultListTake = 25
	maxListTake     = 100
)

// Service manages customer records. It anchors the ownership checks the
// authorizer delegates here for user-scoped resources.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UpsertInput carries the signup payload. Email is the upsert key.
type UpsertInput struct {
	Email           string
	ExternalAuthID  string
	Phone           string
	FirstName       string
	LastName        string
	DisplayName     string
	TermsAcceptedAt *time.Time
}

// Upsert creates the user record for a verified email, or refreshes and
// reactivates the existing one. Returning customers who previously
// deactivated come back active.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, apperror.BadRequest("email is required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing == nil {
		u := &User{
			ID:              uuid.New().String(),
			Email:           email,
			ExternalAuthID:  in.ExternalAuthID,
			Phone:           in.Phone,
			FirstName:       in.FirstName,
			LastName:        in.LastName,
			DisplayName:     in.DisplayName,
			IsActive:        true,
			TermsAcceptedAt: in.TermsAcceptedAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.Insert(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}

	if in.ExternalAuthID != "" {
		existing.ExternalAuthID = in.ExternalAuthID
	}
	if in.Phone != "" {
		existing.Phone = in.Phone
	}
	if in.FirstName != "" {
		existing.FirstName = in.FirstName
	}
	if in.LastName != "" {
		existing.LastName = in.LastName
	}
	if in.DisplayName != "" {
		existing.DisplayName = in.DisplayName
	}
	if in.TermsAcceptedAt != nil {
		existing.TermsAcceptedAt = in.TermsAcceptedAt
	}
	existing.IsActive = true
	existing.UpdatedAt = now

	if err := s.repo.Save(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// FindOne loads a user by id.
func (s *Service) FindOne(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, id)
}

// FindByEmail returns the user owning a verified email, or nil when no
// record exists yet.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// FindAll pages the user listing. Admin-only; gated by the caller.
func (s *Service) FindAll(ctx context.Context, filter ListFilter) (*Page, error) {
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Take < 1 {
		filter.Take = defaultListTake
	}
	if filter.Take > maxListTake {
		filter.Take = maxListTake
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Skip: filter.Skip, Take: filter.Take}, nil
}

// EnsureBelongsToEmail verifies that the user record belongs to the given
// verified email. Used by ownership checks for user-scoped resources.
func (s *Service) EnsureBelongsToEmail(ctx context.Context, userID, email string) error {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(u.Email, email) {
		return apperror.Forbidden("you cannot operate on this resource")
	}
	return nil
}

// ProfileInput carries a profile update. A nil AddressInput leaves the
// address untouched.
type ProfileInput struct {
	Phone       string
	FirstName   string
	LastName    string
	DisplayName string
	Address     *AddressInput
}

type AddressInput struct {
	Label      string
	Line1      string
	Line2      string
	City       string
	Province   string
	PostalCode string
	Notes      string
}

// UpdateProfile applies profile fields and upserts the primary address in
// one transaction so a partial failure leaves no half-updated profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*User, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}

	err := s.repo.InTx(ctx, func(r Repository) error {
		u, err := r.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperror.NotFound("user %s not found", userID)
		}

		if in.Phone != "" {
			u.Phone = in.Phone
		}
		if in.FirstName != "" {
			u.FirstName = in.FirstName
		}
		if in.LastName != "" {
			u.LastName = in.LastName
		}
		if in.DisplayName != "" {
			u.DisplayName = in.DisplayName
		}
		u.UpdatedAt = time.Now()
		if err := r.Save(ctx, u); err != nil {
			return err
		}

		if in.Address == nil {
			return nil
		}
		return upsertPrimaryAddress(ctx, r, userID, *in.Address)
	})
	if err != nil {
		return nil, err
	}
	return s.getUser(ctx, userID)
}

func upsertPrimaryAddress(ctx context.Context, r Repository, userID string, in AddressInput) error {
	existing, err := r.FindPrimaryAddress(ctx, userID)
	if err != nil {
		return err
	}

	if existing != nil {
		if in.Label != "" {
			existing.Label = in.Label
		}
		existing.Line1 = in.Line1
		existing.Line2 = in.Line2
		if in.City != "" {
			existing.City = in.City
		}
		if in.Province != "" {
			existing.Province = in.Province
		}
		if in.PostalCode != "" {
			existing.PostalCode = in.PostalCode
		}
		if in.Notes != "" {
			existing.Notes = in.Notes
		}
		existing.IsPrimary = true
		return r.SaveAddress(ctx, existing)
	}

	label := in.Label
	if label == "" {
		label = "Primary"
	}
	city := in.City
	if city == "" {
		city = "Unspecified"
	}
	return r.InsertAddress(ctx, &Address{
		ID:         uuid.New().String(),
		UserID:     userID,
		Label:      label,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       city,
		Province:   in.Province,
		PostalCode: in.PostalCode,
		Notes:      in.Notes,
		IsPrimary:  true,
	})
}

// Deactivate soft-deletes a user record. Admin-only; gated by the caller.
func (s *Service) Deactivate(ctx context.Context, id string) (*User, error) {
	u, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.IsActive = false
	u.UpdatedAt = time.Now()
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) getUser(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("user %s not found", id)
	}
	return u, nil
}
