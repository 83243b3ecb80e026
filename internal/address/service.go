package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages a user's saved addresses. At most one address per user is
// the default; setting a new default clears the previous one in the same
// transaction.
type Service interface {
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	CreateAddress(ctx context.Context, userID uuid.UUID, input AddressInput) (*models.Address, error)
	UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*models.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) error
}

// AddressInput carries the writable fields of an address.
type AddressInput struct {
	FirstName     string  `json:"first_name" validate:"required"`
	LastName      string  `json:"last_name" validate:"required"`
	StreetAddress string  `json:"street_address" validate:"required"`
	City          string  `json:"city" validate:"required"`
	State         *string `json:"state,omitempty"`
	PostalCode    string  `json:"postal_code" validate:"required"`
	Country       string  `json:"country" validate:"required"`
	Phone         *string `json:"phone,omitempty"`
	IsDefault     bool    `json:"is_default"`
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds an address service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return rows, nil
}

func (s *service) GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	return s.loadOwned(ctx, s.repo, userID, addressID)
}

func (s *service) CreateAddress(ctx context.Context, userID uuid.UUID, input AddressInput) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	address := &models.Address{
		UserID:        userID,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		StreetAddress: input.StreetAddress,
		City:          input.City,
		State:         input.State,
		PostalCode:    input.PostalCode,
		Country:       input.Country,
		Phone:         input.Phone,
		IsDefault:     input.IsDefault,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}
		if _, err := repo.Create(ctx, address); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}

func (s *service) UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*models.Address, error) {
	var updated *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.loadOwned(ctx, repo, userID, addressID); err != nil {
			return err
		}
		if input.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}

		updates := map[string]any{
			"first_name":     input.FirstName,
			"last_name":      input.LastName,
			"street_address": input.StreetAddress,
			"city":           input.City,
			"state":          input.State,
			"postal_code":    input.PostalCode,
			"country":        input.Country,
			"phone":          input.Phone,
			"is_default":     input.IsDefault,
		}
		if err := repo.Update(ctx, addressID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
		}

		reloaded, err := repo.FindByID(ctx, addressID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload address")
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, s.repo, userID, addressID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, addressID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	return nil
}

func (s *service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.loadOwned(ctx, repo, userID, addressID); err != nil {
			return err
		}
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
		}
		if err := repo.Update(ctx, addressID, map[string]any{"is_default": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set default address")
		}
		return nil
	})
}

func (s *service) loadOwned(ctx context.Context, repo Repository, userID, addressID uuid.UUID) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	address, err := repo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if address.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return address, nil
}
