package service

import (
	"context"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// AddressService owns the user's address book and the single-default
// invariant: at most one address per user has is_default=true.
type AddressService struct {
	store  *store.Store
	logger *zap.Logger
}

func NewAddressService(st *store.Store) *AddressService {
	return &AddressService{
		store:  st,
		logger: util.GetLogger(),
	}
}

// AddressRequest carries the writable address fields
type AddressRequest struct {
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

// CreateAddress adds an address. When is_default is requested, the user's
// other defaults are cleared in the same transaction, serialized on the
// user row so concurrent calls cannot leave two defaults.
func (s *AddressService) CreateAddress(ctx context.Context, userID int64, req *AddressRequest) (*models.Address, error) {
	ctx, span := util.StartSpan(ctx, "AddressService.CreateAddress")
	defer span.End()

	addr := &models.Address{
		UserID:     userID,
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		IsDefault:  req.IsDefault,
	}

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if req.IsDefault {
			if err := s.store.LockUserAddresses(ctx, tx, userID); err != nil {
				return err
			}
			if err := s.store.ClearDefaultAddresses(ctx, tx, userID, 0); err != nil {
				return err
			}
		}
		return s.store.InsertAddress(ctx, tx, addr)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Address created",
		zap.Int64("user_id", userID),
		zap.Int64("address_id", addr.ID),
		zap.Bool("is_default", addr.IsDefault))
	return addr, nil
}

// UpdateAddress overwrites an address. Setting is_default clears every
// other default the user owns, excluding the row being updated.
func (s *AddressService) UpdateAddress(ctx context.Context, userID, addressID int64, req *AddressRequest) (*models.Address, error) {
	ctx, span := util.StartSpan(ctx, "AddressService.UpdateAddress")
	defer span.End()

	var addr *models.Address
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if req.IsDefault {
			if err := s.store.LockUserAddresses(ctx, tx, userID); err != nil {
				return err
			}
		}

		var err error
		addr, err = s.store.GetAddressTx(ctx, tx, userID, addressID)
		if err != nil {
			return err
		}

		if req.IsDefault {
			if err := s.store.ClearDefaultAddresses(ctx, tx, userID, addressID); err != nil {
				return err
			}
		}

		addr.Street = req.Street
		addr.City = req.City
		addr.State = req.State
		addr.PostalCode = req.PostalCode
		addr.Country = req.Country
		addr.IsDefault = req.IsDefault
		return s.store.UpdateAddressTx(ctx, tx, addr)
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

// SetDefault marks one address as the default, clearing all siblings.
func (s *AddressService) SetDefault(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	ctx, span := util.StartSpan(ctx, "AddressService.SetDefault")
	defer span.End()

	var addr *models.Address
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.store.LockUserAddresses(ctx, tx, userID); err != nil {
			return err
		}

		var err error
		addr, err = s.store.GetAddressTx(ctx, tx, userID, addressID)
		if err != nil {
			return err
		}

		if err := s.store.ClearDefaultAddresses(ctx, tx, userID, addressID); err != nil {
			return err
		}

		addr.IsDefault = true
		return s.store.UpdateAddressTx(ctx, tx, addr)
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

// GetAddress returns one of the user's addresses
func (s *AddressService) GetAddress(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	return s.store.GetAddress(ctx, userID, addressID)
}

// ListAddresses returns the user's address book
func (s *AddressService) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	return s.store.ListAddresses(ctx, userID)
}

// DeleteAddress removes an address owned by the user
func (s *AddressService) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	return s.store.DeleteAddress(ctx, userID, addressID)
}
