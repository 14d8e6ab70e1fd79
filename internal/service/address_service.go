package service

import (
	"context"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AddressService struct {
	tx        repository.TxRunner
	addresses repository.AddressRepository
}

func NewAddressService(tx repository.TxRunner, addresses repository.AddressRepository) *AddressService {
	return &AddressService{tx: tx, addresses: addresses}
}

func (s *AddressService) AddAddress(ctx context.Context, userID primitive.ObjectID, in domain.ShippingAddress, makeDefault bool) (*domain.Address, error) {
	in = trimAddress(in)
	if missing := in.Missing(); len(missing) > 0 {
		return nil, domain.InvalidInput("all address fields are required").WithDetails(missing...)
	}

	addr := &domain.Address{ShippingAddress: in, User: userID}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.addresses.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		// the first address is the default
		addr.IsDefault = makeDefault || len(existing) == 0
		if addr.IsDefault {
			if err := s.addresses.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return s.addresses.Create(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *AddressService) ListAddresses(ctx context.Context, userID primitive.ObjectID) ([]domain.Address, error) {
	return s.addresses.ListByUser(ctx, userID)
}

func (s *AddressService) UpdateAddress(ctx context.Context, userID, addressID primitive.ObjectID, in domain.ShippingAddress) (*domain.Address, error) {
	in = trimAddress(in)
	if missing := in.Missing(); len(missing) > 0 {
		return nil, domain.InvalidInput("all address fields are required").WithDetails(missing...)
	}

	addr, err := s.addresses.GetForUser(ctx, addressID, userID)
	if err != nil {
		return nil, notFound(err, "address not found")
	}
	addr.ShippingAddress = in
	if err := s.addresses.Update(ctx, addr); err != nil {
		return nil, notFound(err, "address not found")
	}
	return addr, nil
}

func (s *AddressService) DeleteAddress(ctx context.Context, userID, addressID primitive.ObjectID) error {
	if err := s.addresses.Delete(ctx, addressID, userID); err != nil {
		return notFound(err, "address not found")
	}
	return nil
}

func (s *AddressService) SetDefaultAddress(ctx context.Context, userID, addressID primitive.ObjectID) (*domain.Address, error) {
	var addr *domain.Address
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if addr, err = s.addresses.GetForUser(ctx, addressID, userID); err != nil {
			return notFound(err, "address not found")
		}
		if err := s.addresses.ClearDefault(ctx, userID); err != nil {
			return err
		}
		if err := s.addresses.SetDefault(ctx, addressID, userID); err != nil {
			return notFound(err, "address not found")
		}
		addr.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func trimAddress(a domain.ShippingAddress) domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:    strings.TrimSpace(a.FullName),
		PhoneNumber: strings.TrimSpace(a.PhoneNumber),
		Street:      strings.TrimSpace(a.Street),
		City:        strings.TrimSpace(a.City),
		State:       strings.TrimSpace(a.State),
		Pincode:     strings.TrimSpace(a.Pincode),
		Country:     strings.TrimSpace(a.Country),
	}
}
