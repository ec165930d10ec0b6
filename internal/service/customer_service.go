package service

import (
	"context"
	"fmt"

	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/ports"

	"github.com/rs/zerolog"
)

// HashCustomerPassword replaces a plaintext customer password with its hash.
func HashCustomerPassword(hasher ports.HashService) PrepareFunc[*domain.Customer] {
	return func(_ context.Context, c *domain.Customer) error {
		if c.CustomerPassword == nil {
			return nil
		}
		hashed, err := hasher.Hash(*c.CustomerPassword)
		if err != nil {
			return fmt.Errorf("hashing customer password: %w", err)
		}
		c.CustomerPassword = &hashed
		return nil
	}
}

// NewCustomerService creates the customer resource service. Passwords are
// hashed before they reach the store.
func NewCustomerService(
	repo ports.Repository[*domain.Customer],
	hasher ports.HashService,
	log zerolog.Logger,
) *ResourceService[*domain.Customer] {
	return NewResourceService(domain.CustomerSchema, repo, log, WithPrepare(HashCustomerPassword(hasher)))
}
