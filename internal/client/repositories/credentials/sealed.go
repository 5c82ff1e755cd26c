package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/eduportal/internal/common"
	"github.com/dmitrijs2005/eduportal/internal/cryptox"
)

var ErrEmptyPassphrase = errors.New("empty passphrase")

// SealedRepository encrypts every value before handing it to the wrapped
// Repository. The key is derived from a passphrase and a per-store salt
// kept unsealed in the common.SaltKey slot.
type SealedRepository struct {
	inner Repository
	key   []byte
}

// NewSealedRepository loads the store salt from inner, creating it on
// first use, and derives the sealing key.
func NewSealedRepository(ctx context.Context, inner Repository, passphrase []byte) (*SealedRepository, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	salt, err := inner.Get(ctx, common.SaltKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load store salt: %w", err)
	}
	if len(salt) == 0 {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		if err := inner.Set(ctx, common.SaltKey, salt); err != nil {
			return nil, fmt.Errorf("failed to save store salt: %w", err)
		}
	}

	return &SealedRepository{inner: inner, key: cryptox.DeriveKey(passphrase, salt)}, nil
}

func (r *SealedRepository) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := r.inner.Get(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	value, err := cryptox.Open(r.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SealedRepository) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := cryptox.Seal(r.key, value)
	if err != nil {
		return fmt.Errorf("failed to seal credential[%s]: %w", key, err)
	}
	return r.inner.Set(ctx, key, sealed)
}

func (r *SealedRepository) SetAll(ctx context.Context, values map[string][]byte) error {
	sealed := make(map[string][]byte, len(values))
	for k, v := range values {
		s, err := cryptox.Seal(r.key, v)
		if err != nil {
			return fmt.Errorf("failed to seal credential[%s]: %w", k, err)
		}
		sealed[k] = s
	}
	return r.inner.SetAll(ctx, sealed)
}

func (r *SealedRepository) Delete(ctx context.Context, keys ...string) error {
	return r.inner.Delete(ctx, keys...)
}
