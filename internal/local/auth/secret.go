package auth

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/brainbox/internal/blobstore"
	"github.com/dmitrijs2005/brainbox/internal/common"
)

// SecretKey is the store key of the per-install token secret.
const SecretKey = "brainbox.secret"

const secretSize = 32

// LoadOrCreateSecret returns the token signing secret stored under key,
// generating and storing a random one on first use.
func LoadOrCreateSecret(ctx context.Context, store blobstore.Store, key string) ([]byte, error) {
	secret, err := store.Get(ctx, key)
	if err == nil && len(secret) >= secretSize {
		return secret, nil
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, common.NewError(common.KindPersistence, "failed to read token secret", err)
	}

	secret = common.GenerateRandByteArray(secretSize)
	if err := store.Put(ctx, key, secret); err != nil {
		return nil, common.NewError(common.KindPersistence, "failed to store token secret", err)
	}
	return secret, nil
}
