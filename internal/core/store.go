package core

import (
	"context"

	"github.com/edvin/keyservice/internal/model"
)

// KeyStore defines the persistence operations used by KeyService.
// *keystore.FileStore satisfies this interface.
type KeyStore interface {
	Load(ctx context.Context) (model.KeyTable, error)
	Save(ctx context.Context, table model.KeyTable) error
}
