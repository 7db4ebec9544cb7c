package core

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/keyservice/internal/model"
)

// ---------- Mock KeyStore ----------

// mockStore implements the KeyStore interface for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context) (model.KeyTable, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.KeyTable), args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, table model.KeyTable) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}
