package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/plusdesk/api/schemas"
)

// MockCredentialStore mocks the schemas.CredentialStore interface.
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) SwapCredentials(ctx context.Context, oldUsername, newUsername string) error {
	args := m.Called(ctx, oldUsername, newUsername)
	return args.Error(0)
}

func (m *MockCredentialStore) LookupCredential(ctx context.Context, username string) (*schemas.Credential, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Credential), args.Error(1)
}
