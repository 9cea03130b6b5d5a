package mock

import (
	"context"

	"github.com/fluxcd/seedy/pkg/registry"
)

// Registry records what it was asked for, and answers with
// CredentialsFn, or with fixed credentials if that's nil.
type Registry struct {
	CredentialsFn func(accountID, region string) (registry.Credentials, error)
	Creds         registry.Credentials
	Err           error

	Calls []Call
}

type Call struct {
	AccountID, Region string
}

func (m *Registry) Credentials(ctx context.Context, accountID, region string) (registry.Credentials, error) {
	m.Calls = append(m.Calls, Call{AccountID: accountID, Region: region})
	if m.CredentialsFn != nil {
		return m.CredentialsFn(accountID, region)
	}
	return m.Creds, m.Err
}

var _ registry.Registry = &Registry{}
