package gate

import (
	"context"

	"github.com/dmitrijs2005/sekure/internal/client/repositories/metadata"
)

// MetadataCredentials keeps the credential in the local metadata table.
type MetadataCredentials struct {
	Repo metadata.Repository
}

func (m MetadataCredentials) Load(ctx context.Context) (Credential, bool, error) {
	v, err := m.Repo.GetMany(ctx, metadata.KeyGateCredential, metadata.KeyGateLabel)
	if err != nil || len(v[metadata.KeyGateCredential]) == 0 {
		return Credential{}, false, err
	}
	return Credential{Handle: v[metadata.KeyGateCredential], Label: string(v[metadata.KeyGateLabel])}, true, nil
}

func (m MetadataCredentials) Save(ctx context.Context, cred Credential) error {
	return m.Repo.SetMany(ctx, map[string][]byte{
		metadata.KeyGateCredential: cred.Handle,
		metadata.KeyGateLabel:      []byte(cred.Label),
	})
}

func (m MetadataCredentials) Remove(ctx context.Context) error {
	return m.Repo.Delete(ctx, metadata.KeyGateCredential, metadata.KeyGateLabel)
}
