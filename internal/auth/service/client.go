package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/idx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

// ClientService manages the client registry.
type ClientService struct {
	Store store.Store
	Now   Clock
}

// ClientSpec describes a client to register.
type ClientSpec struct {
	ID           string // generated when empty
	Name         string
	RedirectURIs []string
	Scopes       []string
	AuthMethod   string // defaults to client_secret_post

	// Secret is used as the client secret when set; otherwise secret
	// clients get a generated one.
	Secret string
}

func (spec *ClientSpec) normalize() error {
	spec.ID = strings.TrimSpace(spec.ID)
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if len(spec.RedirectURIs) == 0 {
		return fmt.Errorf("%w: at least one redirect uri is required", ErrInvalidRequest)
	}
	for _, raw := range spec.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Fragment != "" || (u.Host == "" && u.Opaque == "") {
			return fmt.Errorf("%w: redirect uri %q must be absolute without a fragment", ErrInvalidRequest, raw)
		}
	}
	switch spec.AuthMethod {
	case "":
		spec.AuthMethod = domain.AuthMethodSecretPost
	case domain.AuthMethodSecretPost, domain.AuthMethodSecretBasic, domain.AuthMethodPrivateKeyJWT:
	default:
		return fmt.Errorf("%w: token_endpoint_auth_method %q", ErrInvalidRequest, spec.AuthMethod)
	}
	spec.Scopes = dedupe(spec.Scopes)
	return nil
}

// build hashes the secret for secret clients. It returns the plaintext
// secret only when it was generated here.
func (s *ClientService) build(spec ClientSpec) (domain.Client, string, error) {
	if err := spec.normalize(); err != nil {
		return domain.Client{}, "", err
	}

	now := s.Now.now()
	client := domain.Client{
		ID:                      spec.ID,
		Name:                    spec.Name,
		RedirectURIs:            spec.RedirectURIs,
		Scopes:                  spec.Scopes,
		TokenEndpointAuthMethod: spec.AuthMethod,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if client.ID == "" {
		client.ID = idx.NewAt(now).String()
	}
	if spec.AuthMethod == domain.AuthMethodPrivateKeyJWT {
		return client, "", nil
	}

	secret, generated := spec.Secret, ""
	if secret == "" {
		var err error
		if secret, err = cryptox.GenerateToken(cryptox.TokenSize256); err != nil {
			return domain.Client{}, "", err
		}
		generated = secret
	}
	hash, err := cryptox.HashPassword(secret)
	if err != nil {
		return domain.Client{}, "", err
	}
	client.SecretHash = hash
	return client, generated, nil
}

// CreateClient registers a new client. For secret clients without a given
// secret the generated plaintext is returned; it is shown only once.
func (s *ClientService) CreateClient(ctx context.Context, spec ClientSpec) (domain.Client, string, error) {
	client, secret, err := s.build(spec)
	if err != nil {
		return domain.Client{}, "", err
	}
	if err := s.Store.Clients().CreateClient(ctx, client); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Client{}, "", ErrClientExists
		}
		return domain.Client{}, "", err
	}
	slogx.FromContext(ctx).Info("client created", "client_id", client.ID, "method", client.TokenEndpointAuthMethod)
	return client, secret, nil
}

// SyncClient creates or replaces a client and registers any of keys not yet
// known. Used to seed the registry from configuration.
func (s *ClientService) SyncClient(ctx context.Context, spec ClientSpec, keys [][]byte) (domain.Client, error) {
	if spec.AuthMethod != domain.AuthMethodPrivateKeyJWT && spec.Secret == "" {
		return domain.Client{}, fmt.Errorf("%w: client %s needs a secret", ErrInvalidRequest, spec.ID)
	}
	client, _, err := s.build(spec)
	if err != nil {
		return domain.Client{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Clients().UpsertClient(ctx, client); err != nil {
			return err
		}
		for _, raw := range keys {
			key, err := s.newKey(client.ID, raw)
			if err != nil {
				return err
			}
			err = tx.ClientKeys().AddClientKey(ctx, key)
			if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Client{}, err
	}
	return s.Store.Clients().GetClientByID(ctx, client.ID)
}

// AddKey registers a public JWK for a private_key_jwt client. The kid
// defaults to the RFC 7638 thumbprint.
func (s *ClientService) AddKey(ctx context.Context, clientID string, jwk []byte) (domain.ClientKey, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return domain.ClientKey{}, err
	}
	if client.TokenEndpointAuthMethod != domain.AuthMethodPrivateKeyJWT {
		return domain.ClientKey{}, fmt.Errorf("%w: client %s does not use private_key_jwt", ErrInvalidKey, clientID)
	}

	key, err := s.newKey(clientID, jwk)
	if err != nil {
		return domain.ClientKey{}, err
	}
	if err := s.Store.ClientKeys().AddClientKey(ctx, key); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.ClientKey{}, fmt.Errorf("%w: kid %q already registered", ErrInvalidKey, key.KeyID)
		}
		return domain.ClientKey{}, err
	}
	return key, nil
}

func (s *ClientService) newKey(clientID string, raw []byte) (domain.ClientKey, error) {
	key, err := parseClientJWK(raw)
	if err != nil {
		return domain.ClientKey{}, err
	}
	public, err := key.MarshalJSON()
	if err != nil {
		return domain.ClientKey{}, err
	}
	now := s.Now.now()
	return domain.ClientKey{
		ID:           idx.NewAt(now).String(),
		ClientID:     clientID,
		KeyID:        key.KID,
		Algorithm:    key.Alg,
		PublicKeyJWK: string(public),
		CreatedAt:    now,
	}, nil
}

// RevokeKey stops a key from verifying new assertions.
func (s *ClientService) RevokeKey(ctx context.Context, clientID, kid string) error {
	err := s.Store.ClientKeys().RevokeClientKey(ctx, clientID, kid, s.Now.now())
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no active key %q", ErrInvalidKey, kid)
	}
	return err
}

func (s *ClientService) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, ErrClientNotFound
	}
	return client, err
}

// ListClients returns all clients without their keys.
func (s *ClientService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.Store.Clients().ListClients(ctx)
}

func (s *ClientService) DeleteClient(ctx context.Context, clientID string) error {
	err := s.Store.Clients().DeleteClient(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrClientNotFound
	}
	if err == nil {
		slogx.FromContext(ctx).Info("client deleted", "client_id", clientID)
	}
	return err
}

func parseClientJWK(raw []byte) (jwtx.Key, error) {
	key, err := jwtx.ParseJWK(raw)
	if err != nil {
		return jwtx.Key{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return key, nil
}
