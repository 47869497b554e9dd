package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

// ClientAuth is how a client proved its identity at the token endpoint.
// It is either SecretAuth or AssertionAuth.
type ClientAuth interface {
	Client() string
	method() string
}

// SecretAuth is client_secret_post or client_secret_basic.
type SecretAuth struct {
	ClientID string
	Secret   string
	Basic    bool // credentials came in the Authorization header
}

func (a SecretAuth) Client() string { return a.ClientID }

func (a SecretAuth) method() string {
	if a.Basic {
		return domain.AuthMethodSecretBasic
	}
	return domain.AuthMethodSecretPost
}

// AssertionAuth is private_key_jwt (RFC 7523 section 2.2).
type AssertionAuth struct {
	ClientID      string
	AssertionType string
	Assertion     string
}

func (a AssertionAuth) Client() string { return a.ClientID }

func (AssertionAuth) method() string { return domain.AuthMethodPrivateKeyJWT }

// ClientAuthenticator verifies ClientAuth against the registry. Every
// rejected credential is ErrInvalidClient; the cause is wrapped for logs
// only. Store and replay cache failures are returned as they are.
type ClientAuthenticator struct {
	Store    store.Store
	Verifier *jwtx.AssertionVerifier
	Metrics  *metrics.Metrics
}

func (a *ClientAuthenticator) Authenticate(ctx context.Context, auth ClientAuth) (domain.Client, error) {
	log := slogx.FromContext(ctx)

	if auth == nil || auth.Client() == "" {
		return domain.Client{}, fmt.Errorf("%w: missing client_id", ErrInvalidClient)
	}

	client, err := a.authenticate(ctx, auth)
	if err != nil {
		if !errors.Is(err, ErrInvalidClient) {
			a.Metrics.ClientAuth(auth.method(), "error")
			return domain.Client{}, err
		}
		result := "rejected"
		if kind := jwtx.ErrorKind(err); kind != "" {
			result = string(kind)
		}
		a.Metrics.ClientAuth(auth.method(), result)
		log.Info("client authentication failed",
			"client_id", auth.Client(),
			"method", auth.method(),
			"err", err,
		)
		return domain.Client{}, err
	}

	a.Metrics.ClientAuth(auth.method(), "ok")
	return client, nil
}

func (a *ClientAuthenticator) authenticate(ctx context.Context, auth ClientAuth) (domain.Client, error) {
	client, err := a.Store.Clients().GetClientByID(ctx, auth.Client())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if sa, ok := auth.(SecretAuth); ok {
				burnPasswordCheck(sa.Secret)
			}
			return domain.Client{}, fmt.Errorf("%w: unknown client", ErrInvalidClient)
		}
		return domain.Client{}, err
	}

	switch v := auth.(type) {
	case SecretAuth:
		if client.TokenEndpointAuthMethod == domain.AuthMethodPrivateKeyJWT || client.SecretHash == "" {
			return domain.Client{}, fmt.Errorf("%w: client does not use a secret", ErrInvalidClient)
		}
		if v.Secret == "" || !cryptox.VerifyPassword(v.Secret, client.SecretHash) {
			return domain.Client{}, fmt.Errorf("%w: secret mismatch", ErrInvalidClient)
		}
		return client, nil

	case AssertionAuth:
		if client.TokenEndpointAuthMethod != domain.AuthMethodPrivateKeyJWT {
			return domain.Client{}, fmt.Errorf("%w: client does not use private_key_jwt", ErrInvalidClient)
		}
		if v.AssertionType != jwtx.AssertionType {
			return domain.Client{}, fmt.Errorf("%w: client_assertion_type %q", ErrInvalidClient, v.AssertionType)
		}
		if a.Verifier == nil {
			return domain.Client{}, fmt.Errorf("%w: assertions are not accepted", ErrInvalidClient)
		}
		keys, err := ClientKeySet(client)
		if err != nil {
			return domain.Client{}, fmt.Errorf("%w: %w", ErrInvalidClient, err)
		}
		if err := a.Verifier.Verify(ctx, v.Assertion, client.ID, keys); err != nil {
			if jwtx.ErrorKind(err) == "" {
				return domain.Client{}, fmt.Errorf("verify assertion of %s: %w", client.ID, err)
			}
			return domain.Client{}, fmt.Errorf("%w: %w", ErrInvalidClient, err)
		}
		return client, nil

	default:
		return domain.Client{}, fmt.Errorf("%w: unsupported authentication %T", ErrInvalidClient, auth)
	}
}

// ClientKeySet builds the verification key set from the client's active
// keys. The stored kid and algorithm win over whatever the JWK carries.
func ClientKeySet(client domain.Client) (*jwtx.KeySet, error) {
	ks, err := jwtx.NewKeySet()
	if err != nil {
		return nil, err
	}
	for _, k := range client.ActiveKeys() {
		key, err := jwtx.ParseJWK([]byte(k.PublicKeyJWK))
		if err != nil {
			return nil, fmt.Errorf("client key %s: %w", k.KeyID, err)
		}
		if key.Alg != k.Algorithm {
			return nil, fmt.Errorf("client key %s: algorithm %s does not match key type", k.KeyID, k.Algorithm)
		}
		key.KID = k.KeyID
		if err := ks.Add(key); err != nil {
			return nil, err
		}
	}
	if ks.Len() == 0 {
		return nil, jwtx.ErrNoKey
	}
	return ks, nil
}
