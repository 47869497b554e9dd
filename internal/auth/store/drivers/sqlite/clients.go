package sqlite

import (
	"context"
	"fmt"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
)

type clientsRepo struct {
	db dbtx
}

const clientColumns = `id, name, secret_hash, redirect_uris, scopes, token_endpoint_auth_method, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (domain.Client, error) {
	var (
		c                    domain.Client
		redirects, scopes    string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.SecretHash, &redirects, &scopes,
		&c.TokenEndpointAuthMethod, &createdAt, &updatedAt); err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	uris, err := decodeList(redirects)
	if err != nil {
		return domain.Client{}, fmt.Errorf("client %s redirect_uris: %w", c.ID, err)
	}
	c.RedirectURIs = uris
	c.Scopes = splitScopes(scopes)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if err != nil {
		return domain.Client{}, err
	}
	keys, err := (&clientKeysRepo{db: r.db}).ListClientKeys(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}
	c.Keys = keys
	return c, nil
}

// ListClients does not load keys.
func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	redirects, err := encodeList(c.RedirectURIs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.SecretHash, redirects, joinScopes(c.Scopes), c.TokenEndpointAuthMethod,
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *clientsRepo) UpsertClient(ctx context.Context, c domain.Client) error {
	redirects, err := encodeList(c.RedirectURIs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			secret_hash = excluded.secret_hash,
			redirect_uris = excluded.redirect_uris,
			scopes = excluded.scopes,
			token_endpoint_auth_method = excluded.token_endpoint_auth_method,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.SecretHash, redirects, joinScopes(c.Scopes), c.TokenEndpointAuthMethod,
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *clientsRepo) DeleteClient(ctx context.Context, clientID string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, clientID))
}
