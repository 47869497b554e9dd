package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
)

type clientKeysRepo struct {
	db dbtx
}

func (r *clientKeysRepo) AddClientKey(ctx context.Context, k domain.ClientKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO client_keys (id, client_id, kid, algorithm, public_key_jwk, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.ClientID, k.KeyID, k.Algorithm, k.PublicKeyJWK, toMillis(k.CreatedAt), nullMillis(k.RevokedAt),
	)
	return mapConstraint(err)
}

func (r *clientKeysRepo) ListClientKeys(ctx context.Context, clientID string) ([]domain.ClientKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, kid, algorithm, public_key_jwk, created_at, revoked_at
		FROM client_keys WHERE client_id = ? ORDER BY created_at, kid`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.ClientKey
	for rows.Next() {
		var (
			k         domain.ClientKey
			createdAt int64
			revokedAt sql.NullInt64
		)
		if err := rows.Scan(&k.ID, &k.ClientID, &k.KeyID, &k.Algorithm, &k.PublicKeyJWK, &createdAt, &revokedAt); err != nil {
			return nil, err
		}
		k.CreatedAt = fromMillis(createdAt)
		k.RevokedAt = fromNullMillis(revokedAt)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *clientKeysRepo) RevokeClientKey(ctx context.Context, clientID, kid string, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE client_keys SET revoked_at = ? WHERE client_id = ? AND kid = ? AND revoked_at IS NULL`,
		toMillis(at), clientID, kid))
}
