package sqlite

import (
	"context"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
)

type authorizationCodesRepo struct {
	db dbtx
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes (
			code_hash, user_id, client_id, redirect_uri, scopes, state, nonce,
			code_challenge, code_challenge_method, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.CodeHash, code.UserID, code.ClientID, code.RedirectURI, joinScopes(code.Scopes),
		code.State, code.Nonce, code.CodeChallenge, code.CodeChallengeMethod,
		toMillis(code.ExpiresAt), toMillis(code.CreatedAt),
	)
	return mapConstraint(err)
}

// ConsumeAuthorizationCode is a single conditional DELETE, so of two
// concurrent redemptions exactly one gets the row back.
func (r *authorizationCodesRepo) ConsumeAuthorizationCode(
	ctx context.Context,
	hash, clientID string,
) (domain.AuthorizationCode, error) {
	var (
		c                    domain.AuthorizationCode
		scopes               string
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM authorization_codes
		WHERE code_hash = ? AND client_id = ?
		RETURNING code_hash, user_id, client_id, redirect_uri, scopes, state, nonce,
			code_challenge, code_challenge_method, expires_at, created_at`,
		hash, clientID,
	).Scan(&c.CodeHash, &c.UserID, &c.ClientID, &c.RedirectURI, &scopes, &c.State, &c.Nonce,
		&c.CodeChallenge, &c.CodeChallengeMethod, &expiresAt, &createdAt)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	c.Scopes = splitScopes(scopes)
	c.ExpiresAt = fromMillis(expiresAt)
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM authorization_codes WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
