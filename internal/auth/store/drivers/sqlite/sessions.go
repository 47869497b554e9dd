package sqlite

import (
	"context"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id_hash, user_id, client_id, scopes, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.IDHash, s.UserID, s.ClientID, joinScopes(s.Scopes), toMillis(s.CreatedAt), toMillis(s.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSession(ctx context.Context, idHash string) (domain.Session, error) {
	var (
		s                    domain.Session
		scopes               string
		createdAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id_hash, user_id, client_id, scopes, created_at, expires_at
		FROM sessions WHERE id_hash = ?`, idHash,
	).Scan(&s.IDHash, &s.UserID, &s.ClientID, &scopes, &createdAt, &expiresAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.Scopes = splitScopes(scopes)
	s.CreatedAt = fromMillis(createdAt)
	s.ExpiresAt = fromMillis(expiresAt)
	return s, nil
}

// ExtendSession only ever moves expires_at forward, so two concurrent
// renewals converge on the later expiry.
func (r *sessionsRepo) ExtendSession(ctx context.Context, idHash string, newExpiry time.Time) (bool, error) {
	exp := toMillis(newExpiry)
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE id_hash = ? AND expires_at < ?`,
		exp, idHash, exp)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, idHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = ?`, idHash)
	return err
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID, keepHash string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ? AND id_hash <> ?`, userID, keepHash)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
