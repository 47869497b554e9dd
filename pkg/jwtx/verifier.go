package jwtx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind classifies why an assertion was rejected.
type Kind string

const (
	KindMalformed        Kind = "malformed"
	KindExpired          Kind = "expired"
	KindAudienceMismatch Kind = "audience_mismatch"
	KindBadSignature     Kind = "bad_signature"
	KindReplayed         Kind = "replayed"
)

// AssertionError is returned by AssertionVerifier.Verify for every rejection
// of the assertion itself.
type AssertionError struct {
	Kind Kind
	Err  error
}

func (e *AssertionError) Error() string {
	if e.Err == nil {
		return "jwtx: assertion " + string(e.Kind)
	}
	return fmt.Sprintf("jwtx: assertion %s: %v", e.Kind, e.Err)
}

func (e *AssertionError) Unwrap() error { return e.Err }

// ErrorKind extracts the Kind from err, or "" when err is not an
// AssertionError.
func ErrorKind(err error) Kind {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func reject(kind Kind, err error) error {
	return &AssertionError{Kind: kind, Err: err}
}

var (
	errSegments    = errors.New("expected three segments")
	errSubject     = errors.New("iss and sub must equal the client id")
	errMissingExp  = errors.New("missing exp")
	errMissingJTI  = errors.New("missing jti")
	errIssuedAhead = errors.New("iat is in the future")
	errNotBefore   = errors.New("nbf is in the future")
	errLifetime    = errors.New("lifetime exceeds the allowed maximum")
)

// AssertionVerifier checks RFC 7523 client assertions on the server side.
type AssertionVerifier struct {
	// Audience is the token endpoint URL the assertion must name in aud.
	Audience string

	// Replay remembers accepted jti values. Required.
	Replay ReplayCache

	// Leeway tolerates clock skew on exp, iat and nbf.
	Leeway time.Duration

	// MaxLifetime caps exp - iat. Zero means DefaultAssertionLifetime.
	MaxLifetime time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

func (v *AssertionVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v *AssertionVerifier) maxLifetime() time.Duration {
	if v.MaxLifetime > 0 {
		return v.MaxLifetime
	}
	return DefaultAssertionLifetime
}

// Verify authenticates assertion as coming from clientID, whose registered
// keys are resolved through keys. The replay cache is only consulted once the
// signature holds.
func (v *AssertionVerifier) Verify(ctx context.Context, assertion, clientID string, keys KeyResolver) error {
	if strings.Count(assertion, ".") != 2 {
		return reject(KindMalformed, errSegments)
	}
	if keys == nil || v.Replay == nil {
		return errors.New("jwtx: verifier is missing keys or replay cache")
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(assertion, &AssertionClaims{})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return reject(KindMalformed, err)
		}
		return reject(KindBadSignature, err)
	}
	kid, _ := unverified.Header["kid"].(string)

	key, err := keys.ResolveKey(kid)
	if err != nil {
		return reject(KindBadSignature, err)
	}

	// Pin the method to the registered key's algorithm. Claims are checked
	// below against our own clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{key.Alg}),
		jwt.WithoutClaimsValidation(),
	)
	var claims AssertionClaims
	if _, err := parser.ParseWithClaims(assertion, &claims, func(*jwt.Token) (any, error) {
		return key.Public, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return reject(KindMalformed, err)
		}
		return reject(KindBadSignature, err)
	}

	if err := v.checkClaims(&claims, clientID); err != nil {
		return err
	}

	// Remember the jti for as long as exp could still be accepted. A cache
	// that cannot answer rejects the assertion but is not a replay.
	if err := v.Replay.CheckAndStore(ctx, clientID, claims.ID, claims.ExpiresAt.Add(v.Leeway)); err != nil {
		if errors.Is(err, ErrReplayed) {
			return reject(KindReplayed, err)
		}
		return fmt.Errorf("jwtx: replay cache: %w", err)
	}
	return nil
}

func (v *AssertionVerifier) checkClaims(c *AssertionClaims, clientID string) error {
	now := v.now()

	if c.Issuer != clientID || c.Subject != clientID {
		return reject(KindMalformed, errSubject)
	}
	if !slices.Contains(c.Audience, v.Audience) {
		return reject(KindAudienceMismatch, fmt.Errorf("aud %v", []string(c.Audience)))
	}
	if c.ExpiresAt == nil {
		return reject(KindMalformed, errMissingExp)
	}
	if c.ID == "" {
		return reject(KindMalformed, errMissingJTI)
	}
	if !now.Before(c.ExpiresAt.Add(v.Leeway)) {
		return reject(KindExpired, fmt.Errorf("expired at %s", c.ExpiresAt.UTC().Format(time.RFC3339)))
	}
	if c.NotBefore != nil && now.Add(v.Leeway).Before(c.NotBefore.Time) {
		return reject(KindMalformed, errNotBefore)
	}

	issued := now
	if c.IssuedAt != nil {
		if now.Add(v.Leeway).Before(c.IssuedAt.Time) {
			return reject(KindMalformed, errIssuedAhead)
		}
		issued = c.IssuedAt.Time
	}
	if c.ExpiresAt.Sub(issued) > v.maxLifetime()+v.Leeway {
		return reject(KindMalformed, errLifetime)
	}
	return nil
}
