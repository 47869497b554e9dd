package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

const DefaultCodeTTL = 10 * time.Minute

// AuthorizeService runs the front-channel half of the authorization-code
// grant: request validation, consent and code issuance.
type AuthorizeService struct {
	Store   store.Store
	CodeTTL time.Duration
	Now     Clock
	Metrics *metrics.Metrics
}

// AuthorizeRequest holds the authorization endpoint query parameters.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizeResult is what a consent screen needs to show.
type AuthorizeResult struct {
	Client              domain.Client
	RedirectURI         string
	Scopes              []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ConsentRequest is the user's answer to a validated AuthorizeRequest.
type ConsentRequest struct {
	AuthorizeRequest
	UserID string
	Allow  bool
}

// ConsentResult is where to send the user agent next. Code is empty on
// denial.
type ConsentResult struct {
	RedirectURL string
	Code        string
}

// Authorize validates an authorization request.
//
// ErrInvalidRequest and ErrRedirectURIMismatch mean the redirect URI cannot
// be trusted and the caller must not redirect. An unknown client is reported
// as ErrRedirectURIMismatch so client ids cannot be probed. Any other
// error is returned only after the client and redirect URI have been
// verified and may be reported to the client with RedirectError.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if strings.TrimSpace(req.ClientID) == "" || req.RedirectURI == "" {
		return nil, ErrInvalidRequest
	}

	client, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slogx.FromContext(ctx).Info("authorize: unknown client", "client_id", req.ClientID)
			return nil, ErrRedirectURIMismatch
		}
		return nil, err
	}

	// Byte-for-byte. A trailing slash is a different URI.
	if !client.HasRedirectURI(req.RedirectURI) {
		slogx.FromContext(ctx).Info("authorize: redirect_uri not registered", "client_id", client.ID)
		return nil, ErrRedirectURIMismatch
	}

	if req.ResponseType != "code" {
		return nil, ErrUnsupportedResponseType
	}

	challenge, method, err := validatePKCE(req.CodeChallenge, req.CodeChallengeMethod, client)
	if err != nil {
		return nil, err
	}

	scopes := client.Scopes
	if len(req.Scope) > 0 {
		scopes = intersectScopes(req.Scope, client.Scopes)
		if len(scopes) == 0 {
			return nil, ErrInvalidScope
		}
	}

	return &AuthorizeResult{
		Client:              client,
		RedirectURI:         req.RedirectURI,
		Scopes:              scopes,
		State:               req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	}, nil
}

// Consent re-validates the request and answers it. On allow a code bound to
// the user, client and redirect URI is stored; on deny the redirect carries
// error=access_denied and never a code.
func (s *AuthorizeService) Consent(ctx context.Context, req ConsentRequest) (*ConsentResult, error) {
	if req.UserID == "" {
		return nil, ErrUnauthorized
	}

	res, err := s.Authorize(ctx, req.AuthorizeRequest)
	if err != nil {
		return nil, err
	}

	if !req.Allow {
		s.Metrics.Code("denied")
		return &ConsentResult{RedirectURL: RedirectError(res.RedirectURI, ErrAccessDenied, res.State)}, nil
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	now := s.Now.now()

	record := domain.AuthorizationCode{
		CodeHash:            cryptox.FingerprintToken(code),
		UserID:              req.UserID,
		ClientID:            res.Client.ID,
		RedirectURI:         res.RedirectURI,
		Scopes:              res.Scopes,
		State:               res.State,
		Nonce:               res.Nonce,
		CodeChallenge:       res.CodeChallenge,
		CodeChallengeMethod: res.CodeChallengeMethod,
		ExpiresAt:           now.Add(ttl),
		CreatedAt:           now,
	}
	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, record); err != nil {
		return nil, err
	}
	s.Metrics.Code("issued")

	params := url.Values{"code": {code}}
	if res.State != "" {
		params.Set("state", res.State)
	}
	return &ConsentResult{RedirectURL: withQuery(res.RedirectURI, params), Code: code}, nil
}

// RedirectError builds the error redirect for a verified redirect URI.
func RedirectError(redirectURI string, err error, state string) string {
	params := url.Values{"error": {err.Error()}}
	if state != "" {
		params.Set("state", state)
	}
	return withQuery(redirectURI, params)
}

// withQuery adds params to uri, keeping any query it already has.
func withQuery(uri string, params url.Values) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// confidential clients can authenticate at the token endpoint.
func confidential(c domain.Client) bool {
	return c.SecretHash != "" || c.TokenEndpointAuthMethod == domain.AuthMethodPrivateKeyJWT
}

func validatePKCE(challenge, method string, client domain.Client) (string, string, error) {
	trimmedChallenge := strings.TrimSpace(challenge)
	trimmedMethod := strings.TrimSpace(method)

	if trimmedChallenge == "" {
		if !confidential(client) {
			return "", "", fmt.Errorf("%w: code_challenge required", ErrInvalidRequest)
		}
		return "", "", nil
	}

	// RFC 7636 section 4.3: an omitted method means plain.
	switch {
	case strings.EqualFold(trimmedMethod, "S256"):
		return trimmedChallenge, "S256", nil
	case strings.EqualFold(trimmedMethod, "plain"), trimmedMethod == "":
		return trimmedChallenge, "plain", nil
	default:
		return "", "", fmt.Errorf("%w: unsupported code_challenge_method", ErrInvalidRequest)
	}
}

func intersectScopes(a, b []string) []string {
	set := map[string]struct{}{}
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
