package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoint paths served by SEKAI Pass.
const (
	PathAuthorize  = "/oauth/authorize"
	PathToken      = "/oauth/token"
	PathUserInfo   = "/oauth/userinfo"
	PathRevoke     = "/oauth/revoke"
	PathIntrospect = "/oauth/introspect"
	PathMetadata   = "/.well-known/oauth-authorization-server"
	PathLivez      = "/livez"
	PathReadyz     = "/readyz"
)

// Client is a relying party of a SEKAI Pass server. It is safe for
// concurrent use.
type Client struct {
	BaseURL     string
	ClientID    string
	RedirectURI string
	Credentials Credentials
	HTTPClient  *http.Client
}

// NewClient creates a client with a 10 second HTTP timeout.
func NewClient(baseURL, clientID, redirectURI string, creds Credentials) *Client {
	return &Client{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Credentials: creds,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AuthorizeURL returns the URL to send the user agent to. pkce may be nil
// for confidential clients.
func (c *Client) AuthorizeURL(state string, scopes []string, pkce *PKCE) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {c.ClientID},
		"redirect_uri":  {c.RedirectURI},
	}
	if state != "" {
		q.Set("state", state)
	}
	if len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, " "))
	}
	if pkce != nil {
		q.Set("code_challenge", pkce.Challenge)
		q.Set("code_challenge_method", pkce.Method)
	}
	return c.url(PathAuthorize) + "?" + q.Encode()
}

// ExchangeCode redeems an authorization code. verifier is the PKCE code
// verifier, or empty when the request carried no challenge.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.RedirectURI},
	}
	if verifier != "" {
		form.Set("code_verifier", verifier)
	}
	return c.token(ctx, form)
}

// Refresh rotates a refresh token. The old token is dead once this returns
// successfully.
func (c *Client) Refresh(ctx context.Context, refreshToken string, scopes ...string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}
	return c.token(ctx, form)
}

func (c *Client) token(ctx context.Context, form url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, PathToken, form)
	if err != nil {
		return nil, err
	}
	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserInfo fetches the profile behind an access token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	resp, err := c.doBearer(ctx, http.MethodGet, PathUserInfo, accessToken)
	if err != nil {
		return nil, err
	}
	var out UserInfoResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Revoke revokes an access or refresh token (RFC 7009). hint may be empty.
func (c *Client) Revoke(ctx context.Context, token, hint string) error {
	form := url.Values{"token": {token}}
	if hint != "" {
		form.Set("token_type_hint", hint)
	}
	resp, err := c.postForm(ctx, PathRevoke, form)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK)
}

// Introspect asks whether one of this client's tokens is active (RFC 7662).
func (c *Client) Introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	resp, err := c.postForm(ctx, PathIntrospect, url.Values{"token": {token}})
	if err != nil {
		return nil, err
	}
	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Metadata fetches the RFC 8414 server metadata document.
func (c *Client) Metadata(ctx context.Context) (*ServerMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(PathMetadata), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	var out ServerMetadata
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
