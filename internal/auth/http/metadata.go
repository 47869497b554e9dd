package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
)

// Metadata builds the RFC 8414 document for issuer.
func Metadata(issuer string) authsdk.ServerMetadata {
	base := strings.TrimSuffix(issuer, "/")
	return authsdk.ServerMetadata{
		Issuer:                base,
		AuthorizationEndpoint: base + authsdk.PathAuthorize,
		TokenEndpoint:         base + authsdk.PathToken,
		UserinfoEndpoint:      base + authsdk.PathUserInfo,
		RevocationEndpoint:    base + authsdk.PathRevoke,
		IntrospectionEndpoint: base + authsdk.PathIntrospect,
		ResponseTypesSupported: []string{"code"},
		GrantTypesSupported:    []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethodsSupported: []string{
			"client_secret_post",
			"client_secret_basic",
			"private_key_jwt",
		},
		TokenEndpointAuthSigningAlgValuesSupported: []string{jwtx.AlgES256, jwtx.AlgRS256},
		CodeChallengeMethodsSupported:              []string{"S256", "plain"},
	}
}

// MetadataHandler godoc
//
//	@Summary		Authorization server metadata
//	@Description	RFC 8414 discovery document.
//	@Tags			OAuth2
//	@Produce		json
//	@Success		200	{object}	authsdk.ServerMetadata
//	@Router			/.well-known/oauth-authorization-server [get]
func MetadataHandler(issuer string) http.HandlerFunc {
	doc := Metadata(issuer)
	return func(w http.ResponseWriter, _ *http.Request) {
		// Static for the life of the process.
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(doc)
	}
}
