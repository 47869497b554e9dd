// Package auth holds the Swagger document served at /swagger/.
//
// Regenerate from the handler annotations with:
//
//	swag init -g internal/auth/http/router.go -o api/auth --outputTypes go
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "IaSoC",
            "url": "https://github.com/IaSoC/sekai-pass-l10n"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Account"],
                "summary": "Register an account",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/authsdk.LoginResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "409": {"description": "username or email taken", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Account"],
                "summary": "Log in",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.LoginResponse"}},
                    "401": {"description": "invalid_credentials or mfa_required", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Account"],
                "summary": "Log out",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Account"],
                "summary": "Current account",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.UserResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/auth/profile": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Account"],
                "summary": "Update profile",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.UpdateProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.UserResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/auth/password": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Account"],
                "summary": "Change password",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "current password wrong", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/auth/mfa/totp/enroll": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["MFA"],
                "summary": "Start TOTP enrollment",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.TOTPEnrollResponse"}},
                    "409": {"description": "MFA already enabled", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/auth/mfa/totp/verify": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["MFA"],
                "summary": "Confirm TOTP enrollment",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.TOTPCodeRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "invalid code", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/auth/mfa/totp": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["MFA"],
                "summary": "Disable TOTP",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.TOTPCodeRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "invalid code", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/oauth/authorize": {
            "get": {
                "tags": ["OAuth2"],
                "summary": "OAuth2 authorization endpoint (GET)",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "default": "code", "name": "response_type", "in": "query", "required": true},
                    {"type": "string", "name": "client_id", "in": "query", "required": true},
                    {"type": "string", "name": "redirect_uri", "in": "query", "required": true},
                    {"type": "string", "name": "scope", "in": "query"},
                    {"type": "string", "name": "state", "in": "query"},
                    {"type": "string", "name": "nonce", "in": "query"},
                    {"type": "string", "name": "code_challenge", "in": "query"},
                    {"enum": ["S256", "plain"], "type": "string", "default": "plain", "name": "code_challenge_method", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Consent payload", "schema": {"$ref": "#/definitions/authsdk.AuthorizeResponse"}},
                    "302": {"description": "Error redirect to redirect_uri"},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "login_required or invalid_client", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            },
            "post": {
                "tags": ["OAuth2"],
                "summary": "OAuth2 authorization endpoint (POST)",
                "consumes": ["application/x-www-form-urlencoded"],
                "parameters": [
                    {"enum": ["allow", "deny"], "type": "string", "name": "action", "in": "formData", "required": true},
                    {"type": "string", "name": "response_type", "in": "formData", "required": true},
                    {"type": "string", "name": "client_id", "in": "formData", "required": true},
                    {"type": "string", "name": "redirect_uri", "in": "formData", "required": true},
                    {"type": "string", "name": "scope", "in": "formData"},
                    {"type": "string", "name": "state", "in": "formData"},
                    {"type": "string", "name": "code_challenge", "in": "formData"},
                    {"type": "string", "name": "code_challenge_method", "in": "formData"}
                ],
                "responses": {
                    "302": {"description": "Redirect to redirect_uri"},
                    "401": {"description": "login_required", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/oauth/token": {
            "post": {
                "tags": ["OAuth2"],
                "summary": "OAuth2 Token Endpoint",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "parameters": [
                    {"enum": ["authorization_code", "refresh_token"], "type": "string", "name": "grant_type", "in": "formData", "required": true},
                    {"type": "string", "name": "code", "in": "formData"},
                    {"type": "string", "name": "redirect_uri", "in": "formData"},
                    {"type": "string", "name": "code_verifier", "in": "formData"},
                    {"type": "string", "name": "refresh_token", "in": "formData"},
                    {"type": "string", "name": "scope", "in": "formData"},
                    {"type": "string", "name": "client_id", "in": "formData"},
                    {"type": "string", "name": "client_secret", "in": "formData"},
                    {"type": "string", "name": "client_assertion_type", "in": "formData"},
                    {"type": "string", "name": "client_assertion", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "400": {"description": "invalid_request, invalid_grant, unsupported_grant_type", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "invalid_client", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/oauth/revoke": {
            "post": {
                "tags": ["OAuth2"],
                "summary": "OAuth2 Token Revocation Endpoint",
                "consumes": ["application/x-www-form-urlencoded"],
                "parameters": [
                    {"type": "string", "name": "token", "in": "formData", "required": true},
                    {"enum": ["access_token", "refresh_token"], "type": "string", "name": "token_type_hint", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Token revoked (or was already invalid)"},
                    "401": {"description": "invalid_client", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/oauth/introspect": {
            "post": {
                "tags": ["OAuth2"],
                "summary": "OAuth2 Token Introspection Endpoint",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "token", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "Token introspection result", "schema": {"$ref": "#/definitions/authsdk.IntrospectionResponse"}},
                    "401": {"description": "invalid_client", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/oauth/userinfo": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["OAuth2"],
                "summary": "Get user information",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.UserInfoResponse"}},
                    "401": {"description": "invalid_token", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/.well-known/oauth-authorization-server": {
            "get": {
                "tags": ["OAuth2"],
                "summary": "Authorization server metadata",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.ServerMetadata"}}
                }
            }
        },
        "/livez": {
            "get": {
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "service not ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_description": {"type": "string"}
            }
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"},
                "expires_in": {"type": "integer"},
                "refresh_token": {"type": "string"},
                "scope": {"type": "string"}
            }
        },
        "authsdk.IntrospectionResponse": {
            "type": "object",
            "properties": {
                "active": {"type": "boolean"},
                "scope": {"type": "string"},
                "client_id": {"type": "string"},
                "username": {"type": "string"},
                "token_type": {"type": "string"},
                "exp": {"type": "integer"},
                "sub": {"type": "string"}
            }
        },
        "authsdk.UserInfoResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "display_name": {"type": "string"}
            }
        },
        "authsdk.AuthorizeResponse": {
            "type": "object",
            "properties": {
                "client_id": {"type": "string"},
                "client_name": {"type": "string"},
                "redirect_uri": {"type": "string"},
                "scope": {"type": "string"},
                "scopes": {"type": "array", "items": {"type": "string"}},
                "state": {"type": "string"},
                "nonce": {"type": "string"},
                "code_challenge": {"type": "string"},
                "code_challenge_method": {"type": "string"}
            }
        },
        "authsdk.ServerMetadata": {
            "type": "object",
            "properties": {
                "issuer": {"type": "string"},
                "authorization_endpoint": {"type": "string"},
                "token_endpoint": {"type": "string"},
                "userinfo_endpoint": {"type": "string"},
                "revocation_endpoint": {"type": "string"},
                "introspection_endpoint": {"type": "string"},
                "response_types_supported": {"type": "array", "items": {"type": "string"}},
                "grant_types_supported": {"type": "array", "items": {"type": "string"}},
                "token_endpoint_auth_methods_supported": {"type": "array", "items": {"type": "string"}},
                "token_endpoint_auth_signing_alg_values_supported": {"type": "array", "items": {"type": "string"}},
                "code_challenge_methods_supported": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.RegisterRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "display_name": {"type": "string"}
            }
        },
        "authsdk.LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"},
                "otp": {"type": "string"}
            }
        },
        "authsdk.LoginResponse": {
            "type": "object",
            "properties": {
                "session_token": {"type": "string"},
                "expires_at": {"type": "integer"},
                "user": {"$ref": "#/definitions/authsdk.UserResponse"}
            }
        },
        "authsdk.UserResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "display_name": {"type": "string"},
                "avatar_url": {"type": "string"},
                "mfa_enabled": {"type": "boolean"},
                "created_at": {"type": "integer"}
            }
        },
        "authsdk.UpdateProfileRequest": {
            "type": "object",
            "properties": {
                "display_name": {"type": "string"},
                "avatar_url": {"type": "string"}
            }
        },
        "authsdk.ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "current_password": {"type": "string"},
                "new_password": {"type": "string"}
            }
        },
        "authsdk.TOTPEnrollResponse": {
            "type": "object",
            "properties": {
                "secret": {"type": "string"},
                "otpauth_url": {"type": "string"},
                "issuer": {"type": "string"},
                "account": {"type": "string"}
            }
        },
        "authsdk.TOTPCodeRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"}
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "version": {"type": "string"},
                "uptime": {"type": "string"},
                "timestamp": {"type": "integer"},
                "checks": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Opaque session token. Format: \"Bearer {token}\". Browsers send the sekaipass_session cookie instead.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "SEKAI Pass API",
	Description:      "Identity provider for SEKAI applications: account API and the OAuth 2.0 authorization-code grant with client_secret and private_key_jwt (RFC 7523) client authentication.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
