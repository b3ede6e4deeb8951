package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Claims identifies the dashboard user behind a request
type Claims struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "user"

// ErrMissingToken means the request carried no bearer token
var ErrMissingToken = errors.New("missing token")

var signedMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Authenticator validates OIDC access tokens. A disabled authenticator
// lets every request through as a local admin.
type Authenticator struct {
	keyfunc jwt.Keyfunc
	methods []string
	enabled bool
	logger  zerolog.Logger
}

// JWKSURL returns the Keycloak certificate endpoint of an issuer
func JWKSURL(issuerURL string) string {
	return strings.TrimSuffix(issuerURL, "/") + "/protocol/openid-connect/certs"
}

// NewAuthenticator fetches the issuer's JWKS and verifies tokens against it
func NewAuthenticator(issuerURL string, logger zerolog.Logger) (*Authenticator, error) {
	logger = logger.With().Str("component", "auth").Logger()

	jwksURL := JWKSURL(issuerURL)
	logger.Info().Str("jwks_url", jwksURL).Msg("fetching JWKS")

	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc: %w", err)
	}

	return newAuthenticator(k.Keyfunc, signedMethods, logger), nil
}

func newAuthenticator(kf jwt.Keyfunc, methods []string, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		keyfunc: kf,
		methods: methods,
		enabled: true,
		logger:  logger,
	}
}

// Disabled returns an authenticator that accepts every request
func Disabled(logger zerolog.Logger) *Authenticator {
	return &Authenticator{logger: logger.With().Str("component", "auth").Logger()}
}

// Enabled reports whether tokens are checked
func (a *Authenticator) Enabled() bool {
	return a.enabled
}

// Middleware rejects requests without a valid token and stores the claims
// in the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			ctx := context.WithValue(r.Context(), UserContextKey, &Claims{
				Email: "dev@monti.local",
				Name:  "Dev User",
				Role:  "admin",
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			a.logger.Debug().Str("path", r.URL.Path).Msg("missing authorization token")
			http.Error(w, "Unauthorized: "+ErrMissingToken.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := a.Validate(tokenString)
		if err != nil {
			a.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}

		a.logger.Debug().
			Str("email", claims.Email).
			Str("role", claims.Role).
			Msg("user authenticated")

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Validate verifies the token signature and expiry and extracts the claims
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	mapClaims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, mapClaims, a.keyfunc, jwt.WithValidMethods(a.methods))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims := &Claims{
		Role:   extractRole(mapClaims),
		Groups: stringList(mapClaims["groups"]),
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	} else if preferredUsername, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = preferredUsername
	}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil {
		claims.ExpiresAt = exp
	}

	return claims, nil
}

// extractToken gets the token from Authorization header or query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	// Browsers cannot set headers on WebSocket upgrades
	return r.URL.Query().Get("token")
}

// extractRole reads Keycloak realm roles, highest privilege first
func extractRole(mapClaims jwt.MapClaims) string {
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		roles := stringList(realmAccess["roles"])
		for _, priority := range []string{"admin", "supervisor", "agent", "viewer"} {
			for _, role := range roles {
				if role == priority {
					return role
				}
			}
		}
	}
	return "viewer"
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}
