package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"habitchallenge/internal/httputil"
	"habitchallenge/internal/model"
	"habitchallenge/internal/service"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID int64
	Email  string
	Role   model.Role
}

// TokenParser validates an access token. *service.AuthService implements it.
type TokenParser interface {
	ParseAccessToken(token string) (*service.AccessClaims, error)
}

// Authenticate attaches a Principal when the request carries a valid bearer
// token. Requests without one pass through anonymously; routes that need a
// caller guard themselves with Require. A token that is present but invalid
// or expired is rejected here.
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parser.ParseAccessToken(tokenString)
			if err != nil {
				if errors.Is(err, service.ErrAccessTokenExpired) {
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
					return
				}
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			p := &Principal{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// bearerToken reads "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// GetUserIDFromContext returns the authenticated user's id.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return 0, false
	}
	return p.UserID, true
}

// Capability checks one permission of the caller. It returns ErrUnauthenticated
// or ErrForbidden (possibly wrapped) to deny.
type Capability func(p *Principal) error

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// Authenticated requires any logged-in caller.
func Authenticated(p *Principal) error {
	if p == nil {
		return ErrUnauthenticated
	}
	return nil
}

// Admin requires a logged-in caller with the admin role.
func Admin(p *Principal) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if p.Role != model.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// Require evaluates caps in order; the first denial decides between 401 and 403.
func Require(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			for _, c := range caps {
				err := c(p)
				if err == nil {
					continue
				}
				if errors.Is(err, ErrForbidden) {
					httputil.WriteForbidden(w, "관리자 권한이 필요합니다")
					return
				}
				httputil.WriteUnauthorized(w, "로그인이 필요합니다")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
