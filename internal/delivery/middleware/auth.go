package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"listing-service/internal/domain"
	"listing-service/internal/repository"
	"listing-service/pkg/logger"
	"listing-service/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

var (
	errNoToken      = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid or expired token")
)

// Claims is the subset of the identity provider's access token the service reads.
// Roles are taken from realm_access.roles and from a flat roles claim.
type Claims struct {
	Email       string   `json:"email"`
	Roles       []string `json:"roles,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// Authenticator turns a bearer token into a domain.Principal backed by a local user row.
type Authenticator struct {
	secret  []byte
	issuer  string
	users   repository.UserRepository
	loggers *logger.Loggers
}

func NewAuthenticator(secret, issuer string, users repository.UserRepository, loggers *logger.Loggers) *Authenticator {
	return &Authenticator{
		secret:  []byte(secret),
		issuer:  issuer,
		users:   users,
		loggers: loggers,
	}
}

func normalizeRoles(groups ...[]string) []string {
	seen := make(map[string]struct{})
	var roles []string
	for _, group := range groups {
		for _, role := range group {
			role = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(role)), "ROLE_")
			if role == "" {
				continue
			}
			if _, ok := seen[role]; ok {
				continue
			}
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}
	return roles
}

func (a *Authenticator) parse(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errNoToken
	}

	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return nil, fmt.Errorf("%w: invalid authorization format", errInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", errInvalidToken)
	}
	return claims, nil
}

func (a *Authenticator) authenticate(r *http.Request) (*domain.Principal, error) {
	claims, err := a.parse(r)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetOrCreate(r.Context(), claims.Subject, claims.Email)
	if err != nil {
		return nil, err
	}

	return &domain.Principal{
		UserID:     user.ID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Roles:      normalizeRoles(claims.RealmAccess.Roles, claims.Roles),
	}, nil
}

func (a *Authenticator) handle(w http.ResponseWriter, r *http.Request, next http.Handler, required bool) {
	principal, err := a.authenticate(r)
	switch {
	case err == nil:
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	case errors.Is(err, errNoToken) && !required:
		next.ServeHTTP(w, r)
	case errors.Is(err, errNoToken):
		utils.RespondWithErrorJSON(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, errInvalidToken):
		a.loggers.InfoLogger.Debug("Rejected bearer token", zap.String("reason", err.Error()))
		utils.RespondWithErrorJSON(w, http.StatusUnauthorized, "invalid or expired token")
	default:
		a.loggers.ErrorLogger.Error("Failed to resolve principal", utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
	}
}

// Optional attaches a principal when a valid token is present and lets anonymous requests through.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.handle(w, r, next, false)
	})
}

// Required rejects requests without a valid token.
func (a *Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.handle(w, r, next, true)
	})
}

// RequireRole must run after Required.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !PrincipalFromContext(r.Context()).HasRole(role) {
				utils.RespondWithErrorJSON(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey).(*domain.Principal)
	return p
}
