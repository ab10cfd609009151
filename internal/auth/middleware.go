package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Account *domain.Account
	Claims  *Claims
}

// Middleware validates bearer tokens and loads the account principal.
type Middleware struct {
	tokens   *TokenManager
	accounts repository.AccountRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, accounts repository.AccountRepository) *Middleware {
	return &Middleware{tokens: tokens, accounts: accounts}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseClaims(parts[1])
	if err != nil {
		return apperrors.NewInvalidToken("invalid token")
	}

	accountID, err := claims.AccountID()
	if err != nil {
		return apperrors.NewInvalidToken("invalid token subject")
	}

	account, err := m.accounts.FindByID(c.Context(), accountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("account not found")
		}
		return apperrors.MapError(err)
	}
	if account.Disabled() {
		return apperrors.NewAccountDisabled("account is deactivated")
	}

	c.Locals(principalKey, &Principal{Account: account, Claims: claims})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
