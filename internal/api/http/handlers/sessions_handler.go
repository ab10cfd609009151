package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/outcome"
	"github.com/spec-kit/account-service/internal/service"
	"github.com/spec-kit/account-service/internal/validation"
)

// SessionsHandler exposes the session operations.
type SessionsHandler struct {
	sessions *service.SessionService
	tokens   *auth.TokenManager
	validate *validation.Validator
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(sessions *service.SessionService, tokens *auth.TokenManager, validate *validation.Validator) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, tokens: tokens, validate: validate}
}

// Register handles POST /auth/register.
func (h *SessionsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if msgs := h.validate.Validate(req); len(msgs) > 0 {
		return c.Status(http.StatusBadRequest).
			JSON(outcome.FailureWith[dto.SessionResponse]("Validation failed", msgs))
	}

	result := h.sessions.Register(c.UserContext(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if !result.IsSuccess {
		return failureResponse(c, result)
	}

	return c.Status(http.StatusCreated).
		JSON(outcome.Success(dto.NewSessionResponse(result.Data)))
}

// Login handles POST /auth/login.
func (h *SessionsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if msgs := h.validate.Validate(req); len(msgs) > 0 {
		return c.Status(http.StatusBadRequest).
			JSON(outcome.FailureWith[dto.SessionResponse]("Validation failed", msgs))
	}

	result := h.sessions.Login(c.UserContext(), req.Email, req.Password)
	if !result.IsSuccess {
		return failureResponse(c, result)
	}

	return c.JSON(outcome.Success(dto.NewSessionResponse(result.Data)))
}

// RefreshToken handles POST /auth/refresh.
func (h *SessionsHandler) RefreshToken(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if msgs := h.validate.Validate(req); len(msgs) > 0 {
		return c.Status(http.StatusBadRequest).
			JSON(outcome.FailureWith[dto.SessionResponse]("Validation failed", msgs))
	}

	result := h.sessions.RefreshToken(c.UserContext(), req.RefreshToken)
	if !result.IsSuccess {
		return failureResponse(c, result)
	}

	return c.JSON(outcome.Success(dto.NewSessionResponse(result.Data)))
}

// ValidateToken handles GET /auth/validate. It reports token validity
// without revealing why an invalid token failed.
func (h *SessionsHandler) ValidateToken(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return fiber.NewError(http.StatusBadRequest, "token query parameter required")
	}
	return c.JSON(fiber.Map{"valid": h.tokens.Validate(token)})
}

// Me handles GET /auth/me behind the bearer middleware.
func (h *SessionsHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Account == nil {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return c.JSON(outcome.Success(dto.NewAccountResponse(principal.Account)))
}

// failureResponse maps a failed outcome to the HTTP status its
// message implies and echoes the outcome unchanged.
func failureResponse(c *fiber.Ctx, result outcome.Result[domain.SessionResult]) error {
	return c.Status(statusForFailure(result.ErrorMessage)).JSON(result)
}

func statusForFailure(message string) int {
	switch message {
	case service.MsgEmailExists:
		return http.StatusConflict
	case service.MsgInvalidCredentials, service.MsgInvalidRefreshToken:
		return http.StatusUnauthorized
	case service.MsgAccountDeactivated:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
