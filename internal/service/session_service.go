package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/outcome"
	"github.com/spec-kit/account-service/internal/repository"
)

// Caller-facing failure messages. Unknown email and wrong password
// share one message so account existence never leaks.
const (
	MsgEmailExists         = "Email already exists"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgAccountDeactivated  = "Account is deactivated"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgRegistrationFailed  = "Registration failed"
	MsgLoginFailed         = "Login failed"
	MsgRefreshFailed       = "Token refresh failed"
)

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SessionService orchestrates registration, login and refresh-token
// rotation. Reads outside a transaction go through the pool-bound
// repository; every mutation runs inside a fresh unit of work.
type SessionService struct {
	accounts   repository.AccountRepository
	newUOW     func() repository.UnitOfWork
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	refreshTTL time.Duration
}

// SessionDependencies encapsulates collaborators for the service.
type SessionDependencies struct {
	AccountRepo repository.AccountRepository
	UnitOfWork  func() repository.UnitOfWork
	Tokens      *auth.TokenManager
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewSessionService builds the service.
func NewSessionService(cfg config.AuthConfig, deps SessionDependencies) *SessionService {
	ttlDays := cfg.RefreshTokenTTLDays
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &SessionService{
		accounts:   deps.AccountRepo,
		newUOW:     deps.UnitOfWork,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		refreshTTL: time.Duration(ttlDays) * 24 * time.Hour,
	}
}

// Register creates a new account and issues its first token pair.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) outcome.Result[domain.SessionResult] {
	exists, err := s.accounts.ExistsByEmail(ctx, in.Email)
	if err != nil {
		s.logger.Error("registration failed", zap.String("email", in.Email), zap.Error(err))
		return outcome.Failure[domain.SessionResult](MsgRegistrationFailed)
	}
	if exists {
		return outcome.Failure[domain.SessionResult](MsgEmailExists)
	}

	uow := s.newUOW()
	if err := uow.Begin(ctx); err != nil {
		s.logger.Error("registration failed", zap.String("email", in.Email), zap.Error(err))
		return outcome.Failure[domain.SessionResult](MsgRegistrationFailed)
	}

	result, err := s.registerInTx(ctx, uow, in)
	if err != nil {
		_ = uow.Rollback(ctx)
		// The unique index is the authority; the pre-check above is a
		// non-atomic fast path that can lose the race.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return outcome.Failure[domain.SessionResult](MsgEmailExists)
		}
		s.logger.Error("registration failed", zap.String("email", in.Email), zap.Error(err))
		return outcome.Failure[domain.SessionResult](MsgRegistrationFailed)
	}

	s.logger.Info("account registered", zap.Int64("account_id", result.AccountID))
	s.publishAccountCreated(ctx, result)
	return outcome.Success(result)
}

func (s *SessionService) registerInTx(ctx context.Context, uow repository.UnitOfWork, in RegisterInput) (domain.SessionResult, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.SessionResult{}, err
	}

	account := &domain.Account{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         domain.RoleStandard,
		IsActive:     true,
	}

	accounts := uow.Accounts()
	if err := accounts.Create(ctx, account); err != nil {
		return domain.SessionResult{}, err
	}

	result, err := s.issueSession(ctx, accounts, account)
	if err != nil {
		return domain.SessionResult{}, err
	}

	if err := uow.Commit(ctx); err != nil {
		return domain.SessionResult{}, err
	}
	return result, nil
}

// Login authenticates credentials and rotates the session tokens.
func (s *SessionService) Login(ctx context.Context, email, password string) outcome.Result[domain.SessionResult] {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("login failed", zap.String("email", email), zap.Error(err))
			return outcome.Failure[domain.SessionResult](MsgLoginFailed)
		}
		return outcome.Failure[domain.SessionResult](MsgInvalidCredentials)
	}

	if account.Disabled() {
		return outcome.Failure[domain.SessionResult](MsgAccountDeactivated)
	}

	if !auth.VerifyPassword(password, account.PasswordHash) {
		return outcome.Failure[domain.SessionResult](MsgInvalidCredentials)
	}

	uow := s.newUOW()
	if err := uow.Begin(ctx); err != nil {
		s.logger.Error("login failed", zap.String("email", email), zap.Error(err))
		return outcome.Failure[domain.SessionResult](MsgLoginFailed)
	}

	result, err := s.loginInTx(ctx, uow, account)
	if err != nil {
		_ = uow.Rollback(ctx)
		s.logger.Error("login failed", zap.String("email", email), zap.Error(err))
		return outcome.Failure[domain.SessionResult](MsgLoginFailed)
	}

	s.logger.Info("account logged in", zap.Int64("account_id", account.ID))
	return outcome.Success(result)
}

func (s *SessionService) loginInTx(ctx context.Context, uow repository.UnitOfWork, account *domain.Account) (domain.SessionResult, error) {
	now := time.Now()
	account.LastLoginAt = &now

	result, err := s.issueSession(ctx, uow.Accounts(), account)
	if err != nil {
		return domain.SessionResult{}, err
	}

	if err := uow.Commit(ctx); err != nil {
		return domain.SessionResult{}, err
	}
	return result, nil
}

// RefreshToken exchanges a valid refresh token for a freshly rotated
// pair. The stored token is overwritten, so each token is single use.
func (s *SessionService) RefreshToken(ctx context.Context, refreshToken string) outcome.Result[domain.SessionResult] {
	account, err := s.accounts.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("token refresh failed", zap.Error(err))
			return outcome.Failure[domain.SessionResult](MsgRefreshFailed)
		}
		return outcome.Failure[domain.SessionResult](MsgInvalidRefreshToken)
	}

	if account.Disabled() {
		return outcome.Failure[domain.SessionResult](MsgAccountDeactivated)
	}

	uow := s.newUOW()
	if err := uow.Begin(ctx); err != nil {
		s.logger.Error("token refresh failed", zap.Error(err))
		return outcome.Failure[domain.SessionResult](MsgRefreshFailed)
	}

	result, err := s.refreshInTx(ctx, uow, account)
	if err != nil {
		_ = uow.Rollback(ctx)
		s.logger.Error("token refresh failed", zap.Int64("account_id", account.ID), zap.Error(err))
		return outcome.Failure[domain.SessionResult](MsgRefreshFailed)
	}

	s.logger.Info("session refreshed", zap.Int64("account_id", account.ID))
	s.publishSessionRefreshed(ctx, account)
	return outcome.Success(result)
}

func (s *SessionService) refreshInTx(ctx context.Context, uow repository.UnitOfWork, account *domain.Account) (domain.SessionResult, error) {
	result, err := s.issueSession(ctx, uow.Accounts(), account)
	if err != nil {
		return domain.SessionResult{}, err
	}

	if err := uow.Commit(ctx); err != nil {
		return domain.SessionResult{}, err
	}
	return result, nil
}

// issueSession issues a new token pair, stores the rotated refresh
// token on the account and persists it through the given repository.
func (s *SessionService) issueSession(ctx context.Context, accounts repository.AccountRepository, account *domain.Account) (domain.SessionResult, error) {
	accessToken, expiresAt, err := s.tokens.IssueAccessToken(account.ID, account.Email, account.Role)
	if err != nil {
		return domain.SessionResult{}, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return domain.SessionResult{}, err
	}

	refreshExpiry := time.Now().Add(s.refreshTTL)
	account.RefreshToken = &refreshToken
	account.RefreshTokenExpiresAt = &refreshExpiry

	if err := accounts.Update(ctx, account); err != nil {
		return domain.SessionResult{}, err
	}

	return domain.SessionResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccountID:    account.ID,
		Email:        account.Email,
		FirstName:    account.FirstName,
		LastName:     account.LastName,
		Role:         account.Role,
		ExpiresAt:    expiresAt,
	}, nil
}

// publishAccountCreated fires after a successful commit; a publish
// failure must not affect the already-committed registration.
func (s *SessionService) publishAccountCreated(ctx context.Context, result domain.SessionResult) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventAccountCreated,
		AccountID: result.AccountID,
		Timestamp: time.Now(),
		Payload: events.AccountCreatedPayload{
			Email:     result.Email,
			FirstName: result.FirstName,
			LastName:  result.LastName,
			Role:      result.Role,
		},
	})
}

func (s *SessionService) publishSessionRefreshed(ctx context.Context, account *domain.Account) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSessionRefreshed,
		AccountID: account.ID,
		Timestamp: time.Now(),
		Payload:   events.SessionRefreshedPayload{Email: account.Email},
	})
}
