package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
)

// stubAccountStore keeps accounts in memory and mimics the repository
// row semantics, including the expiry filter on refresh-token lookup.
type stubAccountStore struct {
	nextID   int64
	accounts map[int64]domain.Account

	createErr error
	updateErr error
}

func newStubAccountStore() *stubAccountStore {
	return &stubAccountStore{accounts: map[int64]domain.Account{}}
}

func (s *stubAccountStore) Create(_ context.Context, account *domain.Account) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	account.ID = s.nextID
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	s.accounts[account.ID] = *account
	return nil
}

func (s *stubAccountStore) Update(_ context.Context, account *domain.Account) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.accounts[account.ID]; !ok {
		return pgx.ErrNoRows
	}
	account.UpdatedAt = time.Now()
	s.accounts[account.ID] = *account
	return nil
}

func (s *stubAccountStore) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	account, ok := s.accounts[id]
	if !ok || account.IsDeleted {
		return nil, pgx.ErrNoRows
	}
	copied := account
	return &copied, nil
}

// FindByEmail surfaces soft-deleted rows, preferring a live one, the
// same way the SQL implementation orders by is_deleted.
func (s *stubAccountStore) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	var deleted *domain.Account
	for _, account := range s.accounts {
		if !strings.EqualFold(account.Email, email) {
			continue
		}
		copied := account
		if !copied.IsDeleted {
			return &copied, nil
		}
		deleted = &copied
	}
	if deleted != nil {
		return deleted, nil
	}
	return nil, pgx.ErrNoRows
}

// ExistsByEmail ignores soft-deleted rows; uniqueness only binds live
// accounts.
func (s *stubAccountStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, email) && !account.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubAccountStore) FindByRefreshToken(_ context.Context, token string) (*domain.Account, error) {
	for _, account := range s.accounts {
		if account.RefreshToken == nil || *account.RefreshToken != token {
			continue
		}
		if account.RefreshTokenExpiresAt == nil || !account.RefreshTokenExpiresAt.After(time.Now()) {
			continue
		}
		copied := account
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

// stubUnitOfWork snapshots the store on Begin and restores it on
// Rollback, mirroring transactional visibility.
type stubUnitOfWork struct {
	store *stubAccountStore

	snapshot   map[int64]domain.Account
	snapshotID int64

	beginErr  error
	commitErr error

	began      bool
	committed  bool
	rolledBack bool
}

func (u *stubUnitOfWork) Begin(context.Context) error {
	if u.beginErr != nil {
		return u.beginErr
	}
	u.began = true
	u.snapshotID = u.store.nextID
	u.snapshot = make(map[int64]domain.Account, len(u.store.accounts))
	for id, account := range u.store.accounts {
		u.snapshot[id] = account
	}
	return nil
}

func (u *stubUnitOfWork) Commit(ctx context.Context) error {
	if u.commitErr != nil {
		u.restore()
		return u.commitErr
	}
	u.committed = true
	u.snapshot = nil
	return nil
}

func (u *stubUnitOfWork) Rollback(context.Context) error {
	if !u.began || u.committed {
		return nil
	}
	u.restore()
	u.rolledBack = true
	return nil
}

func (u *stubUnitOfWork) restore() {
	if u.snapshot == nil {
		return
	}
	u.store.accounts = u.snapshot
	u.store.nextID = u.snapshotID
	u.snapshot = nil
}

func (u *stubUnitOfWork) Accounts() repository.AccountRepository {
	return u.store
}

type fixture struct {
	store      *stubAccountStore
	uow        *stubUnitOfWork
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	sessions   *service.SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newStubAccountStore()
	uow := &stubUnitOfWork{store: store}
	tokens := auth.NewTokenManager("test-secret", "issuer", "audience", 60)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	sessions := service.NewSessionService(
		config.AuthConfig{RefreshTokenTTLDays: 30},
		service.SessionDependencies{
			AccountRepo: store,
			UnitOfWork:  func() repository.UnitOfWork { return uow },
			Tokens:      tokens,
			Dispatcher:  dispatcher,
			Logger:      zap.NewNop(),
		},
	)
	return &fixture{store: store, uow: uow, tokens: tokens, dispatcher: dispatcher, sessions: sessions}
}

func registerInput() service.RegisterInput {
	return service.RegisterInput{
		Email:     "a@x.com",
		Password:  "Aa1!aaaa",
		FirstName: "A",
		LastName:  "B",
	}
}

func (f *fixture) seedAccount(t *testing.T, email, password string, active bool) *domain.Account {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	account := &domain.Account{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "A",
		LastName:     "B",
		Role:         domain.RoleStandard,
		IsActive:     active,
	}
	require.NoError(t, f.store.Create(context.Background(), account))
	return account
}

func TestRegisterIssuesSession(t *testing.T) {
	f := newFixture(t)

	result := f.sessions.Register(context.Background(), registerInput())
	require.True(t, result.IsSuccess, result.ErrorMessage)

	assert.NotEmpty(t, result.Data.AccessToken)
	assert.NotEmpty(t, result.Data.RefreshToken)
	assert.Equal(t, "a@x.com", result.Data.Email)
	assert.Equal(t, domain.RoleStandard, result.Data.Role)
	assert.True(t, f.uow.committed)

	stored, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Aa1!aaaa", stored.PasswordHash)
	assert.True(t, auth.VerifyPassword("Aa1!aaaa", stored.PasswordHash))
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, result.Data.RefreshToken, *stored.RefreshToken)
	require.NotNil(t, stored.RefreshTokenExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *stored.RefreshTokenExpiresAt, time.Minute)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)

	first := f.sessions.Register(context.Background(), registerInput())
	require.True(t, first.IsSuccess)

	second := f.sessions.Register(context.Background(), registerInput())
	assert.False(t, second.IsSuccess)
	assert.Equal(t, service.MsgEmailExists, second.ErrorMessage)
}

func TestRegisterDuplicateEmailInsertRace(t *testing.T) {
	f := newFixture(t)
	// The pre-check sees no account, but the insert loses the race and
	// hits the unique constraint.
	f.store.createErr = repository.ErrDuplicateEmail

	result := f.sessions.Register(context.Background(), registerInput())
	assert.False(t, result.IsSuccess)
	assert.Equal(t, service.MsgEmailExists, result.ErrorMessage)
	assert.True(t, f.uow.rolledBack)
}

func TestRegisterRollsBackOnPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.store.updateErr = errors.New("connection reset")

	result := f.sessions.Register(context.Background(), registerInput())
	assert.False(t, result.IsSuccess)
	assert.Equal(t, service.MsgRegistrationFailed, result.ErrorMessage)
	assert.True(t, f.uow.rolledBack)

	// The inserted row must not survive: rollback leaves zero rows, not
	// a half-written account.
	assert.Empty(t, f.store.accounts)
	exists, err := f.store.ExistsByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegisterCommitFailure(t *testing.T) {
	f := newFixture(t)
	f.uow.commitErr = errors.New("deadlock detected")

	result := f.sessions.Register(context.Background(), registerInput())
	assert.False(t, result.IsSuccess)
	assert.Equal(t, service.MsgRegistrationFailed, result.ErrorMessage)
	assert.Empty(t, f.store.accounts)
}

func TestRegisterPublishesAccountCreated(t *testing.T) {
	f := newFixture(t)

	var captured []events.Event
	f.dispatcher.Subscribe(events.EventAccountCreated, func(_ context.Context, event events.Event) error {
		captured = append(captured, event)
		return nil
	})

	result := f.sessions.Register(context.Background(), registerInput())
	require.True(t, result.IsSuccess)

	require.Len(t, captured, 1)
	assert.Equal(t, result.Data.AccountID, captured[0].AccountID)
	payload, ok := captured[0].Payload.(events.AccountCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", payload.Email)
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)

	result := f.sessions.Login(context.Background(), "a@x.com", "Aa1!aaaa")
	require.True(t, result.IsSuccess, result.ErrorMessage)
	assert.NotEmpty(t, result.Data.AccessToken)
	assert.NotEmpty(t, result.Data.RefreshToken)
	assert.True(t, f.uow.committed)

	stored, err := f.store.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, result.Data.RefreshToken, *stored.RefreshToken)
}

func TestLoginCaseInsensitiveEmail(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)

	result := f.sessions.Login(context.Background(), "A@X.COM", "Aa1!aaaa")
	assert.True(t, result.IsSuccess, result.ErrorMessage)
}

func TestLoginFailureMessageDoesNotLeakExistence(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)

	unknown := f.sessions.Login(context.Background(), "nobody@x.com", "Aa1!aaaa")
	wrongPassword := f.sessions.Login(context.Background(), "a@x.com", "Bb2!bbbb")

	assert.False(t, unknown.IsSuccess)
	assert.False(t, wrongPassword.IsSuccess)
	assert.Equal(t, service.MsgInvalidCredentials, unknown.ErrorMessage)
	assert.Equal(t, unknown.ErrorMessage, wrongPassword.ErrorMessage)
}

func TestLoginDisabledAccount(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedAccount(t, "a@x.com", "Aa1!aaaa", false)

	result := f.sessions.Login(context.Background(), "a@x.com", "Aa1!aaaa")
	assert.False(t, result.IsSuccess)
	assert.Equal(t, service.MsgAccountDeactivated, result.ErrorMessage)
	assert.False(t, f.uow.began)

	stored, err := f.store.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)
	assert.Nil(t, stored.LastLoginAt)
}

func TestLoginSoftDeletedAccount(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)
	seeded.IsDeleted = true
	require.NoError(t, f.store.Update(context.Background(), seeded))

	result := f.sessions.Login(context.Background(), "a@x.com", "Aa1!aaaa")
	assert.False(t, result.IsSuccess)
	// Deleted accounts are disabled, not nonexistent, to the login path.
	assert.Equal(t, service.MsgAccountDeactivated, result.ErrorMessage)
	assert.False(t, f.uow.began)

	stored, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)
	assert.Nil(t, stored.LastLoginAt)
}

func TestLoginReRegisteredEmailPrefersLiveAccount(t *testing.T) {
	f := newFixture(t)
	old := f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)
	old.IsDeleted = true
	require.NoError(t, f.store.Update(context.Background(), old))
	f.seedAccount(t, "a@x.com", "Bb2!bbbb", true)

	result := f.sessions.Login(context.Background(), "a@x.com", "Bb2!bbbb")
	assert.True(t, result.IsSuccess, result.ErrorMessage)
}

func TestRefreshTokenRotation(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)

	login := f.sessions.Login(context.Background(), "a@x.com", "Aa1!aaaa")
	require.True(t, login.IsSuccess)
	oldToken := login.Data.RefreshToken

	refreshed := f.sessions.RefreshToken(context.Background(), oldToken)
	require.True(t, refreshed.IsSuccess, refreshed.ErrorMessage)
	assert.NotEmpty(t, refreshed.Data.AccessToken)
	assert.NotEqual(t, oldToken, refreshed.Data.RefreshToken)

	// Single use: the rotated-out token no longer matches any account.
	replay := f.sessions.RefreshToken(context.Background(), oldToken)
	assert.False(t, replay.IsSuccess)
	assert.Equal(t, service.MsgInvalidRefreshToken, replay.ErrorMessage)
}

func TestRefreshTokenUnknown(t *testing.T) {
	f := newFixture(t)

	result := f.sessions.RefreshToken(context.Background(), "never-issued-token")
	assert.False(t, result.IsSuccess)
	assert.Equal(t, service.MsgInvalidRefreshToken, result.ErrorMessage)
}

func TestRefreshTokenExpired(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)

	token := "expired-but-stored-token"
	expiry := time.Now().Add(-24 * time.Hour)
	seeded.RefreshToken = &token
	seeded.RefreshTokenExpiresAt = &expiry
	require.NoError(t, f.store.Update(context.Background(), seeded))

	result := f.sessions.RefreshToken(context.Background(), token)
	assert.False(t, result.IsSuccess)
	assert.Equal(t, service.MsgInvalidRefreshToken, result.ErrorMessage)
}

func TestRefreshTokenDisabledAccount(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)

	token := "still-valid-token"
	expiry := time.Now().Add(24 * time.Hour)
	seeded.RefreshToken = &token
	seeded.RefreshTokenExpiresAt = &expiry
	seeded.IsActive = false
	require.NoError(t, f.store.Update(context.Background(), seeded))

	result := f.sessions.RefreshToken(context.Background(), token)
	assert.False(t, result.IsSuccess)
	assert.Equal(t, service.MsgAccountDeactivated, result.ErrorMessage)
}

func TestRefreshTokenRollsBackOnPersistFailure(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedAccount(t, "a@x.com", "Aa1!aaaa", true)

	token := "rotating-token"
	expiry := time.Now().Add(24 * time.Hour)
	seeded.RefreshToken = &token
	seeded.RefreshTokenExpiresAt = &expiry
	require.NoError(t, f.store.Update(context.Background(), seeded))

	f.store.updateErr = errors.New("connection reset")
	result := f.sessions.RefreshToken(context.Background(), token)
	assert.False(t, result.IsSuccess)
	assert.Equal(t, service.MsgRefreshFailed, result.ErrorMessage)
	assert.True(t, f.uow.rolledBack)

	// The stored token is untouched and still usable.
	f.store.updateErr = nil
	retry := f.sessions.RefreshToken(context.Background(), token)
	assert.True(t, retry.IsSuccess, retry.ErrorMessage)
}
