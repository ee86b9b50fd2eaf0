package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S0uris666/Propsail/internal/auth/domain"
	"github.com/S0uris666/Propsail/internal/auth/dto"
	"github.com/S0uris666/Propsail/internal/auth/service"
	autherror "github.com/S0uris666/Propsail/internal/errors"
	"github.com/S0uris666/Propsail/internal/mocks"
	"github.com/S0uris666/Propsail/internal/security"
	authconstant "github.com/S0uris666/Propsail/pkg/constant"
)

const testTTLMinutes = 10

type authServiceMocks struct {
	users      *mocks.MockUserRepository
	challenges *mocks.MockChallengeStore
	notifier   *mocks.MockNotifier
	tokens     *mocks.MockTokenMinter
}

func newAuthService(t *testing.T) (*service.AuthService, authServiceMocks, *gomock.Controller) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := authServiceMocks{
		users:      mocks.NewMockUserRepository(ctrl),
		challenges: mocks.NewMockChallengeStore(ctrl),
		notifier:   mocks.NewMockNotifier(ctrl),
		tokens:     mocks.NewMockTokenMinter(ctrl),
	}

	s := service.NewAuthService(m.users, m.challenges, m.notifier,
		security.NewService(), m.tokens, testTTLMinutes)

	return s, m, ctrl
}

func activeUser(t *testing.T, password string) *domain.User {
	t.Helper()

	hash, err := security.NewService().HashPassword(password)
	require.NoError(t, err)

	return &domain.User{
		ID:           "user-123",
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: hash,
		IsActive:     true,
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	s, m, ctrl := newAuthService(t)
	defer ctrl.Finish()

	user := activeUser(t, "Secret1pw")

	var issuedCode string

	m.users.EXPECT().GetByIdentifier(gomock.Any(), "alice").Return(user, nil)
	m.challenges.EXPECT().Create(gomock.Any(), user.ID, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, userID, code string, expiresAt time.Time) (*domain.Challenge, error) {
			issuedCode = code
			require.Len(t, code, authconstant.TwoFactorCodeLength)
			assert.WithinDuration(t, time.Now().Add(testTTLMinutes*time.Minute), expiresAt, 5*time.Second)
			return &domain.Challenge{
				ID:        "challenge-1",
				UserID:    userID,
				Code:      code,
				ExpiresAt: expiresAt,
			}, nil
		})
	m.notifier.EXPECT().SendTwoFactorCode(gomock.Any(), user.Email, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, code string, _ time.Time) error {
			assert.Equal(t, issuedCode, code)
			return nil
		})

	resp, err := s.Login(context.Background(), dto.LoginInput{Identifier: "alice", Password: "Secret1pw"})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "challenge-1", resp.ChallengeID)
	assert.NotEmpty(t, resp.Message)
	assert.NotContains(t, resp.Message, issuedCode)

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(testTTLMinutes*time.Minute), expiresAt, 5*time.Second)
}

func TestAuthService_Login_NormalizesIdentifier(t *testing.T) {
	s, m, ctrl := newAuthService(t)
	defer ctrl.Finish()

	// The lookup must receive the trimmed, lowercased identifier.
	m.users.EXPECT().GetByIdentifier(gomock.Any(), "alice@example.com").Return(nil, nil)

	_, err := s.Login(context.Background(), dto.LoginInput{
		Identifier: "  Alice@Example.COM ",
		Password:   "whatever1",
	})

	assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
}

func TestAuthService_Login_IndistinguishableFailures(t *testing.T) {
	s, m, ctrl := newAuthService(t)
	defer ctrl.Finish()

	user := activeUser(t, "Secret1pw")

	m.users.EXPECT().GetByIdentifier(gomock.Any(), "unknown@x.com").Return(nil, nil)
	_, unknownErr := s.Login(context.Background(), dto.LoginInput{Identifier: "unknown@x.com", Password: "anything1"})

	m.users.EXPECT().GetByIdentifier(gomock.Any(), "alice").Return(user, nil)
	_, wrongPassErr := s.Login(context.Background(), dto.LoginInput{Identifier: "alice", Password: "WrongPass1"})

	require.Error(t, unknownErr)
	require.Error(t, wrongPassErr)
	assert.Equal(t, unknownErr, wrongPassErr)
	assert.ErrorIs(t, unknownErr, autherror.ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	s, m, ctrl := newAuthService(t)
	defer ctrl.Finish()

	user := activeUser(t, "Secret1pw")
	user.IsActive = false

	m.users.EXPECT().GetByIdentifier(gomock.Any(), "alice").Return(user, nil)

	_, err := s.Login(context.Background(), dto.LoginInput{Identifier: "alice", Password: "Secret1pw"})

	assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
}

func TestAuthService_Login_DeliveryFailure(t *testing.T) {
	s, m, ctrl := newAuthService(t)
	defer ctrl.Finish()

	user := activeUser(t, "Secret1pw")

	m.users.EXPECT().GetByIdentifier(gomock.Any(), "alice").Return(user, nil)
	m.challenges.EXPECT().Create(gomock.Any(), user.ID, gomock.Any(), gomock.Any()).Return(
		&domain.Challenge{ID: "challenge-1", UserID: user.ID, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil)
	m.notifier.EXPECT().SendTwoFactorCode(gomock.Any(), user.Email, gomock.Any(), gomock.Any()).
		Return(errors.New("smtp down"))

	resp, err := s.Login(context.Background(), dto.LoginInput{Identifier: "alice", Password: "Secret1pw"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, autherror.ErrDeliveryFailure)
	assert.NotErrorIs(t, err, autherror.ErrInvalidCredentials)
}

func TestAuthService_Login_StoreError(t *testing.T) {
	s, m, ctrl := newAuthService(t)
	defer ctrl.Finish()

	user := activeUser(t, "Secret1pw")
	expectedErr := errors.New("store down")

	m.users.EXPECT().GetByIdentifier(gomock.Any(), "alice").Return(user, nil)
	m.challenges.EXPECT().Create(gomock.Any(), user.ID, gomock.Any(), gomock.Any()).Return(nil, expectedErr)

	_, err := s.Login(context.Background(), dto.LoginInput{Identifier: "alice", Password: "Secret1pw"})

	assert.Equal(t, expectedErr, err)
}

func validChallenge(userID string) *domain.Challenge {
	return &domain.Challenge{
		ID:        "challenge-1",
		UserID:    userID,
		Code:      "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
		Used:      false,
	}
}

func TestAuthService_VerifyTwoFactor_Success(t *testing.T) {
	s, m, ctrl := newAuthService(t)
	defer ctrl.Finish()

	user := activeUser(t, "Secret1pw")
	challenge := validChallenge(user.ID)

	m.challenges.EXPECT().FindByID(gomock.Any(), challenge.ID).Return(challenge, nil)
	m.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
	m.challenges.EXPECT().MarkUsedIfUnused(gomock.Any(), challenge.ID).Return(true, nil)
	m.tokens.EXPECT().Mint(user.ID).Return("signed-token", 900, nil)

	resp, err := s.VerifyTwoFactor(context.Background(), dto.VerifyInput{
		ChallengeID: challenge.ID,
		Code:        "123456",
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "signed-token", resp.AccessToken)
	assert.Equal(t, 900, resp.ExpiresIn)
	assert.Equal(t, authconstant.DefaultTokenType, resp.TokenType)
}

func TestAuthService_VerifyTwoFactor_FormatRejectedBeforeLookup(t *testing.T) {
	s, _, ctrl := newAuthService(t)
	defer ctrl.Finish()

	// No store expectations: a malformed code must never reach the store.
	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		_, err := s.VerifyTwoFactor(context.Background(), dto.VerifyInput{
			ChallengeID: "challenge-1",
			Code:        code,
		})
		assert.ErrorIs(t, err, autherror.ErrInvalidOrExpiredChallenge, "code %q", code)
	}
}

func TestAuthService_VerifyTwoFactor_CollapsedFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m authServiceMocks, user *domain.User, challenge *domain.Challenge)
	}{
		{
			name: "challenge absent",
			setup: func(m authServiceMocks, _ *domain.User, challenge *domain.Challenge) {
				m.challenges.EXPECT().FindByID(gomock.Any(), challenge.ID).Return(nil, nil)
			},
		},
		{
			name: "challenge already used",
			setup: func(m authServiceMocks, _ *domain.User, challenge *domain.Challenge) {
				challenge.Used = true
				m.challenges.EXPECT().FindByID(gomock.Any(), challenge.ID).Return(challenge, nil)
			},
		},
		{
			name: "owner missing",
			setup: func(m authServiceMocks, user *domain.User, challenge *domain.Challenge) {
				m.challenges.EXPECT().FindByID(gomock.Any(), challenge.ID).Return(challenge, nil)
				m.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(nil, nil)
			},
		},
		{
			name: "owner inactive",
			setup: func(m authServiceMocks, user *domain.User, challenge *domain.Challenge) {
				user.IsActive = false
				m.challenges.EXPECT().FindByID(gomock.Any(), challenge.ID).Return(challenge, nil)
				m.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
			},
		},
		{
			name: "code mismatch",
			setup: func(m authServiceMocks, user *domain.User, challenge *domain.Challenge) {
				challenge.Code = "654321"
				m.challenges.EXPECT().FindByID(gomock.Any(), challenge.ID).Return(challenge, nil)
				m.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
			},
		},
		{
			name: "expired",
			setup: func(m authServiceMocks, user *domain.User, challenge *domain.Challenge) {
				challenge.ExpiresAt = time.Now().Add(-time.Minute)
				m.challenges.EXPECT().FindByID(gomock.Any(), challenge.ID).Return(challenge, nil)
				m.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
			},
		},
		{
			name: "mark-used race lost",
			setup: func(m authServiceMocks, user *domain.User, challenge *domain.Challenge) {
				m.challenges.EXPECT().FindByID(gomock.Any(), challenge.ID).Return(challenge, nil)
				m.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
				m.challenges.EXPECT().MarkUsedIfUnused(gomock.Any(), challenge.ID).Return(false, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m, ctrl := newAuthService(t)
			defer ctrl.Finish()

			user := activeUser(t, "Secret1pw")
			challenge := validChallenge(user.ID)
			tt.setup(m, user, challenge)

			resp, err := s.VerifyTwoFactor(context.Background(), dto.VerifyInput{
				ChallengeID: challenge.ID,
				Code:        "123456",
			})

			assert.Nil(t, resp)
			assert.ErrorIs(t, err, autherror.ErrInvalidOrExpiredChallenge)
		})
	}
}

// casChallengeStore is a minimal in-memory store whose MarkUsedIfUnused is a
// real compare-and-swap, used to exercise concurrent redemption end to end.
type casChallengeStore struct {
	mu        sync.Mutex
	seq       int
	challenge *domain.Challenge
}

func (s *casChallengeStore) FindByID(_ context.Context, id string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil || s.challenge.ID != id {
		return nil, nil
	}
	c := *s.challenge
	return &c, nil
}

func (s *casChallengeStore) Create(_ context.Context, userID, code string, expiresAt time.Time) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge != nil {
		s.challenge.Used = true
	}
	s.seq++
	s.challenge = &domain.Challenge{ID: fmt.Sprintf("challenge-%d", s.seq), UserID: userID, Code: code, ExpiresAt: expiresAt}
	c := *s.challenge
	return &c, nil
}

func (s *casChallengeStore) InvalidateAllUnused(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge != nil && !s.challenge.Used {
		s.challenge.Used = true
		return 1, nil
	}
	return 0, nil
}

func (s *casChallengeStore) MarkUsedIfUnused(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil || s.challenge.ID != id || s.challenge.Used {
		return false, nil
	}
	s.challenge.Used = true
	return true, nil
}

func TestAuthService_VerifyTwoFactor_ConcurrentRedemption(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	user := activeUser(t, "Secret1pw")
	store := &casChallengeStore{
		challenge: &domain.Challenge{
			ID:        "challenge-1",
			UserID:    user.ID,
			Code:      "123456",
			ExpiresAt: time.Now().Add(5 * time.Minute),
		},
	}

	users := mocks.NewMockUserRepository(ctrl)
	users.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil).AnyTimes()
	tokens := mocks.NewMockTokenMinter(ctrl)
	tokens.EXPECT().Mint(user.ID).Return("signed-token", 900, nil).AnyTimes()

	s := service.NewAuthService(users, store, mocks.NewMockNotifier(ctrl),
		security.NewService(), tokens, testTTLMinutes)

	const redeemers = 8

	var wg sync.WaitGroup
	results := make([]error, redeemers)

	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.VerifyTwoFactor(context.Background(), dto.VerifyInput{
				ChallengeID: "challenge-1",
				Code:        "123456",
			})
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, autherror.ErrInvalidOrExpiredChallenge)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent redemption may win")
}

func TestAuthService_ReissuedChallengeInvalidatesPrevious(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	user := activeUser(t, "Secret1pw")
	store := &casChallengeStore{}

	users := mocks.NewMockUserRepository(ctrl)
	users.EXPECT().GetByIdentifier(gomock.Any(), "alice").Return(user, nil).Times(2)
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().SendTwoFactorCode(gomock.Any(), user.Email, gomock.Any(), gomock.Any()).Return(nil).Times(2)
	tokens := mocks.NewMockTokenMinter(ctrl)

	s := service.NewAuthService(users, store, notifier, security.NewService(), tokens, testTTLMinutes)

	first, err := s.Login(context.Background(), dto.LoginInput{Identifier: "alice", Password: "Secret1pw"})
	require.NoError(t, err)

	firstCode := store.challenge.Code

	_, err = s.Login(context.Background(), dto.LoginInput{Identifier: "alice", Password: "Secret1pw"})
	require.NoError(t, err)

	// Redeeming the first challenge with its own (correct) code must fail now.
	_, err = s.VerifyTwoFactor(context.Background(), dto.VerifyInput{
		ChallengeID: first.ChallengeID,
		Code:        firstCode,
	})
	assert.ErrorIs(t, err, autherror.ErrInvalidOrExpiredChallenge)
}
