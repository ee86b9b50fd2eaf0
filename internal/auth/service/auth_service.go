package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/S0uris666/Propsail/internal/auth/domain"
	"github.com/S0uris666/Propsail/internal/auth/dto"
	autherror "github.com/S0uris666/Propsail/internal/errors"
	"github.com/S0uris666/Propsail/internal/security"
	authconstant "github.com/S0uris666/Propsail/pkg/constant"
)

const challengeSentMessage = "A verification code was sent to your registered email."

// AuthService drives the two-step login: password check followed by a
// single-use second-factor challenge that is redeemed for a bearer token.
type AuthService struct {
	users        domain.UserRepository
	challenges   domain.ChallengeStore
	notifier     domain.Notifier
	security     *security.Service
	tokens       TokenMinter
	challengeTTL time.Duration
}

func NewAuthService(
	users domain.UserRepository,
	challenges domain.ChallengeStore,
	notifier domain.Notifier,
	sec *security.Service,
	tokens TokenMinter,
	challengeTTLMinutes int,
) *AuthService {
	return &AuthService{
		users:        users,
		challenges:   challenges,
		notifier:     notifier,
		security:     sec,
		tokens:       tokens,
		challengeTTL: time.Duration(challengeTTLMinutes) * time.Minute,
	}
}

// Login verifies the password and issues a fresh challenge. A missing user,
// an inactive user and a wrong password all collapse into
// ErrInvalidCredentials so the caller cannot tell which check failed.
func (s *AuthService) Login(ctx context.Context, input dto.LoginInput) (*dto.ChallengeResponse, error) {
	identifier := strings.ToLower(strings.TrimSpace(input.Identifier))

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, autherror.ErrInvalidCredentials
	}

	if !s.security.VerifyPassword(user.PasswordHash, input.Password) {
		return nil, autherror.ErrInvalidCredentials
	}

	return s.issueChallenge(ctx, user)
}

// VerifyTwoFactor redeems a challenge for an access token. Every failed
// precondition collapses into ErrInvalidOrExpiredChallenge; the conditional
// mark-used call is the linearization point, so at most one of two
// concurrent redeemers can succeed.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, input dto.VerifyInput) (*dto.TokenResponse, error) {
	// Format check happens before any store access.
	if !validCodeFormat(input.Code) {
		return nil, autherror.ErrInvalidOrExpiredChallenge
	}

	challenge, err := s.challenges.FindByID(ctx, input.ChallengeID)
	if err != nil {
		return nil, err
	}
	if challenge == nil || challenge.Used {
		return nil, autherror.ErrInvalidOrExpiredChallenge
	}

	user, err := s.users.GetByID(ctx, challenge.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, autherror.ErrInvalidOrExpiredChallenge
	}

	if challenge.Code != input.Code {
		return nil, autherror.ErrInvalidOrExpiredChallenge
	}

	if challenge.Expired(time.Now()) {
		return nil, autherror.ErrInvalidOrExpiredChallenge
	}

	marked, err := s.challenges.MarkUsedIfUnused(ctx, challenge.ID)
	if err != nil {
		return nil, err
	}
	if !marked {
		// Lost the race against a concurrent redemption.
		return nil, autherror.ErrInvalidOrExpiredChallenge
	}

	accessToken, expiresIn, err := s.tokens.Mint(user.ID)
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
		TokenType:   authconstant.DefaultTokenType,
	}, nil
}

// issueChallenge creates the challenge and dispatches the code. The store
// invalidates any prior unused challenge atomically with the insert. A
// delivery failure is reported to the caller but the challenge stays
// persisted; a retried login invalidates it through the same atomic path.
func (s *AuthService) issueChallenge(ctx context.Context, user *domain.User) (*dto.ChallengeResponse, error) {
	code, err := s.security.GenerateNumericCode(authconstant.TwoFactorCodeLength)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.challengeTTL)

	challenge, err := s.challenges.Create(ctx, user.ID, code, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.SendTwoFactorCode(ctx, user.Email, code, challenge.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", autherror.ErrDeliveryFailure, err)
	}

	return &dto.ChallengeResponse{
		ChallengeID: challenge.ID,
		ExpiresAt:   challenge.ExpiresAt.UTC().Format(time.RFC3339),
		Message:     challengeSentMessage,
	}, nil
}

func validCodeFormat(code string) bool {
	if len(code) != authconstant.TwoFactorCodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
