package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination=../../mocks/mock_user_repository.go -package=mocks github.com/S0uris666/Propsail/internal/auth/domain UserRepository
//go:generate mockgen -destination=../../mocks/mock_challenge_store.go -package=mocks github.com/S0uris666/Propsail/internal/auth/domain ChallengeStore
//go:generate mockgen -destination=../../mocks/mock_notifier.go -package=mocks github.com/S0uris666/Propsail/internal/auth/domain Notifier

type UserRepository interface {
	// GetByIdentifier looks a user up by email or username. The identifier
	// is expected to be normalized (trimmed, lowercased) by the caller.
	// Returns nil, nil when no user matches.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
}

// ChallengeStore persists second-factor challenges. Create and
// MarkUsedIfUnused are the two concurrency-critical operations and must be
// atomic at the store level.
type ChallengeStore interface {
	// FindByID returns nil, nil when the challenge does not exist.
	FindByID(ctx context.Context, id string) (*Challenge, error)

	// Create marks every unused challenge of the user as used and inserts
	// the new one as a single atomic unit, so that at most one challenge
	// per user is ever redeemable.
	Create(ctx context.Context, userID, code string, expiresAt time.Time) (*Challenge, error)

	// InvalidateAllUnused marks every unused challenge of the user as used
	// and returns how many rows it touched.
	InvalidateAllUnused(ctx context.Context, userID string) (int64, error)

	// MarkUsedIfUnused returns true only if this call performed the
	// unused-to-used transition. A false return means the challenge was
	// absent or already used; concurrent redeemers race on this call and
	// at most one wins.
	MarkUsedIfUnused(ctx context.Context, id string) (bool, error)
}

// Notifier delivers the second-factor code to the user. Delivery failures
// do not roll back challenge creation.
type Notifier interface {
	SendTwoFactorCode(ctx context.Context, email, code string, expiresAt time.Time) error
}
