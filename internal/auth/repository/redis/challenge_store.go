// Package redis provides an alternative ChallengeStore backed by Redis,
// for deployments that keep short-lived login challenges out of Postgres.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/S0uris666/Propsail/internal/auth/domain"
)

const (
	challengeKeyPrefix = "2fa:ch"
	userKeyPrefix      = "2fa:user"

	// retentionTTL bounds how long redeemed or stale records linger; the
	// core never deletes challenges itself, cleanup is a storage concern.
	retentionTTL = 24 * time.Hour

	maxCASRetries = 4
)

var errStoreContention = errors.New("challenge store contention, retries exhausted")

type ChallengeStore struct {
	redis *redis.Client
}

func NewChallengeStore(client *redis.Client) *ChallengeStore {
	return &ChallengeStore{redis: client}
}

func challengeKey(id string) string {
	return challengeKeyPrefix + ":" + id
}

func userKey(userID string) string {
	return userKeyPrefix + ":" + userID
}

func (s *ChallengeStore) FindByID(ctx context.Context, id string) (*domain.Challenge, error) {
	fields, err := s.redis.HGetAll(ctx, challengeKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return decodeChallenge(id, fields)
}

// Create marks the user's current challenge (if any) as used and writes the
// new one inside a single MULTI/EXEC guarded by WATCH on the per-user
// pointer, retrying on contention.
func (s *ChallengeStore) Create(ctx context.Context, userID, code string, expiresAt time.Time) (*domain.Challenge, error) {
	challenge := &domain.Challenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		ExpiresAt: expiresAt,
		Used:      false,
		CreatedAt: time.Now(),
	}

	uKey := userKey(userID)

	for i := 0; i < maxCASRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			previousID, err := tx.Get(ctx, uKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if previousID != "" {
					pipe.HSet(ctx, challengeKey(previousID), "used", "1")
				}
				pipe.HSet(ctx, challengeKey(challenge.ID), encodeChallenge(challenge))
				pipe.Expire(ctx, challengeKey(challenge.ID), retentionTTL)
				pipe.Set(ctx, uKey, challenge.ID, retentionTTL)
				return nil
			})
			return err
		}, uKey)

		if err == nil {
			return challenge, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	return nil, errStoreContention
}

func (s *ChallengeStore) InvalidateAllUnused(ctx context.Context, userID string) (int64, error) {
	currentID, err := s.redis.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load current challenge: %w", err)
	}

	marked, err := s.MarkUsedIfUnused(ctx, currentID)
	if err != nil {
		return 0, err
	}
	if marked {
		return 1, nil
	}
	return 0, nil
}

// MarkUsedIfUnused performs the unused-to-used transition with WATCH-based
// optimistic locking; under contention exactly one caller observes true.
func (s *ChallengeStore) MarkUsedIfUnused(ctx context.Context, id string) (bool, error) {
	key := challengeKey(id)

	for i := 0; i < maxCASRetries; i++ {
		var marked bool

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			used, err := tx.HGet(ctx, key, "used").Result()
			if errors.Is(err, redis.Nil) {
				return nil // absent challenge, marked stays false
			}
			if err != nil {
				return err
			}
			if used != "0" {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, "used", "1")
				return nil
			})
			if err == nil {
				marked = true
			}
			return err
		}, key)

		if err == nil {
			return marked, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, fmt.Errorf("failed to mark challenge used: %w", err)
	}

	return false, errStoreContention
}

func encodeChallenge(c *domain.Challenge) map[string]any {
	used := "0"
	if c.Used {
		used = "1"
	}
	return map[string]any{
		"user_id":    c.UserID,
		"code":       c.Code,
		"expires_at": c.ExpiresAt.Unix(),
		"used":       used,
		"created_at": c.CreatedAt.Unix(),
	}
}

func decodeChallenge(id string, fields map[string]string) (*domain.Challenge, error) {
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge record %s: %w", id, err)
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge record %s: %w", id, err)
	}

	return &domain.Challenge{
		ID:        id,
		UserID:    fields["user_id"],
		Code:      fields["code"],
		ExpiresAt: time.Unix(expiresAt, 0),
		Used:      fields["used"] == "1",
		CreatedAt: time.Unix(createdAt, 0),
	}, nil
}
