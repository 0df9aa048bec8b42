package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/microlearn/auth-service/app/entity"
)

// RedisRefreshTokenStore keeps the refresh-token allow-list in Redis: one
// key per raw token whose TTL enforces expiry, plus a per-user index set so
// logout and password reset can purge every session at once. An expired
// token simply vanishes, which the auth service reports the same way as a
// rotated one.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

func NewRedisRefreshTokenStore(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client}
}

func refreshTokenKey(token string) string {
	return "refresh_token:" + token
}

func userTokensKey(userID uint64) string {
	return fmt.Sprintf("user_refresh_tokens:%d", userID)
}

func (s *RedisRefreshTokenStore) Create(ctx context.Context, token *entity.RefreshToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return ErrTokenExpired
	}

	ok, err := s.client.SetNX(ctx, refreshTokenKey(token.Token), strconv.FormatUint(token.UserID, 10), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateToken
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, userTokensKey(token.UserID), token.Token)
	// Keep the index alive at least as long as its newest member.
	pipe.Expire(ctx, userTokensKey(token.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisRefreshTokenStore) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	val, err := s.client.Get(ctx, refreshTokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	ttl, err := s.client.PTTL(ctx, refreshTokenKey(token)).Result()
	if err != nil {
		return nil, err
	}

	return &entity.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// Rotate replaces oldToken with fresh under WATCH so two concurrent refresh
// calls with the same token cannot both succeed.
func (s *RedisRefreshTokenStore) Rotate(ctx context.Context, oldToken string, fresh *entity.RefreshToken) error {
	ttl := time.Until(fresh.ExpiresAt)
	if ttl <= 0 {
		return ErrTokenExpired
	}

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, refreshTokenKey(oldToken)).Result()
		if errors.Is(err, redis.Nil) {
			// The TTL already removed expired records, so a missing key
			// covers both the rotated and the expired case.
			return ErrTokenNotFound
		}
		if err != nil {
			return err
		}

		userID, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt refresh token record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, refreshTokenKey(oldToken))
			pipe.SRem(ctx, userTokensKey(userID), oldToken)
			pipe.Set(ctx, refreshTokenKey(fresh.Token), strconv.FormatUint(fresh.UserID, 10), ttl)
			pipe.SAdd(ctx, userTokensKey(fresh.UserID), fresh.Token)
			pipe.Expire(ctx, userTokensKey(fresh.UserID), ttl)
			return nil
		})
		return err
	}, refreshTokenKey(oldToken))
}

func (s *RedisRefreshTokenStore) DeleteByToken(ctx context.Context, token string) (int64, error) {
	record, err := s.FindByToken(ctx, token)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	del := pipe.Del(ctx, refreshTokenKey(token))
	pipe.SRem(ctx, userTokensKey(record.UserID), token)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return del.Val(), nil
}

func (s *RedisRefreshTokenStore) DeleteByUserID(ctx context.Context, userID uint64) error {
	tokens, err := s.client.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, token := range tokens {
		pipe.Del(ctx, refreshTokenKey(token))
	}
	pipe.Del(ctx, userTokensKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
