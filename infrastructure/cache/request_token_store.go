// Package cache holds pending request tokens between the start of the
// three-legged flow and the user's return with a verifier.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisRequestTokenStore shares pending request tokens between gateway
// instances. Entries expire through the Redis TTL. Lookups leave the entry in
// place; the caller deletes it once the exchange has succeeded.
type RedisRequestTokenStore struct {
	client redis.Cmdable
	prefix string
	cipher repository.ISecretCipher
}

// NewRedisRequestTokenStore stores token secrets encrypted with cipher when it is non-nil.
func NewRedisRequestTokenStore(client redis.Cmdable, prefix string, cipher repository.ISecretCipher) *RedisRequestTokenStore {
	if prefix == "" {
		prefix = "brokerage"
	}
	return &RedisRequestTokenStore{client: client, prefix: prefix, cipher: cipher}
}

func (s *RedisRequestTokenStore) key(requestToken string) string {
	return fmt.Sprintf("%s:request_token:%s", s.prefix, HashToken(requestToken))
}

func (s *RedisRequestTokenStore) Put(ctx context.Context, rec *model.RequestTokenRecord, ttl time.Duration) error {
	payload, err := s.encode(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(rec.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set request token: %w", err)
	}
	return nil
}

func (s *RedisRequestTokenStore) Get(ctx context.Context, requestToken string) (*model.RequestTokenRecord, error) {
	payload, err := s.client.Get(ctx, s.key(requestToken)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get request token: %w", err)
	}
	return s.decode(payload)
}

func (s *RedisRequestTokenStore) Delete(ctx context.Context, requestToken string) error {
	if err := s.client.Del(ctx, s.key(requestToken)).Err(); err != nil {
		return fmt.Errorf("redis del request token: %w", err)
	}
	return nil
}

func (s *RedisRequestTokenStore) encode(rec *model.RequestTokenRecord) ([]byte, error) {
	stored := *rec
	if s.cipher != nil {
		sealed, err := s.cipher.Encrypt(rec.TokenSecret)
		if err != nil {
			return nil, fmt.Errorf("encrypt request token secret: %w", err)
		}
		stored.TokenSecret = sealed
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal request token: %w", err)
	}
	return payload, nil
}

func (s *RedisRequestTokenStore) decode(payload []byte) (*model.RequestTokenRecord, error) {
	rec := &model.RequestTokenRecord{}
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("unmarshal request token: %w", err)
	}
	if s.cipher != nil {
		secret, err := s.cipher.Decrypt(rec.TokenSecret)
		if err != nil {
			return nil, err
		}
		rec.TokenSecret = secret
	}
	return rec, nil
}

// HashToken keys entries by the SHA-256 of the token so raw tokens never appear in key listings.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
