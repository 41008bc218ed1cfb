package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNonceNotFound = errors.New("challenge not found or expired")

// NonceStore keeps one outstanding login nonce per address
type NonceStore interface {
	Put(ctx context.Context, address, nonce string, ttl time.Duration) error
	Get(ctx context.Context, address string) (string, error)
	// Consume deletes the nonce only if it still equals nonce. It reports
	// false when another request consumed or replaced it first.
	Consume(ctx context.Context, address, nonce string) (bool, error)
}

var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisNonceStore struct {
	client *redis.Client
	prefix string
}

func NewRedisNonceStore(client *redis.Client) NonceStore {
	return &redisNonceStore{client: client, prefix: "farmlink:auth:nonce:"}
}

func (s *redisNonceStore) Put(ctx context.Context, address, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+address, nonce, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

func (s *redisNonceStore) Get(ctx context.Context, address string) (string, error) {
	nonce, err := s.client.Get(ctx, s.prefix+address).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNonceNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load nonce: %w", err)
	}
	return nonce, nil
}

func (s *redisNonceStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{s.prefix + address}, nonce).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return n == 1, nil
}
