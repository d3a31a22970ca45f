package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCartStore holds customer carts under cart:<customer_id>. Clearing the
// key is the EmptyCart side effect of a successful reconciliation.
type RedisCartStore struct {
	rdb *redis.Client
}

func NewRedisCartStore(rdb *redis.Client) *RedisCartStore {
	return &RedisCartStore{rdb: rdb}
}

func (s *RedisCartStore) EmptyCart(ctx context.Context, customerID string) error {
	return s.rdb.Del(ctx, fmt.Sprintf("cart:%s", customerID)).Err()
}
