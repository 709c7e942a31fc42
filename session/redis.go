package session

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisSlots keeps the slots as two keys under a common prefix.
type RedisSlots struct {
	client *redis.Client
	prefix string
}

func NewRedisSlots(client *redis.Client, prefix string) *RedisSlots {
	if prefix == "" {
		prefix = "xmixing:session"
	}
	return &RedisSlots{client: client, prefix: prefix}
}

func (r *RedisSlots) key(name string) string {
	return r.prefix + ":" + name
}

func (r *RedisSlots) Get(ctx context.Context, name string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(name)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisSlots) SetPair(ctx context.Context, user, token string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(UserSlot), user, 0)
		pipe.Set(ctx, r.key(TokenSlot), token, 0)
		return nil
	})
	return err
}

func (r *RedisSlots) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key(UserSlot), r.key(TokenSlot)).Err()
}
