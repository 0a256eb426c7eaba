package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const defaultListKey = "softmax:underwrite:wakeups"

// Redis is a durable Notifier backed by a single Redis list: Notify
// pushes the tenant id, Consume blocks on BLPOP. Using a list rather
// than pub/sub means a notification survives until a worker actually
// consumes it, even if no worker was listening at publish time.
type Redis struct {
	client  *redis.Client
	listKey string
}

func NewRedis(client *redis.Client, listKey string) *Redis {
	if listKey == "" {
		listKey = defaultListKey
	}
	return &Redis{client: client, listKey: listKey}
}

func (r *Redis) Notify(ctx context.Context, tenantID string) error {
	return r.client.RPush(ctx, r.listKey, tenantID).Err()
}

func (r *Redis) Consume(ctx context.Context) (string, error) {
	res, err := r.client.BLPop(ctx, 0, r.listKey).Result()
	if err != nil {
		return "", err
	}
	// BLPop returns [key, value].
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (r *Redis) Backlog(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.listKey).Result()
	return int(n), err
}

func (r *Redis) Close() error {
	return r.client.Close()
}
