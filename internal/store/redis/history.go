package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// HistoryStore persists per-board audit logs as bounded Redis lists:
// LPUSH then LTRIM after every append keeps each list at its retention
// window regardless of append volume.
type HistoryStore struct {
	client *redis.Client
}

func NewHistoryStore(client *redis.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

func (h *HistoryStore) Prepend(ctx context.Context, key, value string, keep int64) error {
	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, value)
		pipe.LTrim(ctx, key, 0, keep-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis.HistoryStore.Prepend: %w", err)
	}
	return nil
}

func (h *HistoryStore) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	entries, err := h.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.HistoryStore.Range: %w", err)
	}
	return entries, nil
}
