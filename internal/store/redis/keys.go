package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// scanRecordIDs walks keys matching prefix+"*" and returns the ids of the
// record keys, skipping index and sub-resource keys that share the prefix
// (e.g. board:<id>:history:v1 when scanning board:*).
func scanRecordIDs(ctx context.Context, client *redis.Client, prefix string) ([]uuid.UUID, error) {
	var (
		ids    []uuid.UUID
		cursor uint64
	)

	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+"*", 256).Result()
		if err != nil {
			return nil, fmt.Errorf("redis.scanRecordIDs %q: %w", prefix, err)
		}

		for _, key := range keys {
			trailing := strings.TrimPrefix(key, prefix)
			if strings.Contains(trailing, ":") {
				continue
			}
			id, parseErr := uuid.Parse(trailing)
			if parseErr != nil {
				continue
			}
			ids = append(ids, id)
		}

		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}
