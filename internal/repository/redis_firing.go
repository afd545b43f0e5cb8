package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hray3182/tildy/internal/models"
)

const firedKeyPrefix = "tildy:fired:"

// RedisFiringLog keeps the firing log in Redis with a TTL, so stale hours
// expire on their own.
type RedisFiringLog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisFiringLog connects to url and checks the connection.
func NewRedisFiringLog(ctx context.Context, url string, ttl time.Duration) (*RedisFiringLog, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisFiringLog{client: client, ttl: ttl}, nil
}

func firedKey(target string, hour int) string {
	return fmt.Sprintf("%s%s:%02d", firedKeyPrefix, target, hour)
}

func parseFiredKey(key string) (string, int, bool) {
	rest, ok := strings.CutPrefix(key, firedKeyPrefix)
	if !ok {
		return "", 0, false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", 0, false
	}
	hour, err := strconv.Atoi(rest[i+1:])
	if err != nil {
		return "", 0, false
	}
	return rest[:i], hour, true
}

func (r *RedisFiringLog) LoadFired(ctx context.Context) (models.FiredLog, error) {
	fired := make(models.FiredLog)
	iter := r.client.Scan(ctx, 0, firedKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		target, hour, ok := parseFiredKey(key)
		if !ok {
			continue
		}
		date, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		fired.Mark(target, hour, date)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return fired, nil
}

func (r *RedisFiringLog) RecordFired(ctx context.Context, target string, hour int, localDate string) error {
	return r.client.Set(ctx, firedKey(target, hour), localDate, r.ttl).Err()
}

func (r *RedisFiringLog) Close() error {
	return r.client.Close()
}
