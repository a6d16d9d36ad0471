package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
)

// redisCmdable is the subset of *goredis.Client the sink uses.
type redisCmdable interface {
	RPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *goredis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// maxQueued caps each recipient's list.
const maxQueued = 100

// RedisSink pushes notifications onto a per-recipient list and publishes
// them on a shared channel for live listeners.
//
//	<prefix><recipient_id>  list of JSON payloads, oldest first
//	<prefix>events          pub/sub channel
type RedisSink struct {
	rdb    redisCmdable
	prefix string
}

func NewRedisSink(rdb redisCmdable, prefix string) *RedisSink {
	return &RedisSink{rdb: rdb, prefix: prefix}
}

type redisPayload struct {
	ID          string `json:"id,omitempty"`
	RecipientID int64  `json:"recipient_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Category    string `json:"category"`
	CreatedAt   string `json:"created_at"`
}

func (s *RedisSink) Notify(ctx context.Context, n leave.Notification) error {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	payload, err := json.Marshal(redisPayload{
		ID:          n.ID,
		RecipientID: int64(n.RecipientID),
		Title:       n.Title,
		Message:     n.Message,
		Category:    string(n.Category),
		CreatedAt:   created.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	key := s.RecipientKey(int64(n.RecipientID))
	if err := s.rdb.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to queue notification for %d: %w", n.RecipientID, err)
	}
	if err := s.rdb.LTrim(ctx, key, -maxQueued, -1).Err(); err != nil {
		return fmt.Errorf("failed to trim notification queue: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// RecipientKey is the list key of one recipient.
func (s *RedisSink) RecipientKey(recipient int64) string {
	return s.prefix + strconv.FormatInt(recipient, 10)
}

// Channel is the pub/sub channel every notification is published on.
func (s *RedisSink) Channel() string { return s.prefix + "events" }

// NewRedisClient connects and pings Redis.
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", cfg.Addr))
	return rdb, nil
}
