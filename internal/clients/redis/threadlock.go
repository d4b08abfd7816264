package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// ThreadLocker serializes turns per conversation thread across processes.
// Acquire is non-blocking: a held lock means another turn is in flight and
// the caller should fail fast instead of interleaving transcripts.
type ThreadLocker interface {
	Acquire(ctx context.Context, threadID string, ttl time.Duration) (func(), bool, error)
	Close() error
}

type threadLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func NewThreadLocker(log *logger.Logger) (ThreadLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &threadLocker{
		log:    log.With("service", "RedisThreadLocker"),
		rdb:    rdb,
		prefix: "mentora:turnlock:",
	}, nil
}

func (l *threadLocker) Acquire(ctx context.Context, threadID string, ttl time.Duration) (func(), bool, error) {
	if threadID == "" {
		return nil, false, fmt.Errorf("missing thread id")
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	key := l.prefix + threadID
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire thread lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release on a detached context so an aborted turn still unlocks.
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{key}, token).Err(); err != nil && err != goredis.Nil {
			l.log.Warn("failed to release thread lock", "thread_id", threadID, "error", err)
		}
	}
	return release, true, nil
}

func (l *threadLocker) Close() error {
	return l.rdb.Close()
}
