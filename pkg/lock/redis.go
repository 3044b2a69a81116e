package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/token"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "dedup:lock:"

// 只有持有者（token 一致）才能释放或续期。
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)
	renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker 使用 SET NX PX 实现跨进程的语料库锁，持有期间后台按 ttl/3 续期。
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker 创建基于 Redis 的 Locker。
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, retry: 200 * time.Millisecond}
}

// Acquire 实现 Locker。
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := redisKeyPrefix + key
	owner := token.GenerateRandomString(16)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, owner, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("获取 Redis 锁 %s 失败: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, owner, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			if err := releaseScript.Run(context.Background(), l.client, []string{redisKey}, owner).Err(); err != nil {
				log.Warnf("释放 Redis 锁 %s 失败: %v", redisKey, err)
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(redisKey, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := renewScript.Run(context.Background(), l.client, []string{redisKey}, owner, l.ttl.Milliseconds()).Int()
			if err != nil {
				log.Warnf("续期 Redis 锁 %s 失败: %v", redisKey, err)
				continue
			}
			if n == 0 {
				log.Warnf("Redis 锁 %s 已丢失", redisKey)
				return
			}
		}
	}
}
