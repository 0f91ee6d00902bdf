package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/realtime"
)

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "realtime"
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

	return &redisBus{
		log:     log.With("service", "RedisRealtimeBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.Message) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis realtime bus not initialized")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.keyChannel(msg.Channel), raw).Err()
}

func (b *redisBus) OpenChannel(ctx context.Context, key string, onMsg func(m realtime.Message)) (func(), error) {
	if b == nil || b.rdb == nil {
		return nil, fmt.Errorf("redis realtime bus not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("channel key required")
	}
	if onMsg == nil {
		return nil, fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.keyChannel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %q: %w", key, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	go b.pump(subCtx, sub, onMsg)

	return func() {
		cancel()
		_ = sub.Close()
	}, nil
}

func (b *redisBus) pump(ctx context.Context, sub *goredis.PubSub, onMsg func(m realtime.Message)) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case m, ok := <-ch:
			if !ok || m == nil {
				_ = sub.Close()
				return
			}
			var msg realtime.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.log.Warn("bad redis realtime payload", "error", err)
				continue
			}
			msg.Origin = realtime.OriginBackend
			onMsg(msg)
		}
	}
}

func (b *redisBus) keyChannel(key string) string {
	return b.channel + ":" + key
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
