package snapshot

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"velo/internal/logger"
)

const InvalidationChannel = "pricing:snapshot:invalidate"

// RedisBus fans snapshot invalidations out to every engine instance over a
// Redis pub/sub channel. Each instance ignores its own messages.
type RedisBus struct {
	redis    *redis.Client
	instance string
	log      logger.ILogger
}

func NewRedisBus(client *redis.Client, log logger.ILogger) *RedisBus {
	return &RedisBus{redis: client, instance: uuid.NewString(), log: log}
}

func (b *RedisBus) Broadcast(ctx context.Context) error {
	return b.redis.Publish(ctx, InvalidationChannel, b.instance).Err()
}

// Listen invalidates m whenever another instance broadcasts, until ctx is
// done.
func (b *RedisBus) Listen(ctx context.Context, m *Manager) {
	sub := b.redis.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload == b.instance {
				continue
			}
			m.Invalidate()
			b.log.Info("snapshot invalidated by peer", logger.String("peer", msg.Payload))
		}
	}
}
