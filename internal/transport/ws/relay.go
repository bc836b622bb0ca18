package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

const DefaultRelayChannel = "studychat:deliveries"

// RedisRelay fans deliveries out to every node over Redis pub/sub.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisRelay(url string, log *zap.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &RedisRelay{
		rdb:     redis.NewClient(opts),
		channel: DefaultRelayChannel,
		log:     log,
	}, nil
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRelay) Publish(ctx context.Context, d Delivery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding delivery: %w", err)
	}
	return r.rdb.Publish(ctx, r.channel, data).Err()
}

// Run subscribes and hands every delivery to deliver until ctx is done.
func (r *RedisRelay) Run(ctx context.Context, deliver func(Delivery)) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var d Delivery
			if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
				r.log.Warn("ws relay: bad delivery", zap.Error(err))
				continue
			}
			var pc panics.Catcher
			pc.Try(func() { deliver(d) })
			if rec := pc.Recovered(); rec != nil {
				r.log.Error("ws relay: deliver panicked", zap.String("panic", rec.String()))
			}
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}
