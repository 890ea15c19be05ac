// Package broker 实例间与对外的事件转发
package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// envelope Redis 频道上的消息
type envelope struct {
	Origin  string          `json:"origin"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBus 通过 Redis pub/sub 在多个实例之间共享事件
type RedisBus struct {
	client   *redis.Client
	channel  string
	instance string
	logger   *zap.Logger
}

// NewRedisBus 创建 Redis 事件总线，instance 用于过滤本实例发出的消息
func NewRedisBus(client *redis.Client, channel, instance string, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, channel: channel, instance: instance, logger: logger}
}

// Publish 发布事件
func (b *RedisBus) Publish(ctx context.Context, key string, payload []byte) error {
	msg, err := encodeEnvelope(b.instance, key, payload)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe 订阅其他实例的事件，阻塞直到 ctx 结束
func (b *RedisBus) Subscribe(ctx context.Context, handle func(key string, payload []byte)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("subscribed to case events", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := decodeEnvelope([]byte(m.Payload))
			if err != nil {
				b.logger.Warn("drop malformed event", zap.Error(err))
				continue
			}
			if env.Origin == b.instance {
				continue
			}
			handle(env.Key, env.Payload)
		}
	}
}

func encodeEnvelope(origin, key string, payload []byte) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, Key: key, Payload: payload})
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
