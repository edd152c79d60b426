package events

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	xerrors "NeoX-Agent/internal/errors"
)

// RedisConfig 描述 Redis 事件列表的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// RedisPublisher 通过 LPUSH 将事件写入 Redis list，消费者可使用 BRPOP 读取。
type RedisPublisher struct {
	client *redis.Client
	key    string
}

// NewRedisPublisher 创建 Redis 事件发布器。
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeEventFailure, err, "连接 Redis 失败")
	}
	return newRedisPublisher(client, cfg.Key), nil
}

func newRedisPublisher(client *redis.Client, key string) *RedisPublisher {
	if key == "" {
		key = "neox:interactions"
	}
	return &RedisPublisher{client: client, key: key}
}

// Publish 将事件投递到 Redis。
func (p *RedisPublisher) Publish(ctx context.Context, event InteractionEvent) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.client.LPush(ctx, p.key, payload).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeEventFailure, err, "Redis 发布事件失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
