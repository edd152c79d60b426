package interaction

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	xerrors "NeoX-Agent/internal/errors"
)

// ProcessedSet 记录已经处理过的提及 ID，ID 一旦加入便不会移除。
type ProcessedSet interface {
	Has(ctx context.Context, id string) (bool, error)
	Add(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
}

// MemorySet 是进程内的已处理集合，随进程退出而丢失。
type MemorySet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemorySet 创建空集合。
func NewMemorySet() *MemorySet {
	return &MemorySet{ids: make(map[string]struct{})}
}

// Has 判断 ID 是否已处理。
func (s *MemorySet) Has(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok, nil
}

// Add 标记 ID 为已处理。
func (s *MemorySet) Add(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
	return nil
}

// Len 返回集合大小。
func (s *MemorySet) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids), nil
}

// RedisSetConfig 描述 Redis 集合的连接参数。
type RedisSetConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// RedisSet 将已处理 ID 存放在 Redis set 中，进程重启后仍然有效。
type RedisSet struct {
	client *redis.Client
	key    string
}

// NewRedisSet 连接 Redis 并返回集合实现。
func NewRedisSet(ctx context.Context, cfg RedisSetConfig) (*RedisSet, error) {
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
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return NewRedisSetWithClient(client, cfg.Key), nil
}

// NewRedisSetWithClient 使用已有的客户端创建集合。
func NewRedisSetWithClient(client *redis.Client, key string) *RedisSet {
	if key == "" {
		key = "neox:processed_mentions"
	}
	return &RedisSet{client: client, key: key}
}

// Has 判断 ID 是否已处理。
func (s *RedisSet) Has(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, id).Result()
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询已处理集合失败")
	}
	return ok, nil
}

// Add 标记 ID 为已处理。
func (s *RedisSet) Add(ctx context.Context, id string) error {
	if err := s.client.SAdd(ctx, s.key, id).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入已处理集合失败")
	}
	return nil
}

// Len 返回集合大小。
func (s *RedisSet) Len(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计已处理集合失败")
	}
	return int(n), nil
}

// Close 关闭 Redis 连接。
func (s *RedisSet) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
