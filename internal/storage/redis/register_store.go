package redis

import (
	"context"
	"fmt"
	"strconv"
)

// RegisterStore 可写寄存器持久化（实现 regbank.Persister）。
// 存储为 Hash：field 为十进制地址，value 为十进制字节值。
type RegisterStore struct {
	client *Client
	key    string
}

// NewRegisterStore 创建寄存器存储，键为 <prefix>:registers
func NewRegisterStore(client *Client) *RegisterStore {
	return &RegisterStore{client: client, key: client.Key("registers")}
}

// Load 读取全部已保存的寄存器；无法解析的字段被跳过
func (s *RegisterStore) Load(ctx context.Context) (map[int]byte, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load registers: %w", err)
	}
	out := make(map[int]byte, len(fields))
	for f, v := range fields {
		addr, err := strconv.Atoi(f)
		if err != nil || addr < 0 {
			continue
		}
		val, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			continue
		}
		out[addr] = byte(val)
	}
	return out, nil
}

// Persist 保存 [addr, addr+len(data)) 的值（单条 HSET，整体生效）
func (s *RegisterStore) Persist(ctx context.Context, addr int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(data)*2)
	for i, b := range data {
		values = append(values, strconv.Itoa(addr+i), strconv.Itoa(int(b)))
	}
	if err := s.client.HSet(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("persist registers at %d: %w", addr, err)
	}
	return nil
}

// Clear 删除全部已保存的寄存器
func (s *RegisterStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Key 寄存器 Hash 的键名
func (s *RegisterStore) Key() string { return s.key }

// Count 已保存的寄存器个数
func (s *RegisterStore) Count(ctx context.Context) (int64, error) {
	return s.client.HLen(ctx, s.key).Result()
}

// HealthCheck 连接检查
func (s *RegisterStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// PoolTimeouts 连接池累计等待超时次数
func (s *RegisterStore) PoolTimeouts() uint32 {
	return s.client.Stats().Timeouts
}
