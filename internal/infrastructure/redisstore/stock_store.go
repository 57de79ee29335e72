package redisstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

const keyPrefix = "stock:item:"

// applyDeltaScript performs check-and-commit server side so two concurrent
// decrements can never both pass the guard. Returns:
//
//	{-1}            key missing
//	{-2, current}   result would be negative
//	{0, prev, new}  committed
var applyDeltaScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
    return {-1}
end
local next = tonumber(cur) + tonumber(ARGV[1])
if next < 0 then
    return {-2, tonumber(cur)}
end
redis.call('SET', KEYS[1], next)
return {0, tonumber(cur), next}
`)

var setAbsoluteScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
    return {-1}
end
redis.call('SET', KEYS[1], ARGV[1])
return {0, tonumber(cur)}
`)

// StockStore keeps one counter key per product and runs every conditional
// mutation through a Lua script, the same atomicity the Postgres store gets
// from its conditional UPDATE.
type StockStore struct {
	client *redis.Client
}

func NewStockStore(client *redis.Client) *StockStore {
	return &StockStore{client: client}
}

func stockKey(productID string) string {
	return keyPrefix + productID
}

func (s *StockStore) Get(ctx context.Context, productID string) (int, error) {
	val, err := s.client.Get(ctx, stockKey(productID)).Result()
	if err == redis.Nil {
		return 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return 0, err
	}
	stock, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt stock value for %s: %w", productID, err)
	}
	return stock, nil
}

func (s *StockStore) ApplyDelta(ctx context.Context, productID string, delta int) (int, int, error) {
	result, err := applyDeltaScript.Run(ctx, s.client, []string{stockKey(productID)}, delta).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("apply delta script: %w", err)
	}

	reply, ok := result.([]interface{})
	if !ok || len(reply) == 0 {
		return 0, 0, fmt.Errorf("unexpected reply type from apply delta script: %T", result)
	}

	switch code := reply[0].(int64); code {
	case 0:
		return int(reply[1].(int64)), int(reply[2].(int64)), nil
	case -1:
		return 0, 0, &domain.ProductNotFoundError{ProductID: productID}
	case -2:
		return 0, 0, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: -delta,
			Available: int(reply[1].(int64)),
		}
	default:
		return 0, 0, fmt.Errorf("unknown result code from apply delta script: %d", code)
	}
}

func (s *StockStore) SetAbsolute(ctx context.Context, productID string, value int) (int, int, error) {
	result, err := setAbsoluteScript.Run(ctx, s.client, []string{stockKey(productID)}, value).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("set absolute script: %w", err)
	}

	reply, ok := result.([]interface{})
	if !ok || len(reply) == 0 {
		return 0, 0, fmt.Errorf("unexpected reply type from set absolute script: %T", result)
	}
	if reply[0].(int64) == -1 {
		return 0, 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	return int(reply[1].(int64)), value, nil
}

func (s *StockStore) Upsert(ctx context.Context, productID string, value int) error {
	return s.client.Set(ctx, stockKey(productID), value, 0).Err()
}

func (s *StockStore) LowStock(ctx context.Context, threshold int) (map[string]int, error) {
	result := make(map[string]int)

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			vals, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, err
			}
			for i, raw := range vals {
				str, ok := raw.(string)
				if !ok {
					continue
				}
				stock, err := strconv.Atoi(str)
				if err != nil {
					continue
				}
				if stock <= threshold {
					result[keys[i][len(keyPrefix):]] = stock
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return result, nil
}
