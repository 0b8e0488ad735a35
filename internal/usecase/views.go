package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// 画面用データの読み取りキャッシュ（実装はinfra/cache）
// Invalidateはキーの世代を進める。SetIfGenerationは読む前に取った世代のままのときだけ書く
type ViewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, value []byte, gen int64) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

func orderView(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

func assignmentsView(courierID int64) string {
	return fmt.Sprintf("courier:%d:assignments", courierID)
}

// 注文が変わったときに古くなる画面
func staleOrderViews(orderID int64, couriers ...*int64) []string {
	keys := []string{orderView(orderID)}
	seen := map[int64]bool{}
	for _, c := range couriers {
		if c == nil || seen[*c] {
			continue
		}
		seen[*c] = true
		keys = append(keys, assignmentsView(*c))
	}
	return keys
}

// キャッシュの失敗はリクエストを失敗させない（warnだけ）
type views struct {
	cache ViewCache
}

func newViews(c ViewCache) views {
	return views{cache: c}
}

func (v views) load(ctx context.Context, key string, dst any) bool {
	if v.cache == nil {
		return false
	}
	b, ok, err := v.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("view cache get failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("view cache decode failed")
		return false
	}
	return true
}

// DBを読む前に呼ぶ。falseならstoreしない
func (v views) generation(ctx context.Context, key string) (int64, bool) {
	if v.cache == nil {
		return 0, false
	}
	gen, err := v.cache.Generation(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("view cache generation failed")
		return 0, false
	}
	return gen, true
}

// 読んでいる間に無効化されていたら捨てる
func (v views) store(ctx context.Context, key string, gen int64, val any) {
	if v.cache == nil {
		return
	}
	b, err := json.Marshal(val)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("view cache encode failed")
		return
	}
	if _, err := v.cache.SetIfGeneration(ctx, key, b, gen); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("view cache set failed")
	}
}

func (v views) invalidate(ctx context.Context, keys ...string) {
	if v.cache == nil || len(keys) == 0 {
		return
	}
	if err := v.cache.Invalidate(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("view invalidation failed")
	}
}
