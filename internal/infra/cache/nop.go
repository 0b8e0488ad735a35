package cache

import "context"

// REDIS_HOST未設定のとき用。常にミス。
type NopViewCache struct{}

func (NopViewCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NopViewCache) Generation(ctx context.Context, key string) (int64, error) { return 0, nil }

func (NopViewCache) SetIfGeneration(ctx context.Context, key string, value []byte, gen int64) (bool, error) {
	return false, nil
}

func (NopViewCache) Invalidate(ctx context.Context, keys ...string) error { return nil }
