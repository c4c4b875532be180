package highlight

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

type cached struct {
	h     Highlighter
	store *cache.Cache
}

// Cached remembers results of h. Zero or negative expiration keeps results for
// the lifetime of the returned highlighter. Errors are never cached.
func Cached(h Highlighter, expiration time.Duration) Highlighter {
	if expiration <= 0 {
		return &cached{h: h, store: cache.New(cache.NoExpiration, 0)}
	}
	return &cached{h: h, store: cache.New(expiration, 2*expiration)}
}

func cacheKey(lang, src string) string {
	sum := sha256.Sum256([]byte(src))
	return lang + ":" + hex.EncodeToString(sum[:])
}

func (c *cached) Highlight(ctx context.Context, lang, src string) (string, error) {
	key := cacheKey(lang, src)
	if v, ok := c.store.Get(key); ok {
		return v.(string), nil
	}
	out, err := c.h.Highlight(ctx, lang, src)
	if err != nil {
		return "", err
	}
	c.store.SetDefault(key, out)
	return out, nil
}
