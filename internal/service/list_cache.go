package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"cardledger/internal/cache"
	"cardledger/internal/model"
)

const cardListKeyPrefix = "cards:"

// cardListCache keeps each owner's ordered card list in redis.
// Entries live under cards:<owner>:<generation>; every write bumps the
// owner's generation, so a list read that raced a write lands under a key
// nobody reads again. Any failure behaves as a miss.
type cardListCache struct {
	cache  *cache.Client
	ttl    time.Duration
	logger *zap.Logger
}

func (c *cardListCache) genKey(owner string) string {
	return cardListKeyPrefix + owner + ":gen"
}

func (c *cardListCache) key(owner string, gen int64) string {
	return cardListKeyPrefix + owner + ":" + strconv.FormatInt(gen, 10)
}

// generation returns the owner's current list generation, 0 when none was recorded.
func (c *cardListCache) generation(ctx context.Context, owner string) int64 {
	data, _ := c.cache.Get(ctx, c.genKey(owner))
	if data == nil {
		return 0
	}
	gen, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

// get looks up the list for the given generation.
func (c *cardListCache) get(ctx context.Context, owner string, gen int64) ([]model.Card, bool) {
	data, _ := c.cache.Get(ctx, c.key(owner, gen))
	if data == nil {
		return nil, false
	}
	var cards []model.Card
	if err := json.Unmarshal(data, &cards); err != nil {
		c.logger.Warn("discarding unreadable card list cache entry", zap.String("owner", owner), zap.Error(err))
		_ = c.cache.Delete(ctx, c.key(owner, gen))
		return nil, false
	}
	return cards, true
}

// set stores a list read while gen was current.
func (c *cardListCache) set(ctx context.Context, owner string, gen int64, cards []model.Card) {
	if c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(cards)
	if err != nil {
		return
	}
	_ = c.cache.Set(ctx, c.key(owner, gen), data, c.ttl)
}

func (c *cardListCache) invalidate(ctx context.Context, owner string) {
	if _, err := c.cache.Incr(ctx, c.genKey(owner)); err != nil {
		c.logger.Warn("card list generation not advanced", zap.String("owner", owner), zap.Error(err))
	}
}
