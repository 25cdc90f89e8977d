package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/partyroom/internal/game/jamo"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// WordCache remembers dictionary answers. Failed lookups are not cached, so
// a flaky dictionary is asked again next time.
type WordCache struct {
	rdb    *redis.Client
	next   jamo.Dictionary
	ttl    time.Duration
	logger *logrus.Logger
}

func NewWordCache(rdb *redis.Client, next jamo.Dictionary, ttl time.Duration, logger *logrus.Logger) *WordCache {
	return &WordCache{rdb: rdb, next: next, ttl: ttl, logger: logger}
}

func wordKey(word string) string {
	return "dict:" + word
}

func (w *WordCache) Lookup(ctx context.Context, word string) (bool, error) {
	cached, err := w.rdb.Get(ctx, wordKey(word)).Result()
	if err == nil {
		return cached == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		w.logger.WithField("word", word).WithError(err).Debug("word cache read failed")
	}

	found, err := w.next.Lookup(ctx, word)
	if err != nil {
		return false, err
	}
	val := "0"
	if found {
		val = "1"
	}
	if err := w.rdb.Set(ctx, wordKey(word), val, w.ttl).Err(); err != nil {
		w.logger.WithField("word", word).WithError(err).Debug("word cache write failed")
	}
	return found, nil
}
