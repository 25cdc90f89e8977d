package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// warmLimit bounds how many rows a cold cache pulls from the store.
const warmLimit = 1000

// Leaderboard is a read-through sorted-set cache in front of a durable
// leaderboard. Scores are stored negated so that an ascending range yields
// wins descending with ties broken by name, matching the store's order.
type Leaderboard struct {
	rdb    *redis.Client
	next   game.Leaderboard
	ttl    time.Duration
	logger *logrus.Logger
}

func NewLeaderboard(rdb *redis.Client, next game.Leaderboard, ttl time.Duration, logger *logrus.Logger) *Leaderboard {
	return &Leaderboard{rdb: rdb, next: next, ttl: ttl, logger: logger}
}

func leaderboardKey(gameID string) string {
	return "leaderboard:" + gameID
}

// RecordWinners writes through and drops the cached set.
func (l *Leaderboard) RecordWinners(ctx context.Context, gameID string, names []string) error {
	if err := l.next.RecordWinners(ctx, gameID, names); err != nil {
		return err
	}
	if err := l.rdb.Del(ctx, leaderboardKey(gameID)).Err(); err != nil {
		l.logger.WithField("game", gameID).WithError(err).Warn("failed to invalidate leaderboard cache")
	}
	return nil
}

func (l *Leaderboard) GetLeaderboard(ctx context.Context, gameID string, limit int) ([]game.Ranking, error) {
	if limit <= 0 {
		return []game.Ranking{}, nil
	}
	key := leaderboardKey(gameID)
	n, err := l.rdb.Exists(ctx, key).Result()
	if err == nil && n > 0 {
		if rankings, err := l.read(ctx, key, limit); err == nil {
			return rankings, nil
		}
	}

	all, err := l.next.GetLeaderboard(ctx, gameID, warmLimit)
	if err != nil {
		return nil, err
	}
	if err := l.warm(ctx, key, all); err != nil {
		l.logger.WithField("game", gameID).WithError(err).Warn("failed to warm leaderboard cache")
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (l *Leaderboard) read(ctx context.Context, key string, limit int) ([]game.Ranking, error) {
	zs, err := l.rdb.ZRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("ZRange %s: %w", key, err)
	}
	rankings := make([]game.Ranking, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		rankings = append(rankings, game.Ranking{Name: name, Wins: int(-z.Score)})
	}
	return rankings, nil
}

func (l *Leaderboard) warm(ctx context.Context, key string, rankings []game.Ranking) error {
	if len(rankings) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(rankings))
	for _, r := range rankings {
		members = append(members, redis.Z{Score: float64(-r.Wins), Member: r.Name})
	}
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZAdd(ctx, key, members...)
		pipe.Expire(ctx, key, l.ttl)
		return nil
	})
	return err
}
