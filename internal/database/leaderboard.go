package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/partyroom/internal/game"
)

// Leaderboard counts wins per display name and game type in game_wins.
type Leaderboard struct {
	pool *pgxpool.Pool
}

func NewLeaderboard(pool *pgxpool.Pool) *Leaderboard {
	return &Leaderboard{pool: pool}
}

// RecordWinners adds one win to every name. A name listed twice counts once.
func (l *Leaderboard) RecordWinners(ctx context.Context, gameID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	err := pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO game_wins (game_id, player_name, wins)
			VALUES ($1, $2, 1)
			ON CONFLICT (game_id, player_name)
			DO UPDATE SET wins = game_wins.wins + 1, updated_at = NOW()
		`
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			if _, e := tx.Exec(ctx, q, gameID, name); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record winners for %s: %w", gameID, err)
	}
	return nil
}

// GetLeaderboard returns the top rows by wins, ties broken by name.
func (l *Leaderboard) GetLeaderboard(ctx context.Context, gameID string, limit int) ([]game.Ranking, error) {
	q := `
		SELECT player_name, wins
		FROM game_wins
		WHERE game_id = $1
		ORDER BY wins DESC, player_name ASC
		LIMIT $2
	`
	rows, err := l.pool.Query(ctx, q, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard for %s: %w", gameID, err)
	}
	defer rows.Close()

	rankings := []game.Ranking{}
	for rows.Next() {
		var r game.Ranking
		if err := rows.Scan(&r.Name, &r.Wins); err != nil {
			return nil, err
		}
		rankings = append(rankings, r)
	}
	return rankings, rows.Err()
}
