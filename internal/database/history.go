package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/models"
)

// HistoryStore persists the action stream written by the historian.
type HistoryStore struct {
	pool *pgxpool.Pool
}

func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// InsertActions writes a batch in one transaction. Redelivered records are
// ignored through the (room_key, action_index) key.
func (h *HistoryStore) InsertActions(ctx context.Context, recs []models.ActionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, h.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %s#%d: %w", rec.RoomKey, rec.ActionIndex, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("flush %d actions: %w", len(recs), err)
	}
	return nil
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec models.ActionRecord) error {
	at := time.UnixMilli(rec.Timestamp)
	upsertRoomQ := `
		INSERT INTO rooms (room_key, room_id, game_type, status, started_at, last_action_at)
		VALUES ($1, $2, $3, 'active', $4, $4)
		ON CONFLICT (room_key)
		DO UPDATE SET
			last_action_at = GREATEST(rooms.last_action_at, EXCLUDED.last_action_at),
			status = CASE WHEN rooms.status = 'closed' THEN 'closed' ELSE 'active' END
	`
	if _, err := tx.Exec(ctx, upsertRoomQ, rec.RoomKey, rec.RoomID, rec.GameType, at); err != nil {
		return err
	}

	payload := rec.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	actionInsertQ := `
		INSERT INTO room_actions (room_key, action_index, actor_id, action_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_key, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.RoomKey, rec.ActionIndex, rec.ActorID, rec.ActionType, []byte(payload), at,
	); err != nil {
		return err
	}

	var status string
	switch rec.ActionType {
	case game.ActionGameOver:
		status = "completed"
	case game.ActionRoomClosed:
		status = "closed"
	default:
		return nil
	}
	finalizeQ := `
		UPDATE rooms
		SET status = $2, ended_at = $3
		WHERE room_key = $1 AND status <> 'closed'
	`
	_, err := tx.Exec(ctx, finalizeQ, rec.RoomKey, status, at)
	return err
}

// MarkAbandoned flags active rooms whose last action is older than cutoff
// and returns how many rows changed.
func (h *HistoryStore) MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	q := `
		UPDATE rooms
		SET status = 'abandoned', ended_at = NOW()
		WHERE status = 'active' AND last_action_at < $1
	`
	tag, err := h.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned rooms: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RoomStatus reads the recorded status of a room run.
func (h *HistoryStore) RoomStatus(ctx context.Context, roomKey string) (string, error) {
	var status string
	err := h.pool.QueryRow(ctx, `SELECT status FROM rooms WHERE room_key = $1`, roomKey).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("room status %s: %w", roomKey, err)
	}
	return status, nil
}

// CountActions returns how many actions are stored for a room run.
func (h *HistoryStore) CountActions(ctx context.Context, roomKey string) (int, error) {
	var n int
	err := h.pool.QueryRow(ctx, `SELECT COUNT(*) FROM room_actions WHERE room_key = $1`, roomKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count actions %s: %w", roomKey, err)
	}
	return n, nil
}
