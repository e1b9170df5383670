package repository

import (
	"context"
	"fmt"

	"github.com/merchantscaravan/caravan-server/internal/game/cards"
	"github.com/merchantscaravan/caravan-server/internal/room"
)

// ResultRepository stores finished games. It satisfies room.ResultRecorder.
type ResultRepository struct {
	db *DB
}

func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// RecordResult inserts one finished game.
func (r *ResultRepository) RecordResult(ctx context.Context, result room.GameResult) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO game_results (
			room_id, winner_id, winner_name, caravan_type, value, round, players, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		result.RoomID,
		result.WinnerID,
		result.WinnerName,
		string(result.Category),
		result.Value,
		result.Round,
		result.Players,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record result for room %s: %w", result.RoomID, err)
	}
	return nil
}

// RecentResults returns up to limit games, newest first.
func (r *ResultRepository) RecentResults(ctx context.Context, limit int) ([]room.GameResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.pool.Query(ctx, `
		SELECT room_id, winner_id, winner_name, caravan_type, value, round, players, finished_at
		FROM game_results
		ORDER BY finished_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make([]room.GameResult, 0, limit)
	for rows.Next() {
		var (
			res      room.GameResult
			category string
		)
		if err := rows.Scan(
			&res.RoomID,
			&res.WinnerID,
			&res.WinnerName,
			&category,
			&res.Value,
			&res.Round,
			&res.Players,
			&res.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Category = cards.Category(category)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return results, nil
}
