package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/slotbooking/internal/persistence"
)

type gameRow struct {
	ID         string `db:"game_id"`
	Name       string `db:"name"`
	MinPlayers int    `db:"min_players"`
	MaxPlayers int    `db:"max_players"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

func (r gameRow) record() persistence.Game {
	return persistence.Game{
		ID:         r.ID,
		Name:       r.Name,
		MinPlayers: r.MinPlayers,
		MaxPlayers: r.MaxPlayers,
		CreatedAt:  fromMillis(r.CreatedAt),
		UpdatedAt:  fromMillis(r.UpdatedAt),
	}
}

type gameRepository struct {
	q sqlx.ExtContext
}

func (r gameRepository) UpsertGame(ctx context.Context, game persistence.Game) error {
	query := r.q.Rebind(`INSERT INTO games (game_id, name, min_players, max_players, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (game_id) DO UPDATE SET
			name = excluded.name,
			min_players = excluded.min_players,
			max_players = excluded.max_players,
			updated_at = excluded.updated_at`)
	if _, err := r.q.ExecContext(ctx, query,
		game.ID,
		game.Name,
		game.MinPlayers,
		game.MaxPlayers,
		toMillis(game.CreatedAt),
		toMillis(game.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert game: %w", NewErrorMapper().MapError(err))
	}
	return nil
}

func (r gameRepository) GetGame(ctx context.Context, id string) (persistence.Game, error) {
	var row gameRow
	query := r.q.Rebind(`SELECT game_id, name, min_players, max_players, created_at, updated_at
		FROM games WHERE game_id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &row, query, id); err != nil {
		return persistence.Game{}, fmt.Errorf("get game: %w", NewErrorMapper().MapError(err))
	}
	return row.record(), nil
}

func (r gameRepository) ListGames(ctx context.Context) ([]persistence.Game, error) {
	var rows []gameRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, `SELECT game_id, name, min_players, max_players, created_at, updated_at
		FROM games ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list games: %w", NewErrorMapper().MapError(err))
	}
	games := make([]persistence.Game, 0, len(rows))
	for _, row := range rows {
		games = append(games, row.record())
	}
	return games, nil
}
