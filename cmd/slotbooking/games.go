package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/slotbooking/internal/persistence"
)

type gameEntry struct {
	GameID     string `json:"gameId"`
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// loadGames reads the game catalog from a JSON array file.
func loadGames(path string, now time.Time) ([]persistence.Game, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read games file: %w", err)
	}
	var entries []gameEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode games file: %w", err)
	}

	games := make([]persistence.Game, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		id := strings.TrimSpace(entry.GameID)
		switch {
		case id == "":
			return nil, fmt.Errorf("game %d: gameId is required", i)
		case entry.MinPlayers < 1 || entry.MaxPlayers < entry.MinPlayers:
			return nil, fmt.Errorf("game %s: player bounds %d..%d are invalid", id, entry.MinPlayers, entry.MaxPlayers)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("game %s: listed twice", id)
		}
		seen[id] = struct{}{}

		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = id
		}
		games = append(games, persistence.Game{
			ID:         id,
			Name:       name,
			MinPlayers: entry.MinPlayers,
			MaxPlayers: entry.MaxPlayers,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return games, nil
}

// seedGames upserts the catalog in one transaction.
func seedGames(ctx context.Context, store persistence.Store, games []persistence.Game) error {
	return store.WithinTx(ctx, func(repos persistence.Repositories) error {
		for _, game := range games {
			if err := repos.Games().UpsertGame(ctx, game); err != nil {
				return fmt.Errorf("upsert game %s: %w", game.ID, err)
			}
		}
		return nil
	})
}
